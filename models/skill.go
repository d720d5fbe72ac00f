package models

// Skill is a catalog entry students raise with skill points.
type Skill struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	MaxLevel     int    `gorm:"not null;default:10" json:"max_level"`
	CostPerLevel int64  `gorm:"not null;default:1" json:"cost_per_level"`
	Timestamps
}

type UserSkill struct {
	UserID  string `gorm:"primaryKey;type:uuid" json:"user_id"`
	SkillID string `gorm:"primaryKey;type:uuid" json:"skill_id"`
	Level   int    `gorm:"not null;default:0" json:"level"`
	Timestamps
}
