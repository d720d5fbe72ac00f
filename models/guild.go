package models

import "time"

// GuildXPPerLevel is the XP a guild needs for each level past the first.
const GuildXPPerLevel = 1000

// Guild pools part of its members' rewards. Level is derived from XP and never set.
type Guild struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	Slug       string `gorm:"uniqueIndex;not null" json:"slug"`
	LeaderID   string `gorm:"type:uuid;not null" json:"leader_id"`
	XP         int64  `gorm:"default:0" json:"xp"`
	Treasury   int64  `gorm:"default:0" json:"treasury"`
	MaxMembers int    `gorm:"not null;default:20" json:"max_members"`
	Timestamps
}

// Level is floor(xp/1000)+1.
func (g *Guild) Level() int {
	return GuildLevelFor(g.XP)
}

func GuildLevelFor(xp int64) int {
	if xp < 0 {
		return 1
	}
	return int(xp/GuildXPPerLevel) + 1
}

type GuildMember struct {
	UserID           string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	GuildID          string    `gorm:"type:uuid;not null;index" json:"guild_id"`
	ContributedXP    int64     `gorm:"default:0" json:"contributed_xp"`
	ContributedMoney int64     `gorm:"default:0" json:"contributed_money"`
	JoinedAt         time.Time `json:"joined_at"`
}

type GuildBenefit struct {
	ID            string      `gorm:"primaryKey;type:uuid" json:"id"`
	GuildID       string      `gorm:"type:uuid;not null;index" json:"guild_id"`
	Name          string      `gorm:"not null" json:"name"`
	BenefitType   BenefitType `gorm:"type:varchar(32);not null" json:"benefit_type"`
	Value         int         `gorm:"not null" json:"value"`
	RequiredLevel int         `gorm:"not null" json:"required_level"`
}

// Active reports whether the benefit applies at the given guild level.
func (b GuildBenefit) Active(level int) bool {
	return b.RequiredLevel <= level
}

type GuildActivity struct {
	ID        string            `gorm:"primaryKey;type:uuid" json:"id"`
	GuildID   string            `gorm:"type:uuid;not null;index" json:"guild_id"`
	UserID    string            `gorm:"type:uuid" json:"user_id,omitempty"`
	Kind      GuildActivityKind `gorm:"type:varchar(32);not null" json:"kind"`
	Detail    string            `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
