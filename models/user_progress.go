package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StreakRecord is owned by the streak engine. CurrentMultiplier is always derived
// from CurrentStreak and persisted alongside it.
type StreakRecord struct {
	UserID                  string          `gorm:"primaryKey;type:uuid" json:"user_id"`
	CurrentStreak           int             `json:"current_streak" gorm:"default:0"`
	MaxStreak               int             `json:"max_streak" gorm:"default:0"`
	CurrentMultiplier       decimal.Decimal `json:"current_multiplier" gorm:"type:numeric(6,3);not null;default:1"`
	LastActivityDate        *time.Time      `json:"last_activity_date,omitempty" gorm:"type:date"`
	RunStartedOn            *time.Time      `json:"run_started_on,omitempty" gorm:"type:date"`
	StreakBrokenAt          *time.Time      `json:"streak_broken_at,omitempty" gorm:"type:date"`
	TotalParticipationCount int64           `json:"total_participation_count" gorm:"default:0"`
	UpdatedAt               time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// StreakMilestone marks a milestone already paid for one streak run.
type StreakMilestone struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_streak_milestone" json:"user_id"`
	RunStartedOn time.Time `gorm:"type:date;not null;uniqueIndex:idx_streak_milestone" json:"run_started_on"`
	Days         int       `gorm:"not null;uniqueIndex:idx_streak_milestone" json:"days"`
	AwardedAt    time.Time `json:"awarded_at"`
}

// SkillPointBalance is owned by the skill point allocator. Total == Available + Spent.
type SkillPointBalance struct {
	UserID              string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	Available           int64     `json:"available" gorm:"default:0"`
	Spent               int64     `json:"spent" gorm:"default:0"`
	Total               int64     `json:"total" gorm:"default:0"`
	HighestLevelAwarded int       `json:"highest_level_awarded" gorm:"default:1"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ReputationRecord is owned by the reputation tracker. Tier is a projection of Points.
type ReputationRecord struct {
	UserID    string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	Points    int64     `json:"points" gorm:"default:0"`
	Tier      int       `json:"tier" gorm:"default:0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
