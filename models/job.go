package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job is a pooled reward posted by a teacher and split between approved recipients on close.
type Job struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	Title             string    `gorm:"not null" json:"title"`
	Description       string    `gorm:"type:text" json:"description,omitempty"`
	TeacherID         string    `gorm:"type:uuid;not null;index" json:"teacher_id"`
	SubjectID         string    `gorm:"type:varchar(64)" json:"subject_id,omitempty"`
	Status            JobStatus `gorm:"type:varchar(16);not null;default:'OPEN'" json:"status"`
	XPReward          int64     `json:"xp_reward"`
	MoneyReward       int64     `json:"money_reward"`
	SkillPointsReward int64     `json:"skillpoints_reward"`
	ReputationReward  int64     `json:"reputation_reward"`
	MaxRecipients     int       `gorm:"not null;default:1" json:"max_recipients"`
	TeamEligible      bool      `gorm:"default:false" json:"team_eligible"`

	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	ClosedAt *time.Time `json:"closed_at,omitempty"`
	Timestamps
}

type JobAssignment struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	JobID       string           `gorm:"type:uuid;not null;uniqueIndex:idx_job_assignee" json:"job_id"`
	UserID      string           `gorm:"type:uuid;not null;uniqueIndex:idx_job_assignee" json:"user_id"`
	Status      AssignmentStatus `gorm:"type:varchar(16);not null" json:"status"`
	AppliedAt   time.Time        `json:"applied_at"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// PayoutRemainder records what floor division left undistributed on a pooled payout.
type PayoutRemainder struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	SourceType SourceType `gorm:"type:varchar(32);not null" json:"source_type"`
	SourceID   string     `gorm:"not null;index" json:"source_id"`
	Recipients int        `json:"recipients"`
	PoolXP     int64      `json:"pool_xp"`
	PoolMoney  int64      `json:"pool_money"`
	XP         int64      `json:"xp"`
	Money      int64      `json:"money"`
	CreatedAt  time.Time  `json:"created_at"`
}
