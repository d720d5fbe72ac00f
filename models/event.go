package models

import "time"

// RewardEvent is a time-boxed activity that pays every participant the full reward on close.
type RewardEvent struct {
	ID                string      `gorm:"primaryKey;type:uuid" json:"id"`
	Title             string      `gorm:"not null" json:"title"`
	IssuerID          string      `gorm:"type:uuid;not null" json:"issuer_id"`
	SubjectID         string      `gorm:"type:varchar(64)" json:"subject_id,omitempty"`
	Status            EventStatus `gorm:"type:varchar(16);not null;default:'SCHEDULED'" json:"status"`
	StartsAt          time.Time   `json:"starts_at"`
	EndsAt            time.Time   `json:"ends_at"`
	MaxParticipants   int         `json:"max_participants"`
	XPReward          int64       `json:"xp_reward"`
	MoneyReward       int64       `json:"money_reward"`
	SkillPointsReward int64       `json:"skillpoints_reward"`
	ReputationReward  int64       `json:"reputation_reward"`
	ClosedAt          *time.Time  `json:"closed_at,omitempty"`
	Timestamps
}

// Within reports whether t falls inside the event window.
func (e *RewardEvent) Within(t time.Time) bool {
	return !t.Before(e.StartsAt) && !t.After(e.EndsAt)
}

type EventParticipation struct {
	EventID  string    `gorm:"primaryKey;type:uuid" json:"event_id"`
	UserID   string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
	Rewarded bool      `gorm:"default:false" json:"rewarded"`
}
