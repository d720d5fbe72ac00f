package models

import "time"

// Quest is a single-recipient reward each accepting student can earn once.
type Quest struct {
	ID                string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title             string     `gorm:"not null" json:"title"`
	Description       string     `gorm:"type:text" json:"description,omitempty"`
	IssuerID          string     `gorm:"type:uuid;not null" json:"issuer_id"`
	SubjectID         string     `gorm:"type:varchar(64)" json:"subject_id,omitempty"`
	XPReward          int64      `json:"xp_reward"`
	MoneyReward       int64      `json:"money_reward"`
	SkillPointsReward int64      `json:"skillpoints_reward"`
	ReputationReward  int64      `json:"reputation_reward"`
	Active            bool       `gorm:"default:true" json:"active"`
	AvailableFrom     *time.Time `json:"available_from,omitempty"`
	AvailableUntil    *time.Time `json:"available_until,omitempty"`
	Timestamps
}

// OpenAt reports whether the quest can be accepted at t.
func (q *Quest) OpenAt(t time.Time) bool {
	if !q.Active {
		return false
	}
	if q.AvailableFrom != nil && t.Before(*q.AvailableFrom) {
		return false
	}
	if q.AvailableUntil != nil && t.After(*q.AvailableUntil) {
		return false
	}
	return true
}

type QuestProgress struct {
	QuestID     string      `gorm:"primaryKey;type:uuid" json:"quest_id"`
	UserID      string      `gorm:"primaryKey;type:uuid" json:"user_id"`
	Status      QuestStatus `gorm:"type:varchar(16);not null" json:"status"`
	AcceptedAt  time.Time   `json:"accepted_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}
