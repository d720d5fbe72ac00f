package services

import (
	"classroom-economy/models"
	"classroom-economy/store"
)

const (
	ReputationPerTier = 1000
	MaxReputationTier = 10
)

// ReputationTier is floor(|points|/1000) clamped to [0, 10].
func ReputationTier(points int64) int {
	if points < 0 {
		points = -points
	}
	tier := points / ReputationPerTier
	if tier > MaxReputationTier {
		return MaxReputationTier
	}
	return int(tier)
}

// ReputationTracker is the only writer of ReputationRecord.
type ReputationTracker struct{}

// Adjust adds delta and recomputes the tier in the same write.
func (r *ReputationTracker) Adjust(tx store.Tx, userID string, delta int64) (*models.ReputationRecord, error) {
	rec, err := tx.LockReputation(userID)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return rec, nil
	}
	rec.Points += delta
	rec.Tier = ReputationTier(rec.Points)
	if err := tx.SaveReputation(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
