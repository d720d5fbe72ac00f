package services

import (
	"time"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StreakMilestones are the run lengths that pay a one-time reward.
var StreakMilestones = []int{3, 7, 14, 30, 60, 100, 365}

var (
	streakStep = decimal.New(5, -2)
	streakCap  = decimal.New(15, -1)
	one        = decimal.NewFromInt(1)
)

// StreakMultiplier is 1.0 up to a one-day streak, then 1 + 0.05n capped at 1.5.
func StreakMultiplier(n int) decimal.Decimal {
	if n <= 1 {
		return one
	}
	m := one.Add(streakStep.Mul(decimal.NewFromInt(int64(n))))
	if m.GreaterThan(streakCap) {
		return streakCap
	}
	return m
}

// MilestoneReward is what reaching a milestone of the given length pays.
func MilestoneReward(days int) (xp, money int64) {
	return int64(days) * 10, int64(days) * 2
}

// StreakUpdate describes what one recorded activity did to a streak.
type StreakUpdate struct {
	Record     *models.StreakRecord
	Evaluated  bool // first activity of the day
	Broken     bool
	Milestones []int
}

// StreakEngine is the only writer of StreakRecord.
type StreakEngine struct{}

// RecordActivity registers a reward-bearing activity on day. Only the first activity of
// a calendar day moves the streak; every call counts towards participation.
func (e *StreakEngine) RecordActivity(tx store.Tx, userID string, day time.Time, now time.Time) (*StreakUpdate, error) {
	r, err := tx.LockStreak(userID)
	if err != nil {
		return nil, err
	}
	up := &StreakUpdate{Record: r}
	r.TotalParticipationCount++

	switch {
	case r.LastActivityDate == nil:
		r.CurrentStreak = 1
		r.RunStartedOn = ptrTime(day)
		up.Evaluated = true
	default:
		gap := DaysBetween(*r.LastActivityDate, day)
		switch {
		case gap <= 0:
			// same day, or a clock behind the stored date
		case gap == 1 && r.CurrentStreak > 0:
			r.CurrentStreak++
			up.Evaluated = true
		default:
			// a swept record already carries its break date
			if r.CurrentStreak > 0 {
				r.StreakBrokenAt = ptrTime(day)
				up.Broken = true
			}
			r.CurrentStreak = 1
			r.RunStartedOn = ptrTime(day)
			up.Evaluated = true
		}
	}

	if up.Evaluated {
		r.LastActivityDate = ptrTime(day)
		if r.CurrentStreak > r.MaxStreak {
			r.MaxStreak = r.CurrentStreak
		}
		if r.RunStartedOn == nil {
			r.RunStartedOn = ptrTime(day)
		}
		for _, days := range StreakMilestones {
			if r.CurrentStreak != days {
				continue
			}
			seen, err := tx.HasMilestone(userID, *r.RunStartedOn, days)
			if err != nil {
				return nil, err
			}
			if seen {
				continue
			}
			if err := tx.AddMilestone(&models.StreakMilestone{
				ID:           uuid.NewString(),
				UserID:       userID,
				RunStartedOn: *r.RunStartedOn,
				Days:         days,
				AwardedAt:    now,
			}); err != nil {
				return nil, err
			}
			up.Milestones = append(up.Milestones, days)
		}
	}
	r.CurrentMultiplier = StreakMultiplier(r.CurrentStreak)

	if err := tx.SaveStreak(r); err != nil {
		return nil, err
	}
	return up, nil
}

// Sweep drops every streak whose last activity is before the day preceding today and
// returns the affected users.
func (e *StreakEngine) Sweep(tx store.Tx, today time.Time) ([]string, error) {
	yesterday := today.AddDate(0, 0, -1)
	stale, err := tx.StaleStreaks(yesterday)
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(stale))
	for i := range stale {
		r := &stale[i]
		r.CurrentStreak = 0
		r.CurrentMultiplier = StreakMultiplier(0)
		r.StreakBrokenAt = ptrTime(today)
		if err := tx.SaveStreak(r); err != nil {
			return nil, err
		}
		users = append(users, r.UserID)
	}
	return users, nil
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
