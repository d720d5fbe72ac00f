package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"classroom-economy/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func TestMemoryStore_CommitsOnSuccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		_, err := tx.EnsureUser(&models.User{ID: "u1", Role: models.RoleStudent})
		return err
	}))
	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		u, err := tx.GetUser("u1")
		require.NoError(t, err)
		assert.Equal(t, models.RoleStudent, u.Role)
		return nil
	}))
}

func TestMemoryStore_RollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx Tx) error {
		if _, err := tx.EnsureUser(&models.User{ID: "u1"}); err != nil {
			return err
		}
		if err := tx.AppendGrant(&models.RewardGrant{ID: "g1", UserID: "u1", Currency: models.CurrencyXP, TotalAmount: 50}); err != nil {
			return err
		}
		b, err := tx.LockBudget("t1", "math", day, 1000)
		if err != nil {
			return err
		}
		b.UsedAmount = 500
		if err := tx.SaveBudget(b); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		_, err := tx.GetUser("u1")
		assert.ErrorIs(t, err, ErrNotFound)
		total, err := tx.SumGrants("u1", models.CurrencyXP)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		b, err := tx.LockBudget("t1", "math", day, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(0), b.UsedAmount)
		return nil
	}))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Transaction(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryStore_LockCreatesDefaults(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Transaction(context.Background(), func(tx Tx) error {
		r, err := tx.LockStreak("u1")
		require.NoError(t, err)
		assert.Equal(t, 0, r.CurrentStreak)
		assert.True(t, r.CurrentMultiplier.Equal(decimal.NewFromInt(1)))

		sp, err := tx.LockSkillPoints("u1")
		require.NoError(t, err)
		assert.Equal(t, 1, sp.HighestLevelAwarded)

		b, err := tx.LockBudget("t1", "math", day, 750)
		require.NoError(t, err)
		assert.Equal(t, int64(750), b.BudgetCeiling)

		_, err = tx.LockJob("missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tx.LockGuild("missing")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestMemoryStore_MilestoneIsUnique(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Transaction(context.Background(), func(tx Tx) error {
		m := &models.StreakMilestone{ID: "m1", UserID: "u1", RunStartedOn: day, Days: 3}
		require.NoError(t, tx.AddMilestone(m))
		assert.ErrorIs(t, tx.AddMilestone(&models.StreakMilestone{ID: "m2", UserID: "u1", RunStartedOn: day, Days: 3}), ErrDuplicate)

		seen, err := tx.HasMilestone("u1", day, 3)
		require.NoError(t, err)
		assert.True(t, seen)
		seen, err = tx.HasMilestone("u1", day.AddDate(0, 0, 5), 3)
		require.NoError(t, err)
		assert.False(t, seen)
		return nil
	}))
}

func TestMemoryStore_StaleStreaks(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Transaction(context.Background(), func(tx Tx) error {
		for id, last := range map[string]time.Time{"old": day.AddDate(0, 0, -3), "recent": day} {
			last := last
			r, err := tx.LockStreak(id)
			require.NoError(t, err)
			r.CurrentStreak = 2
			r.LastActivityDate = &last
			require.NoError(t, tx.SaveStreak(r))
		}
		stale, err := tx.StaleStreaks(day.AddDate(0, 0, -1))
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "old", stale[0].UserID)
		return nil
	}))
}

func TestMemoryStore_OutboxStatus(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Transaction(context.Background(), func(tx Tx) error {
		for _, id := range []string{"e1", "e2"} {
			require.NoError(t, tx.AppendOutbox(&models.OutboxEvent{ID: id, Kind: models.OutboxXPGained, Status: models.OutboxPending}))
		}
		pending, err := tx.PendingOutbox(10)
		require.NoError(t, err)
		require.Len(t, pending, 2)

		pending[0].Status = models.OutboxDelivered
		require.NoError(t, tx.SaveOutbox(&pending[0]))
		pending, err = tx.PendingOutbox(10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "e2", pending[0].ID)

		assert.ErrorIs(t, tx.SaveOutbox(&models.OutboxEvent{ID: "nope"}), ErrNotFound)
		return nil
	}))
}

func TestMemoryStore_ClaimableOutbox(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	fresh, stale := now.Add(-time.Minute), now.Add(-time.Hour)
	require.NoError(t, s.Transaction(context.Background(), func(tx Tx) error {
		rows := []models.OutboxEvent{
			{ID: "pending", Status: models.OutboxPending},
			{ID: "claimed", Status: models.OutboxClaimed, ClaimedAt: &fresh},
			{ID: "abandoned", Status: models.OutboxClaimed, ClaimedAt: &stale},
			{ID: "done", Status: models.OutboxDelivered},
		}
		for i := range rows {
			rows[i].Kind = models.OutboxXPGained
			require.NoError(t, tx.AppendOutbox(&rows[i]))
		}

		got, err := tx.ClaimableOutbox(10, now.Add(-30*time.Minute))
		require.NoError(t, err)
		var ids []string
		for _, e := range got {
			ids = append(ids, e.ID)
		}
		assert.Equal(t, []string{"pending", "abandoned"}, ids)
		return nil
	}))
}
