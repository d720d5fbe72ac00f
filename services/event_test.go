package services

import (
	"testing"
	"time"

	"classroom-economy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) openEvent(issuerID string, maxParticipants int, reward Reward) *models.RewardEvent {
	f.t.Helper()
	ev, err := NewEventService(f.core).CreateEvent(f.ctx, issuerID, NewEvent{
		Title:           "Science fair",
		SubjectID:       "science",
		StartsAt:        f.now.Add(-time.Hour),
		EndsAt:          f.now.Add(2 * time.Hour),
		MaxParticipants: maxParticipants,
		Reward:          reward,
	})
	require.NoError(f.t, err)
	return ev
}

func TestCloseEvent_PaysEveryParticipantInFull(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher()
	a, b, c := f.student(), f.student(), f.student()
	events := NewEventService(f.core)
	ev := f.openEvent(teacher, 0, Reward{XP: 20, Money: 5})

	for _, id := range []string{a, b, c} {
		_, err := events.JoinEvent(f.ctx, ev.ID, id)
		require.NoError(t, err)
	}

	res, err := events.CloseEvent(f.ctx, ev.ID, teacher)
	require.NoError(t, err)
	assert.Equal(t, models.EventClosed, res.Event.Status)
	require.Len(t, res.Payouts, 3)
	for _, id := range []string{a, b, c} {
		assert.Equal(t, int64(20), f.xp(id))
		assert.Equal(t, int64(5), f.money(id))
	}
	assert.Equal(t, int64(60), f.budget(teacher, "science").UsedAmount)

	_, err = events.CloseEvent(f.ctx, ev.ID, teacher)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = events.JoinEvent(f.ctx, ev.ID, f.student())
	assert.ErrorIs(t, err, ErrEventClosed)
}

func TestJoinEvent_Rules(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher()
	a, b := f.student(), f.student()
	events := NewEventService(f.core)
	ev := f.openEvent(teacher, 1, Reward{XP: 10})

	_, err := events.JoinEvent(f.ctx, ev.ID, a)
	require.NoError(t, err)
	_, err = events.JoinEvent(f.ctx, ev.ID, a)
	assert.ErrorIs(t, err, ErrEventAlreadyJoined)
	_, err = events.JoinEvent(f.ctx, ev.ID, b)
	assert.ErrorIs(t, err, ErrEventFull)
	_, err = events.JoinEvent(f.ctx, "missing", b)
	assert.ErrorIs(t, err, ErrEventNotFound)

	f.advanceDays(1)
	other := f.openEvent(teacher, 0, Reward{XP: 10})
	f.advanceDays(1)
	_, err = events.JoinEvent(f.ctx, other.ID, b)
	assert.ErrorIs(t, err, ErrEventClosed)
}

func TestCloseEvent_Authorization(t *testing.T) {
	f := newFixture(t)
	teacher, other := f.teacher(), f.teacher()
	events := NewEventService(f.core)
	ev := f.openEvent(teacher, 0, Reward{XP: 10})

	_, err := events.CloseEvent(f.ctx, ev.ID, other)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = events.CreateEvent(f.ctx, f.student(), NewEvent{
		Title: "Party", StartsAt: f.now, EndsAt: f.now.Add(time.Hour), Reward: Reward{XP: 1},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = events.CreateEvent(f.ctx, teacher, NewEvent{
		Title: "Inverted", StartsAt: f.now, EndsAt: f.now.Add(-time.Hour), Reward: Reward{XP: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCloseEvent_NoParticipants(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher()
	ev := f.openEvent(teacher, 0, Reward{XP: 10})

	res, err := NewEventService(f.core).CloseEvent(f.ctx, ev.ID, teacher)
	require.NoError(t, err)
	assert.Empty(t, res.Payouts)
	assert.Equal(t, models.EventClosed, res.Event.Status)
	assert.Equal(t, int64(0), f.budget(teacher, "science").UsedAmount)
}

func TestCloseEvent_BudgetCoversAllParticipants(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher()
	events := NewEventService(f.core)
	ev := f.openEvent(teacher, 0, Reward{XP: 400})

	var joined []string
	for i := 0; i < 3; i++ {
		id := f.student()
		joined = append(joined, id)
		_, err := events.JoinEvent(f.ctx, ev.ID, id)
		require.NoError(t, err)
	}

	_, err := events.CloseEvent(f.ctx, ev.ID, teacher)
	require.ErrorIs(t, err, ErrBudgetExceeded)
	for _, id := range joined {
		assert.Equal(t, int64(0), f.xp(id))
	}
}
