package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"
)

const (
	DefaultOutboxBatch       = 100
	DefaultOutboxMaxAttempts = 5
	// DefaultOutboxLease is how long a claim keeps other replicas off a row. A replica
	// that dies mid-batch releases its rows when the lease runs out.
	DefaultOutboxLease = 5 * time.Minute
)

// IntegrationHook is called after commit for every integration event. Errors are
// logged and retried by the dispatcher; they never reach the operation that produced
// the event.
type IntegrationHook interface {
	OnXPGained(ctx context.Context, userID string, amount, totalXP int64) error
	OnLevelUp(ctx context.Context, userID string, from, to int) error
	OnQuestCompleted(ctx context.Context, userID, questID string) error
	OnJobCompleted(ctx context.Context, userID, jobID string) error
	OnStreakMilestone(ctx context.Context, userID string, days int) error
}

// Notifier is the best-effort user notification sink.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID, message string) error {
	logf("Notify", "🔔 user=%s %s", userID, message)
	return nil
}

// OutboxDispatcher delivers committed outbox rows to hooks and the notifier. One
// dispatcher per process; replicas share the table through claims. Delivery is
// at-least-once.
type OutboxDispatcher struct {
	store       store.Store
	hooks       []IntegrationHook
	notifier    Notifier
	maxAttempts int
	batch       int
	lease       time.Duration
	now         func() time.Time
	kick        chan struct{}
}

func NewOutboxDispatcher(st store.Store, maxAttempts int, notifier Notifier, hooks ...IntegrationHook) *OutboxDispatcher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultOutboxMaxAttempts
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &OutboxDispatcher{
		store:       st,
		hooks:       hooks,
		notifier:    notifier,
		maxAttempts: maxAttempts,
		batch:       DefaultOutboxBatch,
		lease:       DefaultOutboxLease,
		now:         time.Now,
		kick:        make(chan struct{}, 1),
	}
}

// Kick asks the worker for an early pass. It never blocks.
func (d *OutboxDispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Kicks is the channel the worker listens on.
func (d *OutboxDispatcher) Kicks() <-chan struct{} {
	return d.kick
}

// DispatchPending delivers one batch of pending rows. Rows are claimed in one
// transaction and their status written in another; delivery itself runs outside any
// transaction.
func (d *OutboxDispatcher) DispatchPending(ctx context.Context) (int, error) {
	var pending []models.OutboxEvent
	err := d.store.Transaction(ctx, func(tx store.Tx) error {
		now := d.now()
		var err error
		pending, err = tx.ClaimableOutbox(d.batch, now.Add(-d.lease))
		if err != nil {
			return err
		}
		for i := range pending {
			pending[i].Status = models.OutboxClaimed
			pending[i].ClaimedAt = ptrTime(now)
			if err := tx.SaveOutbox(&pending[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("load pending outbox: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	delivered := 0
	for i := range pending {
		ev := &pending[i]
		ev.Attempts++
		ev.ClaimedAt = nil
		if err := d.deliver(ctx, ev); err != nil {
			ev.LastError = err.Error()
			ev.Status = models.OutboxPending
			if ev.Attempts >= d.maxAttempts {
				ev.Status = models.OutboxFailed
				logf("Outbox", "❌ giving up on %s event %s after %d attempts: %v", ev.Kind, ev.ID, ev.Attempts, err)
			} else {
				logf("Outbox", "⚠️ %s event %s failed (attempt %d): %v", ev.Kind, ev.ID, ev.Attempts, err)
			}
			continue
		}
		ev.Status = models.OutboxDelivered
		ev.LastError = ""
		ev.DeliveredAt = ptrTime(d.now())
		delivered++
	}

	err = d.store.Transaction(ctx, func(tx store.Tx) error {
		for i := range pending {
			if err := tx.SaveOutbox(&pending[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return delivered, fmt.Errorf("save outbox status: %w", err)
	}
	return delivered, nil
}

// deliver fans one event out to every hook and the notifier. Notification failures are
// swallowed; hook failures are joined so the row is retried.
func (d *OutboxDispatcher) deliver(ctx context.Context, ev *models.OutboxEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()

	var message string
	var calls []func(IntegrationHook) error

	switch ev.Kind {
	case models.OutboxXPGained:
		var p xpGainedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		calls = append(calls, func(h IntegrationHook) error { return h.OnXPGained(ctx, ev.UserID, p.Amount, p.TotalXP) })
	case models.OutboxLevelUp:
		var p levelUpPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		message = fmt.Sprintf("reached level %d", p.To)
		calls = append(calls, func(h IntegrationHook) error { return h.OnLevelUp(ctx, ev.UserID, p.From, p.To) })
	case models.OutboxQuestCompleted:
		var p questCompletedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		message = fmt.Sprintf("quest completed: +%d xp, +%d money", p.XP, p.Money)
		calls = append(calls, func(h IntegrationHook) error { return h.OnQuestCompleted(ctx, ev.UserID, p.QuestID) })
	case models.OutboxJobCompleted:
		var p jobCompletedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		message = fmt.Sprintf("job paid out: +%d xp, +%d money", p.XP, p.Money)
		calls = append(calls, func(h IntegrationHook) error { return h.OnJobCompleted(ctx, ev.UserID, p.JobID) })
	case models.OutboxStreakMilestone:
		var p milestonePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		message = fmt.Sprintf("%d-day streak!", p.Days)
		calls = append(calls, func(h IntegrationHook) error { return h.OnStreakMilestone(ctx, ev.UserID, p.Days) })
	case models.OutboxGuildLeveledUp:
		var p guildLevelPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		message = fmt.Sprintf("your guild reached level %d", p.To)
	default:
		return fmt.Errorf("unknown outbox kind %q", ev.Kind)
	}

	var errs []error
	for _, h := range d.hooks {
		for _, call := range calls {
			if err := call(h); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if message != "" {
		if err := d.notifier.Notify(ctx, ev.UserID, message); err != nil {
			logf("Outbox", "⚠️ notification for %s failed: %v", ev.UserID, err)
		}
	}
	return errors.Join(errs...)
}
