package workers

import (
	"context"
	"log"
	"time"
)

// OutboxDispatcher is the part of services.OutboxDispatcher the worker drives.
type OutboxDispatcher interface {
	DispatchPending(ctx context.Context) (int, error)
	Kicks() <-chan struct{}
}

// PollOutbox delivers pending outbox rows every pollInterval, and immediately whenever
// a committed unit of work kicks the dispatcher.
func PollOutbox(ctx context.Context, d OutboxDispatcher, pollInterval time.Duration) {
	log.Printf("[Outbox] 📮 polling every %s", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Outbox] polling stopped.")
			return
		case <-ticker.C:
		case <-d.Kicks():
		}
		drain(ctx, d)
	}
}

// drain dispatches full batches until the backlog is empty or a pass fails.
func drain(ctx context.Context, d OutboxDispatcher) {
	for ctx.Err() == nil {
		n, err := d.DispatchPending(ctx)
		if err != nil {
			log.Printf("[Outbox] ❌ dispatch failed: %v", err)
			return
		}
		if n == 0 {
			return
		}
		log.Printf("[Outbox] ✅ delivered %d event(s)", n)
	}
}
