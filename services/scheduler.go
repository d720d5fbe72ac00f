package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// BudgetRetentionDays is how long daily budget rows are kept.
const BudgetRetentionDays = 30

// StartScheduler registers the nightly batch jobs. The archiver is optional.
func StartScheduler(ctx context.Context, core *Core, progression *ProgressionService, archiver *LedgerArchiver, hour uint) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(core.Location))
	if err != nil {
		return nil, err
	}

	// Shortly after midnight: break streaks that missed yesterday
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			n, err := progression.SweepStreaks(ctx)
			if err != nil {
				log.Printf("[Scheduler] streak sweep failed: %v", err)
				return
			}
			log.Printf("[Scheduler] ✅ streak sweep reset %d streak(s)", n)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, 30, 0))),
		gocron.NewTask(func() {
			n, err := core.PruneBudgets(ctx, BudgetRetentionDays)
			if err != nil {
				log.Printf("[Scheduler] budget prune failed: %v", err)
				return
			}
			log.Printf("[Scheduler] pruned %d budget row(s)", n)
		}),
	)
	if err != nil {
		return nil, err
	}

	if archiver != nil {
		_, err = sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, 0, 0))),
			gocron.NewTask(func() {
				if _, err := archiver.ArchiveYesterday(ctx); err != nil {
					log.Printf("[Scheduler] ledger archive failed: %v", err)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	log.Printf("[Scheduler] started (%d jobs, tz=%s, batch hour %02d:00)", len(sched.Jobs()), core.Location, hour)
	return sched, nil
}

// shutdownTimeout bounds how long main waits for running jobs.
const shutdownTimeout = 10 * time.Second

// StopScheduler waits for in-flight jobs, then stops the scheduler.
func StopScheduler(sched gocron.Scheduler) {
	done := make(chan error, 1)
	go func() { done <- sched.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			log.Printf("[Scheduler] shutdown: %v", err)
		}
	case <-time.After(shutdownTimeout):
		log.Printf("[Scheduler] shutdown timed out after %s", shutdownTimeout)
	}
}
