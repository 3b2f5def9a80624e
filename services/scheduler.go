// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// TimeoutScanInterval is how often the registry is swept for lapsed
// deadlines. Challenges expire on wall-clock comparison at scan time, not
// per-challenge timers, so a restart loses nothing.
const TimeoutScanInterval = 5 * time.Second

// StartTimeoutScheduler launches the periodic timeout sweep and returns
// the scheduler so the caller can shut it down.
func (r *ChallengeRegistry) StartTimeoutScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(TimeoutScanInterval),
		gocron.NewTask(func() {
			r.SweepExpired(r.now())
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Printf("✅ Challenge timeout scheduler running (every %s)", TimeoutScanInterval)
	return sched, nil
}

// SweepExpired injects a timeout event for every lapsed deadline. A
// challenge resolved by a human action between listing and mutating shows
// up as not-found or a stale-timeout guard failure; both mean the timeout
// lost the race and are dropped on purpose. Anything else is logged and
// retried on the next tick.
func (r *ChallengeRegistry) SweepExpired(now time.Time) {
	for _, due := range r.ListExpiring(now) {
		if _, err := r.Mutate(due.ID, due.Event); err != nil {
			if errors.Is(err, ErrChallengeNotFound) || errors.Is(err, ErrInvalidTransition) {
				continue // lost the race to a human action
			}
			log.Printf("[Scheduler] Timeout for challenge %s failed: %v", due.ID, err)
		}
	}
}
