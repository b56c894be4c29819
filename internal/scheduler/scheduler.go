package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/coronavirus-tracker/internal/location"
)

const logPrefix = "warmer"

// Scheduler periodically refreshes every provider's snapshot so the cache is
// refilled before a request observes the expiry.
type Scheduler struct {
	scheduler *gocron.Scheduler
	registry  *location.Registry
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// New creates a new Scheduler. Each warm-up call is bounded by timeout.
func New(registry *location.Registry, interval, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		registry:  registry,
		interval:  interval,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Start schedules the warm-up job and starts the underlying scheduler. A
// non-positive interval disables warming.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.WithField("prefix", logPrefix).Info("cache warming disabled")
		return nil
	}
	if len(s.registry.Providers()) == 0 {
		log.WithField("prefix", logPrefix).Info("no providers registered; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.Warm)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Warm reads the snapshot of every registered provider concurrently and
// refreshes the ones that would expire before the next run.
func (s *Scheduler) Warm() {
	log.WithField("prefix", logPrefix).Debug("running warm-up job")

	var wg sync.WaitGroup
	for _, p := range s.registry.Providers() {
		p := p
		svc, ok := s.registry.Lookup(string(p))
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			snap, err := svc.Snapshot(ctx)
			if err != nil {
				log.WithFields(log.Fields{"prefix": logPrefix, "provider": p, "error": err}).Error("warm-up failed")
				return
			}

			if snap.ExpiresAt.Sub(s.now()) <= s.interval {
				if snap, err = svc.Refresh(ctx); err != nil {
					log.WithFields(log.Fields{"prefix": logPrefix, "provider": p, "error": err}).Warn("refresh ahead of expiry failed")
					return
				}
			}
			log.WithFields(log.Fields{"prefix": logPrefix, "provider": p, "snapshot": snap.ID, "expires_at": snap.ExpiresAt}).Debug("warm")
		}()
	}
	wg.Wait()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
