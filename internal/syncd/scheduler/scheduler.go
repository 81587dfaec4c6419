package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Scheduler fires a round function on a fixed interval. If a round is
// still running when the ticker fires again, that tick is skipped
// outright; the overdue work is covered by the next tick because each
// round always starts from the persisted cursor.
type Scheduler struct {
	interval time.Duration
	round    func(context.Context) error
	running  atomic.Bool
}

func New(interval time.Duration, round func(context.Context) error) *Scheduler {
	return &Scheduler{interval: interval, round: round}
}

// Run fires rounds until the context ends. The first round runs
// immediately rather than waiting out a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.fire(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// Kick runs a round now if one is not already running.
func (s *Scheduler) Kick(ctx context.Context) {
	s.fire(ctx)
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("sync round still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	if err := s.round(ctx); err != nil {
		if ctx.Err() == nil {
			log.Printf("sync round failed: %v", err)
		}
	}
}
