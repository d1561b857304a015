// Package sweeper runs the deadline pass: ticket approvals past their 48h
// window flip to auto_approved, and violation reports still collecting past
// expiry flip to expired. Every transition is a conditional update on the
// store, so overlapping runs and races with human decisions are safe: the
// loser's update touches zero rows and zero rows is success.
package sweeper

import (
	"context"
	"log"
	"time"
)

type Store interface {
	SweepTicketApprovals(ctx context.Context, now time.Time, batchSize int) (int, error)
	SweepExpiredReports(ctx context.Context, now time.Time) (int, error)
}

type Sweeper struct {
	store     Store
	batchSize int
}

type Config struct {
	BatchSize int
}

func New(store Store, cfg Config) *Sweeper {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{store: store, batchSize: batch}
}

// Run executes a single pass. It is idempotent and re-entrant.
func (s *Sweeper) Run(ctx context.Context) error {
	now := time.Now().UTC()

	approved, err := s.store.SweepTicketApprovals(ctx, now, s.batchSize)
	if err != nil {
		return err
	}
	if approved > 0 {
		log.Printf("sweeper auto-approved %d ticket approvals", approved)
	}

	expired, err := s.store.SweepExpiredReports(ctx, now)
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Printf("sweeper expired %d violation reports", expired)
	}
	return nil
}

// Start loops Run on the interval until the context ends.
func Start(ctx context.Context, interval time.Duration, s *Sweeper) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := s.Run(runCtx); err != nil {
				log.Printf("sweeper error: %v", err)
			}
			cancel()
		}
	}
}
