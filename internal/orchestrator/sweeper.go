package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically deletes anonymous jobs older than the retention
// window. Jobs tied to a user account are never swept.
type Sweeper struct {
	store     JobStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper; call Start to begin sweeping.
func NewSweeper(store JobStore, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.store.DeleteAnonymousBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Job sweep failed", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		s.logger.Info("Swept expired anonymous jobs",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
}
