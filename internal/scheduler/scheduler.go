// Package scheduler drives periodic settlement finalization. Groups opt in by
// configuring a settlement period; the scheduler polls for groups whose
// next_finalize_at has passed and finalizes each one.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fairsplit/fairsplit/pkg/logger"
)

// Finalizer runs a settlement round for a group.
type Finalizer interface {
	FinalizeAuto(ctx context.Context, groupID int64) error
}

// PeriodSource lists the groups whose settlement period has elapsed.
type PeriodSource interface {
	ListDueGroups(ctx context.Context, now time.Time) ([]int64, error)
}

// Config holds scheduler tuning knobs.
type Config struct {
	// Interval between polls for due groups.
	Interval time.Duration
	// MaxConcurrent bounds how many groups finalize at once.
	MaxConcurrent int
}

// Scheduler periodically finalizes groups whose settlement period elapsed.
// Failures are isolated per group: one group's error never blocks another's
// finalization, and the next tick retries because the period only advances
// when a finalization commits.
type Scheduler struct {
	finalizer Finalizer
	periods   PeriodSource
	config    Config
	log       *zap.SugaredLogger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler. Zero config fields fall back to defaults.
func New(finalizer Finalizer, periods PeriodSource, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	return &Scheduler{
		finalizer: finalizer,
		periods:   periods,
		config:    config,
		log:       logger.Get().Named("scheduler"),
	}
}

// Start launches the polling loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.run(s.stopChan)

	s.log.Infow("scheduler started",
		"interval", s.config.Interval,
		"max_concurrent", s.config.MaxConcurrent,
	)
}

// Stop halts the polling loop and waits for in-flight finalizations to
// finish. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(stop)
		}
	}
}

// tick finds due groups and finalizes them with bounded concurrency.
func (s *Scheduler) tick(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Interval)
	defer cancel()

	groupIDs, err := s.periods.ListDueGroups(ctx, time.Now().UTC())
	if err != nil {
		s.log.Errorw("failed to list due groups", "error", err)
		return
	}
	if len(groupIDs) == 0 {
		return
	}
	s.log.Infow("finalizing due groups", "count", len(groupIDs))

	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup
	for _, groupID := range groupIDs {
		select {
		case <-stop:
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(groupID int64) {
			defer wg.Done()
			defer func() { <-sem }()
			s.finalizeGroup(ctx, groupID)
		}(groupID)
	}
	wg.Wait()
}

func (s *Scheduler) finalizeGroup(ctx context.Context, groupID int64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("finalization panicked", "group_id", groupID, "panic", r)
		}
	}()

	if err := s.finalizer.FinalizeAuto(ctx, groupID); err != nil {
		s.log.Errorw("failed to finalize group", "group_id", groupID, "error", err)
		return
	}
	s.log.Infow("group finalized", "group_id", groupID)
}
