package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPeriods struct {
	mu  sync.Mutex
	due []int64
}

func (s *stubPeriods) ListDueGroups(context.Context, time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := s.due
	s.due = nil
	return due, nil
}

func (s *stubPeriods) add(groupIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.due = append(s.due, groupIDs...)
}

type stubFinalizer struct {
	mu        sync.Mutex
	finalized map[int64]int
	errFor    map[int64]error
	panicFor  map[int64]bool
}

func newStubFinalizer() *stubFinalizer {
	return &stubFinalizer{
		finalized: make(map[int64]int),
		errFor:    make(map[int64]error),
		panicFor:  make(map[int64]bool),
	}
}

func (s *stubFinalizer) FinalizeAuto(_ context.Context, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicFor[groupID] {
		panic("boom")
	}
	s.finalized[groupID]++
	return s.errFor[groupID]
}

func (s *stubFinalizer) count(groupID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized[groupID]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerFinalizesDueGroups(t *testing.T) {
	periods := &stubPeriods{}
	finalizer := newStubFinalizer()
	periods.add(1, 2, 3)

	s := New(finalizer, periods, Config{Interval: 10 * time.Millisecond, MaxConcurrent: 2})
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool {
		return finalizer.count(1) > 0 && finalizer.count(2) > 0 && finalizer.count(3) > 0
	})
}

func TestSchedulerIsolatesFailures(t *testing.T) {
	periods := &stubPeriods{}
	finalizer := newStubFinalizer()
	finalizer.errFor[1] = errors.New("db down")
	finalizer.panicFor[2] = true
	periods.add(1, 2, 3)

	s := New(finalizer, periods, Config{Interval: 10 * time.Millisecond})
	s.Start()
	defer s.Stop()

	// Group 3 finalizes even though 1 errors and 2 panics.
	waitFor(t, func() bool { return finalizer.count(3) > 0 })
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	periods := &stubPeriods{}
	finalizer := newStubFinalizer()

	s := New(finalizer, periods, Config{Interval: 10 * time.Millisecond})
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	// Restart works after a stop.
	periods.add(5)
	s.Start()
	defer s.Stop()
	waitFor(t, func() bool { return finalizer.count(5) > 0 })
}

func TestSchedulerStopsDelivering(t *testing.T) {
	periods := &stubPeriods{}
	finalizer := newStubFinalizer()
	periods.add(1)

	s := New(finalizer, periods, Config{Interval: 10 * time.Millisecond})
	s.Start()
	waitFor(t, func() bool { return finalizer.count(1) > 0 })
	s.Stop()

	before := finalizer.count(1)
	periods.add(1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, finalizer.count(1), "no finalizations after Stop")
}

func TestConfigDefaults(t *testing.T) {
	s := New(newStubFinalizer(), &stubPeriods{}, Config{})
	require.Equal(t, time.Minute, s.config.Interval)
	require.Equal(t, 4, s.config.MaxConcurrent)
}
