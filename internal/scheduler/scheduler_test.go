package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"whoisgate/internal/logging"
)

func TestSchedulerRunsJobImmediatelyAndPeriodically(t *testing.T) {
	var calls int32
	s := New(logging.New("error"))
	s.Add(Job{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	if got := atomic.LoadInt32(&calls); got < 2 {
		t.Errorf("job ran %d times, want at least 2 (immediate + at least one tick)", got)
	}
}

func TestSchedulerStopCancelsContext(t *testing.T) {
	cancelled := make(chan struct{}, 1)
	s := New(logging.New("error"))
	s.Add(Job{
		Name:     "watcher",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			select {
			case cancelled <- struct{}{}:
			default:
			}
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(50 * time.Millisecond):
		t.Error("expected job to observe context cancellation after Stop")
	}
}
