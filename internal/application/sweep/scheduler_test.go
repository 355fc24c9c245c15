package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	var ran []string
	s := NewScheduler(0, zerolog.Nop(),
		Job{Name: "first", Run: func(context.Context) (int, error) {
			ran = append(ran, "first")
			return 1, errors.New("db down")
		}},
		Job{Name: "second", Run: func(context.Context) (int, error) {
			ran = append(ran, "second")
			return 3, nil
		}},
	)
	if s.interval != time.Minute {
		t.Fatalf("expected default interval, got %s", s.interval)
	}

	counts := s.RunOnce(context.Background())
	if len(ran) != 2 {
		t.Fatalf("expected both jobs to run, got %v", ran)
	}
	if counts["first"] != 1 || counts["second"] != 3 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(time.Second, zerolog.Nop(),
		Job{Name: "cancel", Run: func(context.Context) (int, error) {
			cancel()
			return 0, nil
		}},
		Job{Name: "skipped", Run: func(context.Context) (int, error) {
			t.Fatal("job ran after cancellation")
			return 0, nil
		}},
	)
	counts := s.RunOnce(ctx)
	if _, ok := counts["skipped"]; ok {
		t.Fatalf("skipped job has a count: %v", counts)
	}
}

func TestStartTicksUntilDone(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(5*time.Millisecond, zerolog.Nop(), Job{Name: "tick", Run: func(context.Context) (int, error) {
		runs.Add(1)
		return 0, nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
