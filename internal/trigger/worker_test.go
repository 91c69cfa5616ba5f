package trigger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerCoalescesBursts(t *testing.T) {
	worker := NewWorker(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32
	worker.Register(KindAffectingSpans, func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	worker.Trigger(KindAffectingSpans)
	<-started

	// Five triggers while the rebuild is in flight collapse into one
	// pending signal.
	for n := 0; n < 5; n++ {
		worker.Trigger(KindAffectingSpans)
	}
	close(release)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected one follow-up rebuild")
	}

	// No further signals are pending.
	select {
	case <-started:
		t.Fatalf("burst must coalesce into a single follow-up rebuild")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected exactly two rebuilds, got %d", got)
	}
}

func TestWorkerRetriesAfterHandlerFailure(t *testing.T) {
	worker := NewWorker(nil)

	results := make(chan error, 2)
	attempt := 0
	worker.Register(KindHierarchy, func(context.Context) error {
		attempt++
		var err error
		if attempt == 1 {
			err = errors.New("rebuild failed")
		}
		results <- err
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	worker.Trigger(KindHierarchy)
	if err := <-results; err == nil {
		t.Fatalf("expected first rebuild to fail")
	}

	worker.Trigger(KindHierarchy)
	select {
	case err := <-results:
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("failed rebuild must not stop the worker")
	}
}

func TestWorkerIgnoresUnregisteredKind(t *testing.T) {
	worker := NewWorker(nil)
	worker.Trigger(KindOpeningHours)
}

func TestWorkerRunWithoutHandlers(t *testing.T) {
	worker := NewWorker(nil)
	if err := worker.Run(context.Background()); err == nil {
		t.Fatalf("expected error when no handlers registered")
	}
}

func TestWorkerIndependentKinds(t *testing.T) {
	worker := NewWorker(nil)

	blocked := make(chan struct{})
	release := make(chan struct{})
	worker.Register(KindHierarchy, func(context.Context) error {
		blocked <- struct{}{}
		<-release
		return nil
	})
	fast := make(chan struct{}, 1)
	worker.Register(KindOpeningHours, func(context.Context) error {
		fast <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	worker.Trigger(KindHierarchy)
	<-blocked

	worker.Trigger(KindOpeningHours)
	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatalf("a slow rebuild must not delay other kinds")
	}
	close(release)
}
