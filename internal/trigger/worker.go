// Package trigger carries refresh signals from the booking mutation layer to
// the derived-cache rebuilds. Signals are coalesced: a burst of triggers
// while a rebuild is in flight collapses into at most one follow-up rebuild.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Kind names one derived cache that can be refreshed.
type Kind string

const (
	KindHierarchy      Kind = "hierarchy"
	KindAffectingSpans Kind = "affecting_time_spans"
	KindOpeningHours   Kind = "opening_hours"
)

// Handler runs one cache rebuild.
type Handler func(ctx context.Context) error

// Worker owns one buffered-one signal channel per registered kind. Trigger
// never blocks; Run drains the channels and executes handlers. A handler
// failure is logged and leaves the previous cache version in place; the next
// trigger retries.
type Worker struct {
	mu       sync.Mutex
	handlers map[Kind]Handler
	signals  map[Kind]chan struct{}
	logger   *slog.Logger
}

// NewWorker creates an empty worker.
func NewWorker(logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		handlers: make(map[Kind]Handler),
		signals:  make(map[Kind]chan struct{}),
		logger:   logger,
	}
}

// Register binds a handler to a kind. Must be called before Run.
func (w *Worker) Register(kind Kind, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = handler
	w.signals[kind] = make(chan struct{}, 1)
}

// Trigger requests a refresh of the given kind. The call never blocks; if a
// signal is already pending the trigger is dropped, because the pending
// rebuild will observe the superseding state anyway. Unregistered kinds are
// ignored with a warning.
func (w *Worker) Trigger(kind Kind) {
	w.mu.Lock()
	signal, ok := w.signals[kind]
	w.mu.Unlock()
	if !ok {
		w.logger.Warn("trigger for unregistered kind dropped", "kind", string(kind))
		return
	}
	select {
	case signal <- struct{}{}:
	default:
	}
}

// Run executes handlers for arriving signals until the context is cancelled.
// Each kind runs in its own goroutine so a slow rebuild of one cache never
// delays another.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	kinds := make([]Kind, 0, len(w.handlers))
	for kind := range w.handlers {
		kinds = append(kinds, kind)
	}
	w.mu.Unlock()
	if len(kinds) == 0 {
		return fmt.Errorf("trigger: no handlers registered")
	}

	var wg sync.WaitGroup
	for _, kind := range kinds {
		kind := kind
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runKind(ctx, kind)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) runKind(ctx context.Context, kind Kind) {
	w.mu.Lock()
	handler := w.handlers[kind]
	signal := w.signals[kind]
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
		}

		logger := w.logger.With("kind", string(kind))
		if err := handler(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("refresh failed, previous cache version retained", "error", err)
			continue
		}
		logger.Info("refresh completed")
	}
}
