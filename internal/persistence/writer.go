package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	writeMaxAttempts = 3
	writeRetryStep   = 300 * time.Millisecond
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue runs database writes one at a time on a single goroutine and
// retries failed writes a few times before giving up.
type WriterQueue struct {
	logger *slog.Logger
	queue  chan writeCmd

	mu   sync.Mutex
	done chan struct{}
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WriterQueue{
		logger: logger.With("component", "recorder.writer"),
		queue:  make(chan writeCmd, capacity),
	}
}

// Enqueue never blocks the caller; when the buffer is full the command is
// handed over from a short-lived goroutine.
func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	cmd := writeCmd{name: name, fn: fn}
	select {
	case w.queue <- cmd:
	default:
		go func() { w.queue <- cmd }()
	}
}

func (w *WriterQueue) Start(ctx context.Context) {
	w.mu.Lock()
	if w.done != nil {
		w.mu.Unlock()

		return
	}
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				w.logger.Debug("writer stopped", "backlog", len(w.queue))

				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
			}
		}
	}()
}

// Flush waits until the writes enqueued before it have run, or ctx ends.
func (w *WriterQueue) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	w.Enqueue("flush", func(context.Context) error {
		close(flushed)

		return nil
	})

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the worker exits.
func (w *WriterQueue) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.done
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	for attempt := 1; attempt <= writeMaxAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == writeMaxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * writeRetryStep):
		}
	}
}
