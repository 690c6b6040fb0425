package transport

import (
	"context"
	"errors"
	"iter"
	"time"
)

// readPollInterval bounds a single blocking read so that cancellation is
// observed promptly even on links that stay silent.
const readPollInterval = 250 * time.Millisecond

// Transport is a bidirectional byte link to a vehicle. ReadChunk returns
// whatever one read produced; chunk boundaries carry no meaning.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadChunk(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, p []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}

// Target returns a human readable endpoint for status reporting.
func Target(tr Transport) string {
	if resolver, ok := tr.(StatusTargetResolver); ok {
		return resolver.StatusTarget()
	}

	return ""
}

// Chunks adapts ReadChunk into a lazy sequence of received chunks. Read
// timeouts and empty reads are skipped. The sequence ends after yielding the
// first error, which is either a transport error or the context error.
func Chunks(ctx context.Context, tr Transport) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)

				return
			}

			chunk, err := tr.ReadChunk(ctx)
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			if err != nil {
				yield(nil, err)

				return
			}
			if len(chunk) == 0 {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// pollDeadline returns the deadline for one read attempt.
func pollDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(readPollInterval)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}

	return deadline
}
