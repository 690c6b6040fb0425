package transport

import (
	"context"
	"sync"
	"time"
)

type pipeRead struct {
	chunk []byte
	err   error
}

// PipeTransport is a scripted in-memory transport. Pushed chunks and errors
// are returned by ReadChunk in order; writes are captured.
type PipeTransport struct {
	inbound chan pipeRead

	mu         sync.Mutex
	open       bool
	closed     chan struct{}
	connectErr error
	writeErr   error
	connects   int
	closes     int
	writes     [][]byte
}

func NewPipeTransport() *PipeTransport {
	return &PipeTransport{inbound: make(chan pipeRead, 1024)}
}

func (p *PipeTransport) Name() string {
	return "pipe"
}

func (p *PipeTransport) StatusTarget() string {
	return "in-memory"
}

// Push queues a chunk for ReadChunk.
func (p *PipeTransport) Push(chunk []byte) {
	p.inbound <- pipeRead{chunk: append([]byte(nil), chunk...)}
}

// PushError queues a read failure.
func (p *PipeTransport) PushError(err error) {
	p.inbound <- pipeRead{err: err}
}

// SetConnectError makes every following Connect fail with err, or succeed
// again when err is nil.
func (p *PipeTransport) SetConnectError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connectErr = err
}

func (p *PipeTransport) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeErr = err
}

// Connects returns the number of Connect attempts.
func (p *PipeTransport) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connects
}

func (p *PipeTransport) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closes
}

// Writes returns copies of everything written so far.
func (p *PipeTransport) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = append([]byte(nil), w...)
	}

	return out
}

func (p *PipeTransport) Open() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.open
}

func (p *PipeTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.connects++
	if p.connectErr != nil {
		return p.connectErr
	}
	if !p.open {
		p.open = true
		p.closed = make(chan struct{})
	}

	return nil
}

func (p *PipeTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		p.open = false
		p.closes++
		close(p.closed)
	}

	return nil
}

func (p *PipeTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	open := p.open
	closed := p.closed
	p.mu.Unlock()
	if !open {
		return nil, newError(KindClosed, "read pipe", errNotConnected)
	}

	timer := time.NewTimer(readPollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-closed:
		return nil, newError(KindClosed, "read pipe", errNotConnected)
	case r := <-p.inbound:
		return r.chunk, r.err
	case <-timer.C:
		return nil, ErrReadTimeout
	}
}

func (p *PipeTransport) Write(ctx context.Context, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return newError(KindClosed, "write pipe", errNotConnected)
	}
	if p.writeErr != nil {
		return p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))

	return nil
}
