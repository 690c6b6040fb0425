package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

type TCPRole string

const (
	TCPRoleClient TCPRole = "client"
	TCPRoleServer TCPRole = "server"

	DefaultTCPPort = 5760
	tcpDialTimeout = 6 * time.Second
	tcpReadBuffer  = 4096
)

// TCPTransport carries the byte stream over TCP, either dialing out or
// accepting a single peer.
type TCPTransport struct {
	role TCPRole
	host string
	port int

	mu       sync.Mutex
	conn     net.Conn
	listener net.Listener
	writeMu  sync.Mutex
	buffer   []byte
}

func NewTCPTransport(role TCPRole, host string, port int) *TCPTransport {
	if port == 0 {
		port = DefaultTCPPort
	}
	if role == "" {
		role = TCPRoleClient
	}

	return &TCPTransport{role: role, host: host, port: port}
}

func (t *TCPTransport) Name() string {
	return "tcp-" + string(t.role)
}

func (t *TCPTransport) address() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *TCPTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn.RemoteAddr().String()
	}

	return t.address()
}

// ListenAddr returns the listening address in server role, or nil.
func (t *TCPTransport) ListenAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener == nil {
		return nil
	}

	return t.listener.Addr()
}

// Connect dials the peer, or in server role listens and waits for one peer
// to connect.
func (t *TCPTransport) Connect(ctx context.Context) error {
	switch t.role {
	case TCPRoleClient:
		return t.dial(ctx)
	case TCPRoleServer:
		return t.accept(ctx)
	default:
		return newError(KindAddressInvalid, "connect tcp", fmt.Errorf("unknown tcp role %q", t.role))
	}
}

func (t *TCPTransport) dial(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger(t.Name(), t.address())
	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if t.host == "" {
		logger.Warn("connect failed: host is empty")

		return newError(KindAddressInvalid, "dial tcp", errors.New("tcp host is empty"))
	}

	dialer := net.Dialer{Timeout: tcpDialTimeout}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", t.address())
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return Classify("dial tcp", err)
	}
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

func (t *TCPTransport) accept(ctx context.Context) error {
	t.mu.Lock()
	logger := transportLogger(t.Name(), t.address())
	if t.conn != nil {
		t.mu.Unlock()
		logger.Debug("connect skipped: peer already attached")

		return nil
	}
	if t.listener == nil {
		var lc net.ListenConfig
		listener, err := lc.Listen(ctx, "tcp", t.address())
		if err != nil {
			t.mu.Unlock()
			logger.Warn("listen failed", "error", err)

			return Classify("listen tcp", err)
		}
		t.listener = listener
		logger.Info("listening", "local", listener.Addr().String())
	}
	listener := t.listener
	t.mu.Unlock()

	tl, _ := listener.(*net.TCPListener)
	if tl != nil {
		_ = tl.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		if tl != nil {
			_ = tl.SetDeadline(time.Now())
		}
	})
	conn, err := listener.Accept()
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("accept failed", "error", err)

		return Classify("accept tcp", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != listener {
		_ = conn.Close()

		return newError(KindClosed, "accept tcp", errNotConnected)
	}
	t.conn = conn
	logger.Info("peer connected", "remote", conn.RemoteAddr().String())

	return nil
}

// Close drops the peer and, in server role, stops listening.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger(t.Name(), t.address())
	var errs []error
	if t.conn != nil {
		errs = append(errs, t.conn.Close())
		t.conn = nil
	}
	if t.listener != nil {
		errs = append(errs, t.listener.Close())
		t.listener = nil
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("close failed", "error", err)

		return Classify("close tcp", err)
	}
	logger.Debug("closed")

	return nil
}

func (t *TCPTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	conn, err := t.currentConn("read tcp")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.buffer == nil {
		t.buffer = make([]byte, tcpReadBuffer)
	}

	_ = conn.SetReadDeadline(pollDeadline(ctx))
	n, err := conn.Read(t.buffer)
	if n > 0 {
		return append([]byte(nil), t.buffer[:n]...), nil
	}
	if err != nil {
		if isTimeout(err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			return nil, ErrReadTimeout
		}
		transportLogger(t.Name(), t.address()).Debug("read failed", "error", err)

		return nil, Classify("read tcp", err)
	}

	return nil, ErrReadTimeout
}

func (t *TCPTransport) Write(ctx context.Context, p []byte) error {
	conn, err := t.currentConn("write tcp")
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := writeFull(ctx, conn, p); err != nil {
		transportLogger(t.Name(), t.address()).Warn("write failed", "len", len(p), "error", err)

		return Classify("write tcp", err)
	}

	return nil
}

func (t *TCPTransport) currentConn(op string) (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, newError(KindClosed, op, errNotConnected)
	}

	return t.conn, nil
}
