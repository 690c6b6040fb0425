package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

const (
	DefaultUDPListen = "0.0.0.0:14550"
	maxDatagramSize  = 65535
)

var errNoPeer = errors.New("udp peer is not known yet")

// UDPTransport listens on a local address. Datagrams are sent to a fixed
// remote when one is configured, otherwise to the first sender heard from.
type UDPTransport struct {
	listen string
	remote string

	mu     sync.Mutex
	conn   *net.UDPConn
	peer   *net.UDPAddr
	fixed  bool
	buffer []byte
}

func NewUDPTransport(listen, remote string) *UDPTransport {
	if listen == "" {
		listen = DefaultUDPListen
	}

	return &UDPTransport{listen: listen, remote: remote}
}

func (t *UDPTransport) Name() string {
	return "udp"
}

func (t *UDPTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.peer != nil {
		return t.listen + " <-> " + t.peer.String()
	}

	return t.listen
}

// LocalAddr returns the bound address, or nil before Connect.
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	return t.conn.LocalAddr()
}

// Peer returns the address datagrams are sent to, or nil when none is known.
func (t *UDPTransport) Peer() *net.UDPAddr {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.peer
}

func (t *UDPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("udp", t.listen)
	if t.conn != nil {
		logger.Debug("connect skipped: already bound")

		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	local, err := net.ResolveUDPAddr("udp", t.listen)
	if err != nil {
		logger.Warn("connect failed: bad listen address", "error", err)

		return newError(KindAddressInvalid, "resolve listen address", err)
	}
	var peer *net.UDPAddr
	if t.remote != "" {
		peer, err = net.ResolveUDPAddr("udp", t.remote)
		if err != nil {
			logger.Warn("connect failed: bad remote address", "remote", t.remote, "error", err)

			return newError(KindAddressInvalid, "resolve remote address", err)
		}
	}

	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return Classify("listen udp", err)
	}
	t.conn = conn
	t.peer = peer
	t.fixed = peer != nil
	if t.buffer == nil {
		t.buffer = make([]byte, maxDatagramSize)
	}
	logger.Info("bound", "local", conn.LocalAddr().String(), "remote", t.remote)

	return nil
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("udp", t.listen)
	if t.conn == nil {
		logger.Debug("close skipped: not bound")

		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.peer = nil
	t.fixed = false
	if err != nil {
		logger.Warn("close failed", "error", err)

		return Classify("close udp", err)
	}
	logger.Info("closed")

	return nil
}

// ReadChunk returns one datagram. It is meant to be called from a single
// receive loop.
func (t *UDPTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	buf := t.buffer
	t.mu.Unlock()
	if conn == nil {
		return nil, newError(KindClosed, "read udp", errNotConnected)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_ = conn.SetReadDeadline(pollDeadline(ctx))
	n, from, err := conn.ReadFromUDP(buf)
	if err != nil {
		if isTimeout(err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			return nil, ErrReadTimeout
		}

		return nil, Classify("read udp", err)
	}

	t.mu.Lock()
	if !t.fixed && t.peer == nil && t.conn == conn {
		t.peer = from
		transportLogger("udp", t.listen).Info("peer learned", "peer", from.String())
	}
	t.mu.Unlock()

	return append([]byte(nil), buf[:n]...), nil
}

func (t *UDPTransport) Write(ctx context.Context, p []byte) error {
	t.mu.Lock()
	conn := t.conn
	peer := t.peer
	t.mu.Unlock()
	if conn == nil {
		return newError(KindClosed, "write udp", errNotConnected)
	}
	if peer == nil {
		return newError(KindWouldBlock, "write udp", errNoPeer)
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if _, err := conn.WriteToUDP(p, peer); err != nil {
		transportLogger("udp", t.listen).Debug("write failed", "peer", peer.String(), "len", len(p), "error", err)

		return Classify("write udp", err)
	}

	return nil
}
