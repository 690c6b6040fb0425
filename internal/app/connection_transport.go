package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/transport"
)

// SwitchableTransport wraps the active connector and lets runtime swap it on
// config updates. Closing the old transport makes the link manager observe an
// I/O error and reconnect through the new one.
type SwitchableTransport struct {
	mu sync.RWMutex

	cfg       config.ConnectionConfig
	transport transport.Transport
}

func NewConnectionTransport(cfg config.ConnectionConfig) (*SwitchableTransport, error) {
	tr, err := NewTransportForConnection(cfg)
	if err != nil {
		return nil, err
	}

	return &SwitchableTransport{
		cfg:       cfg,
		transport: tr,
	}, nil
}

func (t *SwitchableTransport) Apply(cfg config.ConnectionConfig) error {
	next, err := NewTransportForConnection(cfg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	current := t.transport
	t.transport = next
	t.cfg = cfg
	t.mu.Unlock()

	if current != nil {
		_ = current.Close()
	}

	return nil
}

func (t *SwitchableTransport) Name() string {
	tr := t.current()
	if tr == nil {
		return "unknown"
	}

	return tr.Name()
}

func (t *SwitchableTransport) StatusTarget() string {
	t.mu.RLock()
	tr := t.transport
	cfg := t.cfg
	t.mu.RUnlock()

	if target := strings.TrimSpace(transport.Target(tr)); target != "" {
		return target
	}

	return ConnectionTarget(cfg)
}

func (t *SwitchableTransport) Connect(ctx context.Context) error {
	tr := t.current()
	if tr == nil {
		return errNotConfigured
	}

	return tr.Connect(ctx)
}

func (t *SwitchableTransport) Close() error {
	tr := t.current()
	if tr == nil {
		return nil
	}

	return tr.Close()
}

func (t *SwitchableTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	tr := t.current()
	if tr == nil {
		return nil, errNotConfigured
	}

	return tr.ReadChunk(ctx)
}

func (t *SwitchableTransport) Write(ctx context.Context, p []byte) error {
	tr := t.current()
	if tr == nil {
		return errNotConfigured
	}

	return tr.Write(ctx, p)
}

func (t *SwitchableTransport) current() transport.Transport {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.transport
}

// Current exposes the wrapped transport, e.g. for reading a bound address.
func (t *SwitchableTransport) Current() transport.Transport {
	return t.current()
}

func (t *SwitchableTransport) Config() config.ConnectionConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.cfg
}

var errNotConfigured = &transport.Error{Kind: transport.KindClosed, Op: "switchable transport", Err: errors.New("transport is not configured")}

// NewTransportForConnection builds the transport a connection config selects.
// It validates only what the transport itself cannot recover from.
func NewTransportForConnection(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorUDP:
		host := strings.TrimSpace(cfg.Host)
		if host == "" {
			host = config.DefaultUDPHost
		}
		port := cfg.Port
		if port == 0 {
			port = config.DefaultUDPPort
		}

		return transport.NewUDPTransport(net.JoinHostPort(host, strconv.Itoa(port)), strings.TrimSpace(cfg.Remote)), nil
	case config.ConnectorTCP:
		role := transport.TCPRole(cfg.TCPRole)
		if role != "" && role != transport.TCPRoleClient && role != transport.TCPRoleServer {
			return nil, fmt.Errorf("unknown tcp role: %q", cfg.TCPRole)
		}

		return transport.NewTCPTransport(role, strings.TrimSpace(cfg.Host), cfg.Port), nil
	case config.ConnectorSerial:
		if strings.TrimSpace(cfg.SerialPort) == "" {
			return nil, fmt.Errorf("serial port is required")
		}

		return transport.NewSerialTransport(strings.TrimSpace(cfg.SerialPort), cfg.SerialBaud), nil
	case config.ConnectorSim:
		return transport.NewSimTransport(transport.DefaultSimOptions()), nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}
