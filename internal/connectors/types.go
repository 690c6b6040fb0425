package connectors

import (
	"time"

	"github.com/skobkin/groundlink/internal/mavlink"
)

// ConnectionState is the link lifecycle state. Only the link manager changes
// it.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateStreaming    ConnectionState = "streaming"
	ConnectionStateError        ConnectionState = "error"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
)

// Linked reports whether the transport is open in this state.
func (s ConnectionState) Linked() bool {
	return s == ConnectionStateConnected || s == ConnectionStateStreaming
}

// ConnectionStatus is a bus event emitted on every state transition.
type ConnectionStatus struct {
	State         ConnectionState `json:"state"`
	Previous      ConnectionState `json:"previous"`
	Err           string          `json:"error,omitempty"`
	TransportName string          `json:"transport"`
	Target        string          `json:"target"`
	Timestamp     time.Time       `json:"timestamp"`
}

// InboundMessage is a decoded message together with the frame header it
// arrived in.
type InboundMessage struct {
	Sender     mavlink.Sender
	Sequence   uint8
	Version    mavlink.Version
	Message    mavlink.Message
	ReceivedAt time.Time
}

// RawFrame carries frame diagnostics for debug views.
type RawFrame struct {
	Hex       string `json:"hex"`
	Len       int    `json:"len"`
	MessageID uint32 `json:"msg_id"`
}
