package link

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotConnected = errors.New("link is not connected")
	ErrConnected    = errors.New("link is already started")
)

// ProtocolTimeoutError reports a vehicle that stopped sending heartbeats.
type ProtocolTimeoutError struct {
	Timeout       time.Duration
	LastHeartbeat time.Time
}

func (e *ProtocolTimeoutError) Error() string {
	return fmt.Sprintf("no heartbeat within %s (last at %s)", e.Timeout, e.LastHeartbeat.Format(time.RFC3339Nano))
}
