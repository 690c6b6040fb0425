package link

import (
	"testing"

	"github.com/skobkin/groundlink/internal/connectors"
)

func TestNextAllowedTransitions(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
		want State
	}{
		{connectors.ConnectionStateDisconnected, EventConnect, connectors.ConnectionStateConnecting},
		{connectors.ConnectionStateConnecting, EventOpenSucceeded, connectors.ConnectionStateConnected},
		{connectors.ConnectionStateConnecting, EventOpenFailed, connectors.ConnectionStateError},
		{connectors.ConnectionStateConnected, EventHeartbeat, connectors.ConnectionStateStreaming},
		{connectors.ConnectionStateConnected, EventIOError, connectors.ConnectionStateError},
		{connectors.ConnectionStateStreaming, EventHeartbeatTimeout, connectors.ConnectionStateError},
		{connectors.ConnectionStateStreaming, EventIOError, connectors.ConnectionStateError},
		{connectors.ConnectionStateError, EventRetry, connectors.ConnectionStateReconnecting},
		{connectors.ConnectionStateReconnecting, EventOpenSucceeded, connectors.ConnectionStateConnected},
		{connectors.ConnectionStateReconnecting, EventOpenFailed, connectors.ConnectionStateError},
		{connectors.ConnectionStateStreaming, EventDisconnect, connectors.ConnectionStateDisconnected},
		{connectors.ConnectionStateError, EventDisconnect, connectors.ConnectionStateDisconnected},
		{connectors.ConnectionStateReconnecting, EventDisconnect, connectors.ConnectionStateDisconnected},
	}

	for _, tc := range tests {
		got, ok := Next(tc.from, tc.ev)
		if !ok || got != tc.want {
			t.Fatalf("%s + %s: got %s (ok=%v), want %s", tc.from, tc.ev, got, ok, tc.want)
		}
	}
}

func TestNextRejectsIllegalTransitions(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
	}{
		{connectors.ConnectionStateDisconnected, EventOpenSucceeded},
		{connectors.ConnectionStateDisconnected, EventHeartbeat},
		{connectors.ConnectionStateDisconnected, EventRetry},
		{connectors.ConnectionStateConnecting, EventHeartbeat},
		{connectors.ConnectionStateConnected, EventHeartbeatTimeout},
		{connectors.ConnectionStateStreaming, EventHeartbeat},
		{connectors.ConnectionStateError, EventOpenSucceeded},
		{connectors.ConnectionStateError, EventHeartbeatTimeout},
		{connectors.ConnectionStateReconnecting, EventConnect},
	}

	for _, tc := range tests {
		got, ok := Next(tc.from, tc.ev)
		if ok {
			t.Fatalf("%s + %s: expected rejection, got %s", tc.from, tc.ev, got)
		}
		if got != tc.from {
			t.Fatalf("%s + %s: rejected transition changed state to %s", tc.from, tc.ev, got)
		}
	}
}
