package link

import "github.com/skobkin/groundlink/internal/connectors"

type State = connectors.ConnectionState

// Event drives a state transition.
type Event int

const (
	EventConnect Event = iota + 1
	EventOpenSucceeded
	EventOpenFailed
	EventHeartbeat
	EventHeartbeatTimeout
	EventIOError
	EventRetry
	EventDisconnect
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventOpenSucceeded:
		return "open_succeeded"
	case EventOpenFailed:
		return "open_failed"
	case EventHeartbeat:
		return "heartbeat"
	case EventHeartbeatTimeout:
		return "heartbeat_timeout"
	case EventIOError:
		return "io_error"
	case EventRetry:
		return "retry"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Next returns the state reached from `from` on ev, or false when the
// transition is not allowed.
func Next(from State, ev Event) (State, bool) {
	if ev == EventDisconnect {
		return connectors.ConnectionStateDisconnected, true
	}

	switch from {
	case connectors.ConnectionStateDisconnected:
		if ev == EventConnect {
			return connectors.ConnectionStateConnecting, true
		}
	case connectors.ConnectionStateConnecting, connectors.ConnectionStateReconnecting:
		switch ev {
		case EventOpenSucceeded:
			return connectors.ConnectionStateConnected, true
		case EventOpenFailed:
			return connectors.ConnectionStateError, true
		}
	case connectors.ConnectionStateConnected:
		switch ev {
		case EventHeartbeat:
			return connectors.ConnectionStateStreaming, true
		case EventIOError:
			return connectors.ConnectionStateError, true
		}
	case connectors.ConnectionStateStreaming:
		switch ev {
		case EventHeartbeatTimeout, EventIOError:
			return connectors.ConnectionStateError, true
		}
	case connectors.ConnectionStateError:
		if ev == EventRetry {
			return connectors.ConnectionStateReconnecting, true
		}
	}

	return from, false
}
