package link

import (
	"time"

	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/mavlink"
)

const DefaultLossWindow = 256

// Statistics describe the current logical connection. They are reset by an
// explicit Disconnect.
type Statistics struct {
	State           State          `json:"state"`
	PacketsReceived uint64         `json:"packets_received"`
	FramesDropped   uint64         `json:"frames_dropped"`
	JunkBytes       uint64         `json:"junk_bytes"`
	DecodeErrors    uint64         `json:"decode_errors"`
	UnknownMessages uint64         `json:"unknown_messages"`
	PacketsLost     uint64         `json:"packets_lost"`
	LossRate        float64        `json:"loss_rate"`
	QueueDropped    uint64         `json:"queue_dropped"`
	BytesIn         uint64         `json:"bytes_in"`
	BytesOut        uint64         `json:"bytes_out"`
	Reconnects      uint64         `json:"reconnects"`
	LastHeartbeat   time.Time      `json:"last_heartbeat,omitzero"`
	ConnectedSince  time.Time      `json:"connected_since,omitzero"`
	Vehicle         mavlink.Sender `json:"vehicle"`
}

// HeartbeatAge returns the time since the last vehicle heartbeat, or zero
// when none was seen.
func (s Statistics) HeartbeatAge(now time.Time) time.Duration {
	if s.LastHeartbeat.IsZero() {
		return 0
	}

	return now.Sub(s.LastHeartbeat)
}

// lossTracker detects sequence gaps per sender and keeps a rolling loss rate
// over the last window frames.
type lossTracker struct {
	last   map[mavlink.Sender]uint8
	window []uint8
	next   int
	filled int
	lost   int
}

func newLossTracker(window int) *lossTracker {
	if window <= 0 {
		window = DefaultLossWindow
	}

	return &lossTracker{
		last:   make(map[mavlink.Sender]uint8),
		window: make([]uint8, window),
	}
}

// observe records one frame and returns how many frames went missing right
// before it.
func (l *lossTracker) observe(sender mavlink.Sender, seq uint8) uint8 {
	var gap uint8
	if last, ok := l.last[sender]; ok {
		gap = seq - last - 1
	}
	l.last[sender] = seq

	if l.filled == len(l.window) {
		l.lost -= int(l.window[l.next])
	} else {
		l.filled++
	}
	l.window[l.next] = gap
	l.lost += int(gap)
	l.next = (l.next + 1) % len(l.window)

	return gap
}

// rate is lost / (lost + received) over the window.
func (l *lossTracker) rate() float64 {
	if l.filled == 0 {
		return 0
	}

	return float64(l.lost) / float64(l.lost+l.filled)
}

// forgetSequences drops per-sender history so that a new connection does not
// report the gap across it.
func (l *lossTracker) forgetSequences() {
	clear(l.last)
}

func (l *lossTracker) reset() {
	clear(l.last)
	clear(l.window)
	l.next = 0
	l.filled = 0
	l.lost = 0
}

func emptyStatistics() Statistics {
	return Statistics{State: connectors.ConnectionStateDisconnected}
}
