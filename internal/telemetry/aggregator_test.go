package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/link"
	"github.com/skobkin/groundlink/internal/mavlink"
)

type fakeSource struct {
	queue *link.Queue

	mu    sync.Mutex
	stats link.Statistics
}

func newFakeSource() *fakeSource {
	return &fakeSource{queue: link.NewQueue(64)}
}

func (f *fakeSource) Messages() *link.Queue { return f.queue }

func (f *fakeSource) Stats() link.Statistics {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stats
}

func (f *fakeSource) setVehicle(s mavlink.Sender) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.Vehicle = s
}

var vehicle = mavlink.Sender{SystemID: 1, ComponentID: 1}

func inbound(at time.Time, msg mavlink.Message) connectors.InboundMessage {
	return connectors.InboundMessage{Sender: vehicle, Version: mavlink.V2, Message: msg, ReceivedAt: at}
}

func float(v float64) *float64 { return &v }

func TestApplyUpdatesOnlyItsOwnGroup(t *testing.T) {
	agg := New(slog.Default(), nil, newFakeSource(), DefaultOptions())
	now := time.Now()

	agg.Apply(inbound(now, mavlink.Attitude{Roll: 0.5, Pitch: -0.25, Yaw: 1}))
	s := agg.Snapshot(now)

	if !s.Attitude.Fresh() || s.Attitude.Roll != 0.5 || s.Attitude.Pitch != -0.25 {
		t.Fatalf("unexpected attitude %+v", s.Attitude)
	}
	for _, g := range Groups {
		if g == GroupAttitude {
			continue
		}
		if f := s.Freshness(g); f.Received {
			t.Fatalf("group %s was touched by an attitude message: %+v", g, f)
		}
	}
}

func TestStalenessIsPerGroupAndKeepsValues(t *testing.T) {
	opts := DefaultOptions()
	opts.Staleness = time.Second
	opts.StalenessOverrides = map[Group]time.Duration{GroupBattery: 10 * time.Second}
	agg := New(slog.Default(), nil, newFakeSource(), opts)
	start := time.Now()

	agg.Apply(inbound(start, mavlink.GPSRawInt{FixType: mavlink.GPSFixType3D, Latitude: 47.39, Longitude: 8.54}))
	agg.Apply(inbound(start, mavlink.BatteryStatus{Voltage: 12.4, Cells: []float64{4.1, 4.2, 4.1}}))
	agg.Apply(inbound(start.Add(1500*time.Millisecond), mavlink.Attitude{Roll: 0.1}))

	u := agg.tick(start.Add(2 * time.Second))
	s := u.Snapshot

	if !s.GPS.Received || !s.GPS.Stale {
		t.Fatalf("expected stale gps, got %+v", s.GPS.Freshness)
	}
	if s.GPS.Latitude != 47.39 || s.GPS.FixType != mavlink.GPSFixType3D {
		t.Fatalf("stale gps lost its values: %+v", s.GPS)
	}
	if s.Battery.Stale {
		t.Fatal("battery override was not honoured")
	}
	if s.Attitude.Stale {
		t.Fatal("fresh attitude reported stale")
	}
	if s.Velocity.Received || s.Velocity.Stale {
		t.Fatalf("never received group must be neither received nor stale: %+v", s.Velocity.Freshness)
	}

	agg.Apply(inbound(start.Add(2100*time.Millisecond), mavlink.GPSRawInt{FixType: mavlink.GPSFixType3D, Latitude: 47.4}))
	if s := agg.tick(start.Add(2200 * time.Millisecond)).Snapshot; s.GPS.Stale || s.GPS.Latitude != 47.4 {
		t.Fatalf("gps did not become fresh again: %+v", s.GPS)
	}
}

func TestTickDrainsQueueAndPublishes(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	sub := b.Subscribe(connectors.TopicSnapshot)

	src := newFakeSource()
	agg := New(slog.Default(), b, src, DefaultOptions())
	now := time.Now()
	src.queue.Push(inbound(now, mavlink.Heartbeat{
		Type:         mavlink.MavTypeQuadrotor,
		Autopilot:    mavlink.MavAutopilotArduPilot,
		BaseMode:     mavlink.MavModeFlagSafetyArmed | mavlink.MavModeFlagCustomModeEnabled,
		CustomMode:   5,
		SystemStatus: mavlink.MavStateActive,
	}))
	src.queue.Push(inbound(now, mavlink.SysStatus{BatteryVoltage: float(12.6)}))

	agg.tick(now)

	select {
	case raw := <-sub:
		u, ok := raw.(Update)
		if !ok {
			t.Fatalf("unexpected payload %T", raw)
		}
		st := u.Snapshot.SystemStatus
		if !st.Fresh() || !st.Armed || st.CustomMode != 5 || st.State != mavlink.MavStateActive {
			t.Fatalf("unexpected system status %+v", st)
		}
		if st.BatteryVoltage == nil || *st.BatteryVoltage != 12.6 {
			t.Fatalf("unexpected battery voltage %v", st.BatteryVoltage)
		}
		if u.Snapshot.Sequence != 1 {
			t.Fatalf("unexpected sequence %d", u.Snapshot.Sequence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
	}
	if src.queue.Len() != 0 {
		t.Fatalf("queue not drained, %d left", src.queue.Len())
	}
}

func TestIdleTicksRepublishSameValues(t *testing.T) {
	agg := New(slog.Default(), nil, newFakeSource(), DefaultOptions())
	now := time.Now()
	agg.Apply(inbound(now, mavlink.VFRHUD{Airspeed: 12, Groundspeed: 11, Climb: 0.5, Heading: 90, Throttle: 40}))

	first := agg.tick(now.Add(100 * time.Millisecond))
	second := agg.tick(now.Add(200 * time.Millisecond))

	if second.Snapshot.Sequence != first.Snapshot.Sequence+1 {
		t.Fatalf("expected consecutive sequences, got %d then %d", first.Snapshot.Sequence, second.Snapshot.Sequence)
	}
	if second.Snapshot.Velocity.GroundSpeed != 11 || *second.Snapshot.Velocity.Airspeed != 12 {
		t.Fatalf("velocity changed without input: %+v", second.Snapshot.Velocity)
	}
	if !second.Snapshot.Velocity.UpdatedAt.Equal(now) {
		t.Fatalf("idle tick moved the update time to %s", second.Snapshot.Velocity.UpdatedAt)
	}
}

func TestPositionFeedsAltitudeAndVelocity(t *testing.T) {
	agg := New(slog.Default(), nil, newFakeSource(), DefaultOptions())
	now := time.Now()
	agg.Apply(inbound(now, mavlink.GlobalPositionInt{
		Latitude:         47.3977419,
		Longitude:        8.5455938,
		Altitude:         488.5,
		RelativeAltitude: 10,
		VX:               3,
		VY:               4,
		VZ:               -1,
		Heading:          float(270),
	}))
	s := agg.Snapshot(now)

	if s.Altitude.AMSL != 488.5 || s.Altitude.Relative != 10 {
		t.Fatalf("unexpected altitude %+v", s.Altitude)
	}
	if s.Velocity.GroundSpeed != 5 || s.Velocity.Climb != 1 || s.Velocity.North != 3 {
		t.Fatalf("unexpected velocity %+v", s.Velocity)
	}
	if s.Position.Heading == nil || *s.Position.Heading != 270 {
		t.Fatalf("unexpected heading %v", s.Position.Heading)
	}
	if s.GPS.Received {
		t.Fatal("fused position must not touch the raw gps group")
	}
}

func TestIgnoresOtherSystemsAndGCSHeartbeats(t *testing.T) {
	src := newFakeSource()
	src.setVehicle(vehicle)
	agg := New(slog.Default(), nil, src, DefaultOptions())
	now := time.Now()

	other := inbound(now, mavlink.Attitude{Roll: 1})
	other.Sender = mavlink.Sender{SystemID: 2, ComponentID: 1}
	agg.Apply(other)
	agg.Apply(inbound(now, mavlink.Heartbeat{Type: mavlink.MavTypeGCS}))

	s := agg.Snapshot(now)
	if s.Attitude.Received || s.SystemStatus.Received {
		t.Fatalf("foreign messages were folded in: %+v", s)
	}
}

func TestStatusTextsAreBoundedAndCloned(t *testing.T) {
	opts := DefaultOptions()
	opts.StatusTextLimit = 3
	agg := New(slog.Default(), nil, newFakeSource(), opts)
	now := time.Now()

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		agg.Apply(inbound(now, mavlink.StatusText{Severity: mavlink.MavSeverityInfo, Text: text}))
	}
	agg.Apply(inbound(now, mavlink.CommandAck{Command: mavlink.MavCmdComponentArmDisarm, Result: mavlink.MavResultAccepted}))

	u := agg.tick(now)
	texts := u.Snapshot.StatusTexts
	if len(texts) != 3 || texts[0].Text != "three" || texts[2].Text != "five" {
		t.Fatalf("unexpected status texts %+v", texts)
	}
	if u.Snapshot.LastAck == nil || u.Snapshot.LastAck.Result != mavlink.MavResultAccepted {
		t.Fatalf("unexpected ack %+v", u.Snapshot.LastAck)
	}

	texts[0].Text = "mutated"
	u.Snapshot.LastAck.Result = mavlink.MavResultFailed
	last := agg.Last()
	if last.Snapshot.StatusTexts[0].Text != "three" || last.Snapshot.LastAck.Result != mavlink.MavResultAccepted {
		t.Fatal("published snapshot shares memory with the aggregator")
	}
}

func TestStartPublishesOnCadence(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	sub := b.Subscribe(connectors.TopicSnapshot)

	opts := DefaultOptions()
	opts.Interval = 20 * time.Millisecond
	agg := New(slog.Default(), b, newFakeSource(), opts)
	agg.Start(context.Background())
	defer agg.Stop()

	var seqs []uint64
	deadline := time.After(2 * time.Second)
	for len(seqs) < 3 {
		select {
		case raw := <-sub:
			seqs = append(seqs, raw.(Update).Snapshot.Sequence)
		case <-deadline:
			t.Fatalf("expected three idle snapshots, got %v", seqs)
		}
	}
	if seqs[0] >= seqs[1] || seqs[1] >= seqs[2] {
		t.Fatalf("sequences not increasing: %v", seqs)
	}
}
