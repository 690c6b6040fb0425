package transport

import (
	"context"
	"testing"
	"time"

	"github.com/skobkin/groundlink/internal/mavlink"
)

func TestSimEmitsHeartbeatAndTelemetry(t *testing.T) {
	sim := NewSimTransport(SimOptions{TelemetryInterval: 20 * time.Millisecond})
	if err := sim.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = sim.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	parser := mavlink.NewParser()
	seen := map[uint32]bool{}
	for chunk, err := range Chunks(ctx, sim) {
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		for _, f := range parser.Feed(chunk) {
			if _, err := mavlink.Decode(f); err != nil {
				t.Fatalf("decode %d: %v", f.MessageID, err)
			}
			seen[f.MessageID] = true
		}
		if seen[mavlink.MsgIDHeartbeat] && seen[mavlink.MsgIDGlobalPositionInt] && seen[mavlink.MsgIDBatteryStatus] {
			break
		}
	}

	for _, id := range []uint32{mavlink.MsgIDHeartbeat, mavlink.MsgIDAttitude, mavlink.MsgIDGPSRawInt, mavlink.MsgIDGlobalPositionInt} {
		if !seen[id] {
			t.Fatalf("simulator never sent %s", mavlink.MessageName(id))
		}
	}
	if parser.Stats().Dropped() != 0 {
		t.Fatalf("simulator produced invalid frames: %+v", parser.Stats())
	}
}

func TestSimAcknowledgesCommands(t *testing.T) {
	sim := NewSimTransport(SimOptions{HeartbeatInterval: time.Hour, TelemetryInterval: time.Hour})
	if err := sim.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = sim.Close() }()

	// drain the initial burst
	if _, err := sim.ReadChunk(context.Background()); err != nil {
		t.Fatalf("read: %v", err)
	}

	raw, err := mavlink.NewEncoder(mavlink.V2, 255, 190).Encode(mavlink.CommandLong{
		TargetSystem:    1,
		TargetComponent: 1,
		Command:         mavlink.MavCmdComponentArmDisarm,
		Params:          [7]float32{1},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := sim.Write(context.Background(), raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	chunk, err := sim.ReadChunk(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frames := mavlink.NewParser().Feed(chunk)
	if len(frames) != 1 {
		t.Fatalf("expected one reply frame, got %d", len(frames))
	}
	msg, err := mavlink.Decode(frames[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ack, ok := msg.(mavlink.CommandAck)
	if !ok || ack.Command != mavlink.MavCmdComponentArmDisarm || ack.Result != mavlink.MavResultAccepted {
		t.Fatalf("unexpected reply %#v", msg)
	}
	if ack.TargetSystem != 255 || ack.TargetComponent != 190 {
		t.Fatalf("ack not addressed to sender: %+v", ack)
	}
	if !sim.heartbeat().BaseMode.Armed() {
		t.Fatal("expected the vehicle to be armed")
	}
}
