package persistence

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/link"
	"github.com/skobkin/groundlink/internal/mavlink"
	"github.com/skobkin/groundlink/internal/telemetry"
)

func TestRecorderProjectsBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := openTestDB(t)
	b := bus.New(slog.Default())
	defer b.Close()
	queue := NewWriterQueue(slog.Default(), 16)
	queue.Start(ctx)
	events := NewLinkEventRepo(db)
	samples := NewSampleRepo(db)
	rec := NewRecorder(slog.Default(), b, queue, events, samples, time.Second)
	rec.Start(ctx)

	base := time.Now().Truncate(time.Millisecond)
	b.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateStreaming,
		Previous:      connectors.ConnectionStateConnected,
		TransportName: "udp",
		Target:        "0.0.0.0:14550",
		Timestamp:     base,
	})
	b.Publish(connectors.TopicStatusText, connectors.InboundMessage{
		Message:    mavlink.StatusText{Severity: mavlink.MavSeverityInfo, Text: "EKF3 IMU0 is using GPS"},
		ReceivedAt: base.Add(time.Millisecond),
	})
	b.Publish(connectors.TopicCommandAck, connectors.InboundMessage{
		Message:    mavlink.CommandAck{Command: mavlink.MavCmdComponentArmDisarm, Result: mavlink.MavResultAccepted},
		ReceivedAt: base.Add(2 * time.Millisecond),
	})

	// three updates inside one sample interval collapse into one row
	for i, offset := range []time.Duration{0, 300 * time.Millisecond, 600 * time.Millisecond, 1200 * time.Millisecond} {
		snap := telemetry.Snapshot{Sequence: uint64(i + 1), GeneratedAt: base.Add(offset)}
		snap.Attitude.Received = true
		snap.Attitude.Roll = float64(i)
		b.Publish(connectors.TopicSnapshot, telemetry.Update{Snapshot: snap, Stats: link.Statistics{State: connectors.ConnectionStateStreaming}})
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
	defer waitCancel()
	deadline := time.Now().Add(3 * time.Second)
	var (
		gotEvents  []LinkEvent
		gotSamples []TelemetrySample
	)
	for time.Now().Before(deadline) {
		if err := queue.Flush(waitCtx); err != nil {
			t.Fatalf("flush: %v", err)
		}
		var err error
		gotEvents, err = events.ListRecent(ctx, 10)
		if err != nil {
			t.Fatalf("list events: %v", err)
		}
		gotSamples, err = samples.ListBetween(ctx, base.Add(-time.Second), base.Add(time.Minute))
		if err != nil {
			t.Fatalf("list samples: %v", err)
		}
		if len(gotEvents) == 3 && len(gotSamples) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(gotEvents) != 3 {
		t.Fatalf("expected 3 events, got %+v", gotEvents)
	}
	if gotEvents[0].Kind != EventKindState || gotEvents[0].State != "streaming" || gotEvents[0].Transport != "udp" {
		t.Fatalf("unexpected state event %+v", gotEvents[0])
	}
	if gotEvents[1].Kind != EventKindStatusText || gotEvents[1].Detail != "EKF3 IMU0 is using GPS" {
		t.Fatalf("unexpected statustext event %+v", gotEvents[1])
	}
	if gotEvents[2].Kind != EventKindCommandAck || gotEvents[2].Detail != "component_arm_disarm: accepted" {
		t.Fatalf("unexpected ack event %+v", gotEvents[2])
	}

	if len(gotSamples) != 2 {
		t.Fatalf("expected 2 throttled samples, got %d", len(gotSamples))
	}
	if *gotSamples[0].Roll != 0 || *gotSamples[1].Roll != 3 {
		t.Fatalf("unexpected sampled rolls %v, %v", *gotSamples[0].Roll, *gotSamples[1].Roll)
	}

	cancel()
	rec.Wait()
}

func TestSampleFromUpdatePrefersFusedPosition(t *testing.T) {
	var u telemetry.Update
	u.Snapshot.GPS.Received = true
	u.Snapshot.GPS.Latitude = 1
	u.Snapshot.GPS.Longitude = 2
	u.Snapshot.Position.Received = true
	u.Snapshot.Position.Latitude = 47.5
	u.Snapshot.Position.Longitude = 8.5

	s := SampleFromUpdate(u)
	if s.Latitude == nil || *s.Latitude != 47.5 || *s.Longitude != 8.5 {
		t.Fatalf("expected fused position, got %v %v", s.Latitude, s.Longitude)
	}
	if s.GPSFix == nil || s.AltitudeAMSL != nil || s.Roll != nil {
		t.Fatalf("unexpected group mapping %+v", s)
	}
	if s.At.IsZero() {
		t.Fatal("sample without generation time must still be stamped")
	}
}

func TestWriterQueueRetriesFailedWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewWriterQueue(slog.Default(), 4)
	q.Start(ctx)

	var calls atomic.Int32
	q.Enqueue("flaky", func(context.Context) error {
		if calls.Add(1) < 2 {
			return errors.New("database is locked")
		}

		return nil
	})

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()
	if err := q.Flush(flushCtx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected one retry, got %d calls", got)
	}

	cancel()
	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not stop")
	}
}
