package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/mavlink"
	"github.com/skobkin/groundlink/internal/telemetry"
)

// WriteQueue serializes recorder writes coming from bus events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// Recorder projects bus events into the recorder tables: every state
// change, STATUSTEXT and COMMAND_ACK becomes a link event and snapshots are
// sampled at most once per SampleInterval.
type Recorder struct {
	logger         *slog.Logger
	bus            bus.MessageBus
	queue          WriteQueue
	events         *LinkEventRepo
	samples        *SampleRepo
	sampleInterval time.Duration

	wg sync.WaitGroup
}

func NewRecorder(logger *slog.Logger, b bus.MessageBus, queue WriteQueue, events *LinkEventRepo, samples *SampleRepo, sampleInterval time.Duration) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		logger:         logger.With("component", "recorder"),
		bus:            b,
		queue:          queue,
		events:         events,
		samples:        samples,
		sampleInterval: sampleInterval,
	}
}

// Start subscribes to the bus. Subscriptions end when ctx is cancelled or
// the bus is closed; Wait blocks until then.
func (r *Recorder) Start(ctx context.Context) {
	eventSub := r.bus.Subscribe(connectors.TopicConnStatus, connectors.TopicStatusText, connectors.TopicCommandAck)
	snapshotSub := r.bus.Subscribe(connectors.TopicSnapshot)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.consume(ctx, eventSub, r.handleEvent)
	}()
	go func() {
		defer r.wg.Done()
		var last time.Time
		r.consume(ctx, snapshotSub, func(raw any) {
			update, ok := raw.(telemetry.Update)
			if !ok {
				return
			}
			at := update.Snapshot.GeneratedAt
			if !last.IsZero() && at.Sub(last) < r.sampleInterval {
				return
			}
			last = at
			sample := SampleFromUpdate(update)
			r.queue.Enqueue("insert_sample", func(writeCtx context.Context) error {
				_, err := r.samples.Insert(writeCtx, sample)

				return err
			})
		})
	}()
}

func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) consume(ctx context.Context, sub bus.Subscription, handle func(any)) {
	for {
		select {
		case <-ctx.Done():
			// Unsubscribe from another goroutine: pubsub may be blocked
			// delivering to this very channel.
			go r.bus.Unsubscribe(sub)

			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			handle(raw)
		}
	}
}

func (r *Recorder) handleEvent(raw any) {
	event, ok := EventFromBus(raw)
	if !ok {
		return
	}
	r.queue.Enqueue("insert_link_event", func(writeCtx context.Context) error {
		_, err := r.events.Insert(writeCtx, event)

		return err
	})
}

// EventFromBus converts a bus payload into a link event row.
func EventFromBus(raw any) (LinkEvent, bool) {
	switch v := raw.(type) {
	case connectors.ConnectionStatus:
		return LinkEvent{
			At:        v.Timestamp,
			Kind:      EventKindState,
			State:     string(v.State),
			Previous:  string(v.Previous),
			Transport: v.TransportName,
			Target:    v.Target,
			Detail:    v.Err,
		}, true
	case connectors.InboundMessage:
		switch m := v.Message.(type) {
		case mavlink.StatusText:
			severity := int(m.Severity)

			return LinkEvent{
				At:       v.ReceivedAt,
				Kind:     EventKindStatusText,
				Severity: &severity,
				Detail:   m.Text,
			}, true
		case mavlink.CommandAck:
			return LinkEvent{
				At:     v.ReceivedAt,
				Kind:   EventKindCommandAck,
				Detail: fmt.Sprintf("%s: %s", m.Command, m.Result),
			}, true
		}
	}

	return LinkEvent{}, false
}

// SampleFromUpdate flattens a telemetry update into a recorder row. Groups
// that were never received are left empty.
func SampleFromUpdate(u telemetry.Update) TelemetrySample {
	s := u.Snapshot
	sample := TelemetrySample{
		At:              s.GeneratedAt,
		State:           string(u.Stats.State),
		PacketsReceived: u.Stats.PacketsReceived,
		PacketsLost:     u.Stats.PacketsLost,
		LossRate:        u.Stats.LossRate,
	}
	if sample.At.IsZero() {
		sample.At = time.Now()
	}

	if s.SystemStatus.Received {
		sample.Armed = s.SystemStatus.Armed
		sample.SystemStatus = ptr(int(s.SystemStatus.State))
		if s.SystemStatus.BatteryVoltage != nil {
			sample.BatteryVoltage = ptr(*s.SystemStatus.BatteryVoltage)
		}
		if s.SystemStatus.BatteryRemaining != nil {
			sample.BatteryRemaining = ptr(int(*s.SystemStatus.BatteryRemaining))
		}
	}
	if s.Battery.Received {
		sample.BatteryVoltage = ptr(s.Battery.Voltage)
		if s.Battery.Remaining != nil {
			sample.BatteryRemaining = ptr(int(*s.Battery.Remaining))
		}
	}
	switch {
	case s.Position.Received:
		sample.Latitude = ptr(s.Position.Latitude)
		sample.Longitude = ptr(s.Position.Longitude)
	case s.GPS.Received:
		sample.Latitude = ptr(s.GPS.Latitude)
		sample.Longitude = ptr(s.GPS.Longitude)
	}
	if s.GPS.Received {
		sample.GPSFix = ptr(int(s.GPS.FixType))
		if s.GPS.Satellites != nil {
			sample.Satellites = ptr(int(*s.GPS.Satellites))
		}
	}
	if s.Altitude.Received {
		sample.AltitudeAMSL = ptr(s.Altitude.AMSL)
		sample.AltitudeRelative = ptr(s.Altitude.Relative)
	}
	if s.Attitude.Received {
		sample.Roll = ptr(s.Attitude.Roll)
		sample.Pitch = ptr(s.Attitude.Pitch)
		sample.Yaw = ptr(s.Attitude.Yaw)
	}
	if s.Velocity.Received {
		sample.GroundSpeed = ptr(s.Velocity.GroundSpeed)
		sample.Climb = ptr(s.Velocity.Climb)
	}

	return sample
}

func ptr[T any](v T) *T {
	return &v
}
