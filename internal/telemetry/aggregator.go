package telemetry

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/link"
	"github.com/skobkin/groundlink/internal/mavlink"
)

const (
	DefaultInterval        = 100 * time.Millisecond
	DefaultStaleness       = 3 * time.Second
	DefaultStatusTextLimit = 20
)

type Options struct {
	Interval           time.Duration
	Staleness          time.Duration
	StalenessOverrides map[Group]time.Duration
	StatusTextLimit    int
}

func DefaultOptions() Options {
	return Options{
		Interval:        DefaultInterval,
		Staleness:       DefaultStaleness,
		StatusTextLimit: DefaultStatusTextLimit,
	}
}

// Threshold returns the staleness threshold of g.
func (o Options) Threshold(g Group) time.Duration {
	if d, ok := o.StalenessOverrides[g]; ok && d > 0 {
		return d
	}

	return o.Staleness
}

// Source is the link side the aggregator reads from.
type Source interface {
	Messages() *link.Queue
	Stats() link.Statistics
}

// Aggregator folds decoded messages into a Snapshot and publishes it on a
// fixed cadence, whether or not anything arrived in between.
type Aggregator struct {
	logger *slog.Logger
	bus    bus.MessageBus
	source Source
	opts   Options

	mu       sync.RWMutex
	snapshot Snapshot
	last     Update
	batch    []connectors.InboundMessage

	cancel context.CancelFunc
	done   chan struct{}
}

func New(logger *slog.Logger, b bus.MessageBus, source Source, opts Options) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Staleness <= 0 {
		opts.Staleness = DefaultStaleness
	}
	if opts.StatusTextLimit <= 0 {
		opts.StatusTextLimit = DefaultStatusTextLimit
	}

	return &Aggregator{
		logger: logger.With("component", "telemetry"),
		bus:    b,
		source: source,
		opts:   opts,
	}
}

// Start runs the aggregation loop until ctx is cancelled or Stop is called.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()

		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	go a.run(runCtx, done)
}

// Stop ends the loop and waits for it to exit.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.cancel = nil
	a.done = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (a *Aggregator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.opts.Interval)
	defer ticker.Stop()

	queue := a.source.Messages()
	a.logger.Debug("aggregation started", "interval", a.opts.Interval, "staleness", a.opts.Staleness)
	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("aggregation stopped")

			return
		case <-queue.Ready():
			a.drain()
		case now := <-ticker.C:
			a.tick(now)
		}
	}
}

// drain folds everything currently queued into the snapshot without
// publishing it.
func (a *Aggregator) drain() {
	a.mu.Lock()
	defer a.mu.Unlock()

	vehicle := a.source.Stats().Vehicle
	a.batch = a.source.Messages().Drain(a.batch[:0])
	for _, in := range a.batch {
		a.apply(in, vehicle)
	}
	clear(a.batch)
}

// tick drains the queue, recomputes staleness at now and publishes the
// result.
func (a *Aggregator) tick(now time.Time) Update {
	a.drain()

	stats := a.source.Stats()
	a.mu.Lock()
	for _, g := range Groups {
		a.snapshot.freshness(g).refresh(now, a.opts.Threshold(g))
	}
	a.snapshot.Sequence++
	a.snapshot.GeneratedAt = now
	update := Update{Snapshot: a.snapshot.Clone(), Stats: stats}
	a.last = update
	a.mu.Unlock()

	if a.bus != nil {
		a.bus.TryPublish(connectors.TopicSnapshot, Update{Snapshot: update.Snapshot.Clone(), Stats: stats})
	}

	return Update{Snapshot: update.Snapshot.Clone(), Stats: stats}
}

// Last returns the most recently published update.
func (a *Aggregator) Last() Update {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Update{Snapshot: a.last.Snapshot.Clone(), Stats: a.last.Stats}
}

// Snapshot returns the current snapshot with staleness evaluated at now.
func (a *Aggregator) Snapshot(now time.Time) Snapshot {
	a.mu.RLock()
	s := a.snapshot.Clone()
	a.mu.RUnlock()

	for _, g := range Groups {
		s.freshness(g).refresh(now, a.opts.Threshold(g))
	}

	return s
}

// Apply folds a single message into the snapshot.
func (a *Aggregator) Apply(in connectors.InboundMessage) {
	vehicle := a.source.Stats().Vehicle

	a.mu.Lock()
	defer a.mu.Unlock()

	a.apply(in, vehicle)
}

func (a *Aggregator) apply(in connectors.InboundMessage, vehicle mavlink.Sender) {
	if vehicle != (mavlink.Sender{}) && in.Sender.SystemID != vehicle.SystemID {
		return
	}

	s := &a.snapshot
	at := in.ReceivedAt
	switch m := in.Message.(type) {
	case mavlink.Heartbeat:
		if m.Type == mavlink.MavTypeGCS {
			return
		}
		s.SystemStatus.Vehicle = in.Sender
		s.SystemStatus.Type = m.Type
		s.SystemStatus.Autopilot = m.Autopilot
		s.SystemStatus.BaseMode = m.BaseMode
		s.SystemStatus.CustomMode = m.CustomMode
		s.SystemStatus.State = m.SystemStatus
		s.SystemStatus.Armed = m.BaseMode.Armed()
		s.SystemStatus.MavlinkVersion = m.MavlinkVersion
		s.SystemStatus.touch(at)
	case mavlink.SysStatus:
		s.SystemStatus.SensorsPresent = m.SensorsPresent
		s.SystemStatus.SensorsEnabled = m.SensorsEnabled
		s.SystemStatus.SensorsHealth = m.SensorsHealth
		s.SystemStatus.SensorsUnhealthy = mavlink.Unhealthy(m.SensorsPresent, m.SensorsEnabled, m.SensorsHealth)
		s.SystemStatus.Load = m.Load
		s.SystemStatus.DropRateComm = m.DropRateComm
		s.SystemStatus.ErrorsComm = m.ErrorsComm
		s.SystemStatus.BatteryVoltage = m.BatteryVoltage
		s.SystemStatus.BatteryCurrent = m.BatteryCurrent
		s.SystemStatus.BatteryRemaining = m.BatteryRemaining
		s.SystemStatus.touch(at)
	case mavlink.GPSRawInt:
		s.GPS = GPS{
			Freshness:   s.GPS.Freshness,
			FixType:     m.FixType,
			Latitude:    m.Latitude,
			Longitude:   m.Longitude,
			Altitude:    m.Altitude,
			EPH:         m.EPH,
			EPV:         m.EPV,
			GroundSpeed: m.Velocity,
			Course:      m.CourseOverGround,
			Satellites:  m.SatellitesVisible,
		}
		s.GPS.touch(at)
	case mavlink.Attitude:
		s.Attitude = Attitude{
			Freshness:  s.Attitude.Freshness,
			Roll:       float64(m.Roll),
			Pitch:      float64(m.Pitch),
			Yaw:        float64(m.Yaw),
			RollSpeed:  float64(m.RollSpeed),
			PitchSpeed: float64(m.PitchSpeed),
			YawSpeed:   float64(m.YawSpeed),
		}
		s.Attitude.touch(at)
	case mavlink.GlobalPositionInt:
		s.Position.Latitude = m.Latitude
		s.Position.Longitude = m.Longitude
		s.Position.Heading = m.Heading
		s.Position.touch(at)

		s.Altitude.AMSL = m.Altitude
		s.Altitude.Relative = m.RelativeAltitude
		s.Altitude.touch(at)

		s.Velocity.North = m.VX
		s.Velocity.East = m.VY
		s.Velocity.Down = m.VZ
		s.Velocity.GroundSpeed = math.Hypot(m.VX, m.VY)
		s.Velocity.Climb = -m.VZ
		if m.Heading != nil {
			s.Velocity.Heading = m.Heading
		}
		s.Velocity.touch(at)
	case mavlink.Altitude:
		s.Altitude.AMSL = float64(m.AMSL)
		s.Altitude.Relative = float64(m.Relative)
		s.Altitude.Local = finite(m.Local)
		s.Altitude.Terrain = finite(m.Terrain)
		s.Altitude.touch(at)
	case mavlink.LocalPositionNED:
		north, east, down := float64(m.VX), float64(m.VY), float64(m.VZ)
		s.Velocity.North = north
		s.Velocity.East = east
		s.Velocity.Down = down
		s.Velocity.GroundSpeed = math.Hypot(north, east)
		s.Velocity.Climb = -down
		s.Velocity.touch(at)
	case mavlink.VFRHUD:
		airspeed := float64(m.Airspeed)
		heading := float64(m.Heading)
		throttle := m.Throttle
		s.Velocity.Airspeed = &airspeed
		s.Velocity.GroundSpeed = float64(m.Groundspeed)
		s.Velocity.Climb = float64(m.Climb)
		s.Velocity.Heading = &heading
		s.Velocity.Throttle = &throttle
		s.Velocity.touch(at)
	case mavlink.BatteryStatus:
		s.Battery = Battery{
			Freshness:       s.Battery.Freshness,
			ID:              m.ID,
			Voltage:         m.Voltage,
			Current:         m.Current,
			Remaining:       m.Remaining,
			Temperature:     m.Temperature,
			Cells:           m.Cells,
			CurrentConsumed: m.CurrentConsumed,
			TimeRemaining:   m.TimeRemaining,
		}
		s.Battery.touch(at)
	case mavlink.StatusText:
		s.StatusTexts = append(s.StatusTexts, StatusLine{
			Severity:   m.Severity,
			Text:       m.Text,
			Sender:     in.Sender,
			ReceivedAt: at,
		})
		if over := len(s.StatusTexts) - a.opts.StatusTextLimit; over > 0 {
			s.StatusTexts = append(s.StatusTexts[:0], s.StatusTexts[over:]...)
		}
	case mavlink.CommandAck:
		s.LastAck = &CommandResult{
			Command:    m.Command,
			Result:     m.Result,
			Progress:   m.Progress,
			Sender:     in.Sender,
			ReceivedAt: at,
		}
	}
}

func finite(v float32) *float64 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return nil
	}
	f := float64(v)

	return &f
}
