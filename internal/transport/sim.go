package transport

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/skobkin/groundlink/internal/mavlink"
)

// SimOptions configures the simulated vehicle.
type SimOptions struct {
	SystemID          uint8
	ComponentID       uint8
	Version           mavlink.Version
	HeartbeatInterval time.Duration
	TelemetryInterval time.Duration
	HomeLatitude      float64
	HomeLongitude     float64
	HomeAltitude      float64
}

func DefaultSimOptions() SimOptions {
	return SimOptions{
		SystemID:          1,
		ComponentID:       1,
		Version:           mavlink.V2,
		HeartbeatInterval: time.Second,
		TelemetryInterval: 200 * time.Millisecond,
		HomeLatitude:      47.3977419,
		HomeLongitude:     8.5455938,
		HomeAltitude:      488,
	}
}

const (
	simOrbitPeriod  = time.Minute
	simOrbitRadius  = 0.0005
	simCruiseHeight = 30.0
	simCellCount    = 4
)

// SimTransport is an in-memory vehicle that orbits its home point and
// answers commands. Its frames go through the same encoder as real traffic.
type SimTransport struct {
	opts SimOptions
	enc  *mavlink.Encoder

	mu            sync.Mutex
	open          bool
	closed        chan struct{}
	started       time.Time
	nextHeartbeat time.Time
	nextTelemetry time.Time
	replies       []mavlink.Message
	inbound       *mavlink.Parser
	armed         bool
	customMode    uint32
}

func NewSimTransport(opts SimOptions) *SimTransport {
	def := DefaultSimOptions()
	if opts.SystemID == 0 {
		opts.SystemID = def.SystemID
	}
	if opts.ComponentID == 0 {
		opts.ComponentID = def.ComponentID
	}
	if opts.Version == 0 {
		opts.Version = def.Version
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = def.HeartbeatInterval
	}
	if opts.TelemetryInterval <= 0 {
		opts.TelemetryInterval = def.TelemetryInterval
	}
	if opts.HomeLatitude == 0 && opts.HomeLongitude == 0 {
		opts.HomeLatitude = def.HomeLatitude
		opts.HomeLongitude = def.HomeLongitude
		opts.HomeAltitude = def.HomeAltitude
	}

	return &SimTransport{
		opts:    opts,
		enc:     mavlink.NewEncoder(opts.Version, opts.SystemID, opts.ComponentID),
		inbound: mavlink.NewParser(),
	}
}

func (t *SimTransport) Name() string {
	return "sim"
}

func (t *SimTransport) StatusTarget() string {
	return "simulated vehicle"
}

func (t *SimTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return nil
	}
	now := time.Now()
	t.open = true
	t.closed = make(chan struct{})
	t.started = now
	t.nextHeartbeat = now
	t.nextTelemetry = now
	t.inbound.Reset()
	transportLogger("sim", "", "sysid", t.opts.SystemID).Info("simulated vehicle started")

	return nil
}

func (t *SimTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}
	t.open = false
	close(t.closed)
	t.replies = nil

	return nil
}

func (t *SimTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()

		return nil, newError(KindClosed, "read sim", errNotConnected)
	}
	if len(t.replies) > 0 {
		out := t.encodeAll(t.replies)
		t.replies = nil
		t.mu.Unlock()

		return out, nil
	}
	due := t.nextHeartbeat
	if t.nextTelemetry.Before(due) {
		due = t.nextTelemetry
	}
	closed := t.closed
	t.mu.Unlock()

	if wait := time.Until(due); wait > 0 {
		if wait > readPollInterval {
			wait = readPollInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		case <-closed:
			timer.Stop()

			return nil, newError(KindClosed, "read sim", errNotConnected)
		case <-timer.C:
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil, newError(KindClosed, "read sim", errNotConnected)
	}
	out := t.emitDue(time.Now())
	if len(out) == 0 {
		return nil, ErrReadTimeout
	}

	return out, nil
}

// Write feeds bytes to the simulated vehicle. COMMAND_LONG and SET_MODE are
// acknowledged on the next read.
func (t *SimTransport) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return newError(KindClosed, "write sim", errNotConnected)
	}
	for _, frame := range t.inbound.Feed(p) {
		msg, err := mavlink.Decode(frame)
		if err != nil {
			continue
		}
		t.handle(frame, msg)
	}

	return nil
}

func (t *SimTransport) handle(frame mavlink.Frame, msg mavlink.Message) {
	switch m := msg.(type) {
	case mavlink.CommandLong:
		result := mavlink.MavResultAccepted
		switch m.Command {
		case mavlink.MavCmdComponentArmDisarm:
			t.armed = m.Params[0] == 1
		case mavlink.MavCmdDoSetMode:
			t.customMode = uint32(m.Params[1])
		case mavlink.MavCmdRequestMessage, mavlink.MavCmdSetMessageInterval:
		default:
			result = mavlink.MavResultUnsupported
		}
		t.replies = append(t.replies, mavlink.CommandAck{
			Command:         m.Command,
			Result:          result,
			TargetSystem:    frame.SystemID,
			TargetComponent: frame.ComponentID,
		})
	case mavlink.SetMode:
		t.customMode = m.CustomMode
	}
}

func (t *SimTransport) emitDue(now time.Time) []byte {
	var out []mavlink.Message
	if !now.Before(t.nextHeartbeat) {
		out = append(out, t.heartbeat())
		t.nextHeartbeat = now.Add(t.opts.HeartbeatInterval)
	}
	if !now.Before(t.nextTelemetry) {
		out = append(out, t.telemetry(now.Sub(t.started))...)
		t.nextTelemetry = now.Add(t.opts.TelemetryInterval)
	}

	return t.encodeAll(out)
}

func (t *SimTransport) encodeAll(msgs []mavlink.Message) []byte {
	var out []byte
	for _, msg := range msgs {
		raw, err := t.enc.Encode(msg)
		if err != nil {
			transportLogger("sim", "").Debug("encode failed", "message", msg.MessageName(), "error", err)

			continue
		}
		out = append(out, raw...)
	}

	return out
}

func (t *SimTransport) heartbeat() mavlink.Heartbeat {
	mode := mavlink.MavModeFlagCustomModeEnabled | mavlink.MavModeFlagStabilizeEnabled
	if t.armed {
		mode |= mavlink.MavModeFlagSafetyArmed
	}

	return mavlink.Heartbeat{
		Type:           mavlink.MavTypeQuadrotor,
		Autopilot:      mavlink.MavAutopilotArduPilot,
		BaseMode:       mode,
		CustomMode:     t.customMode,
		SystemStatus:   mavlink.MavStateActive,
		MavlinkVersion: 3,
	}
}

func (t *SimTransport) telemetry(elapsed time.Duration) []mavlink.Message {
	angle := 2 * math.Pi * elapsed.Seconds() / simOrbitPeriod.Seconds()
	sin, cos := math.Sincos(angle)
	lat := t.opts.HomeLatitude + simOrbitRadius*sin
	lon := t.opts.HomeLongitude + simOrbitRadius*cos
	heading := math.Mod(math.Mod(-angle*180/math.Pi, 360)+360, 360)
	speed := 2 * math.Pi * simOrbitRadius * 111_320 / simOrbitPeriod.Seconds()
	bootMs := uint32(elapsed.Milliseconds())

	left := 100 - int(elapsed.Minutes())
	if left < 0 {
		left = 0
	}
	remaining := int8(left)
	cell := 3.5 + 0.7*float64(remaining)/100
	cells := make([]float64, simCellCount)
	var voltage float64
	for i := range cells {
		cells[i] = math.Round(cell*1000) / 1000
		voltage += cells[i]
	}
	current := 12.5
	eph := 0.9
	sats := uint8(14)
	hdg := math.Round(heading*100) / 100

	return []mavlink.Message{
		mavlink.SysStatus{
			SensorsPresent:   mavlink.SensorGyro3D | mavlink.SensorAccel3D | mavlink.SensorMag3D | mavlink.SensorGPS | mavlink.SensorBattery,
			SensorsEnabled:   mavlink.SensorGyro3D | mavlink.SensorAccel3D | mavlink.SensorMag3D | mavlink.SensorGPS | mavlink.SensorBattery,
			SensorsHealth:    mavlink.SensorGyro3D | mavlink.SensorAccel3D | mavlink.SensorMag3D | mavlink.SensorGPS | mavlink.SensorBattery,
			Load:             35,
			BatteryVoltage:   &voltage,
			BatteryCurrent:   &current,
			BatteryRemaining: &remaining,
		},
		mavlink.Attitude{
			TimeBootMs: bootMs,
			Roll:       float32(0.05 * sin),
			Pitch:      float32(-0.03 * cos),
			Yaw:        float32(hdg * math.Pi / 180),
		},
		mavlink.GPSRawInt{
			TimeUsec:          uint64(elapsed.Microseconds()),
			FixType:           mavlink.GPSFixType3D,
			Latitude:          lat,
			Longitude:         lon,
			Altitude:          t.opts.HomeAltitude + simCruiseHeight,
			EPH:               &eph,
			SatellitesVisible: &sats,
		},
		mavlink.GlobalPositionInt{
			TimeBootMs:       bootMs,
			Latitude:         lat,
			Longitude:        lon,
			Altitude:         t.opts.HomeAltitude + simCruiseHeight,
			RelativeAltitude: simCruiseHeight,
			VX:               speed * cos,
			VY:               -speed * sin,
			Heading:          &hdg,
		},
		mavlink.VFRHUD{
			Airspeed:    float32(speed),
			Groundspeed: float32(speed),
			Altitude:    float32(t.opts.HomeAltitude + simCruiseHeight),
			Heading:     int16(hdg),
			Throttle:    45,
		},
		mavlink.BatteryStatus{
			ID:              0,
			Cells:           cells,
			Voltage:         voltage,
			Current:         &current,
			CurrentConsumed: int32(elapsed.Seconds() * current / 3.6),
			EnergyConsumed:  -1,
			Remaining:       &remaining,
		},
	}
}
