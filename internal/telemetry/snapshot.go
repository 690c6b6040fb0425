package telemetry

import (
	"slices"
	"time"

	"github.com/skobkin/groundlink/internal/link"
	"github.com/skobkin/groundlink/internal/mavlink"
)

// Group names one independently refreshed part of the snapshot.
type Group string

const (
	GroupSystemStatus Group = "system_status"
	GroupGPS          Group = "gps"
	GroupPosition     Group = "position"
	GroupAttitude     Group = "attitude"
	GroupBattery      Group = "battery"
	GroupAltitude     Group = "altitude"
	GroupVelocity     Group = "velocity"
)

// Groups lists every group in display order.
var Groups = []Group{
	GroupSystemStatus,
	GroupGPS,
	GroupPosition,
	GroupAttitude,
	GroupBattery,
	GroupAltitude,
	GroupVelocity,
}

// Freshness tells apart a group that was never received, one whose last
// update is older than its staleness threshold, and a fresh one.
type Freshness struct {
	Received  bool      `json:"received"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	Stale     bool      `json:"stale"`
}

func (f Freshness) Fresh() bool {
	return f.Received && !f.Stale
}

func (f *Freshness) touch(now time.Time) {
	f.Received = true
	f.UpdatedAt = now
	f.Stale = false
}

func (f *Freshness) refresh(now time.Time, threshold time.Duration) {
	f.Stale = f.Received && threshold > 0 && now.Sub(f.UpdatedAt) > threshold
}

type SystemStatus struct {
	Freshness
	Vehicle        mavlink.Sender       `json:"vehicle"`
	Type           mavlink.MavType      `json:"type"`
	Autopilot      mavlink.MavAutopilot `json:"autopilot"`
	BaseMode       mavlink.MavModeFlag  `json:"base_mode"`
	CustomMode     uint32               `json:"custom_mode"`
	State          mavlink.MavState     `json:"state"`
	Armed          bool                 `json:"armed"`
	MavlinkVersion uint8                `json:"mavlink_version"`

	// Filled from SYS_STATUS.
	SensorsPresent   mavlink.SensorFlags `json:"sensors_present"`
	SensorsEnabled   mavlink.SensorFlags `json:"sensors_enabled"`
	SensorsHealth    mavlink.SensorFlags `json:"sensors_health"`
	SensorsUnhealthy mavlink.SensorFlags `json:"sensors_unhealthy"`
	Load             float64             `json:"load"`
	DropRateComm     float64             `json:"drop_rate_comm"`
	ErrorsComm       uint16              `json:"errors_comm"`
	BatteryVoltage   *float64            `json:"battery_voltage,omitempty"`
	BatteryCurrent   *float64            `json:"battery_current,omitempty"`
	BatteryRemaining *int8               `json:"battery_remaining,omitempty"`
}

type GPS struct {
	Freshness
	FixType     mavlink.GPSFixType `json:"fix_type"`
	Latitude    float64            `json:"lat"`
	Longitude   float64            `json:"lon"`
	Altitude    float64            `json:"alt"`
	EPH         *float64           `json:"eph,omitempty"`
	EPV         *float64           `json:"epv,omitempty"`
	GroundSpeed *float64           `json:"ground_speed,omitempty"`
	Course      *float64           `json:"course,omitempty"`
	Satellites  *uint8             `json:"satellites,omitempty"`
}

// Position is the autopilot's fused global position.
type Position struct {
	Freshness
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Heading   *float64 `json:"heading,omitempty"`
}

// Attitude angles are radians, rates radians per second.
type Attitude struct {
	Freshness
	Roll       float64 `json:"roll"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	RollSpeed  float64 `json:"roll_speed"`
	PitchSpeed float64 `json:"pitch_speed"`
	YawSpeed   float64 `json:"yaw_speed"`
}

type Battery struct {
	Freshness
	ID              uint8     `json:"id"`
	Voltage         float64   `json:"voltage"`
	Current         *float64  `json:"current,omitempty"`
	Remaining       *int8     `json:"remaining,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	Cells           []float64 `json:"cells,omitempty"`
	CurrentConsumed int32     `json:"current_consumed"`
	TimeRemaining   int32     `json:"time_remaining"`
}

// Altitude values are metres. Terrain is nil when the vehicle has no
// terrain data.
type Altitude struct {
	Freshness
	AMSL     float64  `json:"amsl"`
	Relative float64  `json:"relative"`
	Local    *float64 `json:"local,omitempty"`
	Terrain  *float64 `json:"terrain,omitempty"`
}

// Velocity components are metres per second in the NED frame.
type Velocity struct {
	Freshness
	North       float64  `json:"north"`
	East        float64  `json:"east"`
	Down        float64  `json:"down"`
	GroundSpeed float64  `json:"ground_speed"`
	Airspeed    *float64 `json:"airspeed,omitempty"`
	Climb       float64  `json:"climb"`
	Heading     *float64 `json:"heading,omitempty"`
	Throttle    *uint16  `json:"throttle,omitempty"`
}

type StatusLine struct {
	Severity   mavlink.MavSeverity `json:"severity"`
	Text       string              `json:"text"`
	Sender     mavlink.Sender      `json:"sender"`
	ReceivedAt time.Time           `json:"received_at"`
}

type CommandResult struct {
	Command    mavlink.MavCmd    `json:"command"`
	Result     mavlink.MavResult `json:"result"`
	Progress   uint8             `json:"progress"`
	Sender     mavlink.Sender    `json:"sender"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Snapshot is the latest known value of every group. Values are copies:
// consumers may keep them but must not expect them to change.
type Snapshot struct {
	Sequence     uint64         `json:"sequence"`
	GeneratedAt  time.Time      `json:"generated_at"`
	SystemStatus SystemStatus   `json:"system_status"`
	GPS          GPS            `json:"gps"`
	Position     Position       `json:"position"`
	Attitude     Attitude       `json:"attitude"`
	Battery      Battery        `json:"battery"`
	Altitude     Altitude       `json:"altitude"`
	Velocity     Velocity       `json:"velocity"`
	StatusTexts  []StatusLine   `json:"status_texts,omitempty"`
	LastAck      *CommandResult `json:"last_ack,omitempty"`
}

// Freshness returns the freshness of g.
func (s Snapshot) Freshness(g Group) Freshness {
	if f := s.freshness(g); f != nil {
		return *f
	}

	return Freshness{}
}

func (s *Snapshot) freshness(g Group) *Freshness {
	switch g {
	case GroupSystemStatus:
		return &s.SystemStatus.Freshness
	case GroupGPS:
		return &s.GPS.Freshness
	case GroupPosition:
		return &s.Position.Freshness
	case GroupAttitude:
		return &s.Attitude.Freshness
	case GroupBattery:
		return &s.Battery.Freshness
	case GroupAltitude:
		return &s.Altitude.Freshness
	case GroupVelocity:
		return &s.Velocity.Freshness
	default:
		return nil
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.Battery.Cells = slices.Clone(s.Battery.Cells)
	s.StatusTexts = slices.Clone(s.StatusTexts)
	if s.LastAck != nil {
		ack := *s.LastAck
		s.LastAck = &ack
	}

	return s
}

// Update is what subscribers of the snapshot topic receive.
type Update struct {
	Snapshot Snapshot        `json:"snapshot"`
	Stats    link.Statistics `json:"stats"`
}
