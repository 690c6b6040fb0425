package mavlink

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	MsgIDHeartbeat         uint32 = 0
	MsgIDSysStatus         uint32 = 1
	MsgIDSetMode           uint32 = 11
	MsgIDGPSRawInt         uint32 = 24
	MsgIDAttitude          uint32 = 30
	MsgIDLocalPositionNED  uint32 = 32
	MsgIDGlobalPositionInt uint32 = 33
	MsgIDRequestDataStream uint32 = 66
	MsgIDVFRHUD            uint32 = 74
	MsgIDCommandLong       uint32 = 76
	MsgIDCommandAck        uint32 = 77
	MsgIDAltitude          uint32 = 141
	MsgIDBatteryStatus     uint32 = 147
	MsgIDStatusText        uint32 = 253
)

const (
	degE7           = 1e7
	unknownUint16   = math.MaxUint16
	unknownInt16    = math.MaxInt16
	statusTextSize  = 50
	batteryCells    = 10
	batteryExtCells = 4
)

var le = binary.LittleEndian

// Heartbeat announces a system's presence, type and state.
type Heartbeat struct {
	Type           MavType
	Autopilot      MavAutopilot
	BaseMode       MavModeFlag
	CustomMode     uint32
	SystemStatus   MavState
	MavlinkVersion uint8
}

func (Heartbeat) MessageID() uint32   { return MsgIDHeartbeat }
func (Heartbeat) MessageName() string { return "HEARTBEAT" }

func (m Heartbeat) marshalPayload() []byte {
	p := make([]byte, 9)
	le.PutUint32(p[0:], m.CustomMode)
	p[4] = byte(m.Type)
	p[5] = byte(m.Autopilot)
	p[6] = byte(m.BaseMode)
	p[7] = byte(m.SystemStatus)
	p[8] = m.MavlinkVersion

	return p
}

func decodeHeartbeat(p []byte) Message {
	return Heartbeat{
		CustomMode:     le.Uint32(p[0:]),
		Type:           MavType(p[4]),
		Autopilot:      MavAutopilot(p[5]),
		BaseMode:       MavModeFlag(p[6]),
		SystemStatus:   MavState(p[7]),
		MavlinkVersion: p[8],
	}
}

// SysStatus reports onboard sensor health and the primary battery.
// Nil pointers mean the vehicle reported the value as unknown.
type SysStatus struct {
	SensorsPresent         SensorFlags
	SensorsEnabled         SensorFlags
	SensorsHealth          SensorFlags
	Load                   float64 // percent of main loop time
	BatteryVoltage         *float64
	BatteryCurrent         *float64
	BatteryRemaining       *int8
	DropRateComm           float64 // percent
	ErrorsComm             uint16
	ErrorsCount            [4]uint16
	SensorsPresentExtended uint32
	SensorsEnabledExtended uint32
	SensorsHealthExtended  uint32
}

func (SysStatus) MessageID() uint32   { return MsgIDSysStatus }
func (SysStatus) MessageName() string { return "SYS_STATUS" }

func (m SysStatus) marshalPayload() []byte {
	p := make([]byte, 43)
	le.PutUint32(p[0:], uint32(m.SensorsPresent))
	le.PutUint32(p[4:], uint32(m.SensorsEnabled))
	le.PutUint32(p[8:], uint32(m.SensorsHealth))
	le.PutUint16(p[12:], uint16(math.Round(m.Load*10)))
	le.PutUint16(p[14:], scaledUint16OrUnknown(m.BatteryVoltage, 1000))
	le.PutUint16(p[16:], uint16(scaledInt16OrMinusOne(m.BatteryCurrent, 100)))
	le.PutUint16(p[18:], uint16(math.Round(m.DropRateComm*100)))
	le.PutUint16(p[20:], m.ErrorsComm)
	for i, v := range m.ErrorsCount {
		le.PutUint16(p[22+2*i:], v)
	}
	p[30] = byte(int8OrMinusOne(m.BatteryRemaining))
	le.PutUint32(p[31:], m.SensorsPresentExtended)
	le.PutUint32(p[35:], m.SensorsEnabledExtended)
	le.PutUint32(p[39:], m.SensorsHealthExtended)

	return p
}

func decodeSysStatus(p []byte) Message {
	m := SysStatus{
		SensorsPresent:         SensorFlags(le.Uint32(p[0:])),
		SensorsEnabled:         SensorFlags(le.Uint32(p[4:])),
		SensorsHealth:          SensorFlags(le.Uint32(p[8:])),
		Load:                   float64(le.Uint16(p[12:])) / 10,
		BatteryVoltage:         unscaledUint16(le.Uint16(p[14:]), 1000),
		BatteryCurrent:         unscaledInt16(int16(le.Uint16(p[16:])), 100),
		DropRateComm:           float64(le.Uint16(p[18:])) / 100,
		ErrorsComm:             le.Uint16(p[20:]),
		BatteryRemaining:       remaining(int8(p[30])),
		SensorsPresentExtended: le.Uint32(p[31:]),
		SensorsEnabledExtended: le.Uint32(p[35:]),
		SensorsHealthExtended:  le.Uint32(p[39:]),
	}
	for i := range m.ErrorsCount {
		m.ErrorsCount[i] = le.Uint16(p[22+2*i:])
	}

	return m
}

// SetMode asks a system to switch base and custom mode.
type SetMode struct {
	TargetSystem uint8
	BaseMode     MavModeFlag
	CustomMode   uint32
}

func (SetMode) MessageID() uint32   { return MsgIDSetMode }
func (SetMode) MessageName() string { return "SET_MODE" }

func (m SetMode) marshalPayload() []byte {
	p := make([]byte, 6)
	le.PutUint32(p[0:], m.CustomMode)
	p[4] = m.TargetSystem
	p[5] = byte(m.BaseMode)

	return p
}

func decodeSetMode(p []byte) Message {
	return SetMode{
		CustomMode:   le.Uint32(p[0:]),
		TargetSystem: p[4],
		BaseMode:     MavModeFlag(p[5]),
	}
}

// GPSRawInt is the raw GNSS sensor output. Latitude and longitude are in
// degrees, altitudes in metres above MSL or the ellipsoid.
type GPSRawInt struct {
	TimeUsec           uint64
	FixType            GPSFixType
	Latitude           float64
	Longitude          float64
	Altitude           float64
	EPH                *float64 // HDOP
	EPV                *float64 // VDOP
	Velocity           *float64 // m/s over ground
	CourseOverGround   *float64 // degrees
	SatellitesVisible  *uint8
	AltitudeEllipsoid  float64
	HorizontalAccuracy float64  // m
	VerticalAccuracy   float64  // m
	SpeedAccuracy      float64  // m/s
	HeadingAccuracy    float64  // degrees
	Yaw                *float64 // degrees, nil when the receiver has no heading
}

func (GPSRawInt) MessageID() uint32   { return MsgIDGPSRawInt }
func (GPSRawInt) MessageName() string { return "GPS_RAW_INT" }

func (m GPSRawInt) marshalPayload() []byte {
	p := make([]byte, 52)
	le.PutUint64(p[0:], m.TimeUsec)
	le.PutUint32(p[8:], uint32(int32(math.Round(m.Latitude*degE7))))
	le.PutUint32(p[12:], uint32(int32(math.Round(m.Longitude*degE7))))
	le.PutUint32(p[16:], uint32(int32(math.Round(m.Altitude*1000))))
	le.PutUint16(p[20:], scaledUint16OrUnknown(m.EPH, 100))
	le.PutUint16(p[22:], scaledUint16OrUnknown(m.EPV, 100))
	le.PutUint16(p[24:], scaledUint16OrUnknown(m.Velocity, 100))
	le.PutUint16(p[26:], scaledUint16OrUnknown(m.CourseOverGround, 100))
	p[28] = byte(m.FixType)
	p[29] = math.MaxUint8
	if m.SatellitesVisible != nil {
		p[29] = *m.SatellitesVisible
	}
	le.PutUint32(p[30:], uint32(int32(math.Round(m.AltitudeEllipsoid*1000))))
	le.PutUint32(p[34:], uint32(math.Round(m.HorizontalAccuracy*1000)))
	le.PutUint32(p[38:], uint32(math.Round(m.VerticalAccuracy*1000)))
	le.PutUint32(p[42:], uint32(math.Round(m.SpeedAccuracy*1000)))
	le.PutUint32(p[46:], uint32(math.Round(m.HeadingAccuracy*1e5)))
	if m.Yaw != nil {
		yaw := uint16(math.Round(*m.Yaw * 100))
		if yaw == 0 {
			yaw = 36000
		}
		le.PutUint16(p[50:], yaw)
	}

	return p
}

func decodeGPSRawInt(p []byte) Message {
	m := GPSRawInt{
		TimeUsec:           le.Uint64(p[0:]),
		Latitude:           float64(int32(le.Uint32(p[8:]))) / degE7,
		Longitude:          float64(int32(le.Uint32(p[12:]))) / degE7,
		Altitude:           float64(int32(le.Uint32(p[16:]))) / 1000,
		EPH:                unscaledUint16(le.Uint16(p[20:]), 100),
		EPV:                unscaledUint16(le.Uint16(p[22:]), 100),
		Velocity:           unscaledUint16(le.Uint16(p[24:]), 100),
		CourseOverGround:   unscaledUint16(le.Uint16(p[26:]), 100),
		FixType:            GPSFixType(p[28]),
		AltitudeEllipsoid:  float64(int32(le.Uint32(p[30:]))) / 1000,
		HorizontalAccuracy: float64(le.Uint32(p[34:])) / 1000,
		VerticalAccuracy:   float64(le.Uint32(p[38:])) / 1000,
		SpeedAccuracy:      float64(le.Uint32(p[42:])) / 1000,
		HeadingAccuracy:    float64(le.Uint32(p[46:])) / 1e5,
	}
	if sats := p[29]; sats != math.MaxUint8 {
		m.SatellitesVisible = &sats
	}
	if yaw := le.Uint16(p[50:]); yaw != 0 {
		deg := float64(yaw%36000) / 100
		m.Yaw = &deg
	}

	return m
}

// Attitude is the vehicle orientation in radians and body rates in rad/s.
type Attitude struct {
	TimeBootMs uint32
	Roll       float32
	Pitch      float32
	Yaw        float32
	RollSpeed  float32
	PitchSpeed float32
	YawSpeed   float32
}

func (Attitude) MessageID() uint32   { return MsgIDAttitude }
func (Attitude) MessageName() string { return "ATTITUDE" }

func (m Attitude) marshalPayload() []byte {
	p := make([]byte, 28)
	le.PutUint32(p[0:], m.TimeBootMs)
	putFloat32s(p[4:], m.Roll, m.Pitch, m.Yaw, m.RollSpeed, m.PitchSpeed, m.YawSpeed)

	return p
}

func decodeAttitude(p []byte) Message {
	f := float32s(p[4:], 6)

	return Attitude{
		TimeBootMs: le.Uint32(p[0:]),
		Roll:       f[0],
		Pitch:      f[1],
		Yaw:        f[2],
		RollSpeed:  f[3],
		PitchSpeed: f[4],
		YawSpeed:   f[5],
	}
}

// LocalPositionNED is the position and velocity in the local NED frame.
type LocalPositionNED struct {
	TimeBootMs uint32
	X          float32
	Y          float32
	Z          float32
	VX         float32
	VY         float32
	VZ         float32
}

func (LocalPositionNED) MessageID() uint32   { return MsgIDLocalPositionNED }
func (LocalPositionNED) MessageName() string { return "LOCAL_POSITION_NED" }

func (m LocalPositionNED) marshalPayload() []byte {
	p := make([]byte, 28)
	le.PutUint32(p[0:], m.TimeBootMs)
	putFloat32s(p[4:], m.X, m.Y, m.Z, m.VX, m.VY, m.VZ)

	return p
}

func decodeLocalPositionNED(p []byte) Message {
	f := float32s(p[4:], 6)

	return LocalPositionNED{
		TimeBootMs: le.Uint32(p[0:]),
		X:          f[0],
		Y:          f[1],
		Z:          f[2],
		VX:         f[3],
		VY:         f[4],
		VZ:         f[5],
	}
}

// GlobalPositionInt is the fused global position. Altitudes are metres,
// velocities m/s in NED, heading degrees.
type GlobalPositionInt struct {
	TimeBootMs       uint32
	Latitude         float64
	Longitude        float64
	Altitude         float64 // MSL
	RelativeAltitude float64 // above home
	VX               float64
	VY               float64
	VZ               float64
	Heading          *float64
}

func (GlobalPositionInt) MessageID() uint32   { return MsgIDGlobalPositionInt }
func (GlobalPositionInt) MessageName() string { return "GLOBAL_POSITION_INT" }

func (m GlobalPositionInt) marshalPayload() []byte {
	p := make([]byte, 28)
	le.PutUint32(p[0:], m.TimeBootMs)
	le.PutUint32(p[4:], uint32(int32(math.Round(m.Latitude*degE7))))
	le.PutUint32(p[8:], uint32(int32(math.Round(m.Longitude*degE7))))
	le.PutUint32(p[12:], uint32(int32(math.Round(m.Altitude*1000))))
	le.PutUint32(p[16:], uint32(int32(math.Round(m.RelativeAltitude*1000))))
	le.PutUint16(p[20:], uint16(int16(math.Round(m.VX*100))))
	le.PutUint16(p[22:], uint16(int16(math.Round(m.VY*100))))
	le.PutUint16(p[24:], uint16(int16(math.Round(m.VZ*100))))
	le.PutUint16(p[26:], scaledUint16OrUnknown(m.Heading, 100))

	return p
}

func decodeGlobalPositionInt(p []byte) Message {
	return GlobalPositionInt{
		TimeBootMs:       le.Uint32(p[0:]),
		Latitude:         float64(int32(le.Uint32(p[4:]))) / degE7,
		Longitude:        float64(int32(le.Uint32(p[8:]))) / degE7,
		Altitude:         float64(int32(le.Uint32(p[12:]))) / 1000,
		RelativeAltitude: float64(int32(le.Uint32(p[16:]))) / 1000,
		VX:               float64(int16(le.Uint16(p[20:]))) / 100,
		VY:               float64(int16(le.Uint16(p[22:]))) / 100,
		VZ:               float64(int16(le.Uint16(p[24:]))) / 100,
		Heading:          unscaledUint16(le.Uint16(p[26:]), 100),
	}
}

// RequestDataStream is the legacy stream-rate request understood by ArduPilot.
type RequestDataStream struct {
	TargetSystem    uint8
	TargetComponent uint8
	StreamID        uint8
	RateHz          uint16
	Start           bool
}

func (RequestDataStream) MessageID() uint32   { return MsgIDRequestDataStream }
func (RequestDataStream) MessageName() string { return "REQUEST_DATA_STREAM" }

func (m RequestDataStream) marshalPayload() []byte {
	p := make([]byte, 6)
	le.PutUint16(p[0:], m.RateHz)
	p[2] = m.TargetSystem
	p[3] = m.TargetComponent
	p[4] = m.StreamID
	if m.Start {
		p[5] = 1
	}

	return p
}

func decodeRequestDataStream(p []byte) Message {
	return RequestDataStream{
		RateHz:          le.Uint16(p[0:]),
		TargetSystem:    p[2],
		TargetComponent: p[3],
		StreamID:        p[4],
		Start:           p[5] != 0,
	}
}

// VFRHUD carries the values shown on a classic HUD.
type VFRHUD struct {
	Airspeed    float32 // m/s
	Groundspeed float32 // m/s
	Altitude    float32 // m MSL
	Climb       float32 // m/s
	Heading     int16   // degrees
	Throttle    uint16  // percent
}

func (VFRHUD) MessageID() uint32   { return MsgIDVFRHUD }
func (VFRHUD) MessageName() string { return "VFR_HUD" }

func (m VFRHUD) marshalPayload() []byte {
	p := make([]byte, 20)
	putFloat32s(p, m.Airspeed, m.Groundspeed, m.Altitude, m.Climb)
	le.PutUint16(p[16:], uint16(m.Heading))
	le.PutUint16(p[18:], m.Throttle)

	return p
}

func decodeVFRHUD(p []byte) Message {
	f := float32s(p, 4)

	return VFRHUD{
		Airspeed:    f[0],
		Groundspeed: f[1],
		Altitude:    f[2],
		Climb:       f[3],
		Heading:     int16(le.Uint16(p[16:])),
		Throttle:    le.Uint16(p[18:]),
	}
}

// CommandLong sends a MAV_CMD with up to seven float parameters.
type CommandLong struct {
	TargetSystem    uint8
	TargetComponent uint8
	Command         MavCmd
	Confirmation    uint8
	Params          [7]float32
}

func (CommandLong) MessageID() uint32   { return MsgIDCommandLong }
func (CommandLong) MessageName() string { return "COMMAND_LONG" }

func (m CommandLong) marshalPayload() []byte {
	p := make([]byte, 33)
	putFloat32s(p, m.Params[:]...)
	le.PutUint16(p[28:], uint16(m.Command))
	p[30] = m.TargetSystem
	p[31] = m.TargetComponent
	p[32] = m.Confirmation

	return p
}

func decodeCommandLong(p []byte) Message {
	m := CommandLong{
		Command:         MavCmd(le.Uint16(p[28:])),
		TargetSystem:    p[30],
		TargetComponent: p[31],
		Confirmation:    p[32],
	}
	copy(m.Params[:], float32s(p, 7))

	return m
}

// CommandAck is the response to a COMMAND_LONG.
type CommandAck struct {
	Command         MavCmd
	Result          MavResult
	Progress        uint8
	ResultParam2    int32
	TargetSystem    uint8
	TargetComponent uint8
}

func (CommandAck) MessageID() uint32   { return MsgIDCommandAck }
func (CommandAck) MessageName() string { return "COMMAND_ACK" }

func (m CommandAck) marshalPayload() []byte {
	p := make([]byte, 10)
	le.PutUint16(p[0:], uint16(m.Command))
	p[2] = byte(m.Result)
	p[3] = m.Progress
	le.PutUint32(p[4:], uint32(m.ResultParam2))
	p[8] = m.TargetSystem
	p[9] = m.TargetComponent

	return p
}

func decodeCommandAck(p []byte) Message {
	return CommandAck{
		Command:         MavCmd(le.Uint16(p[0:])),
		Result:          MavResult(p[2]),
		Progress:        p[3],
		ResultParam2:    int32(le.Uint32(p[4:])),
		TargetSystem:    p[8],
		TargetComponent: p[9],
	}
}

// Altitude reports the altitude estimates in metres.
type Altitude struct {
	TimeUsec        uint64
	Monotonic       float32
	AMSL            float32
	Local           float32
	Relative        float32
	Terrain         float32
	BottomClearance float32
}

func (Altitude) MessageID() uint32   { return MsgIDAltitude }
func (Altitude) MessageName() string { return "ALTITUDE" }

func (m Altitude) marshalPayload() []byte {
	p := make([]byte, 32)
	le.PutUint64(p[0:], m.TimeUsec)
	putFloat32s(p[8:], m.Monotonic, m.AMSL, m.Local, m.Relative, m.Terrain, m.BottomClearance)

	return p
}

func decodeAltitude(p []byte) Message {
	f := float32s(p[8:], 6)

	return Altitude{
		TimeUsec:        le.Uint64(p[0:]),
		Monotonic:       f[0],
		AMSL:            f[1],
		Local:           f[2],
		Relative:        f[3],
		Terrain:         f[4],
		BottomClearance: f[5],
	}
}

// BatteryStatus describes one battery pack. Cell voltages are in volts;
// Voltage is their sum.
type BatteryStatus struct {
	ID              uint8
	Function        uint8
	Type            uint8
	Temperature     *float64 // °C
	Cells           []float64
	Voltage         float64
	Current         *float64 // A
	CurrentConsumed int32    // mAh, -1 unknown
	EnergyConsumed  int32    // hJ, -1 unknown
	Remaining       *int8    // percent
	TimeRemaining   int32    // s, 0 unknown
	ChargeState     uint8
	Mode            uint8
	FaultBitmask    uint32
}

func (BatteryStatus) MessageID() uint32   { return MsgIDBatteryStatus }
func (BatteryStatus) MessageName() string { return "BATTERY_STATUS" }

func (m BatteryStatus) marshalPayload() []byte {
	p := make([]byte, 54)
	le.PutUint32(p[0:], uint32(m.CurrentConsumed))
	le.PutUint32(p[4:], uint32(m.EnergyConsumed))
	temp := int16(unknownInt16)
	if m.Temperature != nil {
		temp = int16(math.Round(*m.Temperature * 100))
	}
	le.PutUint16(p[8:], uint16(temp))
	for i := range batteryCells {
		v := uint16(unknownUint16)
		if i < len(m.Cells) {
			v = uint16(math.Round(m.Cells[i] * 1000))
		}
		le.PutUint16(p[10+2*i:], v)
	}
	le.PutUint16(p[30:], uint16(scaledInt16OrMinusOne(m.Current, 100)))
	p[32] = m.ID
	p[33] = m.Function
	p[34] = m.Type
	p[35] = byte(int8OrMinusOne(m.Remaining))
	le.PutUint32(p[36:], uint32(m.TimeRemaining))
	p[40] = m.ChargeState
	for i := range batteryExtCells {
		if cell := batteryCells + i; cell < len(m.Cells) {
			le.PutUint16(p[41+2*i:], uint16(math.Round(m.Cells[cell]*1000)))
		}
	}
	p[49] = m.Mode
	le.PutUint32(p[50:], m.FaultBitmask)

	return p
}

func decodeBatteryStatus(p []byte) Message {
	m := BatteryStatus{
		CurrentConsumed: int32(le.Uint32(p[0:])),
		EnergyConsumed:  int32(le.Uint32(p[4:])),
		Current:         unscaledInt16(int16(le.Uint16(p[30:])), 100),
		ID:              p[32],
		Function:        p[33],
		Type:            p[34],
		Remaining:       remaining(int8(p[35])),
		TimeRemaining:   int32(le.Uint32(p[36:])),
		ChargeState:     p[40],
		Mode:            p[49],
		FaultBitmask:    le.Uint32(p[50:]),
	}
	if temp := int16(le.Uint16(p[8:])); temp != unknownInt16 {
		c := float64(temp) / 100
		m.Temperature = &c
	}
	for i := range batteryCells {
		raw := le.Uint16(p[10+2*i:])
		if raw == unknownUint16 {
			break
		}
		m.Cells = append(m.Cells, float64(raw)/1000)
	}
	if len(m.Cells) == batteryCells {
		for i := range batteryExtCells {
			raw := le.Uint16(p[41+2*i:])
			if raw == 0 || raw == unknownUint16 {
				break
			}
			m.Cells = append(m.Cells, float64(raw)/1000)
		}
	}
	for _, v := range m.Cells {
		m.Voltage += v
	}

	return m
}

// StatusText is a human readable message from the vehicle.
type StatusText struct {
	Severity MavSeverity
	Text     string
	ID       uint16
	ChunkSeq uint8
}

func (StatusText) MessageID() uint32   { return MsgIDStatusText }
func (StatusText) MessageName() string { return "STATUSTEXT" }

func (m StatusText) marshalPayload() []byte {
	p := make([]byte, 54)
	p[0] = byte(m.Severity)
	copy(p[1:1+statusTextSize], m.Text)
	le.PutUint16(p[51:], m.ID)
	p[53] = m.ChunkSeq

	return p
}

func decodeStatusText(p []byte) Message {
	text := p[1 : 1+statusTextSize]
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}

	return StatusText{
		Severity: MavSeverity(p[0]),
		Text:     string(text),
		ID:       le.Uint16(p[51:]),
		ChunkSeq: p[53],
	}
}

func putFloat32s(p []byte, values ...float32) {
	for i, v := range values {
		le.PutUint32(p[4*i:], math.Float32bits(v))
	}
}

func float32s(p []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(le.Uint32(p[4*i:]))
	}

	return out
}

func unscaledUint16(raw uint16, scale float64) *float64 {
	if raw == unknownUint16 {
		return nil
	}
	v := float64(raw) / scale

	return &v
}

func scaledUint16OrUnknown(v *float64, scale float64) uint16 {
	if v == nil {
		return unknownUint16
	}

	return uint16(math.Round(*v * scale))
}

func unscaledInt16(raw int16, scale float64) *float64 {
	if raw == -1 {
		return nil
	}
	v := float64(raw) / scale

	return &v
}

func scaledInt16OrMinusOne(v *float64, scale float64) int16 {
	if v == nil {
		return -1
	}

	return int16(math.Round(*v * scale))
}

func remaining(raw int8) *int8 {
	if raw < 0 {
		return nil
	}

	return &raw
}

func int8OrMinusOne(v *int8) int8 {
	if v == nil {
		return -1
	}

	return *v
}
