package mavlink

import "testing"

func ptr[T any](v T) *T {
	return &v
}

func sampleMessages() []Message {
	cells := []float64{4.2, 4.15, 4.1}
	var total float64
	for _, v := range cells {
		total += v
	}

	return []Message{
		Heartbeat{
			Type:           MavTypeQuadrotor,
			Autopilot:      MavAutopilotArduPilot,
			BaseMode:       MavModeFlagCustomModeEnabled | MavModeFlagSafetyArmed,
			CustomMode:     4,
			SystemStatus:   MavStateActive,
			MavlinkVersion: 3,
		},
		SysStatus{
			SensorsPresent:   SensorGyro3D | SensorAccel3D | SensorGPS,
			SensorsEnabled:   SensorGyro3D | SensorAccel3D | SensorGPS,
			SensorsHealth:    SensorGyro3D | SensorAccel3D,
			Load:             45.6,
			BatteryVoltage:   ptr(12.6),
			BatteryCurrent:   ptr(-1.5),
			BatteryRemaining: ptr(int8(76)),
			DropRateComm:     1.25,
			ErrorsComm:       3,
			ErrorsCount:      [4]uint16{1, 2, 3, 4},
		},
		GPSRawInt{
			TimeUsec:           1_700_000_000_000,
			FixType:            GPSFixType3D,
			Latitude:           47.3977419,
			Longitude:          8.5455938,
			Altitude:           488.123,
			EPH:                ptr(1.21),
			EPV:                ptr(1.8),
			Velocity:           ptr(12.34),
			CourseOverGround:   ptr(271.35),
			SatellitesVisible:  ptr(uint8(14)),
			AltitudeEllipsoid:  535.5,
			HorizontalAccuracy: 0.5,
			VerticalAccuracy:   0.75,
			SpeedAccuracy:      0.2,
			HeadingAccuracy:    1.5,
			Yaw:                ptr(90.5),
		},
		Attitude{TimeBootMs:         123456, Roll: 0.1, Pitch: -0.2, Yaw: 3.1, RollSpeed: 0.01, PitchSpeed: -0.02, YawSpeed: 0.5},
		LocalPositionNED{TimeBootMs: 99, X: 1.5, Y: -2.25, Z: -10, VX: 0.5, VY: 0.25, VZ: -1},
		GlobalPositionInt{
			TimeBootMs:       5000,
			Latitude:         -33.8688197,
			Longitude:        151.2092955,
			Altitude:         120.5,
			RelativeAltitude: 35.25,
			VX:               -1.23,
			VY:               4.56,
			VZ:               0.07,
			Heading:          ptr(181.5),
		},
		VFRHUD{Airspeed:   14.5, Groundspeed: 13.25, Altitude: 120.5, Climb: -0.5, Heading: 181, Throttle: 55},
		Altitude{TimeUsec: 42, Monotonic: 100.5, AMSL: 500.25, Local: 10, Relative: 35.5, Terrain: 20, BottomClearance: 15.5},
		BatteryStatus{
			ID:              1,
			Function:        1,
			Type:            3,
			Temperature:     ptr(31.5),
			Cells:           cells,
			Voltage:         total,
			Current:         ptr(8.75),
			CurrentConsumed: 1200,
			EnergyConsumed:  -1,
			Remaining:       ptr(int8(64)),
			TimeRemaining:   900,
			ChargeState:     1,
		},
		CommandLong{TargetSystem:       1, TargetComponent: 1, Command: MavCmdComponentArmDisarm, Params: [7]float32{1}},
		CommandAck{Command:             MavCmdComponentArmDisarm, Result: MavResultAccepted, Progress: 100, TargetSystem: 255, TargetComponent: 190},
		SetMode{TargetSystem:           1, BaseMode: MavModeFlagCustomModeEnabled, CustomMode: 6},
		RequestDataStream{TargetSystem: 1, TargetComponent: 1, StreamID: 0, RateHz: 4, Start: true},
		StatusText{Severity:            MavSeverityWarning, Text: "PreArm: Compass not calibrated", ID: 7, ChunkSeq: 0},
	}
}

func mustEncode(t *testing.T, enc *Encoder, msg Message) []byte {
	t.Helper()

	raw, err := enc.Encode(msg)
	if err != nil {
		t.Fatalf("encode %s: %v", msg.MessageName(), err)
	}

	return raw
}
