package mavlink

import "fmt"

// MavType is the vehicle or component type advertised in HEARTBEAT.
type MavType uint8

const (
	MavTypeGeneric            MavType = 0
	MavTypeFixedWing          MavType = 1
	MavTypeQuadrotor          MavType = 2
	MavTypeCoaxial            MavType = 3
	MavTypeHelicopter         MavType = 4
	MavTypeAntennaTracker     MavType = 5
	MavTypeGCS                MavType = 6
	MavTypeAirship            MavType = 7
	MavTypeFreeBalloon        MavType = 8
	MavTypeRocket             MavType = 9
	MavTypeGroundRover        MavType = 10
	MavTypeSurfaceBoat        MavType = 11
	MavTypeSubmarine          MavType = 12
	MavTypeHexarotor          MavType = 13
	MavTypeOctorotor          MavType = 14
	MavTypeTricopter          MavType = 15
	MavTypeFlappingWing       MavType = 16
	MavTypeKite               MavType = 17
	MavTypeOnboardController  MavType = 18
	MavTypeVTOLTailsitterDuo  MavType = 19
	MavTypeVTOLTailsitterQuad MavType = 20
	MavTypeVTOLTiltrotor      MavType = 21
)

var mavTypeNames = map[MavType]string{
	MavTypeGeneric:            "generic",
	MavTypeFixedWing:          "fixed_wing",
	MavTypeQuadrotor:          "quadrotor",
	MavTypeCoaxial:            "coaxial",
	MavTypeHelicopter:         "helicopter",
	MavTypeAntennaTracker:     "antenna_tracker",
	MavTypeGCS:                "gcs",
	MavTypeAirship:            "airship",
	MavTypeFreeBalloon:        "free_balloon",
	MavTypeRocket:             "rocket",
	MavTypeGroundRover:        "ground_rover",
	MavTypeSurfaceBoat:        "surface_boat",
	MavTypeSubmarine:          "submarine",
	MavTypeHexarotor:          "hexarotor",
	MavTypeOctorotor:          "octorotor",
	MavTypeTricopter:          "tricopter",
	MavTypeFlappingWing:       "flapping_wing",
	MavTypeKite:               "kite",
	MavTypeOnboardController:  "onboard_controller",
	MavTypeVTOLTailsitterDuo:  "vtol_tailsitter_duo",
	MavTypeVTOLTailsitterQuad: "vtol_tailsitter_quad",
	MavTypeVTOLTiltrotor:      "vtol_tiltrotor",
}

func (t MavType) String() string {
	return enumName(mavTypeNames, t)
}

// MavAutopilot identifies the autopilot firmware family.
type MavAutopilot uint8

const (
	MavAutopilotGeneric   MavAutopilot = 0
	MavAutopilotSLUGS     MavAutopilot = 2
	MavAutopilotArduPilot MavAutopilot = 3
	MavAutopilotOpenPilot MavAutopilot = 4
	MavAutopilotInvalid   MavAutopilot = 8
	MavAutopilotPX4       MavAutopilot = 12
)

var mavAutopilotNames = map[MavAutopilot]string{
	MavAutopilotGeneric:   "generic",
	MavAutopilotSLUGS:     "slugs",
	MavAutopilotArduPilot: "ardupilot",
	MavAutopilotOpenPilot: "openpilot",
	MavAutopilotInvalid:   "invalid",
	MavAutopilotPX4:       "px4",
}

func (a MavAutopilot) String() string {
	return enumName(mavAutopilotNames, a)
}

// MavModeFlag is the HEARTBEAT base_mode bitmask.
type MavModeFlag uint8

const (
	MavModeFlagCustomModeEnabled  MavModeFlag = 1
	MavModeFlagTestEnabled        MavModeFlag = 2
	MavModeFlagAutoEnabled        MavModeFlag = 4
	MavModeFlagGuidedEnabled      MavModeFlag = 8
	MavModeFlagStabilizeEnabled   MavModeFlag = 16
	MavModeFlagHILEnabled         MavModeFlag = 32
	MavModeFlagManualInputEnabled MavModeFlag = 64
	MavModeFlagSafetyArmed        MavModeFlag = 128
)

func (f MavModeFlag) Has(flag MavModeFlag) bool {
	return f&flag != 0
}

// Armed reports whether the safety-armed bit is set.
func (f MavModeFlag) Armed() bool {
	return f.Has(MavModeFlagSafetyArmed)
}

// MavState is the HEARTBEAT system_status value.
type MavState uint8

const (
	MavStateUninit            MavState = 0
	MavStateBoot              MavState = 1
	MavStateCalibrating       MavState = 2
	MavStateStandby           MavState = 3
	MavStateActive            MavState = 4
	MavStateCritical          MavState = 5
	MavStateEmergency         MavState = 6
	MavStatePoweroff          MavState = 7
	MavStateFlightTermination MavState = 8
)

var mavStateNames = map[MavState]string{
	MavStateUninit:            "uninit",
	MavStateBoot:              "boot",
	MavStateCalibrating:       "calibrating",
	MavStateStandby:           "standby",
	MavStateActive:            "active",
	MavStateCritical:          "critical",
	MavStateEmergency:         "emergency",
	MavStatePoweroff:          "poweroff",
	MavStateFlightTermination: "flight_termination",
}

func (s MavState) String() string {
	return enumName(mavStateNames, s)
}

// GPSFixType is the GPS_RAW_INT fix_type value.
type GPSFixType uint8

const (
	GPSFixTypeNoGPS    GPSFixType = 0
	GPSFixTypeNoFix    GPSFixType = 1
	GPSFixType2D       GPSFixType = 2
	GPSFixType3D       GPSFixType = 3
	GPSFixTypeDGPS     GPSFixType = 4
	GPSFixTypeRTKFloat GPSFixType = 5
	GPSFixTypeRTKFixed GPSFixType = 6
	GPSFixTypeStatic   GPSFixType = 7
	GPSFixTypePPP      GPSFixType = 8
)

var gpsFixTypeNames = map[GPSFixType]string{
	GPSFixTypeNoGPS:    "no_gps",
	GPSFixTypeNoFix:    "no_fix",
	GPSFixType2D:       "2d",
	GPSFixType3D:       "3d",
	GPSFixTypeDGPS:     "dgps",
	GPSFixTypeRTKFloat: "rtk_float",
	GPSFixTypeRTKFixed: "rtk_fixed",
	GPSFixTypeStatic:   "static",
	GPSFixTypePPP:      "ppp",
}

func (t GPSFixType) String() string {
	return enumName(gpsFixTypeNames, t)
}

// MavResult is the COMMAND_ACK result code.
type MavResult uint8

const (
	MavResultAccepted            MavResult = 0
	MavResultTemporarilyRejected MavResult = 1
	MavResultDenied              MavResult = 2
	MavResultUnsupported         MavResult = 3
	MavResultFailed              MavResult = 4
	MavResultInProgress          MavResult = 5
	MavResultCancelled           MavResult = 6
)

var mavResultNames = map[MavResult]string{
	MavResultAccepted:            "accepted",
	MavResultTemporarilyRejected: "temporarily_rejected",
	MavResultDenied:              "denied",
	MavResultUnsupported:         "unsupported",
	MavResultFailed:              "failed",
	MavResultInProgress:          "in_progress",
	MavResultCancelled:           "cancelled",
}

func (r MavResult) String() string {
	return enumName(mavResultNames, r)
}

// MavSeverity is the STATUSTEXT severity, RFC 5424 ordering.
type MavSeverity uint8

const (
	MavSeverityEmergency MavSeverity = 0
	MavSeverityAlert     MavSeverity = 1
	MavSeverityCritical  MavSeverity = 2
	MavSeverityError     MavSeverity = 3
	MavSeverityWarning   MavSeverity = 4
	MavSeverityNotice    MavSeverity = 5
	MavSeverityInfo      MavSeverity = 6
	MavSeverityDebug     MavSeverity = 7
)

var mavSeverityNames = map[MavSeverity]string{
	MavSeverityEmergency: "emergency",
	MavSeverityAlert:     "alert",
	MavSeverityCritical:  "critical",
	MavSeverityError:     "error",
	MavSeverityWarning:   "warning",
	MavSeverityNotice:    "notice",
	MavSeverityInfo:      "info",
	MavSeverityDebug:     "debug",
}

func (s MavSeverity) String() string {
	return enumName(mavSeverityNames, s)
}

// MavCmd is a MAV_CMD identifier carried by COMMAND_LONG and COMMAND_ACK.
type MavCmd uint16

const (
	MavCmdNavReturnToLaunch    MavCmd = 20
	MavCmdNavLand              MavCmd = 21
	MavCmdNavTakeoff           MavCmd = 22
	MavCmdDoSetMode            MavCmd = 176
	MavCmdDoChangeSpeed        MavCmd = 178
	MavCmdDoSetHome            MavCmd = 179
	MavCmdDoReboot             MavCmd = 246
	MavCmdComponentArmDisarm   MavCmd = 400
	MavCmdSetMessageInterval   MavCmd = 511
	MavCmdRequestMessage       MavCmd = 512
	MavCmdRequestAutopilotCaps MavCmd = 520
)

var mavCmdNames = map[MavCmd]string{
	MavCmdNavReturnToLaunch:    "nav_return_to_launch",
	MavCmdNavLand:              "nav_land",
	MavCmdNavTakeoff:           "nav_takeoff",
	MavCmdDoSetMode:            "do_set_mode",
	MavCmdDoChangeSpeed:        "do_change_speed",
	MavCmdDoSetHome:            "do_set_home",
	MavCmdDoReboot:             "preflight_reboot_shutdown",
	MavCmdComponentArmDisarm:   "component_arm_disarm",
	MavCmdSetMessageInterval:   "set_message_interval",
	MavCmdRequestMessage:       "request_message",
	MavCmdRequestAutopilotCaps: "request_autopilot_capabilities",
}

func (c MavCmd) String() string {
	return enumName(mavCmdNames, c)
}

// SensorFlags is the MAV_SYS_STATUS_SENSOR bitmask used by SYS_STATUS.
type SensorFlags uint32

const (
	SensorGyro3D           SensorFlags = 1 << 0
	SensorAccel3D          SensorFlags = 1 << 1
	SensorMag3D            SensorFlags = 1 << 2
	SensorAbsolutePressure SensorFlags = 1 << 3
	SensorGPS              SensorFlags = 1 << 5
	SensorRCReceiver       SensorFlags = 1 << 16
	SensorAHRS             SensorFlags = 1 << 21
	SensorBattery          SensorFlags = 1 << 25
)

func (f SensorFlags) Has(flag SensorFlags) bool {
	return f&flag == flag
}

// Unhealthy returns the sensors that are enabled but not reporting healthy.
func Unhealthy(present, enabled, health SensorFlags) SensorFlags {
	return present & enabled &^ health
}

func enumName[T ~uint8 | ~uint16](names map[T]string, v T) string {
	if name, ok := names[v]; ok {
		return name
	}

	return fmt.Sprintf("unknown(%d)", v)
}
