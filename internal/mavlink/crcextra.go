package mavlink

// crcExtras holds the published per-message CRC-extra constants of the common
// dialect. Frames for ids outside this table cannot be validated and are
// dropped by the parser.
var crcExtras = map[uint32]byte{
	0:   50,  // HEARTBEAT
	1:   124, // SYS_STATUS
	2:   137, // SYSTEM_TIME
	4:   237, // PING
	5:   217, // CHANGE_OPERATOR_CONTROL
	6:   104, // CHANGE_OPERATOR_CONTROL_ACK
	7:   119, // AUTH_KEY
	11:  89,  // SET_MODE
	20:  214, // PARAM_REQUEST_READ
	21:  159, // PARAM_REQUEST_LIST
	22:  220, // PARAM_VALUE
	23:  168, // PARAM_SET
	24:  24,  // GPS_RAW_INT
	25:  23,  // GPS_STATUS
	26:  170, // SCALED_IMU
	27:  144, // RAW_IMU
	28:  67,  // RAW_PRESSURE
	29:  115, // SCALED_PRESSURE
	30:  39,  // ATTITUDE
	31:  246, // ATTITUDE_QUATERNION
	32:  185, // LOCAL_POSITION_NED
	33:  104, // GLOBAL_POSITION_INT
	34:  237, // RC_CHANNELS_SCALED
	35:  244, // RC_CHANNELS_RAW
	36:  222, // SERVO_OUTPUT_RAW
	37:  212, // MISSION_REQUEST_PARTIAL_LIST
	38:  9,   // MISSION_WRITE_PARTIAL_LIST
	39:  254, // MISSION_ITEM
	40:  230, // MISSION_REQUEST
	41:  28,  // MISSION_SET_CURRENT
	42:  28,  // MISSION_CURRENT
	43:  132, // MISSION_REQUEST_LIST
	44:  221, // MISSION_COUNT
	45:  232, // MISSION_CLEAR_ALL
	46:  11,  // MISSION_ITEM_REACHED
	47:  153, // MISSION_ACK
	48:  41,  // SET_GPS_GLOBAL_ORIGIN
	49:  39,  // GPS_GLOBAL_ORIGIN
	62:  183, // NAV_CONTROLLER_OUTPUT
	65:  118, // RC_CHANNELS
	66:  148, // REQUEST_DATA_STREAM
	69:  243, // MANUAL_CONTROL
	73:  38,  // MISSION_ITEM_INT
	74:  20,  // VFR_HUD
	75:  158, // COMMAND_INT
	76:  152, // COMMAND_LONG
	77:  143, // COMMAND_ACK
	87:  150, // POSITION_TARGET_GLOBAL_INT
	111: 34,  // TIMESYNC
	116: 76,  // SCALED_IMU2
	125: 203, // POWER_STATUS
	141: 47,  // ALTITUDE
	147: 154, // BATTERY_STATUS
	148: 178, // AUTOPILOT_VERSION
	230: 163, // ESTIMATOR_STATUS
	241: 90,  // VIBRATION
	242: 104, // HOME_POSITION
	245: 130, // EXTENDED_SYS_STATE
	253: 83,  // STATUSTEXT
}

// CRCExtra returns the CRC-extra constant for a message id.
func CRCExtra(id uint32) (byte, bool) {
	extra, ok := crcExtras[id]

	return extra, ok
}
