package connectors

const (
	TopicConnStatus  = "conn.status"
	TopicStatusText  = "mavlink.statustext"
	TopicCommandAck  = "mavlink.command_ack"
	TopicSnapshot    = "telemetry.snapshot"
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
)
