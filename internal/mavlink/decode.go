package mavlink

import (
	"errors"
	"fmt"
)

// Message is a decoded payload. The set of implementations is closed: only
// the message types of this package satisfy it.
type Message interface {
	MessageID() uint32
	MessageName() string
	marshalPayload() []byte
}

// DecodeErrorKind distinguishes the recoverable decode failures.
type DecodeErrorKind int

const (
	UnknownMessageID DecodeErrorKind = iota + 1
	PayloadLengthMismatch
)

func (k DecodeErrorKind) String() string {
	switch k {
	case UnknownMessageID:
		return "unknown message id"
	case PayloadLengthMismatch:
		return "payload length mismatch"
	default:
		return "decode error"
	}
}

var (
	ErrUnknownMessageID      = errors.New("mavlink: unknown message id")
	ErrPayloadLengthMismatch = errors.New("mavlink: payload length mismatch")
)

// DecodeError reports a frame whose payload could not be turned into a
// Message. It is never fatal for the stream.
type DecodeError struct {
	Kind      DecodeErrorKind
	MessageID uint32
	Version   Version
	Length    int
}

func (e *DecodeError) Error() string {
	if e.Kind == PayloadLengthMismatch {
		return fmt.Sprintf("mavlink: %s for message %d (%s, %d bytes)", e.Kind, e.MessageID, e.Version, e.Length)
	}

	return fmt.Sprintf("mavlink: %s %d", e.Kind, e.MessageID)
}

func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrUnknownMessageID:
		return e.Kind == UnknownMessageID
	case ErrPayloadLengthMismatch:
		return e.Kind == PayloadLengthMismatch
	default:
		return false
	}
}

type messageDef struct {
	name   string
	minLen int
	maxLen int
	decode func(p []byte) Message
}

var messageDefs = map[uint32]messageDef{
	MsgIDHeartbeat:         {name: "HEARTBEAT", minLen: 9, maxLen: 9, decode: decodeHeartbeat},
	MsgIDSysStatus:         {name: "SYS_STATUS", minLen: 31, maxLen: 43, decode: decodeSysStatus},
	MsgIDSetMode:           {name: "SET_MODE", minLen: 6, maxLen: 6, decode: decodeSetMode},
	MsgIDGPSRawInt:         {name: "GPS_RAW_INT", minLen: 30, maxLen: 52, decode: decodeGPSRawInt},
	MsgIDAttitude:          {name: "ATTITUDE", minLen: 28, maxLen: 28, decode: decodeAttitude},
	MsgIDLocalPositionNED:  {name: "LOCAL_POSITION_NED", minLen: 28, maxLen: 28, decode: decodeLocalPositionNED},
	MsgIDGlobalPositionInt: {name: "GLOBAL_POSITION_INT", minLen: 28, maxLen: 28, decode: decodeGlobalPositionInt},
	MsgIDRequestDataStream: {name: "REQUEST_DATA_STREAM", minLen: 6, maxLen: 6, decode: decodeRequestDataStream},
	MsgIDVFRHUD:            {name: "VFR_HUD", minLen: 20, maxLen: 20, decode: decodeVFRHUD},
	MsgIDCommandLong:       {name: "COMMAND_LONG", minLen: 33, maxLen: 33, decode: decodeCommandLong},
	MsgIDCommandAck:        {name: "COMMAND_ACK", minLen: 3, maxLen: 10, decode: decodeCommandAck},
	MsgIDAltitude:          {name: "ALTITUDE", minLen: 32, maxLen: 32, decode: decodeAltitude},
	MsgIDBatteryStatus:     {name: "BATTERY_STATUS", minLen: 36, maxLen: 54, decode: decodeBatteryStatus},
	MsgIDStatusText:        {name: "STATUSTEXT", minLen: 51, maxLen: 54, decode: decodeStatusText},
}

// Supported reports whether Decode knows the layout of a message id.
func Supported(id uint32) bool {
	_, ok := messageDefs[id]

	return ok
}

// MessageName returns the dialect name for a supported id.
func MessageName(id uint32) string {
	if def, ok := messageDefs[id]; ok {
		return def.name
	}

	return fmt.Sprintf("MSG_%d", id)
}

// Decode maps a validated frame onto its typed message. v1 payloads must
// carry at least the base fields; v2 payloads may be truncated and are
// zero-extended. Neither may exceed the extended length.
func Decode(f Frame) (Message, error) {
	def, ok := messageDefs[f.MessageID]
	if !ok {
		return nil, &DecodeError{Kind: UnknownMessageID, MessageID: f.MessageID, Version: f.Version, Length: len(f.Payload)}
	}

	n := len(f.Payload)
	if n > def.maxLen || (f.Version == V1 && n < def.minLen) {
		return nil, &DecodeError{Kind: PayloadLengthMismatch, MessageID: f.MessageID, Version: f.Version, Length: n}
	}

	p := make([]byte, def.maxLen)
	copy(p, f.Payload)

	return def.decode(p), nil
}

func payloadFor(msg Message, version Version) ([]byte, error) {
	def, ok := messageDefs[msg.MessageID()]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageID, msg.MessageID())
	}
	full := msg.marshalPayload()
	if version == V1 {
		return full[:def.minLen], nil
	}

	// v2 drops trailing zero bytes but always keeps the first one.
	end := len(full)
	for end > 1 && full[end-1] == 0 {
		end--
	}

	return full[:end], nil
}
