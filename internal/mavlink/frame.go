package mavlink

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version identifies the wire protocol revision of a frame.
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("v?(%d)", uint8(v))
	}
}

const (
	MagicV1 byte = 0xFE
	MagicV2 byte = 0xFD

	headerLenV1  = 6
	headerLenV2  = 10
	checksumLen  = 2
	SignatureLen = 13

	// IncompatFlagSigned marks a v2 frame that carries a trailing signature.
	IncompatFlagSigned uint8 = 0x01

	MaxPayloadLen  = 255
	maxMessageIDV1 = 0xFF
	maxMessageIDV2 = 0xFFFFFF
)

var (
	ErrPayloadTooLarge     = errors.New("mavlink: payload exceeds 255 bytes")
	ErrMessageIDOutOfRange = errors.New("mavlink: message id does not fit frame version")
	ErrUnknownCRCExtra     = errors.New("mavlink: no crc-extra for message id")
	ErrUnsupportedVersion  = errors.New("mavlink: unsupported frame version")
	ErrBadSignatureLength  = errors.New("mavlink: signature must be 13 bytes")
)

// Frame is one checksummed protocol unit as it appeared on the wire.
type Frame struct {
	Version       Version
	IncompatFlags uint8
	CompatFlags   uint8
	Sequence      uint8
	SystemID      uint8
	ComponentID   uint8
	MessageID     uint32
	Payload       []byte
	Checksum      uint16
	Signature     []byte
}

// Signed reports whether the frame carried a signature block.
func (f Frame) Signed() bool {
	return f.Version == V2 && f.IncompatFlags&IncompatFlagSigned != 0
}

// Sender identifies the system/component pair that produced a frame.
type Sender struct {
	SystemID    uint8 `json:"sysid"`
	ComponentID uint8 `json:"compid"`
}

func (f Frame) Sender() Sender {
	return Sender{SystemID: f.SystemID, ComponentID: f.ComponentID}
}

func headerLen(magic byte) int {
	if magic == MagicV2 {
		return headerLenV2
	}

	return headerLenV1
}

func isMagic(b byte) bool {
	return b == MagicV1 || b == MagicV2
}

// MarshalFrame serializes f and fills in its checksum. The payload is written
// as-is; v2 truncation is the caller's concern (see Encoder).
func MarshalFrame(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d", ErrPayloadTooLarge, len(f.Payload))
	}
	extra, ok := CRCExtra(f.MessageID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCRCExtra, f.MessageID)
	}

	var header []byte
	switch f.Version {
	case V1:
		if f.MessageID > maxMessageIDV1 {
			return nil, fmt.Errorf("%w: %d in %s", ErrMessageIDOutOfRange, f.MessageID, f.Version)
		}
		header = []byte{
			MagicV1,
			byte(len(f.Payload)),
			f.Sequence,
			f.SystemID,
			f.ComponentID,
			byte(f.MessageID),
		}
	case V2:
		if f.MessageID > maxMessageIDV2 {
			return nil, fmt.Errorf("%w: %d in %s", ErrMessageIDOutOfRange, f.MessageID, f.Version)
		}
		if f.IncompatFlags&IncompatFlagSigned != 0 && len(f.Signature) != SignatureLen {
			return nil, ErrBadSignatureLength
		}
		header = []byte{
			MagicV2,
			byte(len(f.Payload)),
			f.IncompatFlags,
			f.CompatFlags,
			f.Sequence,
			f.SystemID,
			f.ComponentID,
			byte(f.MessageID),
			byte(f.MessageID >> 8),
			byte(f.MessageID >> 16),
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}

	out := make([]byte, 0, len(header)+len(f.Payload)+checksumLen+len(f.Signature))
	out = append(out, header...)
	out = append(out, f.Payload...)
	crc := Checksum(header[1:], f.Payload, extra)
	out = binary.LittleEndian.AppendUint16(out, crc)
	if f.Signed() {
		out = append(out, f.Signature...)
	}

	return out, nil
}
