package mavlink

import (
	"fmt"
	"sync"
)

// EncodeError reports a message that could not be serialized.
type EncodeError struct {
	Message string
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Message, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Encoder turns messages into wire frames for one local system/component,
// stamping a wrapping sequence number. It is safe for concurrent use.
type Encoder struct {
	version     Version
	systemID    uint8
	componentID uint8

	mu  sync.Mutex
	seq uint8
}

func NewEncoder(version Version, systemID, componentID uint8) *Encoder {
	return &Encoder{version: version, systemID: systemID, componentID: componentID}
}

func (e *Encoder) Version() Version {
	return e.version
}

// Frame builds the frame for msg and advances the sequence counter.
func (e *Encoder) Frame(msg Message) (Frame, error) {
	payload, err := payloadFor(msg, e.version)
	if err != nil {
		return Frame{}, &EncodeError{Message: msg.MessageName(), Err: err}
	}

	e.mu.Lock()
	seq := e.seq
	e.seq++
	e.mu.Unlock()

	return Frame{
		Version:     e.version,
		Sequence:    seq,
		SystemID:    e.systemID,
		ComponentID: e.componentID,
		MessageID:   msg.MessageID(),
		Payload:     payload,
	}, nil
}

// Encode returns the wire bytes for msg.
func (e *Encoder) Encode(msg Message) ([]byte, error) {
	f, err := e.Frame(msg)
	if err != nil {
		return nil, err
	}
	raw, err := MarshalFrame(f)
	if err != nil {
		return nil, &EncodeError{Message: msg.MessageName(), Err: err}
	}

	return raw, nil
}
