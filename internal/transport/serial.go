package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultSerialBaud        = 57600
	defaultSerialReadTimeout = 300 * time.Millisecond
	defaultSerialReadBuffer  = 1024
)

// SerialTransport reads a telemetry radio or flight controller USB port,
// 8N1 at the configured baud rate.
type SerialTransport struct {
	portName string
	baudRate int

	mu      sync.Mutex
	port    serial.Port
	writeMu sync.Mutex
	buffer  []byte
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	if baudRate == 0 {
		baudRate = DefaultSerialBaud
	}

	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

func (t *SerialTransport) Name() string {
	return "serial"
}

func (t *SerialTransport) StatusTarget() string {
	return fmt.Sprintf("%s@%d", t.portName, t.baudRate)
}

// ListSerialPorts enumerates the serial devices of this machine.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, Classify("list serial ports", err)
	}

	return ports, nil
}

func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := transportLogger("serial", t.portName, "baud", t.baudRate)
	if t.port != nil {
		logger.Debug("connect skipped: already open")

		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.portName == "" {
		return newError(KindAddressInvalid, "open serial", errors.New("serial port is empty"))
	}
	if t.baudRate <= 0 {
		return newError(KindAddressInvalid, "open serial", fmt.Errorf("invalid serial baud rate: %d", t.baudRate))
	}

	port, err := serial.Open(t.portName, &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		logger.Warn("open failed", "error", err)

		return Classify(fmt.Sprintf("open serial %q", t.portName), err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()

		return Classify("set serial read timeout", err)
	}
	t.port = port
	if t.buffer == nil {
		t.buffer = make([]byte, defaultSerialReadBuffer)
	}
	logger.Info("opened")

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	transportLogger("serial", t.portName).Info("closed")

	return Classify("close serial", err)
}

// ReadChunk returns the bytes of one read. The port's read timeout surfaces
// as ErrReadTimeout.
func (t *SerialTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	port, err := t.currentPort("read serial")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := port.Read(t.buffer)
	if n > 0 {
		return append([]byte(nil), t.buffer[:n]...), nil
	}
	if err != nil {
		return nil, Classify("read serial", err)
	}

	return nil, ErrReadTimeout
}

func (t *SerialTransport) Write(ctx context.Context, p []byte) error {
	port, err := t.currentPort("write serial")
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeFull(ctx, port, p); err != nil {
		return Classify("write serial", err)
	}

	return nil
}

func (t *SerialTransport) currentPort(op string) (serial.Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, newError(KindClosed, op, errNotConnected)
	}

	return t.port, nil
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		written += n
	}

	return nil
}
