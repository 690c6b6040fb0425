package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/skobkin/groundlink/internal/mavlink"
)

func readUntilData(t *testing.T, tr Transport) []byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for chunk, err := range Chunks(ctx, tr) {
		if err != nil {
			t.Fatalf("read: %v", err)
		}

		return chunk
	}
	t.Fatal("sequence ended without data")

	return nil
}

func TestUDPReceivesHeartbeatAndLearnsPeer(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0", "")
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if err := tr.Write(context.Background(), []byte{1}); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected would-block before a peer is known, got %v", err)
	}

	vehicle, err := net.DialUDP("udp", nil, tr.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = vehicle.Close() }()

	raw, err := mavlink.NewEncoder(mavlink.V2, 1, 1).Encode(mavlink.Heartbeat{Type: mavlink.MavTypeQuadrotor, MavlinkVersion: 3})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := vehicle.Write(raw); err != nil {
		t.Fatalf("send: %v", err)
	}

	chunk := readUntilData(t, tr)
	frames := mavlink.NewParser().Feed(chunk)
	if len(frames) != 1 || frames[0].MessageID != mavlink.MsgIDHeartbeat {
		t.Fatalf("expected one heartbeat frame, got %+v", frames)
	}
	if tr.Peer() == nil || tr.Peer().String() != vehicle.LocalAddr().String() {
		t.Fatalf("expected peer %s, got %v", vehicle.LocalAddr(), tr.Peer())
	}

	if err := tr.Write(context.Background(), []byte("pong")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	_ = vehicle.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := vehicle.Read(buf)
	if err != nil {
		t.Fatalf("vehicle read: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("pong")) {
		t.Fatalf("unexpected reply %q", buf[:n])
	}
}

func TestUDPReadTimesOutWithoutTraffic(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0", "")
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if _, err := tr.ReadChunk(context.Background()); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func TestUDPFixedRemote(t *testing.T) {
	vehicle, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = vehicle.Close() }()

	tr := NewUDPTransport("127.0.0.1:0", vehicle.LocalAddr().String())
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if err := tr.Write(context.Background(), []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 8)
	_ = vehicle.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := vehicle.ReadFromUDP(buf)
	if err != nil || string(buf[:n]) != "hi" {
		t.Fatalf("unexpected datagram %q, err %v", buf[:n], err)
	}
}

func TestUDPInvalidAddress(t *testing.T) {
	tr := NewUDPTransport("not an address", "")
	if err := tr.Connect(context.Background()); !errors.Is(err, ErrAddressInvalid) {
		t.Fatalf("expected address invalid, got %v", err)
	}
}

func TestUDPAddressInUse(t *testing.T) {
	first := NewUDPTransport("127.0.0.1:0", "")
	if err := first.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = first.Close() }()

	second := NewUDPTransport(first.LocalAddr().String(), "")
	if err := second.Connect(context.Background()); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected device busy, got %v", err)
	}
}

func TestUDPReadAfterCloseIsClosed(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0", "")
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := tr.ReadChunk(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}
