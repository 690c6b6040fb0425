package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/logging"
	"github.com/skobkin/groundlink/internal/mavlink"
	"github.com/skobkin/groundlink/internal/persistence"
	"github.com/skobkin/groundlink/internal/platform"
)

func freeUDPPort(t *testing.T) int {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probe udp port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	_ = conn.Close()

	return port
}

func waitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testRuntimeConfig(t *testing.T, port int) (Paths, config.AppConfig) {
	t.Helper()

	dir := t.TempDir()
	paths := pathsIn(dir, filepath.Join(dir, ConfigFilename))

	cfg := config.Default()
	cfg.Connection.Connector = config.ConnectorUDP
	cfg.Connection.Host = "127.0.0.1"
	cfg.Connection.Port = port
	cfg.Link.RequestStreams = true
	cfg.Link.StreamRateHz = 10
	cfg.Recorder.Enabled = true

	return paths, cfg
}

func TestRuntimeUDPHeartbeatReachesStreaming(t *testing.T) {
	port := freeUDPPort(t)
	paths, cfg := testRuntimeConfig(t, port)

	var logs bytes.Buffer
	rt, err := InitializeWithConfig(context.Background(), paths, cfg, logging.NewManagerWithWriter(&logs))
	if err != nil {
		t.Fatalf("initialize runtime: %v", err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = rt.Close()
		}
	}()

	waitUntil(t, 2*time.Second, "udp bind", func() bool {
		status, known := rt.CurrentConnStatus()
		return known && status.State.Linked()
	})

	vehicle, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial runtime: %v", err)
	}
	defer vehicle.Close()

	enc := mavlink.NewEncoder(mavlink.V2, 1, 1)
	heartbeat, err := enc.Encode(mavlink.Heartbeat{
		Type:           mavlink.MavTypeQuadrotor,
		Autopilot:      mavlink.MavAutopilotArduPilot,
		BaseMode:       mavlink.MavModeFlagCustomModeEnabled | mavlink.MavModeFlagSafetyArmed,
		SystemStatus:   mavlink.MavStateActive,
		MavlinkVersion: 3,
	})
	if err != nil {
		t.Fatalf("encode heartbeat: %v", err)
	}

	waitUntil(t, 3*time.Second, "streaming", func() bool {
		if _, err := vehicle.Write(heartbeat); err != nil {
			t.Fatalf("send heartbeat: %v", err)
		}
		status, _ := rt.CurrentConnStatus()
		return status.State == connectors.ConnectionStateStreaming
	})

	waitUntil(t, time.Second, "system status in snapshot", func() bool {
		snap := rt.Telemetry.Last().Snapshot
		return snap.SystemStatus.Received && snap.SystemStatus.Armed
	})
	if got := rt.Telemetry.Last().Snapshot.SystemStatus.Vehicle; got.SystemID != 1 {
		t.Fatalf("expected vehicle sysid 1, got %d", got.SystemID)
	}

	// The runtime answers the first heartbeat with stream requests.
	parser := mavlink.NewParser()
	buf := make([]byte, 2048)
	gotRequest := false
	deadline := time.Now().Add(2 * time.Second)
	for !gotRequest && time.Now().Before(deadline) {
		_ = vehicle.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := vehicle.Read(buf)
		if err != nil {
			continue
		}
		for _, f := range parser.Feed(buf[:n]) {
			if f.MessageID != mavlink.MsgIDRequestDataStream {
				continue
			}
			msg, err := mavlink.Decode(f)
			if err != nil {
				t.Fatalf("decode request: %v", err)
			}
			req := msg.(mavlink.RequestDataStream)
			if req.TargetSystem != 1 || req.RateHz != 10 || !req.Start {
				t.Fatalf("unexpected stream request: %+v", req)
			}
			if f.SystemID != 255 || f.ComponentID != 190 {
				t.Fatalf("unexpected request sender %d/%d", f.SystemID, f.ComponentID)
			}
			gotRequest = true
		}
	}
	if !gotRequest {
		t.Fatal("vehicle did not receive REQUEST_DATA_STREAM")
	}

	if err := rt.Close(); err != nil {
		t.Fatalf("close runtime: %v", err)
	}
	closed = true

	db, err := persistence.Open(context.Background(), paths.DBFile)
	if err != nil {
		t.Fatalf("reopen recorder: %v", err)
	}
	defer db.Close()

	events, err := persistence.NewLinkEventRepo(db).ListRecent(context.Background(), 50)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	sawStreaming := false
	for _, e := range events {
		if e.Kind == persistence.EventKindState && e.State == string(connectors.ConnectionStateStreaming) {
			sawStreaming = true
		}
	}
	if !sawStreaming {
		t.Fatalf("expected a streaming state event, got %+v", events)
	}
}

func TestRuntimeRejectsInvalidConfig(t *testing.T) {
	paths, cfg := testRuntimeConfig(t, 14550)
	cfg.Connection.Connector = config.ConnectorSerial
	cfg.Connection.SerialPort = ""

	rt, err := InitializeWithConfig(context.Background(), paths, cfg, logging.NewManagerWithWriter(&bytes.Buffer{}))
	if err == nil {
		_ = rt.Close()
		t.Fatal("expected validation error for serial connector without port")
	}
}

func TestRuntimeSaveAndApplyConfigSwitchesConnection(t *testing.T) {
	paths, cfg := testRuntimeConfig(t, freeUDPPort(t))
	cfg.Recorder.Enabled = false

	rt, err := InitializeWithConfig(context.Background(), paths, cfg, logging.NewManagerWithWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("initialize runtime: %v", err)
	}
	defer rt.Close()

	next := rt.CurrentConfig()
	next.Connection = config.ConnectionConfig{Connector: config.ConnectorSim}
	if err := rt.SaveAndApplyConfig(next); err != nil {
		t.Fatalf("save and apply: %v", err)
	}
	if rt.ConnectionTransport.Name() != "sim" {
		t.Fatalf("expected sim transport after apply, got %q", rt.ConnectionTransport.Name())
	}

	loaded, err := config.Load(paths.ConfigFile)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if loaded.Connection.Connector != config.ConnectorSim {
		t.Fatalf("expected saved sim connector, got %q", loaded.Connection.Connector)
	}

	// The simulated vehicle heartbeats once a second.
	waitUntil(t, 8*time.Second, "streaming over sim", func() bool {
		status, _ := rt.CurrentConnStatus()
		return status.State == connectors.ConnectionStateStreaming && status.TransportName == "sim"
	})

	if err := rt.ClearDatabase(); err == nil {
		t.Fatal("expected error clearing a database that was never opened")
	}
}

func TestRuntimeRefusesEndpointHeldByAnotherRuntime(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	port := freeUDPPort(t)
	paths, cfg := testRuntimeConfig(t, port)
	cfg.Recorder.Enabled = false

	first, err := InitializeWithConfig(context.Background(), paths, cfg, logging.NewManagerWithWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("initialize first runtime: %v", err)
	}

	second, err := InitializeWithConfig(context.Background(), paths, cfg, logging.NewManagerWithWriter(&bytes.Buffer{}))
	if !errors.Is(err, platform.ErrLinkInUse) {
		if second != nil {
			_ = second.Close()
		}
		_ = first.Close()
		t.Fatalf("expected %v, got %v", platform.ErrLinkInUse, err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("close first runtime: %v", err)
	}
	third, err := InitializeWithConfig(context.Background(), paths, cfg, logging.NewManagerWithWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("endpoint must be free after close: %v", err)
	}
	if err := third.Close(); err != nil {
		t.Fatalf("close third runtime: %v", err)
	}
}
