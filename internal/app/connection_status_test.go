package app

import (
	"testing"

	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/connectors"
)

func TestTransportNameFromConnector(t *testing.T) {
	tests := []struct {
		name      string
		connector config.ConnectorType
		want      string
	}{
		{name: "udp", connector: config.ConnectorUDP, want: "udp"},
		{name: "tcp", connector: config.ConnectorTCP, want: "tcp"},
		{name: "serial", connector: config.ConnectorSerial, want: "serial"},
		{name: "sim", connector: config.ConnectorSim, want: "sim"},
		{name: "unknown", connector: "custom", want: "custom"},
		{name: "empty", connector: "", want: "unknown"},
	}

	for _, tc := range tests {
		if got := TransportNameFromConnector(tc.connector); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestConnectionTarget(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ConnectionConfig
		want string
	}{
		{name: "udp", cfg: config.ConnectionConfig{Connector: config.ConnectorUDP, Host: "0.0.0.0", Port: 14550}, want: "0.0.0.0:14550"},
		{name: "udp defaults", cfg: config.ConnectionConfig{Connector: config.ConnectorUDP}, want: "0.0.0.0:14550"},
		{name: "tcp", cfg: config.ConnectionConfig{Connector: config.ConnectorTCP, Host: "10.0.0.2"}, want: "10.0.0.2:5760"},
		{name: "tcp ipv6", cfg: config.ConnectionConfig{Connector: config.ConnectorTCP, Host: "::1", Port: 5762}, want: "[::1]:5762"},
		{name: "serial", cfg: config.ConnectionConfig{Connector: config.ConnectorSerial, SerialPort: "/dev/ttyACM0", SerialBaud: 115200}, want: "/dev/ttyACM0"},
		{name: "sim", cfg: config.ConnectionConfig{Connector: config.ConnectorSim}, want: "simulated vehicle"},
		{name: "unknown", cfg: config.ConnectionConfig{Connector: "custom"}, want: ""},
	}

	for _, tc := range tests {
		if got := ConnectionTarget(tc.cfg); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestConnectionStatusFromConfig(t *testing.T) {
	status := ConnectionStatusFromConfig(config.ConnectionConfig{
		Connector:  config.ConnectorSerial,
		SerialPort: "/dev/ttyACM2",
		SerialBaud: 115200,
	})

	if status.State != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected state, got %q", status.State)
	}
	if status.TransportName != "serial" {
		t.Fatalf("expected serial transport name, got %q", status.TransportName)
	}
	if status.Target != "/dev/ttyACM2" {
		t.Fatalf("expected serial target, got %q", status.Target)
	}
}

func TestLinkEndpoint(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ConnectionConfig
		want string
	}{
		{name: "udp", cfg: config.ConnectionConfig{Connector: config.ConnectorUDP, Host: "0.0.0.0", Port: 14550}, want: "udp:0.0.0.0:14550"},
		{name: "tcp server", cfg: config.ConnectionConfig{Connector: config.ConnectorTCP, TCPRole: config.TCPRoleServer, Host: "0.0.0.0", Port: 5760}, want: "tcp:0.0.0.0:5760"},
		{name: "tcp client", cfg: config.ConnectionConfig{Connector: config.ConnectorTCP, TCPRole: config.TCPRoleClient, Host: "10.0.0.2", Port: 5760}, want: ""},
		{name: "serial", cfg: config.ConnectionConfig{Connector: config.ConnectorSerial, SerialPort: "/dev/ttyACM0"}, want: "serial:/dev/ttyACM0"},
		{name: "sim", cfg: config.ConnectionConfig{Connector: config.ConnectorSim}, want: ""},
	}

	for _, tc := range tests {
		if got := LinkEndpoint(tc.cfg); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
