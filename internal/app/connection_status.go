package app

import (
	"net"
	"strconv"
	"strings"

	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/connectors"
)

func TransportNameFromConnector(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorUDP:
		return "udp"
	case config.ConnectorTCP:
		return "tcp"
	case config.ConnectorSerial:
		return "serial"
	case config.ConnectorSim:
		return "sim"
	default:
		if value := strings.TrimSpace(string(connector)); value != "" {
			return value
		}
		return "unknown"
	}
}

// ConnectionTarget renders the configured endpoint the way transports report
// it before a peer is known.
func ConnectionTarget(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorUDP, config.ConnectorTCP:
		return hostPort(cfg)
	case config.ConnectorSerial:
		return strings.TrimSpace(cfg.SerialPort)
	case config.ConnectorSim:
		return "simulated vehicle"
	default:
		return ""
	}
}

func hostPort(cfg config.ConnectionConfig) string {
	host := strings.TrimSpace(cfg.Host)
	port := cfg.Port
	if port == 0 {
		switch cfg.Connector {
		case config.ConnectorUDP:
			port = config.DefaultUDPPort
		case config.ConnectorTCP:
			port = config.DefaultTCPPort
		}
	}
	if host == "" && cfg.Connector == config.ConnectorUDP {
		host = config.DefaultUDPHost
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// LinkEndpoint names the exclusive resource a connection occupies, or ""
// when it occupies none. TCP clients and the simulator can run side by side.
func LinkEndpoint(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorUDP:
		return "udp:" + hostPort(cfg)
	case config.ConnectorTCP:
		if cfg.TCPRole == config.TCPRoleServer {
			return "tcp:" + hostPort(cfg)
		}
		return ""
	case config.ConnectorSerial:
		return "serial:" + strings.TrimSpace(cfg.SerialPort)
	default:
		return ""
	}
}

// ConnectionStatusFromConfig is the status reported before the link manager
// has emitted its first transition.
func ConnectionStatusFromConfig(cfg config.ConnectionConfig) connectors.ConnectionStatus {
	return connectors.ConnectionStatus{
		State:         connectors.ConnectionStateDisconnected,
		Previous:      connectors.ConnectionStateDisconnected,
		TransportName: TransportNameFromConnector(cfg.Connector),
		Target:        ConnectionTarget(cfg),
	}
}
