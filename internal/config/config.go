package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

// TCPRole selects whether the TCP connector dials out or accepts a peer.
type TCPRole string

// Format is the on-disk encoding of the config file.
type Format string

const (
	ConnectorUDP    ConnectorType = "udp"
	ConnectorTCP    ConnectorType = "tcp"
	ConnectorSerial ConnectorType = "serial"
	ConnectorSim    ConnectorType = "sim"

	TCPRoleClient TCPRole = "client"
	TCPRoleServer TCPRole = "server"

	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"

	DefaultUDPHost    = "0.0.0.0"
	DefaultUDPPort    = 14550
	DefaultTCPPort    = 5760
	DefaultSerialBaud = 57600
)

// Group names accepted in telemetry.staleness_overrides_ms.
var telemetryGroups = []string{"system_status", "gps", "position", "attitude", "battery", "altitude", "velocity"}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level" toml:"level"`
	Format    string `json:"format" yaml:"format" toml:"format"`
	LogToFile bool   `json:"log_to_file" yaml:"log_to_file" toml:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters. For
// UDP, Host and Port are the local bind address and Remote is an optional
// fixed peer.
type ConnectionConfig struct {
	Connector  ConnectorType `json:"connector" yaml:"connector" toml:"connector"`
	Host       string        `json:"host" yaml:"host" toml:"host"`
	Port       int           `json:"port" yaml:"port" toml:"port"`
	Remote     string        `json:"remote" yaml:"remote" toml:"remote"`
	TCPRole    TCPRole       `json:"tcp_role" yaml:"tcp_role" toml:"tcp_role"`
	SerialPort string        `json:"serial_port" yaml:"serial_port" toml:"serial_port"`
	SerialBaud int           `json:"serial_baud" yaml:"serial_baud" toml:"serial_baud"`
}

// LinkConfig tunes the connection manager. Durations are milliseconds.
type LinkConfig struct {
	SystemID            int  `json:"system_id" yaml:"system_id" toml:"system_id"`
	ComponentID         int  `json:"component_id" yaml:"component_id" toml:"component_id"`
	MavlinkVersion      int  `json:"mavlink_version" yaml:"mavlink_version" toml:"mavlink_version"`
	HeartbeatTimeoutMs  int  `json:"heartbeat_timeout_ms" yaml:"heartbeat_timeout_ms" toml:"heartbeat_timeout_ms"`
	HeartbeatIntervalMs int  `json:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms" toml:"heartbeat_interval_ms"`
	SendHeartbeats      bool `json:"send_heartbeats" yaml:"send_heartbeats" toml:"send_heartbeats"`
	ConnectTimeoutMs    int  `json:"connect_timeout_ms" yaml:"connect_timeout_ms" toml:"connect_timeout_ms"`
	WriteTimeoutMs      int  `json:"write_timeout_ms" yaml:"write_timeout_ms" toml:"write_timeout_ms"`
	BackoffInitialMs    int  `json:"backoff_initial_ms" yaml:"backoff_initial_ms" toml:"backoff_initial_ms"`
	BackoffMaxMs        int  `json:"backoff_max_ms" yaml:"backoff_max_ms" toml:"backoff_max_ms"`
	QueueSize           int  `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
	LossWindow          int  `json:"loss_window" yaml:"loss_window" toml:"loss_window"`
	RequestStreams      bool `json:"request_streams" yaml:"request_streams" toml:"request_streams"`
	StreamRateHz        int  `json:"stream_rate_hz" yaml:"stream_rate_hz" toml:"stream_rate_hz"`
	PublishRawFrames    bool `json:"publish_raw_frames" yaml:"publish_raw_frames" toml:"publish_raw_frames"`
}

// TelemetryConfig tunes the snapshot aggregator. Durations are milliseconds.
type TelemetryConfig struct {
	IntervalMs           int            `json:"interval_ms" yaml:"interval_ms" toml:"interval_ms"`
	StalenessMs          int            `json:"staleness_ms" yaml:"staleness_ms" toml:"staleness_ms"`
	StalenessOverridesMs map[string]int `json:"staleness_overrides_ms,omitempty" yaml:"staleness_overrides_ms,omitempty" toml:"staleness_overrides_ms,omitempty"`
	StatusTextLimit      int            `json:"status_text_limit" yaml:"status_text_limit" toml:"status_text_limit"`
}

// RecorderConfig controls the sqlite flight recorder.
type RecorderConfig struct {
	Enabled          bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	SampleIntervalMs int  `json:"sample_interval_ms" yaml:"sample_interval_ms" toml:"sample_interval_ms"`
	RetentionHours   int  `json:"retention_hours" yaml:"retention_hours" toml:"retention_hours"`
}

// GatewayConfig controls the snapshot websocket gateway. An empty Listen
// disables it.
type GatewayConfig struct {
	Listen string `json:"listen" yaml:"listen" toml:"listen"`
}

// NotificationConfig controls desktop notifications for link and vehicle
// alerts.
type NotificationConfig struct {
	Enabled     bool                     `json:"enabled" yaml:"enabled" toml:"enabled"`
	MinSeverity string                   `json:"min_severity" yaml:"min_severity" toml:"min_severity"`
	Events      NotificationEventsConfig `json:"events" yaml:"events" toml:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	LinkStatus bool `json:"link_status" yaml:"link_status" toml:"link_status"`
	StatusText bool `json:"status_text" yaml:"status_text" toml:"status_text"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection" yaml:"connection" toml:"connection"`
	Link          LinkConfig         `json:"link" yaml:"link" toml:"link"`
	Telemetry     TelemetryConfig    `json:"telemetry" yaml:"telemetry" toml:"telemetry"`
	Logging       LoggingConfig      `json:"logging" yaml:"logging" toml:"logging"`
	Recorder      RecorderConfig     `json:"recorder" yaml:"recorder" toml:"recorder"`
	Gateway       GatewayConfig      `json:"gateway" yaml:"gateway" toml:"gateway"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications" toml:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorUDP,
			Host:       DefaultUDPHost,
			Port:       DefaultUDPPort,
			TCPRole:    TCPRoleClient,
			SerialBaud: DefaultSerialBaud,
		},
		Link: LinkConfig{
			SystemID:            255,
			ComponentID:         190,
			MavlinkVersion:      2,
			HeartbeatTimeoutMs:  3000,
			HeartbeatIntervalMs: 1000,
			SendHeartbeats:      true,
			ConnectTimeoutMs:    10000,
			WriteTimeoutMs:      2000,
			BackoffInitialMs:    1000,
			BackoffMaxMs:        15000,
			QueueSize:           1024,
			LossWindow:          256,
			StreamRateHz:        4,
		},
		Telemetry: TelemetryConfig{
			IntervalMs:      100,
			StalenessMs:     3000,
			StatusTextLimit: 20,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			LogToFile: false,
		},
		Recorder: RecorderConfig{
			Enabled:          false,
			SampleIntervalMs: 1000,
			RetentionHours:   24 * 7,
		},
		Notifications: NotificationConfig{
			Enabled:     false,
			MinSeverity: "critical",
			Events:      NotificationEventsConfig{
				LinkStatus: true,
				StatusText: true,
			},
		},
	}
}

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
}

// Load reads the config at path. A missing file yields Default().
func Load(path string) (AppConfig, error) {
	cfg := Default()
	format, err := FormatFromPath(path)
	if err != nil {
		return AppConfig{}, err
	}
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime or given on the command line.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := Unmarshal(format, raw, &cfg); err != nil {
		return AppConfig{}, err
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func Unmarshal(format Format, raw []byte, cfg *AppConfig) error {
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode config json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode config yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(raw), cfg); err != nil {
			return fmt.Errorf("decode config toml: %w", err)
		}
	default:
		return fmt.Errorf("unknown config format %q", format)
	}

	return nil
}

func Marshal(format Format, cfg AppConfig) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(cfg, "", "  ")
	case FormatYAML:
		return yaml.Marshal(cfg)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
}

func (c *AppConfig) FillMissingDefaults() {
	def := Default()

	if c.Connection.Connector == "" {
		c.Connection.Connector = def.Connection.Connector
	}
	c.Connection.Connector = ConnectorType(strings.ToLower(string(c.Connection.Connector)))
	if c.Connection.Port <= 0 {
		switch c.Connection.Connector {
		case ConnectorTCP:
			c.Connection.Port = DefaultTCPPort
		default:
			c.Connection.Port = DefaultUDPPort
		}
	}
	if c.Connection.Connector == ConnectorUDP && strings.TrimSpace(c.Connection.Host) == "" {
		c.Connection.Host = DefaultUDPHost
	}
	if c.Connection.TCPRole == "" {
		c.Connection.TCPRole = TCPRoleClient
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}

	fillInt(&c.Link.SystemID, def.Link.SystemID)
	fillInt(&c.Link.ComponentID, def.Link.ComponentID)
	fillInt(&c.Link.MavlinkVersion, def.Link.MavlinkVersion)
	fillInt(&c.Link.HeartbeatTimeoutMs, def.Link.HeartbeatTimeoutMs)
	fillInt(&c.Link.HeartbeatIntervalMs, def.Link.HeartbeatIntervalMs)
	fillInt(&c.Link.ConnectTimeoutMs, def.Link.ConnectTimeoutMs)
	fillInt(&c.Link.WriteTimeoutMs, def.Link.WriteTimeoutMs)
	fillInt(&c.Link.BackoffInitialMs, def.Link.BackoffInitialMs)
	fillInt(&c.Link.BackoffMaxMs, def.Link.BackoffMaxMs)
	fillInt(&c.Link.QueueSize, def.Link.QueueSize)
	fillInt(&c.Link.LossWindow, def.Link.LossWindow)
	fillInt(&c.Link.StreamRateHz, def.Link.StreamRateHz)

	fillInt(&c.Telemetry.IntervalMs, def.Telemetry.IntervalMs)
	fillInt(&c.Telemetry.StalenessMs, def.Telemetry.StalenessMs)
	fillInt(&c.Telemetry.StatusTextLimit, def.Telemetry.StatusTextLimit)

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}

	fillInt(&c.Recorder.SampleIntervalMs, def.Recorder.SampleIntervalMs)
	fillInt(&c.Recorder.RetentionHours, def.Recorder.RetentionHours)

	if strings.TrimSpace(c.Notifications.MinSeverity) == "" {
		c.Notifications.MinSeverity = def.Notifications.MinSeverity
	}
}

func fillInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func (c AppConfig) Validate() error {
	var errs []error

	conn := c.Connection
	switch conn.Connector {
	case ConnectorUDP:
		if err := validPort(conn.Port); err != nil {
			errs = append(errs, err)
		}
	case ConnectorTCP:
		if err := validPort(conn.Port); err != nil {
			errs = append(errs, err)
		}
		switch conn.TCPRole {
		case TCPRoleClient:
			if strings.TrimSpace(conn.Host) == "" {
				errs = append(errs, errors.New("tcp host is required in client role"))
			}
		case TCPRoleServer:
		default:
			errs = append(errs, fmt.Errorf("unknown tcp role: %s", conn.TCPRole))
		}
	case ConnectorSerial:
		if strings.TrimSpace(conn.SerialPort) == "" {
			errs = append(errs, errors.New("serial port is required"))
		}
		if conn.SerialBaud <= 0 {
			errs = append(errs, errors.New("serial baud must be positive"))
		}
	case ConnectorSim:
	default:
		errs = append(errs, fmt.Errorf("unknown connector: %s", conn.Connector))
	}

	if c.Link.SystemID < 1 || c.Link.SystemID > 255 {
		errs = append(errs, fmt.Errorf("link system id must be 1..255, got %d", c.Link.SystemID))
	}
	if c.Link.ComponentID < 1 || c.Link.ComponentID > 255 {
		errs = append(errs, fmt.Errorf("link component id must be 1..255, got %d", c.Link.ComponentID))
	}
	if c.Link.MavlinkVersion != 1 && c.Link.MavlinkVersion != 2 {
		errs = append(errs, fmt.Errorf("mavlink version must be 1 or 2, got %d", c.Link.MavlinkVersion))
	}
	if c.Link.BackoffMaxMs < c.Link.BackoffInitialMs {
		errs = append(errs, errors.New("link backoff max must not be below the initial delay"))
	}
	if c.Link.StreamRateHz > 50 {
		errs = append(errs, fmt.Errorf("stream rate %d Hz is above 50", c.Link.StreamRateHz))
	}

	for group, ms := range c.Telemetry.StalenessOverridesMs {
		if !knownGroup(group) {
			errs = append(errs, fmt.Errorf("unknown telemetry group in staleness overrides: %s", group))
		}
		if ms <= 0 {
			errs = append(errs, fmt.Errorf("staleness override for %s must be positive", group))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level: %s", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format: %s", c.Logging.Format))
	}

	if !knownSeverity(c.Notifications.MinSeverity) {
		errs = append(errs, fmt.Errorf("unknown notification severity: %s", c.Notifications.MinSeverity))
	}

	return errors.Join(errs...)
}

// Severity names accepted in notifications.min_severity, most severe first.
var severities = []string{"emergency", "alert", "critical", "error", "warning", "notice", "info", "debug"}

func knownSeverity(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range severities {
		if s == name {
			return true
		}
	}

	return false
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be 1..65535, got %d", port)
	}

	return nil
}

func knownGroup(name string) bool {
	for _, g := range telemetryGroups {
		if g == name {
			return true
		}
	}

	return false
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := Marshal(format, cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (l LinkConfig) HeartbeatTimeout() time.Duration  { return ms(l.HeartbeatTimeoutMs) }
func (l LinkConfig) HeartbeatInterval() time.Duration { return ms(l.HeartbeatIntervalMs) }
func (l LinkConfig) ConnectTimeout() time.Duration    { return ms(l.ConnectTimeoutMs) }
func (l LinkConfig) WriteTimeout() time.Duration      { return ms(l.WriteTimeoutMs) }
func (l LinkConfig) BackoffInitial() time.Duration    { return ms(l.BackoffInitialMs) }
func (l LinkConfig) BackoffMax() time.Duration        { return ms(l.BackoffMaxMs) }

func (t TelemetryConfig) Interval() time.Duration  { return ms(t.IntervalMs) }
func (t TelemetryConfig) Staleness() time.Duration { return ms(t.StalenessMs) }

// StalenessOverrides returns the per-group overrides as durations.
func (t TelemetryConfig) StalenessOverrides() map[string]time.Duration {
	if len(t.StalenessOverridesMs) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(t.StalenessOverridesMs))
	for group, v := range t.StalenessOverridesMs {
		out[group] = ms(v)
	}

	return out
}

func (r RecorderConfig) SampleInterval() time.Duration { return ms(r.SampleIntervalMs) }
func (r RecorderConfig) Retention() time.Duration      { return time.Duration(r.RetentionHours) * time.Hour }
