package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skobkin/groundlink/internal/app"
	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/logging"
	"github.com/skobkin/groundlink/internal/mavlink"
	"github.com/skobkin/groundlink/internal/telemetry"
	"github.com/skobkin/groundlink/internal/transport"
)

const (
	summaryInterval  = time.Second
	maxHexPreviewLen = 64
)

type options struct {
	configPath     string
	connector      string
	host           string
	port           int
	remote         string
	serialPort     string
	baud           int
	tcpRole        string
	gateway        string
	listenFor      time.Duration
	listPorts      bool
	requestStreams bool
	record         bool
	raw            bool
	notify         bool
	logLevel       string

	// set holds the names of flags given on the command line; only those
	// override the config file.
	set map[string]bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("run groundlink", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "config file (.json, .yaml, .toml); defaults to the user config dir")
	fs.StringVar(&opts.connector, "connector", "", "connector: udp|tcp|serial|sim")
	fs.StringVar(&opts.host, "host", "", "udp bind host or tcp host")
	fs.IntVar(&opts.port, "port", 0, "udp bind port or tcp port")
	fs.StringVar(&opts.remote, "remote", "", "fixed udp peer host:port")
	fs.StringVar(&opts.serialPort, "serial", "", "serial port, e.g. /dev/ttyACM0 or COM3")
	fs.IntVar(&opts.baud, "baud", 0, "serial baud rate")
	fs.StringVar(&opts.tcpRole, "tcp-role", "", "tcp role: client|server")
	fs.StringVar(&opts.gateway, "gateway", "", "serve snapshots over http/websocket on this address")
	fs.DurationVar(&opts.listenFor, "listen-for", 0, "exit after this duration, e.g. 30s")
	fs.BoolVar(&opts.listPorts, "list-ports", false, "list serial ports and exit")
	fs.BoolVar(&opts.requestStreams, "request-streams", false, "ask the vehicle for telemetry streams on connect")
	fs.BoolVar(&opts.record, "record", false, "enable the sqlite flight recorder")
	fs.BoolVar(&opts.raw, "raw", false, "log raw frames in both directions")
	fs.BoolVar(&opts.notify, "notify", false, "show desktop notifications for link loss and vehicle alerts")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	return opts, nil
}

// apply overrides cfg with the flags given on the command line.
func (o options) apply(cfg *config.AppConfig) {
	if o.set["connector"] {
		cfg.Connection.Connector = config.ConnectorType(strings.ToLower(strings.TrimSpace(o.connector)))
	}
	if o.set["host"] {
		cfg.Connection.Host = strings.TrimSpace(o.host)
	}
	if o.set["port"] {
		cfg.Connection.Port = o.port
	}
	if o.set["remote"] {
		cfg.Connection.Remote = strings.TrimSpace(o.remote)
	}
	if o.set["serial"] {
		cfg.Connection.SerialPort = strings.TrimSpace(o.serialPort)
	}
	if o.set["baud"] {
		cfg.Connection.SerialBaud = o.baud
	}
	if o.set["tcp-role"] {
		cfg.Connection.TCPRole = config.TCPRole(strings.ToLower(strings.TrimSpace(o.tcpRole)))
	}
	if o.set["gateway"] {
		cfg.Gateway.Listen = strings.TrimSpace(o.gateway)
	}
	if o.set["request-streams"] {
		cfg.Link.RequestStreams = o.requestStreams
	}
	if o.set["record"] {
		cfg.Recorder.Enabled = o.record
	}
	if o.set["raw"] {
		cfg.Link.PublishRawFrames = o.raw
	}
	if o.set["notify"] {
		cfg.Notifications.Enabled = o.notify
	}
	if o.set["log-level"] {
		cfg.Logging.Level = strings.TrimSpace(o.logLevel)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if opts.listPorts {
		return listPorts(stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePathsFor(opts.configPath)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(&cfg)

	rt, err := app.InitializeWithConfig(ctx, paths, cfg, logging.NewManager())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			slog.Warn("close runtime", "error", closeErr)
		}
	}()

	logger := rt.LogManager.Logger("cli")
	logger.Info("groundlink started",
		"version", app.BuildVersionWithDate(),
		"transport", rt.ConnectionTransport.Name(),
		"target", rt.ConnectionTransport.StatusTarget(),
		"config", paths.ConfigFile,
	)
	if rt.Gateway != nil {
		logger.Info("gateway listening", "addr", rt.Gateway.Addr().String())
	}

	watch(ctx, rt.Bus, logger)
	go logSummaries(ctx, logger, rt.Telemetry, summaryInterval)

	if opts.listenFor > 0 {
		logger.Info("listen mode", "duration", opts.listenFor)
		select {
		case <-ctx.Done():
		case <-time.After(opts.listenFor):
		}

		return nil
	}

	logger.Info("listening until interrupt")
	<-ctx.Done()

	return nil
}

func listPorts(w io.Writer) error {
	ports, err := transport.ListSerialPorts()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		_, err := fmt.Fprintln(w, "no serial ports found")

		return err
	}
	for _, port := range ports {
		if _, err := fmt.Fprintln(w, port); err != nil {
			return err
		}
	}

	return nil
}

// watch logs link events as they happen.
func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	sub := b.Subscribe(
		connectors.TopicConnStatus,
		connectors.TopicStatusText,
		connectors.TopicCommandAck,
		connectors.TopicRawFrameIn,
		connectors.TopicRawFrameOut,
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				go b.Unsubscribe(sub)

				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				logEvent(logger, raw)
			}
		}
	}()
}

func logEvent(logger *slog.Logger, raw any) {
	switch v := raw.(type) {
	case connectors.ConnectionStatus:
		logger.Info("conn", "state", v.State, "from", v.Previous, "transport", v.TransportName, "target", v.Target, "error", v.Err)
	case connectors.InboundMessage:
		switch msg := v.Message.(type) {
		case mavlink.StatusText:
			logger.Info("statustext", "sysid", v.Sender.SystemID, "severity", msg.Severity, "text", msg.Text)
		case mavlink.CommandAck:
			logger.Info("command_ack", "sysid", v.Sender.SystemID, "command", msg.Command, "result", msg.Result)
		}
	case connectors.RawFrame:
		logger.Info("raw", "msg_id", v.MessageID, "len", v.Len, "hex", previewHex(v.Hex))
	}
}

// Telemetry is the part of the aggregator the summary needs.
type Telemetry interface {
	Last() telemetry.Update
}

func logSummaries(ctx context.Context, logger *slog.Logger, source Telemetry, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("snapshot", summaryAttrs(source.Last())...)
		}
	}
}

// summaryAttrs renders the compact once-per-second status line. Groups that
// never arrived are left out; stale ones are marked.
func summaryAttrs(u telemetry.Update) []any {
	s := u.Snapshot
	attrs := []any{
		"seq", s.Sequence,
		"state", u.Stats.State,
		"rx", u.Stats.PacketsReceived,
		"loss", fmt.Sprintf("%.1f%%", u.Stats.LossRate*100),
	}
	if !u.Stats.LastHeartbeat.IsZero() {
		attrs = append(attrs, "hb_age", s.GeneratedAt.Sub(u.Stats.LastHeartbeat).Round(time.Millisecond))
	}
	if s.SystemStatus.Received {
		attrs = append(attrs, "armed", s.SystemStatus.Armed, "vehicle_state", s.SystemStatus.State)
	}
	if s.GPS.Received {
		attrs = append(attrs, "fix", s.GPS.FixType)
		if s.GPS.Satellites != nil {
			attrs = append(attrs, "sats", *s.GPS.Satellites)
		}
	}
	if s.Position.Received {
		attrs = append(attrs, "pos", fmt.Sprintf("%.6f,%.6f", s.Position.Latitude, s.Position.Longitude)+staleMark(s.Position.Freshness))
	}
	if s.Altitude.Received {
		attrs = append(attrs, "alt_rel", fmt.Sprintf("%.1fm", s.Altitude.Relative)+staleMark(s.Altitude.Freshness))
	}
	if s.Attitude.Received {
		attrs = append(attrs, "rpy", fmt.Sprintf("%.1f/%.1f/%.1f", degrees(s.Attitude.Roll), degrees(s.Attitude.Pitch), degrees(s.Attitude.Yaw))+staleMark(s.Attitude.Freshness))
	}
	if s.Velocity.Received {
		attrs = append(attrs, "gs", fmt.Sprintf("%.1fm/s", s.Velocity.GroundSpeed)+staleMark(s.Velocity.Freshness))
	}
	if s.Battery.Received {
		batt := fmt.Sprintf("%.2fV", s.Battery.Voltage)
		if s.Battery.Remaining != nil {
			batt += fmt.Sprintf(" %d%%", *s.Battery.Remaining)
		}
		attrs = append(attrs, "batt", batt+staleMark(s.Battery.Freshness))
	}

	return attrs
}

func staleMark(f telemetry.Freshness) string {
	if f.Stale {
		return " (stale)"
	}

	return ""
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func previewHex(hex string) string {
	hex = strings.TrimSpace(hex)
	if len(hex) <= maxHexPreviewLen {
		return hex
	}

	return hex[:maxHexPreviewLen] + "..."
}
