package app

import (
	"time"

	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/link"
	"github.com/skobkin/groundlink/internal/mavlink"
	"github.com/skobkin/groundlink/internal/telemetry"
)

// LinkOptions maps the persisted link section onto manager options. Zero
// config values fall through to the manager defaults.
func LinkOptions(cfg config.LinkConfig) link.Options {
	opts := link.Options{
		SystemID:          uint8(cfg.SystemID),
		ComponentID:       uint8(cfg.ComponentID),
		Version:           mavlink.Version(cfg.MavlinkVersion),
		HeartbeatTimeout:  cfg.HeartbeatTimeout(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		SendHeartbeats:    cfg.SendHeartbeats,
		ConnectTimeout:    cfg.ConnectTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		QueueSize:         cfg.QueueSize,
		LossWindow:        cfg.LossWindow,
		PublishRawFrames:  cfg.PublishRawFrames,
	}
	if cfg.BackoffInitialMs > 0 || cfg.BackoffMaxMs > 0 {
		backoff := link.DefaultBackoff()
		if cfg.BackoffInitialMs > 0 {
			backoff.InitialDelay = cfg.BackoffInitial()
		}
		if cfg.BackoffMaxMs > 0 {
			backoff.MaxDelay = cfg.BackoffMax()
		}
		opts.Backoff = backoff
	}

	return opts
}

func TelemetryOptions(cfg config.TelemetryConfig) telemetry.Options {
	opts := telemetry.Options{
		Interval:        cfg.Interval(),
		Staleness:       cfg.Staleness(),
		StatusTextLimit: cfg.StatusTextLimit,
	}
	if overrides := cfg.StalenessOverrides(); len(overrides) > 0 {
		opts.StalenessOverrides = make(map[telemetry.Group]time.Duration, len(overrides))
		for name, d := range overrides {
			opts.StalenessOverrides[telemetry.Group(name)] = d
		}
	}

	return opts
}
