package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/gateway"
	"github.com/skobkin/groundlink/internal/link"
	"github.com/skobkin/groundlink/internal/logging"
	"github.com/skobkin/groundlink/internal/notifications"
	"github.com/skobkin/groundlink/internal/persistence"
	"github.com/skobkin/groundlink/internal/platform"
	"github.com/skobkin/groundlink/internal/telemetry"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 5 * time.Second
)

// Runtime owns every long-lived component of one ground link: the transport,
// the link manager, the telemetry aggregator and the optional recorder and
// gateway.
type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	Events       *persistence.LinkEventRepo
	Samples      *persistence.SampleRepo
	WriterQueue  *persistence.WriterQueue
	Recorder     *persistence.Recorder
	writerCancel context.CancelFunc

	ConnectionTransport *SwitchableTransport
	linkLock            platform.LinkLock
	Link                *link.Manager
	Telemetry           *telemetry.Aggregator
	Gateway             *gateway.Server
	Notifications       *NotificationService

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool

	workers sync.WaitGroup
}

// Initialize loads the config from the default location and starts the
// runtime.
func Initialize(parent context.Context) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}

	return InitializeWithConfig(parent, paths, cfg, logging.NewManager())
}

// InitializeWithConfig starts the runtime for an already loaded config. The
// log manager is owned by the runtime from here on.
func InitializeWithConfig(parent context.Context, paths Paths, cfg config.AppConfig, logMgr *logging.Manager) (*Runtime, error) {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		_ = logMgr.Close()

		return nil, fmt.Errorf("validate config: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:        ctx,
		cancel:     cancel,
		Paths:      paths,
		Config:     cfg,
		LogManager: logMgr,
	}
	rt.setConnStatus(ConnectionStatusFromConfig(cfg.Connection), false)

	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	slog.Info("starting groundlink runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "connector", cfg.Connection.Connector)

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	rt.workers.Add(1)
	go func() {
		defer rt.workers.Done()
		rt.captureConnStatus(ctx, connSub)
	}()

	if cfg.Recorder.Enabled {
		if err := rt.startRecorder(ctx); err != nil {
			_ = rt.Close()

			return nil, err
		}
	}

	lock, err := acquireLinkLock(cfg.Connection)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.linkLock = lock

	connTransport, err := NewConnectionTransport(cfg.Connection)
	if err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("initialize transport: %w", err)
	}
	rt.ConnectionTransport = connTransport

	rt.Link = link.NewManager(logMgr.Logger("link"), b, connTransport, LinkOptions(cfg.Link))
	rt.Telemetry = telemetry.New(logMgr.Logger("telemetry"), b, rt.Link, TelemetryOptions(cfg.Telemetry))
	rt.Telemetry.Start(ctx)

	if cfg.Notifications.Enabled {
		rt.Notifications = NewNotificationService(
			b,
			rt.CurrentConfig,
			notifications.NewDesktopSender(Name, logMgr.Logger("notifications")),
			logMgr.Logger("app.notifications"),
		)
		done := rt.Notifications.Start(ctx)
		rt.workers.Add(1)
		go func() {
			defer rt.workers.Done()
			<-done
		}()
	}

	if cfg.Gateway.Listen != "" {
		rt.Gateway = gateway.New(logMgr.Logger("gateway"), b, rt.Telemetry)
		if err := rt.Gateway.Start(cfg.Gateway.Listen); err != nil {
			_ = rt.Close()

			return nil, fmt.Errorf("start gateway: %w", err)
		}
	}

	if err := rt.Link.Connect(ctx); err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("connect link: %w", err)
	}

	return rt, nil
}

// acquireLinkLock returns a nil lock for connections that occupy no
// exclusive endpoint.
func acquireLinkLock(cfg config.ConnectionConfig) (platform.LinkLock, error) {
	endpoint := LinkEndpoint(cfg)
	if endpoint == "" {
		return nil, nil
	}
	lock, err := platform.AcquireLinkLock(endpoint)
	if errors.Is(err, platform.ErrLinkLockUnsupported) {
		slog.Warn("link lock unavailable, not guarding endpoint", "endpoint", endpoint, "error", err)

		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", endpoint, err)
	}

	return lock, nil
}

func (r *Runtime) startRecorder(ctx context.Context) error {
	db, err := persistence.Open(ctx, r.Paths.DBFile)
	if err != nil {
		return err
	}
	r.DB = db
	r.Events = persistence.NewLinkEventRepo(db)
	r.Samples = persistence.NewSampleRepo(db)

	// The writer outlives ctx so that Close can flush what the recorder
	// already queued.
	writerCtx, writerCancel := context.WithCancel(context.WithoutCancel(ctx))
	r.writerCancel = writerCancel
	r.WriterQueue = persistence.NewWriterQueue(r.LogManager.Logger("persistence"), WriterQueueCap)
	r.WriterQueue.Start(writerCtx)

	r.Recorder = persistence.NewRecorder(r.LogManager.Logger("recorder"), r.Bus, r.WriterQueue, r.Events, r.Samples, r.Config.Recorder.SampleInterval())
	r.Recorder.Start(ctx)

	retention := r.Config.Recorder.Retention()
	if retention > 0 {
		r.workers.Add(1)
		go func() {
			defer r.workers.Done()
			r.prune(ctx, retention)
		}()
	}

	return nil
}

// prune drops recorder rows older than retention once at startup and then
// every pruneInterval.
func (r *Runtime) prune(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		db := r.DB
		r.WriterQueue.Enqueue("prune", func(writeCtx context.Context) error {
			removed, err := persistence.Prune(writeCtx, db, time.Now().Add(-retention))
			if err == nil && removed > 0 {
				slog.Info("pruned recorder rows", "removed", removed, "retention", retention)
			}

			return err
		})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			go r.Bus.Unsubscribe(sub)

			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status, true)
			if status.State == connectors.ConnectionStateStreaming {
				r.onStreaming(ctx)
			}
		}
	}
}

// onStreaming asks the vehicle for telemetry streams every time a new
// connection reaches Streaming.
func (r *Runtime) onStreaming(ctx context.Context) {
	r.mu.RLock()
	enabled := r.Config.Link.RequestStreams
	rate := r.Config.Link.StreamRateHz
	r.mu.RUnlock()
	if !enabled || r.Link == nil {
		return
	}

	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		if err := RequestStreams(ctx, r.Link, rate); err != nil {
			slog.Warn("request telemetry streams", "rate_hz", rate, "error", err)

			return
		}
		slog.Info("requested telemetry streams", "rate_hz", rate)
	}()
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus, known bool) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = known
	r.connStatusMu.Unlock()
}

// CurrentConnStatus returns the last status seen on the bus. known is false
// until the link manager has emitted one; the status is then derived from
// config.
func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()

	return status, known
}

// CurrentConfig returns the config the runtime is running with.
func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// SaveAndApplyConfig persists cfg and applies what can change at runtime:
// logging, the connection, stream requests and notification preferences. Link, telemetry, recorder and
// gateway settings take effect on the next start.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switching := r.ConnectionTransport != nil && cfg.Connection != r.Config.Connection
	var nextLock platform.LinkLock
	if switching && LinkEndpoint(cfg.Connection) != LinkEndpoint(r.Config.Connection) {
		lock, err := acquireLinkLock(cfg.Connection)
		if err != nil {
			return err
		}
		nextLock = lock
	}
	release := func(lock platform.LinkLock) {
		if lock != nil {
			_ = lock.Release()
		}
	}

	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		release(nextLock)

		return err
	}

	if switching {
		slog.Info("switching connection", "connector", cfg.Connection.Connector, "target", ConnectionTarget(cfg.Connection))
		if err := r.ConnectionTransport.Apply(cfg.Connection); err != nil {
			release(nextLock)

			return err
		}
		if LinkEndpoint(cfg.Connection) != LinkEndpoint(r.Config.Connection) {
			release(r.linkLock)
			r.linkLock = nextLock
		}
	}
	r.Config = cfg

	return r.LogManager.Configure(cfg.Logging, r.Paths.LogFile)
}

// ClearDatabase wipes the recorder tables.
func (r *Runtime) ClearDatabase() error {
	if r.DB == nil {
		return fmt.Errorf("database is not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	slog.Info("database cleared")

	return nil
}

// Close stops components in reverse start order. The link is disconnected
// first so that the final status reaches the recorder.
func (r *Runtime) Close() error {
	var errs []error
	if r.Link != nil {
		if err := r.Link.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect link: %w", err))
		}
	}
	if r.Telemetry != nil {
		r.Telemetry.Stop()
	}
	if r.Gateway != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := r.Gateway.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown gateway: %w", err))
		}
		cancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Recorder != nil {
		r.Recorder.Wait()
	}
	r.workers.Wait()
	if r.WriterQueue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := r.WriterQueue.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush recorder: %w", err))
		}
		cancel()
	}
	if r.writerCancel != nil {
		r.writerCancel()
		<-r.WriterQueue.Done()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.ConnectionTransport != nil {
		_ = r.ConnectionTransport.Close()
	}
	if r.linkLock != nil {
		if err := r.linkLock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release link lock: %w", err))
		}
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return errors.Join(errs...)
}
