package link

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/mavlink"
	"github.com/skobkin/groundlink/internal/transport"
)

// Options tune the manager. Zero values take the defaults of DefaultOptions.
type Options struct {
	SystemID          uint8
	ComponentID       uint8
	Version           mavlink.Version
	HeartbeatTimeout  time.Duration
	HeartbeatInterval time.Duration
	SendHeartbeats    bool
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	WatchdogInterval  time.Duration
	Backoff           BackoffConfig
	QueueSize         int
	LossWindow        int
	PublishRawFrames  bool
}

func DefaultOptions() Options {
	return Options{
		SystemID:          255,
		ComponentID:       190,
		Version:           mavlink.V2,
		HeartbeatTimeout:  3 * time.Second,
		HeartbeatInterval: time.Second,
		SendHeartbeats:    true,
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      2 * time.Second,
		WatchdogInterval:  100 * time.Millisecond,
		Backoff:           DefaultBackoff(),
		QueueSize:         DefaultQueueSize,
		LossWindow:        DefaultLossWindow,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SystemID == 0 {
		o.SystemID = def.SystemID
	}
	if o.ComponentID == 0 {
		o.ComponentID = def.ComponentID
	}
	if o.Version == 0 {
		o.Version = def.Version
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = def.HeartbeatInterval
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = def.WatchdogInterval
	}
	if o.Backoff == (BackoffConfig{}) {
		o.Backoff = def.Backoff
	}
	if o.QueueSize <= 0 {
		o.QueueSize = def.QueueSize
	}
	if o.LossWindow <= 0 {
		o.LossWindow = def.LossWindow
	}

	return o
}

// frameInfo is what the supervisor needs to know about one received frame.
type frameInfo struct {
	sender    mavlink.Sender
	sequence  uint8
	decodeErr mavlink.DecodeErrorKind
	heartbeat bool
}

// frameEvent summarizes one received chunk.
type frameEvent struct {
	at     time.Time
	bytes  int
	parser mavlink.ParserStats
	frames []frameInfo
}

// Manager owns one vehicle link: it opens the transport, runs the receive
// loop, tracks health and reconnects with backoff. State and Statistics are
// written only by the supervisor goroutine started by Connect.
type Manager struct {
	logger    *slog.Logger
	bus       bus.MessageBus
	transport transport.Transport
	opts      Options
	encoder   *mavlink.Encoder
	queue     *Queue
	loss      *lossTracker
	rng       *rand.Rand

	mu     sync.Mutex
	state  State
	stats  Statistics
	cancel context.CancelFunc
	done   chan struct{}

	bytesOut atomic.Uint64
}

func NewManager(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	return &Manager{
		logger:    logger.With("component", "link", "transport", tr.Name()),
		bus:       b,
		transport: tr,
		opts:      opts,
		encoder:   mavlink.NewEncoder(opts.Version, opts.SystemID, opts.ComponentID),
		queue:     NewQueue(opts.QueueSize),
		loss:      newLossTracker(opts.LossWindow),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		state:     connectors.ConnectionStateDisconnected,
		stats:     emptyStatistics(),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Stats returns a copy of the current statistics.
func (m *Manager) Stats() Statistics {
	m.mu.Lock()
	s := m.stats
	m.mu.Unlock()
	s.BytesOut = m.bytesOut.Load()

	return s
}

// Messages is the bounded queue of decoded messages.
func (m *Manager) Messages() *Queue {
	return m.queue
}

// Vehicle returns the first vehicle that sent a heartbeat on this link.
func (m *Manager) Vehicle() (mavlink.Sender, bool) {
	s := m.Stats()

	return s.Vehicle, s.Vehicle != (mavlink.Sender{})
}

// Connect starts the supervisor. The link keeps reconnecting until
// Disconnect is called or ctx is cancelled.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		select {
		case <-m.done:
			m.cancel()
		default:
			return ErrConnected
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)

	return nil
}

// Disconnect stops every link goroutine, closes the transport and leaves the
// manager Disconnected with fresh statistics. It returns once that is done.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	m.mu.Lock()
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	return nil
}

// Done is closed when the supervisor exits, or nil when it is not running.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.done
}

// SendCommand encodes msg and writes it once. Failures are returned as is;
// retrying is up to the caller.
func (m *Manager) SendCommand(ctx context.Context, msg mavlink.Message) error {
	if !m.State().Linked() {
		return &transport.Error{Kind: transport.KindClosed, Op: "send " + msg.MessageName(), Err: ErrNotConnected}
	}

	return m.send(ctx, msg)
}

func (m *Manager) send(ctx context.Context, msg mavlink.Message) error {
	raw, err := m.encoder.Encode(msg)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, m.opts.WriteTimeout)
	defer cancel()
	if err := m.transport.Write(writeCtx, raw); err != nil {
		m.logger.Debug("write failed", "message", msg.MessageName(), "error", err)

		return err
	}
	m.bytesOut.Add(uint64(len(raw)))
	if m.opts.PublishRawFrames {
		m.bus.TryPublish(connectors.TopicRawFrameOut, rawFrame(raw, msg.MessageID()))
	}

	return nil
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.shutdown()

	if !m.transition(EventConnect, nil) {
		return
	}

	attempt := 0
	for {
		err := m.open(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.logger.Warn("transport open failed", "error", err, "attempt", attempt+1)
			m.transition(EventOpenFailed, err)
		} else {
			m.transition(EventOpenSucceeded, nil)
			ev, err := m.serve(ctx, &attempt)
			_ = m.transport.Close()
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("link lost", "error", err)
			m.transition(ev, err)
		}

		attempt++
		delay := NextBackoffDelay(m.opts.Backoff, attempt, m.rng)
		m.logger.Info("reconnecting after backoff", "delay", delay, "attempt", attempt)
		if !sleepWithContext(ctx, delay) {
			return
		}
		m.mu.Lock()
		m.stats.Reconnects++
		m.mu.Unlock()
		m.transition(EventRetry, nil)
	}
}

func (m *Manager) open(ctx context.Context) error {
	openCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	return m.transport.Connect(openCtx)
}

// serve runs one open connection until it fails. It returns the event that
// ended it.
func (m *Manager) serve(ctx context.Context, attempt *int) (Event, error) {
	linkCtx, cancel := context.WithCancel(ctx)
	events := make(chan frameEvent, 64)
	recvErr := make(chan error, 1)

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	m.mu.Lock()
	m.loss.forgetSequences()
	m.stats.ConnectedSince = time.Now()
	m.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		recvErr <- m.receive(linkCtx, events)
	}()
	if m.opts.SendHeartbeats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.runKeepAlive(linkCtx)
		}()
	}

	watchdog := time.NewTicker(m.opts.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return EventDisconnect, ctx.Err()
		case ev := <-events:
			if m.apply(ev) {
				*attempt = 0
			}
		case err := <-recvErr:
			for drained := false; !drained; {
				select {
				case ev := <-events:
					m.apply(ev)
				default:
					drained = true
				}
			}

			return EventIOError, err
		case now := <-watchdog.C:
			if err := m.checkHeartbeat(now); err != nil {
				return EventHeartbeatTimeout, err
			}
		}
	}
}

func (m *Manager) checkHeartbeat(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != connectors.ConnectionStateStreaming {
		return nil
	}
	if now.Sub(m.stats.LastHeartbeat) <= m.opts.HeartbeatTimeout {
		return nil
	}

	return &ProtocolTimeoutError{Timeout: m.opts.HeartbeatTimeout, LastHeartbeat: m.stats.LastHeartbeat}
}

// receive is the per-connection receive loop. It parses and decodes inline,
// queues decoded messages and reports counters to the supervisor.
func (m *Manager) receive(ctx context.Context, events chan<- frameEvent) error {
	parser := mavlink.NewParser()
	var prev mavlink.ParserStats

	for chunk, err := range transport.Chunks(ctx, m.transport) {
		if err != nil {
			return err
		}

		now := time.Now()
		frames := parser.Feed(chunk)
		cur := parser.Stats()
		ev := frameEvent{
			at:     now,
			bytes:  len(chunk),
			parser: diffParserStats(cur, prev),
			frames: make([]frameInfo, 0, len(frames)),
		}
		prev = cur

		for _, f := range frames {
			ev.frames = append(ev.frames, m.handleFrame(f, now))
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return ctx.Err()
}

func (m *Manager) handleFrame(f mavlink.Frame, now time.Time) frameInfo {
	info := frameInfo{sender: f.Sender(), sequence: f.Sequence}
	if m.opts.PublishRawFrames {
		if raw, err := mavlink.MarshalFrame(f); err == nil {
			m.bus.TryPublish(connectors.TopicRawFrameIn, rawFrame(raw, f.MessageID))
		}
	}

	msg, err := mavlink.Decode(f)
	if err != nil {
		var de *mavlink.DecodeError
		if errors.As(err, &de) {
			info.decodeErr = de.Kind
		}
		m.logger.Debug("frame not decoded", "msg_id", f.MessageID, "sysid", f.SystemID, "error", err)

		return info
	}

	if hb, ok := msg.(mavlink.Heartbeat); ok && hb.Type != mavlink.MavTypeGCS && f.SystemID != m.opts.SystemID {
		info.heartbeat = true
	}

	in := connectors.InboundMessage{
		Sender:     f.Sender(),
		Sequence:   f.Sequence,
		Version:    f.Version,
		Message:    msg,
		ReceivedAt: now,
	}
	if m.queue.Push(in) {
		m.logger.Debug("message queue full, dropped oldest", "capacity", m.queue.Cap())
	}
	switch msg.(type) {
	case mavlink.StatusText:
		m.bus.TryPublish(connectors.TopicStatusText, in)
	case mavlink.CommandAck:
		m.bus.TryPublish(connectors.TopicCommandAck, in)
	}

	return info
}

// apply folds a receive event into the statistics and reports whether it
// moved the link to Streaming.
func (m *Manager) apply(ev frameEvent) bool {
	m.mu.Lock()
	s := &m.stats
	s.BytesIn += uint64(ev.bytes)
	s.FramesDropped += ev.parser.Dropped()
	s.JunkBytes += ev.parser.JunkBytes

	sawHeartbeat := false
	for _, f := range ev.frames {
		s.PacketsReceived++
		s.PacketsLost += uint64(m.loss.observe(f.sender, f.sequence))
		switch f.decodeErr {
		case mavlink.UnknownMessageID:
			s.UnknownMessages++
		case mavlink.PayloadLengthMismatch:
			s.DecodeErrors++
		}
		if f.heartbeat {
			sawHeartbeat = true
			s.LastHeartbeat = ev.at
			if s.Vehicle == (mavlink.Sender{}) {
				s.Vehicle = f.sender
			}
		}
	}
	s.LossRate = m.loss.rate()
	s.QueueDropped = m.queue.Dropped()
	state := m.state
	m.mu.Unlock()

	if sawHeartbeat && state == connectors.ConnectionStateConnected {
		return m.transition(EventHeartbeat, nil)
	}

	return false
}

func (m *Manager) runKeepAlive(ctx context.Context) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	hb := mavlink.Heartbeat{
		Type:           mavlink.MavTypeGCS,
		Autopilot:      mavlink.MavAutopilotInvalid,
		SystemStatus:   mavlink.MavStateActive,
		MavlinkVersion: 3,
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.send(ctx, hb); err != nil && ctx.Err() == nil {
				m.logger.Debug("gcs heartbeat not sent", "error", err)
			}
		}
	}
}

// transition applies ev and publishes the resulting status. Rejected
// transitions are logged and leave the state unchanged.
func (m *Manager) transition(ev Event, cause error) bool {
	m.mu.Lock()
	from := m.state
	to, ok := Next(from, ev)
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("illegal state transition", "from", from, "event", ev.String())

		return false
	}
	m.state = to
	m.stats.State = to
	m.mu.Unlock()

	if from == to {
		return true
	}

	status := connectors.ConnectionStatus{
		State:         to,
		Previous:      from,
		TransportName: m.transport.Name(),
		Target:        transport.Target(m.transport),
		Timestamp:     time.Now(),
	}
	if cause != nil {
		status.Err = cause.Error()
	}
	m.logger.Info("link state changed", "from", from, "to", to, "event", ev.String())
	m.bus.Publish(connectors.TopicConnStatus, status)

	return true
}

func (m *Manager) shutdown() {
	_ = m.transport.Close()

	m.mu.Lock()
	m.loss.reset()
	m.queue.Reset()
	m.stats = emptyStatistics()
	m.mu.Unlock()
	m.bytesOut.Store(0)

	m.transition(EventDisconnect, nil)
}

func diffParserStats(cur, prev mavlink.ParserStats) mavlink.ParserStats {
	return mavlink.ParserStats{
		Frames:          cur.Frames - prev.Frames,
		BadCRC:          cur.BadCRC - prev.BadCRC,
		UnknownCRCExtra: cur.UnknownCRCExtra - prev.UnknownCRCExtra,
		Malformed:       cur.Malformed - prev.Malformed,
		JunkBytes:       cur.JunkBytes - prev.JunkBytes,
		Signed:          cur.Signed - prev.Signed,
	}
}

func rawFrame(raw []byte, msgID uint32) connectors.RawFrame {
	return connectors.RawFrame{
		Hex:       strings.ToUpper(hex.EncodeToString(raw)),
		Len:       len(raw),
		MessageID: msgID,
	}
}
