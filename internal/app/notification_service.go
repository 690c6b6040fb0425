package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/config"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/mavlink"
	"github.com/skobkin/groundlink/internal/notifications"
)

const (
	notificationTitleLinkLost     = "Vehicle link lost"
	notificationTitleLinkRestored = "Vehicle link restored"

	statusTextRepeatWindow = 10 * time.Second
)

// NotificationService turns link transitions and vehicle STATUSTEXT
// messages into desktop notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger
	now           func() time.Time

	mu       sync.Mutex
	linkLost bool
	recent   map[string]time.Time
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
		now:           time.Now,
		recent:        make(map[string]time.Time),
	}
}

// Start consumes bus events until ctx is done. The returned channel is
// closed once the consumer has stopped.
func (s *NotificationService) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s == nil || s.bus == nil || s.sender == nil {
		close(done)

		return done
	}

	sub := s.bus.Subscribe(connectors.TopicConnStatus, connectors.TopicStatusText)

	go func() {
		defer close(done)

		for {
			select {
			case <-ctx.Done():
				go s.bus.Unsubscribe(sub)

				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				switch v := raw.(type) {
				case connectors.ConnectionStatus:
					s.handleConnectionStatus(v)
				case connectors.InboundMessage:
					if text, ok := v.Message.(mavlink.StatusText); ok {
						s.handleStatusText(v.Sender, text)
					}
				}
			}
		}
	}()

	return done
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	prefs := s.notificationPrefs()

	s.mu.Lock()
	var payload *notifications.Payload
	switch {
	case status.Previous == connectors.ConnectionStateStreaming && status.State == connectors.ConnectionStateError:
		s.linkLost = true
		details := linkDetails(status)
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
		payload = &notifications.Payload{Title: notificationTitleLinkLost, Content: details, Urgent: true}
	case status.State == connectors.ConnectionStateStreaming && s.linkLost:
		s.linkLost = false
		payload = &notifications.Payload{Title: notificationTitleLinkRestored, Content: linkDetails(status)}
	case status.State == connectors.ConnectionStateDisconnected:
		s.linkLost = false
	}
	s.mu.Unlock()

	if payload == nil || !prefs.Events.LinkStatus {
		return
	}
	s.send(*payload)
}

func (s *NotificationService) handleStatusText(sender mavlink.Sender, msg mavlink.StatusText) {
	prefs := s.notificationPrefs()
	if !prefs.Events.StatusText {
		return
	}
	threshold, ok := severityByName(prefs.MinSeverity)
	if !ok {
		threshold = mavlink.MavSeverityCritical
	}
	// Lower values are more severe.
	if msg.Severity > threshold {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	key := fmt.Sprintf("%d/%d/%s", sender.SystemID, msg.Severity, text)
	now := s.now()
	s.mu.Lock()
	if last, seen := s.recent[key]; seen && now.Sub(last) < statusTextRepeatWindow {
		s.mu.Unlock()

		return
	}
	s.recent[key] = now
	for k, at := range s.recent {
		if now.Sub(at) >= statusTextRepeatWindow {
			delete(s.recent, k)
		}
	}
	s.mu.Unlock()

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("Vehicle %d: %s", sender.SystemID, strings.ToUpper(msg.Severity.String())),
		Content: text,
		Urgent:  msg.Severity <= mavlink.MavSeverityCritical,
	})
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(payload notifications.Payload) {
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Content = strings.TrimSpace(payload.Content)
	if payload.Title == "" && payload.Content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", payload.Title, "urgent", payload.Urgent)
	s.sender.Send(payload)
}

func linkDetails(status connectors.ConnectionStatus) string {
	transport := strings.TrimSpace(status.TransportName)
	if transport == "" {
		transport = "unknown"
	}
	target := strings.TrimSpace(status.Target)
	if target == "" {
		return transport
	}

	return transport + " " + target
}

func severityByName(name string) (mavlink.MavSeverity, bool) {
	name = strings.TrimSpace(name)
	for s := mavlink.MavSeverityEmergency; s <= mavlink.MavSeverityDebug; s++ {
		if strings.EqualFold(s.String(), name) {
			return s, true
		}
	}

	return 0, false
}
