package notifications

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// DesktopSender shows notifications through the desktop notification
// service of the host.
type DesktopSender struct {
	logger *slog.Logger
	notify func(title, message string, icon any) error
	alert  func(title, message string, icon any) error
}

func NewDesktopSender(appName string, logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}
	if appName != "" {
		beeep.AppName = appName
	}

	return &DesktopSender{
		logger: logger,
		notify: beeep.Notify,
		alert:  beeep.Alert,
	}
}

// Send never blocks the caller on a slow notification daemon.
func (s *DesktopSender) Send(payload Payload) {
	show := s.notify
	if payload.Urgent {
		show = s.alert
	}

	go func() {
		if err := show(payload.Title, payload.Content, ""); err != nil {
			s.logger.Warn("show notification", "title", payload.Title, "error", err)
		}
	}()
}
