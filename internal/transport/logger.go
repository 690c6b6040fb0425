package transport

import "log/slog"

func transportLogger(name, target string, attrs ...any) *slog.Logger {
	logger := slog.With("component", "transport", "transport", name)
	if target != "" {
		logger = logger.With("target", target)
	}
	if len(attrs) == 0 {
		return logger
	}

	return logger.With(attrs...)
}
