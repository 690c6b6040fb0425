package platform

import (
	"errors"
	"strings"
)

// ErrLinkInUse indicates another process already owns the link endpoint.
var ErrLinkInUse = errors.New("link endpoint already in use")

// ErrLinkLockUnsupported indicates the current platform has no lock backend.
var ErrLinkLockUnsupported = errors.New("link lock unsupported")

const lockNamespace = "groundlink"

// LinkLock is held for as long as a process drives one link endpoint, so two
// ground stations never share a serial device or a bound port.
type LinkLock interface {
	Release() error
}

// AcquireLinkLock takes the lock for endpoint, e.g. "serial:/dev/ttyACM0".
// It fails with ErrLinkInUse while another process holds it.
func AcquireLinkLock(endpoint string) (LinkLock, error) {
	return acquireLinkLock(normalizeLockComponent(endpoint, "link"))
}

func normalizeLockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
