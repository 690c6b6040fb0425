//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type unixLinkLock struct {
	file *os.File
}

func acquireLinkLock(name string) (LinkLock, error) {
	lockPath, err := unixLinkLockPath(name)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- lockPath is built from process-owned runtime/temp directories.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open link lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if isUnixLockContention(err) {
			return nil, ErrLinkInUse
		}

		return nil, fmt.Errorf("acquire link file lock: %w", err)
	}
	// The pid is informational, for whoever finds the lock held.
	_ = file.Truncate(0)
	_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)

	return &unixLinkLock{file: file}, nil
}

func (l *unixLinkLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	unlockErr := syscall.Flock(fd, syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock link file lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close link lock file: %w", closeErr)
	}

	return nil
}

// unixLinkLockPath places locks under $XDG_RUNTIME_DIR/groundlink, or a
// per-user directory in the temp dir.
func unixLinkLockPath(name string) (string, error) {
	lockDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if lockDir != "" {
		lockDir = filepath.Join(lockDir, lockNamespace)
	} else {
		lockDir = filepath.Join(os.TempDir(), lockNamespace+"-"+strconv.Itoa(os.Getuid()))
	}

	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return "", fmt.Errorf("create link lock dir: %w", err)
	}

	return filepath.Join(lockDir, name+".lock"), nil
}

func isUnixLockContention(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
