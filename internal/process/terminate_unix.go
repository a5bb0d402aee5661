//go:build !windows

package process

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// Terminate stops pid with SIGINT, waits up to the grace period, and sends
// SIGKILL only if the process is still alive. An already-exited PID is success.
func (l *OSLauncher) Terminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: invalid pid %d", ErrTermination, pid)
	}
	if !processExists(pid) {
		l.logger.Info("process already exited", "pid", pid)
		return nil
	}

	l.logger.Info("sending SIGINT", "pid", pid)
	err := syscall.Kill(pid, syscall.SIGINT)
	switch {
	case err == nil:
		if l.waitExit(pid, l.grace) {
			l.logger.Info("process exited after SIGINT", "pid", pid)
			return nil
		}
		l.logger.Warn("process did not terminate after SIGINT, sending SIGKILL", "pid", pid, "grace", l.grace)
	case errors.Is(err, syscall.ESRCH):
		return nil
	default:
		l.logger.Warn("failed to send SIGINT, sending SIGKILL", "pid", pid, "error", err)
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		l.logger.Error("failed to terminate process with SIGKILL", "pid", pid, "error", err)
		return fmt.Errorf("%w: kill pid %d: %w", ErrTermination, pid, err)
	}
	l.logger.Info("terminated process with SIGKILL", "pid", pid)
	return nil
}

// waitExit polls until pid is gone or grace elapses.
func (l *OSLauncher) waitExit(pid int, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for {
		if !processExists(pid) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		time.Sleep(min(pollInterval, remaining))
	}
}
