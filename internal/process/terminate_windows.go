//go:build windows

package process

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
)

// Terminate force-kills pid with taskkill. The command's exit status decides
// the outcome; its stderr is decoded into the returned error.
func (l *OSLauncher) Terminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: invalid pid %d", ErrTermination, pid)
	}
	l.logger.Info("attempting to terminate process", "pid", pid)

	// #nosec G204
	cmd := exec.Command("taskkill", "/F", "/PID", strconv.Itoa(pid))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := decodeDiagnostic(stderr.Bytes())
		l.logger.Error("failed to terminate process", "pid", pid, "error", msg)
		return fmt.Errorf("%w: taskkill pid %d: %s: %w", ErrTermination, pid, msg, err)
	}
	l.logger.Info("terminated process", "pid", pid)
	return nil
}
