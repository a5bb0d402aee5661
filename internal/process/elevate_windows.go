//go:build windows

package process

import "os/exec"

// command builds the exec.Cmd for a launch. Elevated launches go through
// PowerShell Start-Process -Verb RunAs; the returned PID is the PowerShell host.
func (l *OSLauncher) command(bin string, args []string, elevate bool) *exec.Cmd {
	if elevate {
		l.logger.Info("running process with administrator privileges", "bin", bin)
		// #nosec G204
		return exec.Command("powershell", "-Command", startProcessScript(bin, args))
	}
	// #nosec G204
	return exec.Command(bin, args...)
}
