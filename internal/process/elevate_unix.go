//go:build !windows

package process

import "os/exec"

// command builds the exec.Cmd for a launch. Elevation goes through sudo when
// it is on PATH and degrades to an unelevated launch otherwise.
func (l *OSLauncher) command(bin string, args []string, elevate bool) *exec.Cmd {
	if elevate {
		if helper, err := l.lookPath(sudoHelper); err == nil {
			l.logger.Info("running process with root privileges using sudo", "bin", bin)
			name, argv := elevatedArgv(helper, bin, args)
			// #nosec G204
			return exec.Command(name, argv...)
		}
		l.logger.Warn("sudo not available, running without elevated privileges", "bin", bin)
	}
	// #nosec G204
	return exec.Command(bin, args...)
}
