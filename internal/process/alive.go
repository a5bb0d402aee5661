package process

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// processExists reports whether pid names a live process. A zombie has
// already exited and only waits to be reaped, so it counts as gone.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsproc.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	if states, err := p.Status(); err == nil {
		for _, s := range states {
			if s == gopsproc.Zombie {
				return false
			}
		}
	}
	return true
}

// Alive reports whether pid names a live, unreaped process. Usage sampling
// uses it to refuse a recorded PID that has already exited.
func Alive(pid int) bool { return processExists(pid) }
