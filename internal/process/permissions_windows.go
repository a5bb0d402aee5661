//go:build windows

package process

// EnsureExecutable is a no-op: Windows has no execute permission bit.
func (l *OSLauncher) EnsureExecutable(string) error { return nil }
