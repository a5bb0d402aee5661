package process

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultGracePeriod is the wait between the interrupt and the kill signal.
const DefaultGracePeriod = time.Second

const pollInterval = 50 * time.Millisecond

// SpawnRequest describes one launch of a managed binary.
type SpawnRequest struct {
	BinPath string
	Args    []string
	WorkDir string   // explicit working directory; empty derives it from BinPath
	Env     []string // nil inherits the supervisor environment
	Log     *os.File // receives stdout, stderr and the spawn banner; not closed by Spawn
	Elevate bool
}

// Launcher performs the OS side of the lifecycle: spawning, terminating and
// preparing binaries. One implementation exists per platform family.
type Launcher interface {
	Spawn(req SpawnRequest) (int, error)
	Terminate(pid int) error
	EnsureExecutable(path string) error
}

// OSLauncher is the Launcher backed by os/exec and platform signals.
type OSLauncher struct {
	logger   *slog.Logger
	grace    time.Duration
	lookPath func(string) (string, error)
}

func NewLauncher(logger *slog.Logger, grace time.Duration) *OSLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &OSLauncher{logger: logger, grace: grace, lookPath: exec.LookPath}
}

// Spawn starts the binary with stdout and stderr redirected to req.Log and
// returns the new PID. A goroutine reaps the child once it exits; runtime
// bookkeeping stays with the caller.
func (l *OSLauncher) Spawn(req SpawnRequest) (int, error) {
	if req.Log == nil {
		return 0, fmt.Errorf("%w: %s: no log sink", ErrSpawn, req.BinPath)
	}
	cmdline := strings.TrimSpace(req.BinPath + " " + strings.Join(req.Args, " "))
	if _, err := fmt.Fprintf(req.Log, "Spawning process: %s (admin: %t)\n", cmdline, req.Elevate); err != nil {
		return 0, fmt.Errorf("%w: write log banner: %w", ErrSpawn, err)
	}
	l.logger.Info("starting process", "bin", req.BinPath, "args", req.Args, "admin", req.Elevate)

	dir := l.workDir(req)
	bin := req.BinPath
	if !filepath.IsAbs(bin) {
		if abs, err := filepath.Abs(bin); err == nil {
			bin = abs
		}
	}

	cmd := l.command(bin, req.Args, req.Elevate)
	cmd.Dir = dir
	cmd.Env = req.Env
	cmd.Stdout = req.Log
	cmd.Stderr = req.Log
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		l.logger.Error("failed to spawn process", "bin", req.BinPath, "error", err)
		return 0, fmt.Errorf("%w: %s: %w", ErrSpawn, req.BinPath, err)
	}
	pid := cmd.Process.Pid
	l.logger.Info("child process started", "pid", pid, "dir", dir)
	go l.reap(cmd, pid)
	return pid, nil
}

func (l *OSLauncher) workDir(req SpawnRequest) string {
	if req.WorkDir != "" {
		return req.WorkDir
	}
	if filepath.IsAbs(req.BinPath) {
		return filepath.Dir(req.BinPath)
	}
	l.logger.Warn("could not determine working directory from binary path, using current directory", "bin", req.BinPath)
	return ""
}

func (l *OSLauncher) reap(cmd *exec.Cmd, pid int) {
	err := cmd.Wait()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	l.logger.Debug("child process exited", "pid", pid, "exit_code", code, "error", err)
}
