package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/procmgr/internal/env"
	"github.com/loykin/procmgr/internal/history"
	"github.com/loykin/procmgr/internal/metrics"
	"github.com/loykin/procmgr/internal/process"
	"github.com/loykin/procmgr/internal/store"
)

// ServiceName identifies this service in version responses and logs.
const ServiceName = "procmgr"

const historyTimeout = 5 * time.Second

// Options configures a Manager. Store and Launcher are required.
type Options struct {
	Store    *store.Store
	Launcher process.Launcher
	Logger   *slog.Logger
	// Env holds service-wide variables layered over the OS environment of
	// every child. Nil inherits the OS environment unchanged.
	Env *env.Env
	// LogDir anchors default log files. Empty means the current directory.
	LogDir  string
	Sinks   []history.Sink
	Version string
	Now     func() time.Time
}

// Manager creates, starts, stops and tracks managed processes. Configuration
// lives in the store; runtime state lives only in memory.
//
// Locks are always taken store first, then the runtime table, and both are
// released before any disk I/O, spawn or termination.
type Manager struct {
	store    *store.Store
	launcher process.Launcher
	logger   *slog.Logger
	env      *env.Env
	logDir   string
	sinks    []history.Sink
	version  string
	now      func() time.Time

	rtMu     sync.Mutex
	runtimes map[string]*runtime
}

func New(opts Options) *Manager {
	m := &Manager{
		store:    opts.Store,
		launcher: opts.Launcher,
		logger:   opts.Logger,
		env:      opts.Env,
		logDir:   opts.LogDir,
		sinks:    append([]history.Sink(nil), opts.Sinks...),
		version:  opts.Version,
		now:      opts.Now,
		runtimes: make(map[string]*runtime),
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.version == "" {
		m.version = "dev"
	}
	return m
}

// Load reads the configuration document and resets every runtime to its zero
// state. It returns the number of configurations loaded.
func (m *Manager) Load() (int, error) {
	n, err := m.store.Load()
	if err != nil {
		return 0, err
	}
	m.store.View(func(tbl store.Table) {
		m.rtMu.Lock()
		defer m.rtMu.Unlock()
		m.runtimes = make(map[string]*runtime, len(tbl))
		for id := range tbl {
			m.runtimes[id] = newRuntime()
		}
	})
	m.logger.Info("loaded process configurations", "count", n, "path", m.store.Path())
	return n, nil
}

// Create validates req, stores a new configuration and persists the table.
func (m *Manager) Create(req process.CreateRequest) (process.Config, error) {
	if err := req.Validate(); err != nil {
		return process.Config{}, err
	}
	if err := process.CheckBinary(req.BinPath); err != nil {
		return process.Config{}, err
	}

	id := uuid.NewString()
	now := m.now().Unix()
	c := process.Config{
		ID:         id,
		Name:       req.Name,
		BinPath:    req.BinPath,
		Args:       slices.Clone(req.Args),
		LogFile:    m.defaultLogFile(id),
		WorkingDir: req.WorkingDir,
		EnvVars:    req.EnvVars,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if c.Args == nil {
		c.Args = []string{}
	}
	if req.LogFile != nil && strings.TrimSpace(*req.LogFile) != "" {
		c.LogFile = *req.LogFile
	}
	if req.AutoRestart != nil {
		c.AutoRestart = *req.AutoRestart
	}
	if req.RunAsAdmin != nil {
		c.RunAsAdmin = *req.RunAsAdmin
	}
	c = c.Clone()

	_ = m.store.Mutate(func(tbl store.Table) error {
		tbl[id] = c
		m.rtMu.Lock()
		m.runtimes[id] = newRuntime()
		m.rtMu.Unlock()
		return nil
	})
	m.persist("create", id)
	m.logger.Info("process created", "id", id, "name", c.Name, "bin", c.BinPath)
	return c.Clone(), nil
}

func (m *Manager) defaultLogFile(id string) string {
	name := fmt.Sprintf("process_%s.log", id)
	if m.logDir == "" {
		return name
	}
	return filepath.Join(m.logDir, name)
}

// Update applies the present fields of patch to the configuration of id.
func (m *Manager) Update(id string, patch process.UpdateRequest) (process.Config, error) {
	if _, ok := m.store.Get(id); !ok {
		return process.Config{}, notFound(id)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return process.Config{}, fmt.Errorf("%w: name must not be empty", process.ErrValidation)
	}
	if patch.BinPath != nil {
		if strings.TrimSpace(*patch.BinPath) == "" {
			return process.Config{}, fmt.Errorf("%w: bin_path must not be empty", process.ErrValidation)
		}
		if err := process.CheckBinary(*patch.BinPath); err != nil {
			return process.Config{}, err
		}
	}

	now := m.now().Unix()
	var out process.Config
	err := m.store.Mutate(func(tbl store.Table) error {
		c, ok := tbl[id]
		if !ok {
			return notFound(id)
		}
		patch.Apply(&c)
		// updated_at strictly advances even when the clock has not
		c.UpdatedAt = max(now, c.UpdatedAt+1)
		tbl[id] = c
		out = c.Clone()
		return nil
	})
	if err != nil {
		return process.Config{}, err
	}
	m.persist("update", id)
	m.logger.Info("process updated", "id", id, "name", out.Name)
	return out, nil
}

// Delete stops the process if needed and removes its configuration. Starts
// of id are rejected from the moment Delete begins. When the stop fails the
// configuration is kept and the termination error returned.
func (m *Manager) Delete(id string) error {
	c, rt, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !rt.retire() {
		return fmt.Errorf("%w: %s is being deleted", process.ErrNotFound, id)
	}
	if err := m.Stop(id); err != nil {
		rt.abandon()
		m.logger.Warn("delete aborted, process could not be stopped", "id", id, "name", c.Name)
		return err
	}
	err = m.store.Mutate(func(tbl store.Table) error {
		if _, ok := tbl[id]; !ok {
			return notFound(id)
		}
		delete(tbl, id)
		m.rtMu.Lock()
		delete(m.runtimes, id)
		m.rtMu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	m.persist("delete", id)
	metrics.Forget(c.Name)
	m.logger.Info("process deleted", "id", id, "name", c.Name)
	return nil
}

// Get returns the joined configuration and runtime view of id.
func (m *Manager) Get(id string) (process.Status, error) {
	var (
		st process.Status
		ok bool
	)
	m.store.View(func(tbl store.Table) {
		var c process.Config
		if c, ok = tbl[id]; !ok {
			return
		}
		st = m.runtimeLocked(id).status(c.Clone())
	})
	if !ok {
		return process.Status{}, notFound(id)
	}
	return st, nil
}

// List returns every process ordered by creation time, then id.
func (m *Manager) List() []process.Status {
	var out []process.Status
	m.store.View(func(tbl store.Table) {
		out = make([]process.Status, 0, len(tbl))
		for id, c := range tbl {
			out = append(out, m.runtimeLocked(id).status(c.Clone()))
		}
	})
	slices.SortFunc(out, func(a, b process.Status) int {
		if a.Config.CreatedAt != b.Config.CreatedAt {
			if a.Config.CreatedAt < b.Config.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Summary returns every process plus total and running counts.
func (m *Manager) Summary() process.Summary {
	list := m.List()
	running := 0
	for _, st := range list {
		if st.IsRunning {
			running++
		}
	}
	return process.Summary{Processes: list, TotalProcesses: len(list), RunningProcesses: running}
}

func (m *Manager) Version() process.Version {
	return process.Version{Service: ServiceName, Version: m.version}
}

// Start launches the configured binary of id. Concurrent starts of one id
// spawn at most once; the losers get ErrAlreadyRunning.
func (m *Manager) Start(id string) error {
	c, rt, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !rt.claim() {
		if rt.deleting.Load() {
			return fmt.Errorf("%w: %s is being deleted", process.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %s (%s)", process.ErrAlreadyRunning, c.Name, id)
	}
	defer rt.release()

	begin := time.Now()
	if err := process.CheckBinary(c.BinPath); err != nil {
		return err
	}
	if err := m.launcher.EnsureExecutable(c.BinPath); err != nil {
		return err
	}
	logf, err := openLog(c.LogFile)
	if err != nil {
		metrics.IncStartFailure(c.Name)
		return err
	}
	pid, err := m.launcher.Spawn(process.SpawnRequest{
		BinPath: c.BinPath,
		Args:    c.Args,
		WorkDir: c.WorkDir(),
		Env:     m.childEnv(c),
		Log:     logf,
		Elevate: c.RunAsAdmin,
	})
	// the child holds its own descriptor
	_ = logf.Close()
	if err != nil {
		metrics.IncStartFailure(c.Name)
		m.logger.Error("failed to start process", "id", id, "name", c.Name, "error", err)
		if !errors.Is(err, process.ErrSpawn) {
			err = fmt.Errorf("%w: %s: %w", process.ErrSpawn, c.BinPath, err)
		}
		return err
	}

	startedAt := m.now().Unix()
	rt.markStarted(pid, startedAt)
	metrics.IncStart(c.Name)
	metrics.ObserveSpawnDuration(c.Name, time.Since(begin).Seconds())
	m.logger.Info("process started", "id", id, "name", c.Name, "pid", pid)
	m.emit(history.Started(id, c.Name, pid, startedAt))
	return nil
}

// Stop terminates the recorded PID of id. Stopping a process without a PID
// is a successful no-op. The runtime is cleared whatever the outcome.
func (m *Manager) Stop(id string) error {
	c, rt, err := m.lookup(id)
	if err != nil {
		return err
	}
	pid, startedAt := rt.takePID()
	if pid <= 0 {
		m.logger.Warn("no running process to stop", "id", id, "name", c.Name)
		return nil
	}

	if err := m.launcher.Terminate(int(pid)); err != nil {
		rt.lastExit.Store(-1)
		metrics.IncStopFailure(c.Name)
		m.logger.Error("failed to stop process", "id", id, "name", c.Name, "pid", pid, "error", err)
		if !errors.Is(err, process.ErrTermination) {
			err = fmt.Errorf("%w: pid %d: %w", process.ErrTermination, pid, err)
		}
		m.emit(history.Stopped(id, c.Name, int(pid), startedAt, -1, err))
		return err
	}
	rt.lastExit.Store(0)
	metrics.IncStop(c.Name)
	m.logger.Info("process stopped", "id", id, "name", c.Name, "pid", pid)
	m.emit(history.Stopped(id, c.Name, int(pid), startedAt, 0, nil))
	return nil
}

// Logs returns the last maxLines lines of the log file of id. A negative
// maxLines selects DefaultLogLines; zero fetches no lines but still reports
// the total. A missing log file yields an empty result.
func (m *Manager) Logs(id string, maxLines int) (process.LogResult, error) {
	c, ok := m.store.Get(id)
	if !ok {
		return process.LogResult{}, notFound(id)
	}
	lines, total, err := tailFile(c.LogFile, maxLines)
	if err != nil {
		return process.LogResult{}, err
	}
	return process.LogResult{
		ID:           id,
		Name:         c.Name,
		LogContent:   strings.Join(lines, "\n"),
		TotalLines:   total,
		FetchedLines: len(lines),
	}, nil
}

// History returns recent lifecycle events of id from the first sink that
// can be queried. Without such a sink the result is empty.
func (m *Manager) History(ctx context.Context, id string, limit int) ([]history.Event, error) {
	if _, ok := m.store.Get(id); !ok {
		return nil, notFound(id)
	}
	for _, s := range m.sinks {
		if q, ok := s.(history.Querier); ok {
			events, err := q.Recent(ctx, id, limit)
			if err != nil {
				return nil, fmt.Errorf("query history of %s: %w", id, err)
			}
			return events, nil
		}
	}
	return []history.Event{}, nil
}

// Usage samples CPU and memory of the running process of id.
func (m *Manager) Usage(ctx context.Context, id string) (metrics.Usage, error) {
	c, rt, err := m.lookup(id)
	if err != nil {
		return metrics.Usage{}, err
	}
	pid := rt.pid.Load()
	if !rt.running.Load() || pid <= 0 {
		return metrics.Usage{}, fmt.Errorf("%w: process %s is not running", process.ErrValidation, c.Name)
	}
	if !process.Alive(int(pid)) {
		return metrics.Usage{}, fmt.Errorf("%w: process %s (pid %d) has exited", process.ErrValidation, c.Name, pid)
	}
	u, err := metrics.Sample(ctx, int(pid))
	if err != nil {
		return metrics.Usage{}, fmt.Errorf("sample %s: %w", c.Name, err)
	}
	return u, nil
}

// Targets lists the running processes for scrape-time usage sampling.
func (m *Manager) Targets() []metrics.Target {
	var out []metrics.Target
	for _, st := range m.List() {
		if st.IsRunning && st.PID != nil {
			out = append(out, metrics.Target{Name: st.Name, PID: *st.PID})
		}
	}
	return out
}

// AutoStartAll starts every configured process. Failures are logged and do
// not stop the remaining starts. It returns the number started.
func (m *Manager) AutoStartAll() int {
	started := 0
	for _, id := range m.store.IDs() {
		if err := m.Start(id); err != nil {
			if errors.Is(err, process.ErrAlreadyRunning) {
				m.logger.Debug("auto-start skipped, already running", "id", id)
				continue
			}
			m.logger.Error("auto-start failed", "id", id, "error", err)
			continue
		}
		started++
	}
	m.logger.Info("auto-start finished", "started", started, "total", m.store.Len())
	return started
}

// ShutdownAll stops every process that has a PID, concurrently. Failures are
// logged and do not stop the remaining shutdowns.
func (m *Manager) ShutdownAll() {
	var wg sync.WaitGroup
	for _, st := range m.List() {
		if st.PID == nil {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.Stop(id); err != nil {
				m.logger.Error("shutdown stop failed", "id", id, "error", err)
			}
		}(st.ID)
	}
	wg.Wait()
}

func (m *Manager) lookup(id string) (process.Config, *runtime, error) {
	var (
		c  process.Config
		rt *runtime
		ok bool
	)
	m.store.View(func(tbl store.Table) {
		if c, ok = tbl[id]; ok {
			c = c.Clone()
			rt = m.runtimeLocked(id)
		}
	})
	if !ok {
		return process.Config{}, nil, notFound(id)
	}
	return c, rt, nil
}

// runtimeLocked returns the runtime of id, creating it if absent. The caller
// holds the store lock.
func (m *Manager) runtimeLocked(id string) *runtime {
	m.rtMu.Lock()
	defer m.rtMu.Unlock()
	rt, ok := m.runtimes[id]
	if !ok {
		rt = newRuntime()
		m.runtimes[id] = rt
	}
	return rt
}

func (m *Manager) childEnv(c process.Config) []string {
	if c.EnvVars == nil && m.env.Empty() {
		return nil
	}
	e := m.env
	if e == nil {
		e = env.New()
	}
	return e.Merge(c.EnvVars)
}

// persist writes the configuration document. Failures are logged only: the
// in-memory mutation already happened and stays.
func (m *Manager) persist(op, id string) {
	if err := m.store.Save(); err != nil {
		m.logger.Error("failed to persist process configurations", "op", op, "id", id, "error", err)
	}
}

func (m *Manager) emit(e history.Event) {
	if len(m.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	for _, s := range m.sinks {
		if err := s.Send(ctx, e); err != nil {
			metrics.IncHistoryFailure(string(e.Type))
			m.logger.Warn("history sink rejected event", "type", e.Type, "id", e.Record.ProcessID, "error", err)
		}
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", process.ErrNotFound, id)
}
