package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/procmgr/internal/env"
	"github.com/loykin/procmgr/internal/history"
	"github.com/loykin/procmgr/internal/history/sqlite"
	"github.com/loykin/procmgr/internal/process"
	"github.com/loykin/procmgr/internal/store"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateAssignsUniqueIDsAndDefaults(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, "alpha")
	b := f.create(t, "beta")

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, filepath.Join(f.dir, "logs", "process_"+a.ID+".log"), a.LogFile)
	assert.Equal(t, []string{}, a.Args)
	assert.False(t, a.AutoRestart)
	assert.False(t, a.RunAsAdmin)
	assert.Nil(t, a.WorkingDir)
	assert.Nil(t, a.EnvVars)
	assert.Equal(t, int64(1700000000), a.CreatedAt)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	st, err := f.m.Get(a.ID)
	require.NoError(t, err)
	assert.False(t, st.IsRunning)
	assert.Nil(t, st.PID)
	assert.Nil(t, st.StartedAt)
	assert.Nil(t, st.LastExitCode)
	assert.Equal(t, uint32(0), st.RestartCount)

	// every create is persisted
	reloaded := store.New(f.store.Path())
	n, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, ok := reloaded.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestCreateHonoursOptionalFields(t *testing.T) {
	f := newFixture(t)
	wd := f.dir
	c, err := f.m.Create(process.CreateRequest{
		Name:        "svc",
		BinPath:     f.bin,
		Args:        []string{"--port", "8080"},
		LogFile:     strPtr(filepath.Join(f.dir, "custom.log")),
		WorkingDir:  &wd,
		EnvVars:     map[string]string{"MODE": "prod"},
		AutoRestart: boolPtr(true),
		RunAsAdmin:  boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"--port", "8080"}, c.Args)
	assert.Equal(t, filepath.Join(f.dir, "custom.log"), c.LogFile)
	assert.Equal(t, wd, *c.WorkingDir)
	assert.Equal(t, map[string]string{"MODE": "prod"}, c.EnvVars)
	assert.True(t, c.AutoRestart)
	assert.True(t, c.RunAsAdmin)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]process.CreateRequest{
		"empty name":     {Name: " ", BinPath: f.bin},
		"empty bin":      {Name: "x"},
		"missing binary": {Name: "x", BinPath: filepath.Join(f.dir, "nope")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.m.Create(req)
			assert.ErrorIs(t, err, process.ErrValidation)
		})
	}
	assert.Empty(t, f.m.List())
	_, statErr := os.Stat(f.store.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing should be persisted")
}

func TestCreateDefaultLogFileWithoutLogDir(t *testing.T) {
	f := newFixture(t)
	f.m.logDir = ""
	c := f.create(t, "cwd")
	assert.Equal(t, "process_"+c.ID+".log", c.LogFile)
}

func TestUpdatePartialFields(t *testing.T) {
	f := newFixture(t)
	c, err := f.m.Create(process.CreateRequest{Name: "orig", BinPath: f.bin, Args: []string{"a"}, RunAsAdmin: boolPtr(true)})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	out, err := f.m.Update(c.ID, process.UpdateRequest{Name: strPtr("renamed")})
	require.NoError(t, err)

	assert.Equal(t, "renamed", out.Name)
	assert.Equal(t, c.BinPath, out.BinPath)
	assert.Equal(t, []string{"a"}, out.Args)
	assert.True(t, out.RunAsAdmin)
	assert.Equal(t, c.CreatedAt, out.CreatedAt)
	assert.Equal(t, c.CreatedAt+10, out.UpdatedAt)

	st, err := f.m.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", st.Name)

	reloaded := store.New(f.store.Path())
	_, err = reloaded.Load()
	require.NoError(t, err)
	persisted, _ := reloaded.Get(c.ID)
	assert.Equal(t, "renamed", persisted.Name)
}

func TestUpdateAdvancesTimestampWhenClockStalls(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "x")

	first, err := f.m.Update(c.ID, process.UpdateRequest{AutoRestart: boolPtr(true)})
	require.NoError(t, err)
	second, err := f.m.Update(c.ID, process.UpdateRequest{AutoRestart: boolPtr(false)})
	require.NoError(t, err)

	assert.Greater(t, first.UpdatedAt, c.UpdatedAt)
	assert.Greater(t, second.UpdatedAt, first.UpdatedAt)
}

func TestUpdateClearsCollections(t *testing.T) {
	f := newFixture(t)
	c, err := f.m.Create(process.CreateRequest{Name: "x", BinPath: f.bin, Args: []string{"a"}, EnvVars: map[string]string{"K": "V"}})
	require.NoError(t, err)

	out, err := f.m.Update(c.ID, process.UpdateRequest{Args: []string{}, EnvVars: map[string]string{}})
	require.NoError(t, err)
	assert.Empty(t, out.Args)
	assert.Empty(t, out.EnvVars)
}

func TestUpdateErrors(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "x")

	_, err := f.m.Update("missing", process.UpdateRequest{Name: strPtr("y")})
	assert.ErrorIs(t, err, process.ErrNotFound)

	// an unknown id wins over an invalid patch
	_, err = f.m.Update("missing", process.UpdateRequest{BinPath: strPtr(filepath.Join(f.dir, "gone"))})
	assert.ErrorIs(t, err, process.ErrNotFound)
	assert.NotErrorIs(t, err, process.ErrValidation)

	_, err = f.m.Update(c.ID, process.UpdateRequest{BinPath: strPtr(filepath.Join(f.dir, "gone"))})
	assert.ErrorIs(t, err, process.ErrValidation)

	_, err = f.m.Update(c.ID, process.UpdateRequest{Name: strPtr("")})
	assert.ErrorIs(t, err, process.ErrValidation)

	st, err := f.m.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.bin, st.Config.BinPath)
	assert.Equal(t, "x", st.Name)
	assert.Equal(t, c.UpdatedAt, st.Config.UpdatedAt)
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")

	require.NoError(t, f.m.Start(c.ID))
	st, err := f.m.Get(c.ID)
	require.NoError(t, err)
	require.True(t, st.IsRunning)
	require.NotNil(t, st.PID)
	require.NotNil(t, st.StartedAt)
	pid := *st.PID
	assert.Equal(t, int64(1700000000), *st.StartedAt)
	assert.Equal(t, []string{f.bin}, f.launcher.executable)

	// second start is rejected and leaves the PID alone
	err = f.m.Start(c.ID)
	assert.ErrorIs(t, err, process.ErrAlreadyRunning)
	st, _ = f.m.Get(c.ID)
	assert.Equal(t, pid, *st.PID)
	assert.Equal(t, 1, f.launcher.spawnCount())

	require.NoError(t, f.m.Stop(c.ID))
	st, _ = f.m.Get(c.ID)
	assert.False(t, st.IsRunning)
	assert.Nil(t, st.PID)
	assert.Nil(t, st.StartedAt)
	assert.Nil(t, st.LastExitCode)
	assert.Equal(t, []int{pid}, f.launcher.terminatedPIDs())

	assert.Equal(t, []history.EventType{history.EventStart, history.EventStop}, f.sink.types())

	// the spawn banner went to the configured log file
	b, err := os.ReadFile(c.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "fake spawn "+f.bin)

	// it can be started again after a stop
	require.NoError(t, f.m.Start(c.ID))
	assert.Equal(t, 2, f.launcher.spawnCount())
}

func TestStartPassesConfigToLauncher(t *testing.T) {
	f := newFixture(t)
	wd := filepath.Join(f.dir, "work")
	c, err := f.m.Create(process.CreateRequest{
		Name:       "svc",
		BinPath:    f.bin,
		Args:       []string{"-v"},
		WorkingDir: &wd,
		EnvVars:    map[string]string{"PROCMGR_CHILD": "1"},
		RunAsAdmin: boolPtr(true),
	})
	require.NoError(t, err)
	require.NoError(t, f.m.Start(c.ID))

	req := f.launcher.lastSpawn()
	assert.Equal(t, f.bin, req.BinPath)
	assert.Equal(t, []string{"-v"}, req.Args)
	assert.Equal(t, wd, req.WorkDir)
	assert.True(t, req.Elevate)
	assert.Contains(t, req.Env, "PROCMGR_CHILD=1")
}

func TestStartInheritsEnvironmentWhenNothingConfigured(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	require.NoError(t, f.m.Start(c.ID))
	assert.Nil(t, f.launcher.lastSpawn().Env)
}

func TestStartAppliesServiceWideEnv(t *testing.T) {
	f := newFixture(t)
	f.m.env = env.New().WithSet("PROCMGR_GLOBAL", "g")
	c, err := f.m.Create(process.CreateRequest{Name: "svc", BinPath: f.bin, EnvVars: map[string]string{"PROCMGR_LOCAL": "${PROCMGR_GLOBAL}-l"}})
	require.NoError(t, err)
	require.NoError(t, f.m.Start(c.ID))

	got := f.launcher.lastSpawn().Env
	assert.Contains(t, got, "PROCMGR_GLOBAL=g")
	assert.Contains(t, got, "PROCMGR_LOCAL=g-l")
}

func TestStartUnknownAndMissingBinary(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.m.Start("missing"), process.ErrNotFound)

	c := f.create(t, "svc")
	require.NoError(t, os.Remove(f.bin))
	assert.ErrorIs(t, f.m.Start(c.ID), process.ErrValidation)
	assert.Equal(t, 0, f.launcher.spawnCount())

	st, _ := f.m.Get(c.ID)
	assert.False(t, st.IsRunning)
}

func TestStartSpawnFailureLeavesRuntimeUnchanged(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")

	f.launcher.setSpawnErr(errors.New("exec format error"))
	err := f.m.Start(c.ID)
	assert.ErrorIs(t, err, process.ErrSpawn)
	assert.Contains(t, err.Error(), "exec format error")

	st, _ := f.m.Get(c.ID)
	assert.False(t, st.IsRunning)
	assert.Nil(t, st.PID)
	assert.Nil(t, st.StartedAt)
	assert.Empty(t, f.sink.types())

	// the claim was released, so a later start succeeds
	f.launcher.setSpawnErr(nil)
	require.NoError(t, f.m.Start(c.ID))
}

func TestConcurrentStartsSpawnOnce(t *testing.T) {
	f := newFixture(t)
	f.launcher.spawnDelay = 50 * time.Millisecond
	c := f.create(t, "svc")

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		already int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := f.m.Start(c.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, process.ErrAlreadyRunning):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, already)
	assert.Equal(t, 1, f.launcher.spawnCount())
}

func TestStopWithoutPIDIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")

	require.NoError(t, f.m.Stop(c.ID))
	assert.Empty(t, f.launcher.terminatedPIDs())
	assert.Empty(t, f.sink.types())

	assert.ErrorIs(t, f.m.Stop("missing"), process.ErrNotFound)
}

func TestStopFailureSetsSentinel(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	require.NoError(t, f.m.Start(c.ID))

	f.launcher.setTermErr(errors.New("operation not permitted"))
	err := f.m.Stop(c.ID)
	assert.ErrorIs(t, err, process.ErrTermination)

	st, _ := f.m.Get(c.ID)
	assert.False(t, st.IsRunning)
	assert.Nil(t, st.PID)
	assert.Nil(t, st.StartedAt)
	require.NotNil(t, st.LastExitCode)
	assert.Equal(t, int32(-1), *st.LastExitCode)

	// a later successful stop cycle resets the exit code
	f.launcher.setTermErr(nil)
	require.NoError(t, f.m.Start(c.ID))
	require.NoError(t, f.m.Stop(c.ID))
	st, _ = f.m.Get(c.ID)
	assert.Nil(t, st.LastExitCode)
}

func TestConcurrentStopsTerminateOnce(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	require.NoError(t, f.m.Start(c.ID))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.m.Stop(c.ID))
		}()
	}
	wg.Wait()
	assert.Len(t, f.launcher.terminatedPIDs(), 1)
}

func TestDeleteRunningProcess(t *testing.T) {
	f := newFixture(t)
	keep := f.create(t, "keep")
	c := f.create(t, "doomed")
	require.NoError(t, f.m.Start(c.ID))
	st, _ := f.m.Get(c.ID)
	pid := *st.PID

	require.NoError(t, f.m.Delete(c.ID))
	assert.Equal(t, []int{pid}, f.launcher.terminatedPIDs())

	_, err := f.m.Get(c.ID)
	assert.ErrorIs(t, err, process.ErrNotFound)
	assert.ErrorIs(t, f.m.Delete(c.ID), process.ErrNotFound)

	reloaded := store.New(f.store.Path())
	_, err = reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, reloaded.IDs())
}

func TestDeleteKeepsEntryWhenStopFails(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	require.NoError(t, f.m.Start(c.ID))
	f.launcher.setTermErr(errors.New("boom"))

	err := f.m.Delete(c.ID)
	assert.ErrorIs(t, err, process.ErrTermination)
	_, err = f.m.Get(c.ID)
	require.NoError(t, err)

	reloaded := store.New(f.store.Path())
	_, err = reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, reloaded.IDs())

	// the aborted delete releases the runtime
	f.launcher.setTermErr(nil)
	require.NoError(t, f.m.Start(c.ID))
	require.NoError(t, f.m.Delete(c.ID))
	_, err = f.m.Get(c.ID)
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestStartDuringDeleteIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	require.NoError(t, f.m.Start(c.ID))
	st, _ := f.m.Get(c.ID)
	pid := *st.PID

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.launcher.setTermHook(func(int) {
		close(entered)
		<-unblock
	})
	deleted := make(chan error, 1)
	go func() { deleted <- f.m.Delete(c.ID) }()
	<-entered

	// the stop has cleared the running flag but the delete still owns the id
	assert.ErrorIs(t, f.m.Start(c.ID), process.ErrNotFound)
	assert.ErrorIs(t, f.m.Delete(c.ID), process.ErrNotFound)
	close(unblock)
	require.NoError(t, <-deleted)

	assert.Equal(t, 1, f.launcher.spawnCount())
	assert.Equal(t, []int{pid}, f.launcher.terminatedPIDs())
	_, err := f.m.Get(c.ID)
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestDeleteWaitsForInFlightStart(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.launcher.setSpawnHook(func() {
		close(entered)
		<-unblock
	})
	started := make(chan error, 1)
	go func() { started <- f.m.Start(c.ID) }()
	<-entered

	deleted := make(chan error, 1)
	go func() { deleted <- f.m.Delete(c.ID) }()
	select {
	case err := <-deleted:
		t.Fatalf("delete returned %v while a start was in flight", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(unblock)
	require.NoError(t, <-started)
	require.NoError(t, <-deleted)

	// the PID spawned by the in-flight start is terminated, not orphaned
	assert.Equal(t, []int{1001}, f.launcher.terminatedPIDs())
	_, err := f.m.Get(c.ID)
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestListOrderAndSummary(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for _, name := range []string{"c", "a", "b"} {
		ids = append(ids, f.create(t, name).ID)
		f.clock.Advance(time.Second)
	}
	require.NoError(t, f.m.Start(ids[1]))

	list := f.m.List()
	require.Len(t, list, 3)
	for i, st := range list {
		assert.Equal(t, ids[i], st.ID)
	}

	sum := f.m.Summary()
	assert.Equal(t, 3, sum.TotalProcesses)
	assert.Equal(t, 1, sum.RunningProcesses)
	assert.Len(t, sum.Processes, 3)

	targets := f.m.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "a", targets[0].Name)
}

func TestLogs(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")

	// missing file is an empty result, not an error
	res, err := f.m.Logs(c.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, "", res.LogContent)
	assert.Zero(t, res.TotalLines)
	assert.Zero(t, res.FetchedLines)
	assert.Equal(t, c.ID, res.ID)
	assert.Equal(t, "svc", res.Name)

	require.NoError(t, os.MkdirAll(filepath.Dir(c.LogFile), 0o755))
	require.NoError(t, os.WriteFile(c.LogFile, []byte("one\ntwo\nthree\n"), 0o644))

	res, err = f.m.Logs(c.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree", res.LogContent)
	assert.Equal(t, 3, res.TotalLines)
	assert.Equal(t, 3, res.FetchedLines)

	res, err = f.m.Logs(c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "two\nthree", res.LogContent)
	assert.Equal(t, 3, res.TotalLines)
	assert.Equal(t, 2, res.FetchedLines)

	_, err = f.m.Logs("missing", 10)
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestLogsDefaultLimit(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	require.NoError(t, os.MkdirAll(filepath.Dir(c.LogFile), 0o755))
	var sb strings.Builder
	for i := 0; i < 150; i++ {
		sb.WriteString("line\n")
	}
	require.NoError(t, os.WriteFile(c.LogFile, []byte(sb.String()), 0o644))

	res, err := f.m.Logs(c.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 150, res.TotalLines)
	assert.Equal(t, DefaultLogLines, res.FetchedLines)

	res, err = f.m.Logs(c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 150, res.TotalLines)
	assert.Zero(t, res.FetchedLines)
	assert.Equal(t, "", res.LogContent)
}

func TestAutoStartAllIsBestEffort(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "a")
	otherBin := writeBinary(t, f.dir, "other")
	b, err := f.m.Create(process.CreateRequest{Name: "b", BinPath: otherBin})
	require.NoError(t, err)
	c := f.create(t, "c")
	require.NoError(t, f.m.Start(c.ID))
	require.NoError(t, os.Remove(otherBin))

	assert.Equal(t, 1, f.m.AutoStartAll())

	for id, want := range map[string]bool{a.ID: true, b.ID: false, c.ID: true} {
		st, err := f.m.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, st.IsRunning, st.Name)
	}
}

func TestShutdownAllStopsEverything(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "a")
	b := f.create(t, "b")
	_ = f.create(t, "idle")
	require.NoError(t, f.m.Start(a.ID))
	require.NoError(t, f.m.Start(b.ID))
	f.launcher.setTermErr(errors.New("stuck"))

	f.m.ShutdownAll()

	assert.Len(t, f.launcher.terminatedPIDs(), 2)
	assert.Equal(t, 0, f.m.Summary().RunningProcesses)
}

func TestLoadResetsRuntime(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	require.NoError(t, f.m.Start(c.ID))

	fresh := New(Options{Store: store.New(f.store.Path()), Launcher: newFakeLauncher(), Logger: discardLogger()})
	n, err := fresh.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := fresh.Get(c.ID)
	require.NoError(t, err)
	assert.False(t, st.IsRunning)
	assert.Nil(t, st.PID)
	assert.Equal(t, c, st.Config)
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), store.FileName)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	m := New(Options{Store: store.New(path), Launcher: newFakeLauncher(), Logger: discardLogger()})
	_, err := m.Load()
	assert.ErrorIs(t, err, process.ErrPersistence)
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(f.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	f.m.store = store.New(filepath.Join(blocker, store.FileName))

	c, err := f.m.Create(process.CreateRequest{Name: "svc", BinPath: f.bin})
	require.NoError(t, err)
	_, err = f.m.Get(c.ID)
	assert.NoError(t, err)
}

func TestHistoryFromQueryableSink(t *testing.T) {
	f := newFixture(t)
	sink, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	f.m.sinks = []history.Sink{failingSink{}, sink}

	c := f.create(t, "svc")
	require.NoError(t, f.m.Start(c.ID))
	require.NoError(t, f.m.Stop(c.ID))

	events, err := f.m.History(context.Background(), c.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, history.EventStop, events[0].Type)
	assert.Equal(t, history.EventStart, events[1].Type)
	assert.Equal(t, "svc", events[1].Record.Name)

	_, err = f.m.History(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestHistoryWithoutQueryableSink(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	events, err := f.m.History(context.Background(), c.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUsageRequiresRunningProcess(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "svc")
	_, err := f.m.Usage(context.Background(), c.ID)
	assert.ErrorIs(t, err, process.ErrValidation)
	_, err = f.m.Usage(context.Background(), "missing")
	assert.ErrorIs(t, err, process.ErrNotFound)
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, process.Version{Service: ServiceName, Version: "1.2.3"}, f.m.Version())

	m := New(Options{Store: f.store, Launcher: f.launcher})
	assert.Equal(t, "dev", m.Version().Version)
}
