package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/procmgr/internal/history"
	"github.com/loykin/procmgr/internal/process"
	"github.com/loykin/procmgr/internal/store"
)

// fakeLauncher records spawn and terminate calls instead of touching the OS.
type fakeLauncher struct {
	mu         sync.Mutex
	nextPID    int
	spawns     []process.SpawnRequest
	terminated []int
	executable []string
	spawnErr   error
	termErr    error
	spawnDelay time.Duration
	spawnHook  func()
	termHook   func(pid int)
}

func newFakeLauncher() *fakeLauncher { return &fakeLauncher{nextPID: 1000} }

func (f *fakeLauncher) Spawn(req process.SpawnRequest) (int, error) {
	if f.spawnDelay > 0 {
		time.Sleep(f.spawnDelay)
	}
	f.mu.Lock()
	hook := f.spawnHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	if _, err := fmt.Fprintf(req.Log, "fake spawn %s\n", req.BinPath); err != nil {
		return 0, err
	}
	req.Log = nil
	f.spawns = append(f.spawns, req)
	f.nextPID++
	return f.nextPID, nil
}

func (f *fakeLauncher) Terminate(pid int) error {
	f.mu.Lock()
	hook := f.termHook
	f.mu.Unlock()
	if hook != nil {
		hook(pid)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return f.termErr
}

func (f *fakeLauncher) EnsureExecutable(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executable = append(f.executable, path)
	return nil
}

func (f *fakeLauncher) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawns)
}

func (f *fakeLauncher) lastSpawn() process.SpawnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spawns[len(f.spawns)-1]
}

func (f *fakeLauncher) terminatedPIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.terminated...)
}

func (f *fakeLauncher) setTermErr(err error) {
	f.mu.Lock()
	f.termErr = err
	f.mu.Unlock()
}

// setSpawnHook installs fn to run at the start of every Spawn.
func (f *fakeLauncher) setSpawnHook(fn func()) {
	f.mu.Lock()
	f.spawnHook = fn
	f.mu.Unlock()
}

// setTermHook installs fn to run at the start of every Terminate.
func (f *fakeLauncher) setTermHook(fn func(pid int)) {
	f.mu.Lock()
	f.termHook = fn
	f.mu.Unlock()
}

func (f *fakeLauncher) setSpawnErr(err error) {
	f.mu.Lock()
	f.spawnErr = err
	f.mu.Unlock()
}

// memorySink keeps events in memory and answers history queries.
type memorySink struct {
	mu     sync.Mutex
	events []history.Event
}

func (s *memorySink) Send(_ context.Context, e history.Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) types() []history.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]history.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

type failingSink struct{}

func (failingSink) Send(context.Context, history.Event) error { return fmt.Errorf("sink down") }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Unix(1700000000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	m        *Manager
	launcher *fakeLauncher
	sink     *memorySink
	clock    *clock
	store    *store.Store
	dir      string
	bin      string
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	bin := writeBinary(t, dir, "app")
	f := &fixture{
		launcher: newFakeLauncher(),
		sink:     &memorySink{},
		clock:    newClock(),
		store:    store.New(filepath.Join(dir, "config", store.FileName)),
		dir:      dir,
		bin:      bin,
	}
	f.m = New(Options{
		Store:    f.store,
		Launcher: f.launcher,
		Logger:   discardLogger(),
		LogDir:   filepath.Join(dir, "logs"),
		Sinks:    []history.Sink{f.sink},
		Version:  "1.2.3",
		Now:      f.clock.Now,
	})
	return f
}

func writeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return p
}

func (f *fixture) create(t *testing.T, name string) process.Config {
	t.Helper()
	c, err := f.m.Create(process.CreateRequest{Name: name, BinPath: f.bin})
	require.NoError(t, err)
	return c
}
