package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/loykin/procmgr/internal/process"
)

// FileName is the name of the configuration document.
const FileName = "process_configs.json"

// Table is the in-memory configuration table keyed by process id.
type Table map[string]process.Config

// Store keeps process configurations in memory and mirrors them to a single
// JSON document. All methods are safe for concurrent use. Disk I/O never
// happens while the table lock is held.
type Store struct {
	path string

	// saveMu serializes snapshot-and-write so the last save on disk carries
	// the newest snapshot.
	saveMu sync.Mutex

	mu      sync.Mutex
	configs Table
}

func New(path string) *Store {
	return &Store{path: path, configs: make(Table)}
}

// Path returns the location of the JSON document.
func (s *Store) Path() string { return s.path }

// Load replaces the table with the contents of the document and returns the
// number of entries loaded. A missing document yields an empty table.
func (s *Store) Load() (int, error) {
	configs, err := readDocument(s.path)
	if err != nil {
		return 0, err
	}
	tbl := make(Table, len(configs))
	for _, c := range configs {
		if strings.TrimSpace(c.ID) == "" {
			return 0, fmt.Errorf("%w: %s: entry %q has no id", process.ErrPersistence, s.path, c.Name)
		}
		if _, dup := tbl[c.ID]; dup {
			return 0, fmt.Errorf("%w: %s: duplicate id %s", process.ErrPersistence, s.path, c.ID)
		}
		tbl[c.ID] = c
	}
	s.mu.Lock()
	s.configs = tbl
	s.mu.Unlock()
	return len(tbl), nil
}

// Save rewrites the whole document from a snapshot of the table. The
// document is replaced atomically, so readers never see a partial write.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return writeDocument(s.path, s.Snapshot())
}

// Snapshot returns copies of all entries ordered by creation time, then id.
func (s *Store) Snapshot() []process.Config {
	s.mu.Lock()
	out := make([]process.Config, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c.Clone())
	}
	s.mu.Unlock()
	sortConfigs(out)
	return out
}

// Get returns a copy of the entry for id.
func (s *Store) Get(id string) (process.Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.configs[id]
	if !ok {
		return process.Config{}, false
	}
	return c.Clone(), true
}

// IDs returns every id in snapshot order.
func (s *Store) IDs() []string {
	snap := s.Snapshot()
	ids := make([]string, len(snap))
	for i, c := range snap {
		ids[i] = c.ID
	}
	return ids
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.configs)
}

// View runs fn with the table locked for reading. fn must not retain tbl or
// perform I/O; it may take locks ordered after the configuration lock.
func (s *Store) View(fn func(tbl Table)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.configs)
}

// Mutate runs fn with the table locked for writing. The same constraints as
// View apply.
func (s *Store) Mutate(fn func(tbl Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.configs)
}

func sortConfigs(cs []process.Config) {
	slices.SortFunc(cs, func(a, b process.Config) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt < b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func readDocument(path string) ([]process.Config, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open config file %s: %w", process.ErrPersistence, path, err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var configs []process.Config
	if err := json.Unmarshal(b, &configs); err != nil {
		return nil, fmt.Errorf("%w: parse config file %s: %w", process.ErrPersistence, path, err)
	}
	return configs, nil
}

func writeDocument(path string, configs []process.Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: create config directory %s: %w", process.ErrPersistence, dir, err)
		}
	}
	b, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode configs: %w", process.ErrPersistence, err)
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create config file %s: %w", process.ErrPersistence, path, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write config file %s: %w", process.ErrPersistence, path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync config file %s: %w", process.ErrPersistence, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close config file %s: %w", process.ErrPersistence, path, err)
	}
	if err := os.Rename(tmp, filepath.Clean(path)); err != nil {
		return fmt.Errorf("%w: replace config file %s: %w", process.ErrPersistence, path, err)
	}
	return nil
}
