package process

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config is the persisted launch configuration of a managed process.
// The JSON layout is the on-disk format of the configuration document.
type Config struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	BinPath     string            `json:"bin_path"`
	Args        []string          `json:"args"`
	LogFile     string            `json:"log_file"`
	WorkingDir  *string           `json:"working_dir"`
	EnvVars     map[string]string `json:"env_vars"`
	AutoRestart bool              `json:"auto_restart"`
	RunAsAdmin  bool              `json:"run_as_admin"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
}

// Clone returns a deep copy so callers never share slices or maps with a store.
func (c Config) Clone() Config {
	out := c
	if c.Args != nil {
		out.Args = slices.Clone(c.Args)
	}
	if c.EnvVars != nil {
		out.EnvVars = maps.Clone(c.EnvVars)
	}
	if c.WorkingDir != nil {
		wd := *c.WorkingDir
		out.WorkingDir = &wd
	}
	return out
}

// WorkDir returns the explicit working directory, or "" when none is configured.
func (c Config) WorkDir() string {
	if c.WorkingDir == nil {
		return ""
	}
	return strings.TrimSpace(*c.WorkingDir)
}

// CreateRequest carries the fields accepted when a process is created.
// Nil pointers and nil collections mean "use the default".
type CreateRequest struct {
	Name        string            `json:"name"`
	BinPath     string            `json:"bin_path"`
	Args        []string          `json:"args,omitempty"`
	LogFile     *string           `json:"log_file,omitempty"`
	WorkingDir  *string           `json:"working_dir,omitempty"`
	EnvVars     map[string]string `json:"env_vars,omitempty"`
	AutoRestart *bool             `json:"auto_restart,omitempty"`
	RunAsAdmin  *bool             `json:"run_as_admin,omitempty"`
}

// Validate checks the request shape. Binary existence is checked separately.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(r.BinPath) == "" {
		return fmt.Errorf("%w: bin_path is required", ErrValidation)
	}
	return nil
}

// UpdateRequest is a partial patch. A nil field leaves the stored value untouched;
// for Args and EnvVars an empty (non-nil) value clears the stored value.
type UpdateRequest struct {
	Name        *string           `json:"name,omitempty"`
	BinPath     *string           `json:"bin_path,omitempty"`
	Args        []string          `json:"args,omitempty"`
	LogFile     *string           `json:"log_file,omitempty"`
	WorkingDir  *string           `json:"working_dir,omitempty"`
	EnvVars     map[string]string `json:"env_vars,omitempty"`
	AutoRestart *bool             `json:"auto_restart,omitempty"`
	RunAsAdmin  *bool             `json:"run_as_admin,omitempty"`
}

// Apply copies every present field of the patch onto c.
func (r UpdateRequest) Apply(c *Config) {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.BinPath != nil {
		c.BinPath = *r.BinPath
	}
	if r.Args != nil {
		c.Args = slices.Clone(r.Args)
	}
	if r.LogFile != nil {
		c.LogFile = *r.LogFile
	}
	if r.WorkingDir != nil {
		wd := *r.WorkingDir
		c.WorkingDir = &wd
	}
	if r.EnvVars != nil {
		c.EnvVars = maps.Clone(r.EnvVars)
	}
	if r.AutoRestart != nil {
		c.AutoRestart = *r.AutoRestart
	}
	if r.RunAsAdmin != nil {
		c.RunAsAdmin = *r.RunAsAdmin
	}
}

// CheckBinary reports a validation error when path does not name an existing
// filesystem entry.
func CheckBinary(path string) error {
	clean := filepath.Clean(path)
	if _, err := os.Stat(clean); err != nil {
		return fmt.Errorf("%w: binary not found at: %s", ErrValidation, path)
	}
	return nil
}
