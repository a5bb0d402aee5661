package client

import "time"

// ProcessConfig is the persisted launch configuration of a managed process.
type ProcessConfig struct {
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

// CreateRequest creates a process. Nil optional fields take server defaults.
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

// UpdateRequest patches a process. Nil fields are left unchanged.
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

// ProcessStatus joins a configuration with its runtime state.
type ProcessStatus struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	IsRunning    bool          `json:"is_running"`
	PID          *int          `json:"pid"`
	StartedAt    *int64        `json:"started_at"`
	RestartCount uint32        `json:"restart_count"`
	LastExitCode *int32        `json:"last_exit_code"`
	Config       ProcessConfig `json:"config"`
}

// Summary is the aggregate status of all processes.
type Summary struct {
	Processes        []ProcessStatus `json:"processes"`
	TotalProcesses   int             `json:"total_processes"`
	RunningProcesses int             `json:"running_processes"`
}

type LogResult struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LogContent   string `json:"log_content"`
	TotalLines   int    `json:"total_lines"`
	FetchedLines int    `json:"fetched_lines"`
}

type Usage struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
	MemoryRSS  uint64  `json:"memory_rss"`
	MemoryVMS  uint64  `json:"memory_vms"`
	NumThreads int32   `json:"num_threads"`
	NumFDs     int32   `json:"num_fds"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryEvent is one recorded start or stop.
type HistoryEvent struct {
	Type       string `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     struct {
		ProcessID string `json:"process_id"`
		Name      string `json:"name"`
		PID       int    `json:"pid"`
		StartedAt int64  `json:"started_at,omitempty"`
		ExitCode  int32  `json:"exit_code"`
		Error     string `json:"error,omitempty"`
	} `json:"record"`
}

type Version struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
