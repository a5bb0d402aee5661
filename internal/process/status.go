package process

// Status joins a process configuration with its runtime state.
// Fields read from the runtime are sampled independently; a Status is
// approximately consistent, not an atomic snapshot.
type Status struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsRunning    bool   `json:"is_running"`
	PID          *int   `json:"pid"`
	StartedAt    *int64 `json:"started_at"`
	RestartCount uint32 `json:"restart_count"`
	LastExitCode *int32 `json:"last_exit_code"`
	Config       Config `json:"config"`
}

// Summary is the aggregate view returned by the status endpoint.
type Summary struct {
	Processes        []Status `json:"processes"`
	TotalProcesses   int      `json:"total_processes"`
	RunningProcesses int      `json:"running_processes"`
}

// LogResult holds the tail of a process log file.
type LogResult struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LogContent   string `json:"log_content"`
	TotalLines   int    `json:"total_lines"`
	FetchedLines int    `json:"fetched_lines"`
}

// Version identifies the running service.
type Version struct {
	Service string `json:"service"`
	Version string `json:"version"`
}
