package main

import "time"

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
	CACert     string // trust this CA for an HTTPS daemon
	Insecure   bool
}

// ProcessFlags holds the launch fields accepted by create and update.
type ProcessFlags struct {
	Name        string
	BinPath     string
	Args        []string
	LogFile     string
	WorkDir     string
	EnvKVs      []string
	AutoRestart bool
	RunAsAdmin  bool
	// update only
	ClearArgs bool
	ClearEnv  bool
}

type LogsFlags struct {
	Lines int
}

type HistoryFlags struct {
	Limit int
}
