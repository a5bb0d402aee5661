package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/procmgr/internal/config"
	"github.com/loykin/procmgr/internal/history"
	"github.com/loykin/procmgr/internal/history/factory"
	"github.com/loykin/procmgr/internal/logger"
	"github.com/loykin/procmgr/internal/manager"
	"github.com/loykin/procmgr/internal/metrics"
	"github.com/loykin/procmgr/internal/process"
	"github.com/loykin/procmgr/internal/server"
	"github.com/loykin/procmgr/internal/store"
	tlsx "github.com/loykin/procmgr/internal/tls"
)

const shutdownTimeout = 10 * time.Second

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config]",
		Short: "Run the procmgr daemon",
		Long: `Run the daemon: load stored process configurations, optionally start them
all, and serve the HTTP API until SIGINT or SIGTERM, then stop every process.

Examples:
  procmgr serve
  procmgr serve /etc/procmgr/config.toml
  PROCESS_MANAGER_AUTO_START=0 procmgr serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			log, closeLog, err := logger.New(cfg.Log.Logger(), os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog.Close() }()
			slog.SetDefault(log)

			d, err := newDaemon(cfg, daemonDeps{Logger: log, Version: version})
			if err != nil {
				return err
			}
			return d.Run(cmd.Context())
		},
	}
}

// daemonDeps carries collaborators that tests substitute.
type daemonDeps struct {
	Logger     *slog.Logger
	Version    string
	Launcher   process.Launcher
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// daemon owns the long-lived pieces of a serving procmgr.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	mgr     *manager.Manager
	srv     *http.Server
	ln      net.Listener
	closers []io.Closer
}

func newDaemon(cfg *config.Config, deps daemonDeps) (_ *daemon, err error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	d := &daemon{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	globalEnv, err := cfg.Process.BuildEnv()
	if err != nil {
		return nil, err
	}
	globalEnv.FromOS()

	var sinks []history.Sink
	if cfg.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("history sink: %w", err)
		}
		sinks = append(sinks, sink)
		if c, ok := sink.(io.Closer); ok {
			d.closers = append(d.closers, c)
		}
	}

	launcher := deps.Launcher
	if launcher == nil {
		launcher = process.NewLauncher(log, cfg.Process.GracePeriod)
	}

	d.mgr = manager.New(manager.Options{
		Store:    store.New(cfg.Store.Path),
		Launcher: launcher,
		Logger:   log,
		Env:      globalEnv,
		LogDir:   cfg.Process.LogDir,
		Sinks:    sinks,
		Version:  deps.Version,
	})
	if _, err := d.mgr.Load(); err != nil {
		return nil, fmt.Errorf("load process configurations: %w", err)
	}

	opts := []server.Option{server.WithLogger(log)}
	if cfg.Metrics.Enabled {
		reg, gat := deps.Registerer, deps.Gatherer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		if gat == nil {
			gat = prometheus.DefaultGatherer
		}
		if err := metrics.Register(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		if err := reg.Register(metrics.NewUsageCollector(d.mgr.Targets)); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("register usage collector: %w", err)
			}
		}
		opts = append(opts, server.WithMetrics(metrics.HandlerFor(gat)))
	}

	tlsCfg, err := tlsx.Setup(cfg.Server.TLS)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}

	d.ln, err = net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Server.Listen, err)
	}
	d.srv = server.NewServer(d.ln.Addr().String(), server.NewRouter(d.mgr, cfg.Server.BasePath, opts...))
	d.srv.TLSConfig = tlsCfg
	return d, nil
}

// Addr is the address the daemon listens on.
func (d *daemon) Addr() string { return d.ln.Addr().String() }

// Run auto-starts processes when enabled, serves HTTP until ctx is done or the
// server fails, then stops every managed process.
func (d *daemon) Run(ctx context.Context) error {
	defer d.close()

	errCh := make(chan error, 1)
	go func() {
		var err error
		if d.srv.TLSConfig != nil {
			err = d.srv.ServeTLS(d.ln, "", "")
		} else {
			err = d.srv.Serve(d.ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	d.logger.Info("procmgr listening", "addr", d.Addr(), "base_path", d.cfg.Server.BasePath,
		"tls", d.srv.TLSConfig != nil, "store", d.cfg.Store.Path)

	if d.cfg.Process.AutoStart {
		d.mgr.AutoStartAll()
	} else {
		d.logger.Info("auto-start disabled")
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	d.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.srv.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("http shutdown", "error", err)
	}
	d.mgr.ShutdownAll()
	return serveErr
}

func (d *daemon) close() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			d.logger.Warn("close", "error", err)
		}
	}
	d.closers = nil
}
