package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/procmgr/pkg/client"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := buildRoot()
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot assembles the command tree.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	cmd := command{flags: globalFlags}

	root.AddCommand(
		createServeCommand(globalFlags),
		createVersionCommand(cmd),
		createListCommand(cmd),
		createGetCommand(cmd),
		createCreateCommand(cmd),
		createUpdateCommand(cmd),
		createDeleteCommand(cmd),
		createStartCommand(cmd),
		createStopCommand(cmd),
		createLogsCommand(cmd),
		createUsageCommand(cmd),
		createHistoryCommand(cmd),
		createStatusCommand(cmd),
	)
	return root
}

// createRootCommand creates the root command with persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "procmgr",
		Short: "Local process supervisor",
		Long: `procmgr registers, starts, stops and monitors long-running local programs.

Examples:
  procmgr serve                                   # run the daemon
  procmgr create --name=web --bin=/opt/web/server --arg=--port --arg=8080
  procmgr start <id>
  procmgr logs <id> --lines=50
  procmgr status --api-url=http://remote:53211/api`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to service config file (TOML, YAML or JSON)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", client.DefaultBaseURL, "daemon API base URL")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "daemon API request timeout")
	root.PersistentFlags().StringVar(&flags.CACert, "ca-cert", "", "CA certificate for an HTTPS daemon")
	root.PersistentFlags().BoolVar(&flags.Insecure, "insecure", false, "skip TLS certificate verification")

	return root
}
