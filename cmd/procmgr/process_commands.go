package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loykin/procmgr/pkg/client"
)

// command carries what every client subcommand needs to reach the daemon.
type command struct {
	flags *GlobalFlags
}

func (c command) client() (*client.Client, error) {
	cfg := client.Config{
		BaseURL:  strings.TrimRight(c.flags.APIUrl, "/"),
		Timeout:  c.flags.APITimeout,
		Insecure: c.flags.Insecure,
	}
	if c.flags.CACert != "" {
		cfg.TLS = &client.TLSClientConfig{CACert: c.flags.CACert}
	}
	return client.New(cfg)
}

// run builds the API client and hands it to fn.
func (c command) run(fn func(cmd *cobra.Command, api *client.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		api, err := c.client()
		if err != nil {
			return err
		}
		return fn(cmd, api, args)
	}
}

func createVersionCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and daemon versions",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "client: procmgr %s\n", version)
			v, err := api.Version(cmd.Context())
			if err != nil {
				_, _ = fmt.Fprintf(out, "daemon: unreachable (%v)\n", err)
				return nil
			}
			_, _ = fmt.Fprintf(out, "daemon: %s %s\n", v.Service, v.Version)
			return nil
		}),
	}
}

func createListCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List managed processes",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, _ []string) error {
			sts, err := api.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sts)
		}),
	}
}

func createGetCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one managed process",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			st, err := api.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		}),
	}
}

func bindProcessFlags(cmd *cobra.Command, f *ProcessFlags) {
	cmd.Flags().StringVar(&f.Name, "name", "", "display name")
	cmd.Flags().StringVar(&f.BinPath, "bin", "", "path to the executable")
	cmd.Flags().StringArrayVar(&f.Args, "arg", nil, "argument passed to the executable (repeatable)")
	cmd.Flags().StringVar(&f.LogFile, "log-file", "", "file receiving stdout and stderr")
	cmd.Flags().StringVar(&f.WorkDir, "work-dir", "", "working directory (default: directory of the binary)")
	cmd.Flags().StringArrayVar(&f.EnvKVs, "env", nil, "KEY=VALUE environment variable (repeatable)")
	cmd.Flags().BoolVar(&f.AutoRestart, "auto-restart", false, "mark the process for automatic restart")
	cmd.Flags().BoolVar(&f.RunAsAdmin, "admin", false, "launch with elevated privileges")
}

func buildCreateRequest(cmd *cobra.Command, f *ProcessFlags) (client.CreateRequest, error) {
	req := client.CreateRequest{Name: f.Name, BinPath: f.BinPath, Args: f.Args}
	changed := cmd.Flags().Changed
	if changed("log-file") {
		req.LogFile = &f.LogFile
	}
	if changed("work-dir") {
		req.WorkingDir = &f.WorkDir
	}
	if changed("env") {
		env, err := parseEnvPairs(f.EnvKVs)
		if err != nil {
			return req, err
		}
		req.EnvVars = env
	}
	if changed("auto-restart") {
		req.AutoRestart = &f.AutoRestart
	}
	if changed("admin") {
		req.RunAsAdmin = &f.RunAsAdmin
	}
	return req, nil
}

func createCreateCommand(c command) *cobra.Command {
	f := &ProcessFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new process",
		Long: `Register a new process with the daemon. The process is not started.

Examples:
  procmgr create --name=web --bin=/opt/web/server
  procmgr create --name=job --bin=./job --arg=-v --env=MODE=prod --work-dir=/srv/job`,
		Args: cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, _ []string) error {
			req, err := buildCreateRequest(cmd, f)
			if err != nil {
				return err
			}
			cfg, err := api.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		}),
	}
	bindProcessFlags(cmd, f)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("bin")
	return cmd
}

func buildUpdateRequest(cmd *cobra.Command, f *ProcessFlags) (client.UpdateRequest, error) {
	var req client.UpdateRequest
	changed := cmd.Flags().Changed
	if changed("name") {
		req.Name = &f.Name
	}
	if changed("bin") {
		req.BinPath = &f.BinPath
	}
	switch {
	case f.ClearArgs:
		req.Args = []string{}
	case changed("arg"):
		req.Args = f.Args
	}
	if changed("log-file") {
		req.LogFile = &f.LogFile
	}
	if changed("work-dir") {
		req.WorkingDir = &f.WorkDir
	}
	switch {
	case f.ClearEnv:
		req.EnvVars = map[string]string{}
	case changed("env"):
		env, err := parseEnvPairs(f.EnvKVs)
		if err != nil {
			return req, err
		}
		req.EnvVars = env
	}
	if changed("auto-restart") {
		req.AutoRestart = &f.AutoRestart
	}
	if changed("admin") {
		req.RunAsAdmin = &f.RunAsAdmin
	}
	return req, nil
}

func createUpdateCommand(c command) *cobra.Command {
	f := &ProcessFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a registered process",
		Long: `Update only the fields given on the command line.

Examples:
  procmgr update <id> --name=renamed
  procmgr update <id> --clear-args --env=MODE=dev`,
		Args: cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			req, err := buildUpdateRequest(cmd, f)
			if err != nil {
				return err
			}
			cfg, err := api.Update(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		}),
	}
	bindProcessFlags(cmd, f)
	cmd.Flags().BoolVar(&f.ClearArgs, "clear-args", false, "remove all arguments")
	cmd.Flags().BoolVar(&f.ClearEnv, "clear-env", false, "remove all per-process environment variables")
	return cmd
}

func createDeleteCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Stop and remove a process",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			if err := api.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}
}

func createStartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start a registered process",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			st, err := api.Start(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		}),
	}
}

func createStopCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running process",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			st, err := api.Stop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		}),
	}
}

func createLogsCommand(c command) *cobra.Command {
	f := &LogsFlags{}
	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print the tail of a process log",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			res, err := api.Logs(cmd.Context(), args[0], f.Lines)
			if err != nil {
				return err
			}
			if res.LogContent != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.LogContent)
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&f.Lines, "lines", "n", 100, "number of lines to show")
	return cmd
}

func createUsageCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <id>",
		Short: "Show CPU and memory usage of a running process",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			u, err := api.Usage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		}),
	}
}

func createHistoryCommand(c command) *cobra.Command {
	f := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show recent start and stop events",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, args []string) error {
			events, err := api.History(cmd.Context(), args[0], f.Limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), events)
		}),
	}
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of events (default 50)")
	return cmd
}

func createStatusCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show aggregate status of all processes",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, api *client.Client, _ []string) error {
			sum, err := api.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		}),
	}
}
