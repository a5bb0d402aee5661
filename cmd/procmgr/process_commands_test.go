package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedCommand(t *testing.T, update bool, args ...string) (*cobra.Command, *ProcessFlags) {
	t.Helper()
	f := &ProcessFlags{}
	cmd := &cobra.Command{Use: "x"}
	bindProcessFlags(cmd, f)
	if update {
		cmd.Flags().BoolVar(&f.ClearArgs, "clear-args", false, "")
		cmd.Flags().BoolVar(&f.ClearEnv, "clear-env", false, "")
	}
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, f
}

func TestBuildCreateRequestOnlySetsChangedOptionals(t *testing.T) {
	cmd, f := parsedCommand(t, false, "--name", "web", "--bin", "/bin/web")
	req, err := buildCreateRequest(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, "web", req.Name)
	assert.Nil(t, req.LogFile)
	assert.Nil(t, req.WorkingDir)
	assert.Nil(t, req.EnvVars)
	assert.Nil(t, req.AutoRestart)
	assert.Nil(t, req.RunAsAdmin)

	cmd, f = parsedCommand(t, false, "--name", "web", "--bin", "/bin/web", "--work-dir", "/srv",
		"--admin", "--auto-restart=false", "--env", "A=1", "--env", "B=x=y", "--arg", "a b")
	req, err = buildCreateRequest(cmd, f)
	require.NoError(t, err)
	require.NotNil(t, req.WorkingDir)
	assert.Equal(t, "/srv", *req.WorkingDir)
	require.NotNil(t, req.RunAsAdmin)
	assert.True(t, *req.RunAsAdmin)
	require.NotNil(t, req.AutoRestart)
	assert.False(t, *req.AutoRestart)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, req.EnvVars)
	assert.Equal(t, []string{"a b"}, req.Args)

	cmd, f = parsedCommand(t, false, "--env", "bad")
	_, err = buildCreateRequest(cmd, f)
	assert.Error(t, err)
}

func TestBuildUpdateRequest(t *testing.T) {
	cmd, f := parsedCommand(t, true, "--name", "renamed")
	req, err := buildUpdateRequest(cmd, f)
	require.NoError(t, err)
	require.NotNil(t, req.Name)
	assert.Equal(t, "renamed", *req.Name)
	assert.Nil(t, req.BinPath)
	assert.Nil(t, req.Args)
	assert.Nil(t, req.EnvVars)

	cmd, f = parsedCommand(t, true, "--clear-args", "--clear-env")
	req, err = buildUpdateRequest(cmd, f)
	require.NoError(t, err)
	assert.NotNil(t, req.Args)
	assert.Empty(t, req.Args)
	assert.NotNil(t, req.EnvVars)
	assert.Empty(t, req.EnvVars)
}

func TestParseEnvPairs(t *testing.T) {
	m, err := parseEnvPairs([]string{"A=1", "B="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": ""}, m)

	_, err = parseEnvPairs([]string{"=1"})
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestRootHasAllCommands(t *testing.T) {
	root := buildRoot()
	for _, name := range []string{"serve", "version", "list", "get", "create", "update", "delete",
		"start", "stop", "logs", "usage", "history", "status"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestVersionWithUnreachableDaemon(t *testing.T) {
	out, err := runCLI(t, "http://127.0.0.1:1/api", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "client: procmgr dev")
	assert.Contains(t, out, "daemon: unreachable")
}
