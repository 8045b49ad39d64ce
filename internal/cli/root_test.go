package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfmnet/wuhistory/internal/protein"
	"github.com/hfmnet/wuhistory/internal/store"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runCLI executes the root command against dbPath with svc as the metadata
// source and returns what it printed.
func runCLI(t *testing.T, dbPath string, svc protein.Service, args ...string) cliResult {
	t.Helper()
	opts := &RootOptions{ProteinService: svc}
	cmd := newRootCommand(opts)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--db", dbPath, "--no-color"}, args...))

	code := execute(opts, cmd)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// seedStore writes recs to a fresh database and returns its path.
func seedStore(t *testing.T, recs ...workunit.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), store.DefaultFileName)
	st, err := store.Open(context.Background(), path,
		store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	for _, r := range recs {
		ok, err := st.Insert(context.Background(), r)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, st.Close())
	return path
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "wuhistory", cmd.Use)
	assert.Contains(t, cmd.Long, "work unit history")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "import", "list", "count", "delete", "refresh-metadata", "version"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestListCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	listCmd, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)

	bonus := listCmd.Flags().Lookup("bonus")
	require.NotNil(t, bonus)
	assert.Equal(t, "none", bonus.DefValue)

	perPage := listCmd.Flags().Lookup("per-page")
	require.NotNil(t, perPage)
	assert.Equal(t, "20", perPage.DefValue)
}

func TestRefreshCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	refreshCmd, _, err := cmd.Find([]string{"refresh-metadata"})
	require.NoError(t, err)

	scope := refreshCmd.Flags().Lookup("scope")
	require.NotNil(t, scope)
	assert.Equal(t, "unknown", scope.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	res := runCLI(t, filepath.Join(t.TempDir(), "h.db3"), nil, "--format", "xml", "version")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid format")
}

func TestUnknownFlagIsCommandError(t *testing.T) {
	res := runCLI(t, filepath.Join(t.TempDir(), "h.db3"), nil, "list", "--colour")
	assert.Equal(t, ExitCommandError, res.code)
}

func TestInvalidConfig(t *testing.T) {
	res := runCLI(t, filepath.Join(t.TempDir(), "h.db3"), nil,
		"--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "failed to load configuration")
}

func TestUnavailableDatabaseJSON(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes the database unreachable.
	res := runCLI(t, filepath.Join(dir, "missing", "nested", "h.db3"), nil, "--format", "json", "version")
	assert.Equal(t, ExitCommandError, res.code)

	resp := decodeResponse(t, res.stdout, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnavailable, resp.Error.Code)
}
