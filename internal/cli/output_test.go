package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfmnet/wuhistory/internal/store"
	"github.com/hfmnet/wuhistory/internal/testutil"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestOutputFormatter_JSONListResult(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	rec := testutil.FinishedRecord(6800, 1, 2, 3, testutil.Epoch)
	rec.ID = 42
	rec.Protein = testutil.Protein(6800)
	row := workunit.Row{Record: rec, SlotType: workunit.SlotGPU, Credit: 100, PPD: 2400}
	require.NoError(t, formatter.Success(ListResult{Items: []workunit.Row{row}, TotalItems: 1}))

	var out ListResult
	resp := decodeResponse(t, buf.String(), &out)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(42), out.Items[0].ID)
	assert.Equal(t, workunit.SlotGPU, out.Items[0].SlotType)
	assert.Equal(t, 2400.0, out.Items[0].PPD)
	assert.Equal(t, "p6800", out.Items[0].Protein.WorkUnitName)
	assert.True(t, out.Items[0].DownloadTime.Equal(testutil.Epoch))
	assert.Zero(t, out.CurrentPage, "unpaged results omit page fields")
	assert.NotContains(t, buf.String(), "current_page")
}

func TestOutputFormatter_TextPayloads(t *testing.T) {
	withoutColor(t)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		data any
		want string
	}{
		{"count", CountResult{Client: "alice", Since: &since, Completed: 5, Failed: 1}, "alice: 5 completed, 1 failed"},
		{"refresh", RefreshResult{Scope: "project", Arg: 6800, Committed: true}, "✓ metadata refreshed (scope project)"},
		{"import", ImportResult{Records: 4, Inserted: 2, Skipped: 2}, "✓ 2 of 4 work units inserted, 2 skipped"},
		{"delete", DeleteResult{ID: 7, Deleted: 1}, "deleted work unit 7"},
		{"delete missing", DeleteResult{ID: 7}, "no work unit with ID 7"},
		{"version", VersionResult{SchemaVersion: "0.9.2", ApplicationVersion: store.ApplicationVersion},
			"schema 0.9.2 (application " + store.ApplicationVersion + ")"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}
			require.NoError(t, formatter.Success(tt.data))
			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

func TestOutputFormatter_JSONCountResult(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(CountResult{Client: "alice", Completed: 5, Failed: 1}))
	assert.JSONEq(t, `{"status":"ok","data":{"client":"alice","completed":5,"failed":1}}`, buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]any{"scope": "project", "arg": 6800}
	require.NoError(t, formatter.Error(CodeOperation, "metadata refresh failed", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeOperation, resp.Error.Code)
	assert.Equal(t, "metadata refresh failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextErrorDetailsOnlyWhenVerbose(t *testing.T) {
	withoutColor(t)
	details := map[string]string{"path": "WuHistory.db3"}
	for _, verbose := range []bool{false, true} {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: verbose}
		require.NoError(t, formatter.Error(CodeUnavailable, "history database unavailable", details))

		assert.Contains(t, buf.String(), "Error [E002]: history database unavailable")
		if verbose {
			assert.Contains(t, buf.String(), "Details:")
		} else {
			assert.NotContains(t, buf.String(), "Details:")
		}
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unavailable", WrapExitError(ExitCommandError, "history database unavailable: x", store.ErrNotConnected), CodeUnavailable},
		{"upgrade", WrapExitError(ExitCommandError, "failed to open database",
			&store.UpgradeError{From: "0.0.0.0", To: "0.9.2", Err: errors.New("boom")}), CodeUnavailable},
		{"bad argument", NewExitError(ExitCommandError, "invalid --scope"), CodeInvalidArgument},
		{"operation", WrapExitError(ExitFailure, "failed to delete work unit", errors.New("disk I/O error")), CodeOperation},
		{"plain", errors.New("required flag(s) \"client\" not set"), CodeOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("skipped record %d", 2)
	assert.Empty(t, out.String())

	formatter.VerboseLog("%s: %d%% %s", "metadata", 50, "row 2 (project 6800)")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "metadata: 50% row 2 (project 6800)")
}

func TestOutputFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Table([]string{"ID", "CLIENT"}, [][]string{
		{"1", "alice"},
		{"12", "bob"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "CLIENT")
	// Columns are aligned.
	assert.Equal(t, strings.Index(lines[1], "alice"), strings.Index(lines[2], "bob"))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("run: %w", WrapExitError(ExitCommandError, "bad", errors.New("x"))), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitFailure, "failed to insert record 1", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to insert record 1: disk full", err.Error())
	assert.Equal(t, "bad", NewExitError(ExitCommandError, "bad").Error())
}
