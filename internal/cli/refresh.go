package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hfmnet/wuhistory/internal/maintenance"
	"github.com/hfmnet/wuhistory/internal/store"
)

// RefreshResult reports a metadata refresh.
type RefreshResult struct {
	Scope     string `json:"scope"`
	Arg       int64  `json:"arg,omitempty"`
	Committed bool   `json:"committed"`
}

func (r RefreshResult) String() string {
	return fmt.Sprintf("%s metadata refreshed (scope %s)", goodColor.Sprint("✓"), r.Scope)
}

type refreshOptions struct {
	scope string
	arg   int64
}

// NewRefreshCommand creates the refresh-metadata command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &refreshOptions{}

	cmd := &cobra.Command{
		Use:   "refresh-metadata",
		Short: "Rewrite project metadata from the metadata source",
		Long: `Copy project metadata from the configured metadata source onto history rows.

Scopes:
  all      every row
  unknown  rows still missing metadata (default)
  project  rows of the project given by --arg
  id       the row whose ID is given by --arg

The refresh runs in one transaction. Interrupting it (Ctrl-C) rolls back
every change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.scope, "scope", "unknown", "rows to refresh (all|unknown|project|id)")
	cmd.Flags().Int64Var(&opts.arg, "arg", 0, "project ID or row ID for the project and id scopes")

	return cmd
}

func runRefresh(rootOpts *RootOptions, opts *refreshOptions, cmd *cobra.Command) error {
	scope, err := maintenance.ParseScope(opts.scope)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --scope", err)
	}
	if (scope == maintenance.ScopeProject || scope == maintenance.ScopeID) && opts.arg < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("scope %s requires --arg", scope))
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	formatter := rootOpts.formatter(cmd)
	progress := func(p maintenance.Progress) {
		formatter.VerboseLog("%s: %d%% %s", p.Job, p.Percent(), p.Message)
	}

	st, err := rootOpts.openStore(ctx, progress)
	if err != nil {
		return err
	}
	defer closeStore(st)

	committed, err := st.UpdateMetadata(ctx, scope, opts.arg)
	if errors.Is(err, store.ErrNoProteinService) {
		return WrapExitError(ExitCommandError, "no metadata source configured (set protein.source)", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "metadata refresh failed; no changes were made", err)
	}
	if !committed {
		return NewExitError(ExitFailure, "metadata refresh canceled; no changes were made")
	}
	return formatter.Success(RefreshResult{Scope: scope.String(), Arg: opts.arg, Committed: true})
}
