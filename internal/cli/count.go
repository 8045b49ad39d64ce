package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// CountResult holds the completed and failed totals for one client.
type CountResult struct {
	Client    string     `json:"client"`
	Since     *time.Time `json:"since,omitempty"`
	Completed int64      `json:"completed"`
	Failed    int64      `json:"failed"`
}

func (r CountResult) String() string {
	return fmt.Sprintf("%s: %s completed, %s failed",
		r.Client,
		goodColor.Sprint(r.Completed),
		badColor.Sprint(r.Failed))
}

type countOptions struct {
	client string
	since  string
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &countOptions{}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count completed and failed work units for a client",
		Long: `Count the work units a client finished and the ones it failed.

With --since, completed units are counted by completion time and failed units
by download time, both strictly after the given instant.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.client, "client", "", "client name (required)")
	cmd.Flags().StringVar(&opts.since, "since", "", "only count units after this time (RFC 3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func runCount(rootOpts *RootOptions, opts *countOptions, cmd *cobra.Command) error {
	since, err := parseSince(opts.since)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --since", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, err := rootOpts.openStore(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore(st)

	completed, err := st.CountCompleted(ctx, opts.client, since)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count completed work units", err)
	}
	failed, err := st.CountFailed(ctx, opts.client, since)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count failed work units", err)
	}
	return rootOpts.formatter(cmd).Success(CountResult{
		Client:    opts.client,
		Since:     since,
		Completed: completed,
		Failed:    failed,
	})
}

// parseSince accepts an RFC 3339 instant or a UTC calendar date. An empty
// string means no lower bound.
func parseSince(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}
