package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// DeleteResult reports how many rows a delete removed.
type DeleteResult struct {
	ID      int64 `json:"id"`
	Deleted int64 `json:"deleted"`
}

func (r DeleteResult) String() string {
	if r.Deleted == 0 {
		return warnColor.Sprintf("no work unit with ID %d", r.ID)
	}
	return fmt.Sprintf("deleted work unit %d", r.ID)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one work unit by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], cmd)
		},
	}
}

func runDelete(opts *RootOptions, arg string, cmd *cobra.Command) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid work unit ID %q", arg))
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, err := opts.openStore(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore(st)

	n, err := st.Delete(ctx, id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to delete work unit", err)
	}
	return opts.formatter(cmd).Success(DeleteResult{ID: id, Deleted: n})
}
