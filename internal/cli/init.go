package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hfmnet/wuhistory/internal/store"
)

// InitResult reports the database an init run left behind.
type InitResult struct {
	Path           string `json:"path"`
	SchemaVersion  string `json:"schema_version"`
	CurrentVersion string `json:"application_version"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("%s %s (schema %s)", goodColor.Sprint("✓"), r.Path, r.SchemaVersion)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the history database",
		Long: `Open the history database, creating it when missing and applying any
pending schema migrations. Running init on an up-to-date database changes
nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, err := opts.openStore(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore(st)

	v, err := st.Version(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read schema version", err)
	}
	return opts.formatter(cmd).Success(InitResult{
		Path:           st.Path(),
		SchemaVersion:  v,
		CurrentVersion: store.ApplicationVersion,
	})
}
