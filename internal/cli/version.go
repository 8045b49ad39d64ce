package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hfmnet/wuhistory/internal/store"
)

// VersionResult holds the schema versions of a database.
type VersionResult struct {
	SchemaVersion      string `json:"schema_version"`
	ApplicationVersion string `json:"application_version"`
}

func (r VersionResult) String() string {
	return fmt.Sprintf("schema %s (application %s)", r.SchemaVersion, r.ApplicationVersion)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the database schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			st, err := rootOpts.openStore(ctx, nil)
			if err != nil {
				return err
			}
			defer closeStore(st)

			v, err := st.Version(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read schema version", err)
			}
			return rootOpts.formatter(cmd).Success(VersionResult{
				SchemaVersion:      v,
				ApplicationVersion: store.ApplicationVersion,
			})
		},
	}
}
