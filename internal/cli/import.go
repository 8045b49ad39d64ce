package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hfmnet/wuhistory/internal/workunit"
)

// ImportResult reports the outcome of an import.
type ImportResult struct {
	Records  int `json:"records"`
	Inserted int `json:"inserted"`
	// Skipped counts records rejected as invalid or already present.
	Skipped int `json:"skipped"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("%s %d of %d work units inserted, %d skipped",
		goodColor.Sprint("✓"), r.Inserted, r.Records, r.Skipped)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Insert work units from a YAML file",
		Long: `Insert the work units listed in a YAML file ("-" reads standard input).

The file is a sequence of records:

  - project_id: 6800
    run: 1
    clone: 2
    gen: 3
    client_name: alice
    client_path: 192.168.1.10:36330
    username: alice_folds
    team: 32
    frames_completed: 100
    frame_time: 36s
    result: FINISHED_UNIT
    download_time: 2024-03-01T00:00:00Z
    completion_time: 2024-03-01T01:00:00Z

Invalid records and records already in the history are skipped. Records
without project metadata get it from the configured metadata source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	records, err := readRecords(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read work units", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, err := opts.openStore(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore(st)

	formatter := opts.formatter(cmd)
	result := ImportResult{Records: len(records)}
	for i, rec := range records {
		ok, err := st.Insert(ctx, rec)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to insert record %d", i+1), err)
		}
		if ok {
			result.Inserted++
		} else {
			result.Skipped++
			formatter.VerboseLog("skipped record %d: %s downloaded %s", i+1, rec.ProjectString(), rec.DownloadTime)
		}
	}
	return formatter.Success(result)
}

func readRecords(path string, stdin io.Reader) ([]workunit.Record, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var records []workunit.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
