package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/hfmnet/wuhistory/internal/historyquery"
	"github.com/hfmnet/wuhistory/internal/store"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

// ListResult is the JSON payload of list. Page fields are zero when the
// command was not paged.
type ListResult struct {
	Items        []workunit.Row `json:"items"`
	CurrentPage  int            `json:"current_page,omitempty"`
	TotalPages   int            `json:"total_pages,omitempty"`
	TotalItems   int64          `json:"total_items"`
	ItemsPerPage int            `json:"items_per_page,omitempty"`
}

type listOptions struct {
	project int
	client  string
	result  string
	since   string
	sort    string
	desc    bool
	bonus   string
	page    int
	perPage int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work units from the history",
		Long: `List work units matching every given filter, with credit and PPD computed
for the selected bonus mode.

Rows are ordered by ID unless --sort names a column. With --page the
result is split into pages of --per-page rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.project, "project", 0, "project ID")
	cmd.Flags().StringVar(&opts.client, "client", "", "client name")
	cmd.Flags().StringVar(&opts.result, "result", "", "result name or code (e.g. FINISHED_UNIT)")
	cmd.Flags().StringVar(&opts.since, "since", "", "only units downloaded after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "column to sort by (e.g. PPD, DownloadDateTime)")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "sort descending")
	cmd.Flags().StringVar(&opts.bonus, "bonus", "none", "bonus mode (none|download|frame)")
	cmd.Flags().IntVar(&opts.page, "page", 0, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 20, "rows per page")

	return cmd
}

// query builds the history query the flags describe.
func (o *listOptions) query() (*historyquery.Query, error) {
	q := historyquery.New("list")
	if o.project > 0 {
		q.Where(historyquery.ColumnProjectID, historyquery.Equal, o.project)
	}
	if o.client != "" {
		q.Where(historyquery.ColumnClientName, historyquery.Equal, norm.NFC.String(o.client))
	}
	if o.result != "" {
		r, err := workunit.ParseResult(o.result)
		if err != nil {
			return nil, err
		}
		q.Where(historyquery.ColumnResult, historyquery.Equal, r)
	}
	since, err := parseSince(o.since)
	if err != nil {
		return nil, err
	}
	if since != nil {
		q.Where(historyquery.ColumnDownloadDateTime, historyquery.GreaterThan, *since)
	}
	if o.sort != "" {
		col, err := historyquery.ParseColumn(o.sort)
		if err != nil {
			return nil, err
		}
		dir := historyquery.Ascending
		if o.desc {
			dir = historyquery.Descending
		}
		q.OrderBy(col, dir)
	}
	return q, nil
}

func runList(rootOpts *RootOptions, opts *listOptions, cmd *cobra.Command) error {
	q, err := opts.query()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	mode, err := workunit.ParseBonusMode(opts.bonus)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --bonus", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, err := rootOpts.openStore(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore(st)

	var result ListResult
	if cmd.Flags().Changed("page") {
		page, err := st.Page(ctx, opts.page, opts.perPage, q, mode)
		if errors.Is(err, store.ErrInvalidPage) {
			return WrapExitError(ExitCommandError, "invalid page", err)
		}
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list work units", err)
		}
		result = ListResult{
			Items:        page.Items,
			CurrentPage:  page.CurrentPage,
			TotalPages:   page.TotalPages,
			TotalItems:   page.TotalItems,
			ItemsPerPage: page.ItemsPerPage,
		}
	} else {
		rows, err := st.Fetch(ctx, q, mode)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list work units", err)
		}
		result = ListResult{Items: rows, TotalItems: int64(len(rows))}
	}

	formatter := rootOpts.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return writeRows(formatter, result)
}

var listHeader = []string{"ID", "PROJECT", "CLIENT", "RESULT", "DOWNLOADED", "COMPLETED", "SLOT", "CREDIT", "PPD"}

func writeRows(f *OutputFormatter, result ListResult) error {
	rows := make([][]string, len(result.Items))
	for i, r := range result.Items {
		completed := "-"
		if !r.CompletionTime.IsZero() {
			completed = r.CompletionTime.UTC().Format("2006-01-02 15:04")
		}
		rows[i] = []string{
			strconv.FormatInt(r.ID, 10),
			r.ProjectString(),
			r.ClientName,
			resultLabel(r.Result),
			r.DownloadTime.UTC().Format("2006-01-02 15:04"),
			completed,
			string(r.SlotType),
			strconv.FormatFloat(r.Credit, 'f', 2, 64),
			strconv.FormatFloat(r.PPD, 'f', 2, 64),
		}
	}
	if err := f.Table(listHeader, rows); err != nil {
		return err
	}
	if result.CurrentPage > 0 {
		fmt.Fprintf(f.Writer, "page %d of %d (%d work units)\n", result.CurrentPage, result.TotalPages, result.TotalItems)
	}
	return nil
}

func resultLabel(r workunit.Result) string {
	switch {
	case r == workunit.ResultFinished:
		return goodColor.Sprint(r.String())
	case r.IsTerminating():
		return badColor.Sprint(r.String())
	default:
		return warnColor.Sprint(r.String())
	}
}
