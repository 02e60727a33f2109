package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/conteo/internal/engine"
	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/reconcile"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	History bool
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <count>",
		Short: "Show the full report of a count",
		Long: `Show a count's per-user breakdown grouped by brand, its progress
and, once finalized, its discrepancies.

Examples:
  conteo report r-1001
  conteo report r-1001 --history --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withApp(cmd.Context(), opts.RootOptions, false, func(a *app) error {
				// Pending history entries belong in the report.
				if opts.History {
					if err := a.engine.Flush(cmd.Context()); err != nil {
						return f.Fail("failed to flush history", err)
					}
				}

				r, err := a.engine.GetReport(cmd.Context(), args[0], engine.ReportOptions{IncludeHistory: opts.History})
				if err != nil {
					return f.Fail("failed to build report", err)
				}
				return f.Render(r, func(w io.Writer) {
					outputReportText(w, r)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.History, "history", false, "include the audit trail")

	return cmd
}

func outputReportText(w io.Writer, r reconcile.Report) {
	h := r.Header
	fmt.Fprintf(w, "Report for Count: %s (%s)\n", h.CountID, h.Kind)
	if h.Reference != "" {
		fmt.Fprintf(w, "Reference: %s\n", h.Reference)
	}
	if h.Finalized {
		fmt.Fprintf(w, "Status: finalized %s\n", h.FinalizedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Status: open")
	}
	fmt.Fprintf(w, "Users: %d  Events: %d  Overall: %d%%\n", h.Users, h.Events, r.Progress.Overall)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Users ===")
	if len(r.Users) == 0 {
		fmt.Fprintln(w, "  (no scans)")
	}
	for _, u := range r.Users {
		fmt.Fprintf(w, "  %s: %d items, %d units\n", u.UserID, u.TotalItems, u.TotalUnits)
		for _, b := range u.Brands {
			fmt.Fprintf(w, "    %s (%d units)\n", b.Brand, b.Units)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			for _, l := range b.Lines {
				marker := ""
				if !l.Expected {
					marker = "unexpected"
				}
				fmt.Fprintf(tw, "      %s\t%s\t%d\t%s\n", l.Code, l.Description, l.Quantity, marker)
			}
			tw.Flush()
		}
	}
	fmt.Fprintln(w)

	outputProgressText(w, h.CountID, r.Progress, false)

	if h.Finalized {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Discrepancies ===")
		if h.Clarification != "" {
			fmt.Fprintf(w, "Clarification: %s\n", h.Clarification)
		}
		outputDiscrepanciesText(w, r.Discrepancies)
	}

	if r.History != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== History ===")
		outputHistoryText(w, r.History)
	}
}

func outputHistoryText(w io.Writer, entries []ir.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "  (no entries)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TIME\tUSER\tOPERATION\tCODE\tOLD\tNEW")
	for _, e := range entries {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%d\t%d\n",
			e.Timestamp.Format(time.RFC3339), e.Actor, e.Operation, e.Code, e.OldValue, e.NewValue)
	}
	tw.Flush()
}
