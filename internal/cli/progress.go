package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/conteo/internal/reconcile"
)

// ProgressOptions holds flags for the progress command.
type ProgressOptions struct {
	*RootOptions
	Items bool // list every expected item, not only pending ones
}

// NewProgressCommand creates the progress command.
func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "progress <count>",
		Short: "Show how much of the expected list has been counted",
		Long: `Show completion of a count against its expected items.

Over-counted units do not raise the percentage: each item counts at most
its expected quantity. Percentages are rounded down, so 100% means every
expected unit was scanned.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withApp(cmd.Context(), opts.RootOptions, false, func(a *app) error {
				p, err := a.engine.GetProgress(cmd.Context(), args[0])
				if err != nil {
					return f.Fail("failed to compute progress", err)
				}
				return f.Render(p, func(w io.Writer) {
					outputProgressText(w, args[0], p, opts.Items)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Items, "items", false, "list every expected item")

	return cmd
}

func outputProgressText(w io.Writer, countID string, p reconcile.ProgressSummary, allItems bool) {
	fmt.Fprintf(w, "Progress for Count: %s\n", countID)
	fmt.Fprintf(w, "Overall: %d%% (%d/%d units, %d scanned)\n", p.Overall, p.Counted, p.Expected, p.Scanned)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Brands ===")
	if len(p.Brands) == 0 {
		fmt.Fprintln(w, "  (no expected items)")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  BRAND\tCOUNTED\tEXPECTED\tPERCENT\tPENDING")
		for _, b := range p.Brands {
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d%%\t%d\n", b.Brand, b.Counted, b.Expected, b.Percent, len(b.Pending))
		}
		tw.Flush()
	}
	fmt.Fprintln(w)

	if allItems {
		fmt.Fprintln(w, "=== Items ===")
		outputItemsText(w, p.Items)
		return
	}

	fmt.Fprintf(w, "=== Pending (%d) ===\n", p.PendingCount)
	var pending []reconcile.ItemProgress
	for _, it := range p.Items {
		if it.Pending {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		fmt.Fprintln(w, "  (nothing pending)")
		return
	}
	outputItemsText(w, pending)
}

func outputItemsText(w io.Writer, items []reconcile.ItemProgress) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  CODE\tDESCRIPTION\tBRAND\tSCANNED\tEXPECTED\tPERCENT")
	for _, it := range items {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%d\t%d%%\n",
			it.Code, it.Description, it.Brand, it.Scanned, it.Expected, it.Percent)
	}
	tw.Flush()
}
