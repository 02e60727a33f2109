package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/conteo/internal/engine"
	"github.com/roach88/conteo/internal/expectation"
	"github.com/roach88/conteo/internal/ir"
)

// CountCreateOptions holds flags for the count create command.
type CountCreateOptions struct {
	*RootOptions
	File      string
	ID        string
	Kind      string
	Reference string
}

// NewCountCommand creates the count command group.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Create and inspect counts",
	}

	cmd.AddCommand(newCountCreateCommand(rootOpts))
	cmd.AddCommand(newCountListCommand(rootOpts))
	cmd.AddCommand(newCountShowCommand(rootOpts))

	return cmd
}

func newCountCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a count from an expectation file",
		Long: `Create a new open count.

The expected items are read from --file, a YAML, JSON or CUE document
checked against the expectation schema. --id, --kind and --reference
override the values in the file. Without --file the count expects
nothing and every scanned code is reported as unexpected.

Examples:
  conteo count create --file remito.yaml
  conteo count create --file remito.cue --id r-1001
  conteo count create --kind general --reference "shelf 4"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createCount(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "expectation file (.yaml, .yml, .json or .cue)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "count ID (generated when empty)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "count kind (remito|general)")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "free-form reference, e.g. a delivery note number")

	return cmd
}

func createCount(opts *CountCreateOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	nc := engine.NewCount{Items: []ir.ExpectedItem{}}
	if opts.File != "" {
		loaded, err := expectation.LoadFile(opts.File)
		if err != nil {
			return f.Fail("invalid expectation file "+opts.File, err)
		}
		nc = loaded
	}
	if opts.ID != "" {
		nc.ID = opts.ID
	}
	if opts.Kind != "" {
		nc.Kind = ir.CountKind(opts.Kind)
	}
	if opts.Reference != "" {
		nc.Reference = opts.Reference
	}

	return withApp(cmd.Context(), opts.RootOptions, true, func(a *app) error {
		c, err := a.engine.CreateCount(cmd.Context(), nc)
		if err != nil {
			return f.Fail("failed to create count", err)
		}
		f.VerboseLog("stored %d expected items", len(c.Items))

		return f.Render(c, func(w io.Writer) {
			fmt.Fprintf(w, "Created count %s (%s, %d items)\n", c.ID, c.Kind, len(c.Items))
		})
	})
}

func newCountListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List counts, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(cmd.Context(), rootOpts, false, func(a *app) error {
				counts, err := a.engine.ListCounts(cmd.Context())
				if err != nil {
					return f.Fail("failed to list counts", err)
				}
				return f.Render(counts, func(w io.Writer) {
					outputCountsText(w, counts)
				})
			})
		},
	}
}

func outputCountsText(w io.Writer, counts []ir.Count) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No counts.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tREFERENCE\tITEMS\tSTATUS\tCREATED")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.Kind, c.Reference, len(c.Items), countStatus(c), c.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func newCountShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <count>",
		Short:         "Show a count's expected items and frozen result",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(cmd.Context(), rootOpts, false, func(a *app) error {
				c, err := a.engine.GetCount(cmd.Context(), args[0])
				if err != nil {
					return f.Fail("failed to read count", err)
				}
				return f.Render(c, func(w io.Writer) {
					outputCountText(w, c)
				})
			})
		},
	}
}

func outputCountText(w io.Writer, c ir.Count) {
	fmt.Fprintf(w, "Count: %s\n", c.ID)
	fmt.Fprintf(w, "Kind: %s\n", c.Kind)
	if c.Reference != "" {
		fmt.Fprintf(w, "Reference: %s\n", c.Reference)
	}
	fmt.Fprintf(w, "Created: %s\n", c.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Status: %s\n", countStatus(c))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Expected Items ===")
	if len(c.Items) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  CODE\tDESCRIPTION\tBRAND\tEXPECTED")
		for _, it := range c.Items {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\n", it.Code, it.Description, it.Brand, it.Expected)
		}
		tw.Flush()
	}

	if c.Result != nil {
		fmt.Fprintln(w)
		outputResultText(w, c.Result)
	}
}

// outputResultText prints a frozen discrepancy result.
func outputResultText(w io.Writer, r *ir.DiscrepancyResult) {
	fmt.Fprintln(w, "=== Discrepancies ===")
	fmt.Fprintf(w, "Finalized: %s\n", r.FinalizedAt.Format(time.RFC3339))
	if r.Clarification != "" {
		fmt.Fprintf(w, "Clarification: %s\n", r.Clarification)
	}
	outputDiscrepanciesText(w, r.Records)
}

func outputDiscrepanciesText(w io.Writer, records []ir.Discrepancy) {
	if len(records) == 0 {
		fmt.Fprintln(w, "  (none: every expected item matched)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  KIND\tCODE\tDESCRIPTION\tEXPECTED\tSCANNED\tDIFF")
	for _, d := range records {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%d\t%+d\n",
			d.Kind, d.Code, d.Description, d.Expected, d.Scanned, d.Diff)
	}
	tw.Flush()
}

func countStatus(c ir.Count) string {
	if c.Finalized {
		return "finalized"
	}
	return "open"
}
