package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/conteo/internal/engine"
)

// VerifyReport holds the overall verify result.
type VerifyReport struct {
	Counts []engine.VerifyResult `json:"counts"`
	Total  int                   `json:"total"`
	AllOK  bool                  `json:"all_ok"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [count]",
		Short: "Rebuild counts from their event logs and check determinism",
		Long: `Replay each count's event log twice, in opposite orders, and check
that both folds agree. For finalized counts the frozen discrepancies must
also match a fresh resolution of the log. Events without a history entry
are reported but do not fail verification.

Exit codes:
  0 - Every count verified
  1 - Verification failed for at least one count
  2 - Command error (unknown count, database not found, etc.)

Examples:
  conteo verify
  conteo verify r-1001 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd, args)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command, args []string) error {
	f := opts.formatter(cmd)
	return withApp(cmd.Context(), opts, false, func(a *app) error {
		var ids []string
		if len(args) == 1 {
			ids = args
		} else {
			counts, err := a.engine.ListCounts(cmd.Context())
			if err != nil {
				return f.Fail("failed to list counts", err)
			}
			for _, c := range counts {
				ids = append(ids, c.ID)
			}
		}

		report := VerifyReport{
			Counts: make([]engine.VerifyResult, 0, len(ids)),
			Total:  len(ids),
			AllOK:  true,
		}
		for _, id := range ids {
			res, err := a.engine.Verify(cmd.Context(), id)
			if err != nil {
				return f.Fail(fmt.Sprintf("failed to verify count %s", id), err)
			}
			report.Counts = append(report.Counts, res)
			if !res.OK() {
				report.AllOK = false
			}
		}

		if err := f.Render(report, func(w io.Writer) {
			outputVerifyText(w, report)
		}); err != nil {
			return err
		}

		if !report.AllOK {
			return NewExitError(ExitFailure, "verification failed")
		}
		return nil
	})
}

func outputVerifyText(w io.Writer, report VerifyReport) {
	if report.Total == 0 {
		fmt.Fprintln(w, "No counts found in database.")
		return
	}

	fmt.Fprintf(w, "Verify Summary: %d count(s)\n", report.Total)
	fmt.Fprintln(w)

	for _, r := range report.Counts {
		status := "✓"
		if !r.OK() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Count: %s\n", status, r.CountID)
		fmt.Fprintf(w, "  Events: %d\n", r.Events)
		if !r.Deterministic {
			fmt.Fprintln(w, "  Warning: aggregates depend on event order!")
		}
		if !r.ResultMatches {
			fmt.Fprintln(w, "  Warning: frozen result differs from the event log!")
		}
		if r.Unaudited > 0 {
			fmt.Fprintf(w, "  Unaudited events: %d (run history --recover)\n", r.Unaudited)
		}
		fmt.Fprintln(w)
	}

	if report.AllOK {
		fmt.Fprintln(w, "✓ All counts verified deterministic")
		return
	}
	fmt.Fprintln(w, "✗ Verification failed")
}
