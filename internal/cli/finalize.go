package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/conteo/internal/engine"
	"github.com/roach88/conteo/internal/ir"
)

// FinalizeOptions holds flags for the finalize command.
type FinalizeOptions struct {
	*RootOptions
	Clarification string
}

// FinalizeResult is the output of the finalize command.
type FinalizeResult struct {
	*ir.DiscrepancyResult
	AlreadyFinalized bool `json:"already_finalized"`
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FinalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "finalize <count>",
		Short: "Close a count and freeze its discrepancies",
		Long: `Close a count. No further scans or corrections are accepted.

The discrepancies are computed once, from every scan recorded up to this
point, and never change afterwards. Finalizing an already finalized count
prints the frozen result and exits with code 1.

Exit codes:
  0 - Count finalized
  1 - Count was already finalized, or finalization failed
  2 - Command error (unknown count, database not found, etc.)

Example:
  conteo finalize r-1001 --clarification "box 3 arrived damaged"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return finalizeCount(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Clarification, "clarification", "c", "", "note stored with the result")

	return cmd
}

func finalizeCount(opts *FinalizeOptions, cmd *cobra.Command, countID string) error {
	f := opts.formatter(cmd)
	return withApp(cmd.Context(), opts.RootOptions, false, func(a *app) error {
		result, err := a.engine.Finalize(cmd.Context(), countID, opts.Clarification)
		if err != nil && !(engine.IsAlreadyFinalized(err) && result != nil) {
			return f.Fail("failed to finalize count", err)
		}

		out := FinalizeResult{DiscrepancyResult: result, AlreadyFinalized: err != nil}
		if renderErr := f.Render(out, func(w io.Writer) {
			if out.AlreadyFinalized {
				fmt.Fprintf(w, "Count %s was already finalized.\n", countID)
			} else {
				fmt.Fprintf(w, "Finalized count %s: %d discrepancies\n", countID, len(result.Records))
			}
			fmt.Fprintln(w)
			outputResultText(w, result)
		}); renderErr != nil {
			return renderErr
		}

		if out.AlreadyFinalized {
			return WrapExitError(ExitFailure, "finalize", err)
		}
		return nil
	})
}
