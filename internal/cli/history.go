package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/conteo/internal/ir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Recover bool
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	CountID   string            `json:"count_id"`
	Recovered int               `json:"recovered"`
	Entries   []ir.HistoryEntry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <count>",
		Short: "Show the audit trail of a count",
		Long: `Show every recorded change to a count: who changed which code, when,
and the quantity before and after.

With --recover, entries missing after a crash or a storage outage are
written first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Recover, "recover", false, "write missing entries before listing")

	return cmd
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command, countID string) error {
	f := opts.formatter(cmd)
	return withApp(cmd.Context(), opts.RootOptions, false, func(a *app) error {
		result := HistoryResult{CountID: countID}

		if opts.Recover {
			n, err := a.engine.RecoverHistory(cmd.Context(), countID)
			if err != nil {
				return f.Fail("failed to recover history", err)
			}
			result.Recovered = n
			f.VerboseLog("recovering %d history entries", n)
		}
		if err := a.engine.Flush(cmd.Context()); err != nil {
			return f.Fail("failed to flush history", err)
		}

		entries, err := a.engine.GetHistory(cmd.Context(), countID)
		if err != nil {
			return f.Fail("failed to read history", err)
		}
		result.Entries = entries

		return f.Render(result, func(w io.Writer) {
			fmt.Fprintf(w, "History for Count: %s\n", countID)
			if opts.Recover {
				fmt.Fprintf(w, "Recovered: %d\n", result.Recovered)
			}
			fmt.Fprintln(w)
			outputHistoryText(w, entries)
		})
	})
}
