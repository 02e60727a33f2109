package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// EventOptions holds flags shared by scan, adjust and remove.
type EventOptions struct {
	*RootOptions
	At string // RFC 3339 timestamp; empty means now
}

// EventResult is the outcome of one write command.
type EventResult struct {
	CountID  string `json:"count_id"`
	UserID   string `json:"user_id"`
	Code     string `json:"code"`
	Quantity int64  `json:"quantity"`
	EventID  string `json:"event_id,omitempty"` // empty when a correction changed nothing
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <count> <user> <code> [quantity]",
		Short: "Record scanned units of a code",
		Long: `Record that a user counted quantity units (default 1) of a code.

Resubmitting the same scan with the same --at timestamp is ignored, so a
client can safely retry after a timeout.

Examples:
  conteo scan r-1001 ana 7790001000012
  conteo scan r-1001 ana 7790001000012 6 --at 2025-03-01T09:15:00Z`,
		Args:          cobra.RangeArgs(3, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity := int64(1)
			if len(args) == 4 {
				q, err := parseQuantity(args[3])
				if err != nil {
					return err
				}
				quantity = q
			}
			return submitScan(opts, cmd, args[0], args[1], args[2], quantity)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "scan time (RFC 3339, default now)")

	return cmd
}

func submitScan(opts *EventOptions, cmd *cobra.Command, countID, userID, code string, quantity int64) error {
	at, err := opts.timestamp()
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	return withApp(cmd.Context(), opts.RootOptions, false, func(a *app) error {
		id, err := a.engine.SubmitScan(cmd.Context(), countID, userID, code, quantity, at)
		if err != nil {
			return f.Fail("scan rejected", err)
		}

		result := EventResult{CountID: countID, UserID: userID, Code: code, Quantity: quantity, EventID: id}
		return f.Render(result, func(w io.Writer) {
			fmt.Fprintf(w, "Scanned %d x %s by %s (event %s)\n", quantity, code, userID, truncateID(id))
		})
	})
}

// NewAdjustCommand creates the adjust command.
func NewAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "adjust <count> <user> <code> <quantity>",
		Short: "Correct a user's quantity of a code",
		Long: `Set a user's net quantity of a code, for example after a miscount.

The difference is recorded as a correction; earlier scans are kept.

Example:
  conteo adjust r-1001 ana 7790001000012 4`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := parseQuantity(args[3])
			if err != nil {
				return err
			}
			return setQuantity(opts, cmd, args[0], args[1], args[2], quantity)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "correction time (RFC 3339, default now)")

	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "remove <count> <user> <code>",
		Short:         "Drop everything a user scanned of a code",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setQuantity(opts, cmd, args[0], args[1], args[2], 0)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "correction time (RFC 3339, default now)")

	return cmd
}

func setQuantity(opts *EventOptions, cmd *cobra.Command, countID, userID, code string, quantity int64) error {
	at, err := opts.timestamp()
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	return withApp(cmd.Context(), opts.RootOptions, false, func(a *app) error {
		id, err := a.engine.SetQuantity(cmd.Context(), countID, userID, code, quantity, at)
		if err != nil {
			return f.Fail("correction rejected", err)
		}

		result := EventResult{CountID: countID, UserID: userID, Code: code, Quantity: quantity, EventID: id}
		return f.Render(result, func(w io.Writer) {
			if id == "" {
				fmt.Fprintf(w, "No change: %s already has %d x %s\n", userID, quantity, code)
				return
			}
			fmt.Fprintf(w, "Set %s to %d for %s (event %s)\n", code, quantity, userID, truncateID(id))
		})
	})
}

// timestamp parses --at. The zero time tells the engine to use its clock.
func (o *EventOptions) timestamp() (time.Time, error) {
	if o.At == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, o.At)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "invalid --at timestamp", err)
	}
	return t, nil
}

func parseQuantity(s string) (int64, error) {
	q, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", s), err)
	}
	return q, nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
