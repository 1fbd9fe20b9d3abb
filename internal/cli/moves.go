package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewPostCommand creates the post command.
func NewPostCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post <move-id>...",
		Short: "Post draft moves",
		Long: `Post draft moves in one transaction: either every move posts or none does.

Examples:
  ledgerctl post 0190a1c2-7c1e-7d3a-9b2e-2f4c5d6e7f80
  ledgerctl post $(cat drafts.txt) --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			moveIDs, err := parseIDs(args)
			if err != nil {
				return err
			}

			ctx, engine, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := engine.Moves.Post(ctx, moveIDs...); err != nil {
				return err
			}

			numbers := make([]string, 0, len(moveIDs))
			for _, moveID := range moveIDs {
				m, err := engine.Moves.GetByID(ctx, moveID)
				if err != nil {
					return err
				}
				numbers = append(numbers, m.Number)
			}
			return opts.print(cmd.OutOrStdout(),
				map[string]any{"posted": numbers},
				fmt.Sprintf("posted %d move(s): %s", len(numbers), strings.Join(numbers, ", ")))
		},
	}
}

// ReverseOptions holds flags for the reverse command.
type ReverseOptions struct {
	*RootOptions
	Date      string
	Reconcile bool
}

// NewReverseCommand creates the reverse command.
func NewReverseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReverseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reverse <move-id>...",
		Short: "Reverse posted moves",
		Long: `Book the mirror of each posted move. With --reconcile the open lines of
each move are reconciled with their reversing lines.

Examples:
  ledgerctl reverse 0190a1c2-7c1e-7d3a-9b2e-2f4c5d6e7f80 --date 2024-12-31
  ledgerctl reverse 0190a1c2-7c1e-7d3a-9b2e-2f4c5d6e7f80 --reconcile`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			moveIDs, err := parseIDs(args)
			if err != nil {
				return err
			}
			date := time.Now().UTC()
			if opts.Date != "" {
				if date, err = time.Parse(time.DateOnly, opts.Date); err != nil {
					return fmt.Errorf("invalid --date %q (YYYY-MM-DD expected)", opts.Date)
				}
			}

			ctx, engine, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var reversals []string
			if opts.Reconcile {
				moves, err := engine.Reconcile.ReverseMoves(ctx, moveIDs, date)
				if err != nil {
					return err
				}
				for _, m := range moves {
					reversals = append(reversals, m.ID.String())
				}
			} else {
				for _, moveID := range moveIDs {
					m, err := engine.Moves.Reverse(ctx, moveID, date)
					if err != nil {
						return err
					}
					reversals = append(reversals, m.ID.String())
				}
			}

			return opts.print(cmd.OutOrStdout(),
				map[string]any{"reversals": reversals},
				fmt.Sprintf("reversed %d move(s): %s", len(reversals), strings.Join(reversals, ", ")))
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "accounting date of the reversals (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.Reconcile, "reconcile", false, "reconcile each move with its reversal")

	return cmd
}
