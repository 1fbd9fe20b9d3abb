package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/domain/ledger/reconcile"
)

// NewReconcileCommand creates the reconcile command group.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile receivable and payable lines",
	}

	account := &cobra.Command{
		Use:   "account <account-id>",
		Short: "Reconcile the open posted lines of an account",
		Long: `Match the open posted lines of a reconcilable account, partner by partner,
oldest maturity first.

Examples:
  ledgerctl reconcile account 0190a1c2-7c1e-7d3a-9b2e-2f4c5d6e7f80`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			accountID := ids[0]

			ctx, engine, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := engine.Reconcile.AutoReconcileAccount(ctx, accountID)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(),
				map[string]any{"accountId": accountID.String(), "partials": n},
				fmt.Sprintf("account %s: %d partial reconcile(s) created", accountID, n))
		},
	}

	lines := &cobra.Command{
		Use:   "lines <line-id>...",
		Short: "Reconcile the given lines against each other",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lineIDs, err := parseIDs(args)
			if err != nil {
				return err
			}

			ctx, engine, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := engine.Reconcile.Reconcile(ctx, lineIDs, reconcile.Options{})
			if err != nil {
				return err
			}
			text := fmt.Sprintf("%d partial reconcile(s) created", len(res.Partials))
			if res.FullReconcile != nil {
				text += ", fully reconciled as " + res.FullReconcile.Name
			}
			return opts.print(cmd.OutOrStdout(), map[string]any{
				"partials":      res.Partials,
				"fullReconcile": res.FullReconcile,
			}, text)
		},
	}

	cmd.AddCommand(account, lines)
	return cmd
}
