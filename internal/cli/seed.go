package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledger/internal/seed"
)

// DefaultSeedFile is the chart loaded when --file is not given.
const DefaultSeedFile = "seeds/demo.yaml"

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	File string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	seedOpts := &SeedOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load catalogs from a YAML file",
		Long: `Load currencies, payment terms and companies with their accounts,
journals, taxes and cash roundings from a YAML file, in one transaction.
Entries whose code already exists are skipped.

Examples:
  ledgerctl seed
  ledgerctl seed --file seeds/demo.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSeedFile(seedOpts.File)
			if err != nil {
				return err
			}

			ctx, engine, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var stats seed.Stats
			err = engine.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
				var err error
				stats, err = seed.NewSeeder(seed.Services{
					Currencies:    engine.Currencies,
					Companies:     engine.Companies,
					Accounts:      engine.Accounts,
					Journals:      engine.Journals,
					Taxes:         engine.Taxes,
					PaymentTerms:  engine.PaymentTerms,
					CashRoundings: engine.CashRoundings,
				}).Apply(ctx, doc)
				return err
			})
			if err != nil {
				return fmt.Errorf("seed %s: %w", seedOpts.File, err)
			}

			return opts.print(cmd.OutOrStdout(), stats, fmt.Sprintf(
				"seeded %d currencies (%d rates), %d payment terms, %d companies, %d accounts, %d journals, %d taxes, %d cash roundings",
				stats.Currencies, stats.Rates, stats.PaymentTerms, stats.Companies,
				stats.Accounts, stats.Journals, stats.Taxes, stats.CashRoundings))
		},
	}

	cmd.Flags().StringVarP(&seedOpts.File, "file", "f", DefaultSeedFile, "seed file")

	return cmd
}

func readSeedFile(path string) (*seed.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	doc, err := seed.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
