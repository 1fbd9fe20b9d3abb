package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/infrastructure/storage/postgres"
	"ledger/pkg/logger"
)

// MigrateOptions holds flags for the migrate commands.
type MigrateOptions struct {
	*RootOptions
	Steps int
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(ctx context.Context, m *postgres.Migrator) error {
				if err := m.Up(ctx); err != nil {
					return err
				}
				return printVersion(cmd, opts, m)
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the given number of migrations.

Examples:
  ledgerctl migrate down
  ledgerctl migrate down --steps 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withMigrator(cmd.Context(), opts, func(ctx context.Context, m *postgres.Migrator) error {
				if err := m.Down(ctx, opts.Steps); err != nil {
					return err
				}
				return printVersion(cmd, opts, m)
			})
		},
	}
	down.Flags().IntVar(&opts.Steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(_ context.Context, m *postgres.Migrator) error {
				return printVersion(cmd, opts, m)
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func withMigrator(ctx context.Context, opts *MigrateOptions, fn func(ctx context.Context, m *postgres.Migrator) error) error {
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	ctx = logger.WithLogger(ctx, opts.logger())

	m, err := postgres.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return fn(ctx, m)
}

func printVersion(cmd *cobra.Command, opts *MigrateOptions, m *postgres.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	text := fmt.Sprintf("schema version %d", v)
	if dirty {
		text += " (dirty)"
	}
	return opts.print(cmd.OutOrStdout(), map[string]any{"version": v, "dirty": dirty}, text)
}
