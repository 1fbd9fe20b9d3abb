// Package cli implements ledgerctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ledger/internal/app"
	"ledger/internal/config"
	"ledger/internal/core/id"
	"ledger/internal/infrastructure/storage/postgres"
	"ledger/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
	Format      string // "json" | "text"
	Verbose     bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of ledgerctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the ledger engine",
		Long:  "Apply schema migrations, load catalogs, post moves and reconcile accounts without going through the API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "database URL (defaults to DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewReverseCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// settings resolves the configuration, the flag winning over the environment.
func (o *RootOptions) settings() (*config.Config, error) {
	if o.DatabaseURL != "" {
		return &config.Config{DatabaseURL: o.DatabaseURL, LogLevel: "info"}, nil
	}
	return config.Load()
}

func (o *RootOptions) logger() *logger.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Development: true})
	if err != nil {
		return logger.NewNop()
	}
	return log
}

// connect assembles the engine. The returned context carries the logger and
// the TxManager; close releases the pool.
func (o *RootOptions) connect(ctx context.Context) (context.Context, *app.App, func(), error) {
	cfg, err := o.settings()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx = logger.WithLogger(ctx, o.logger())

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect: %w", err)
	}
	engine, err := app.New(postgres.NewTxManager(pool), app.Options{NumberingStrategy: cfg.NumeratorStrategy})
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return engine.Context(ctx), engine, pool.Close, nil
}

// print writes v as JSON or, in text mode, the text line.
func (o *RootOptions) print(w io.Writer, v any, text string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// parseIDs parses positional arguments as ids.
func parseIDs(args []string) ([]id.ID, error) {
	ids := make([]id.ID, len(args))
	for i, arg := range args {
		v, err := id.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids[i] = v
	}
	return ids, nil
}
