// Package commands implements the books command-line interface.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tinoosan/books/internal/config"
	"github.com/tinoosan/books/internal/service/coa"
	"github.com/tinoosan/books/internal/storage/postgres"
)

// globals holds the persistent flags and what PersistentPreRunE derives from them.
type globals struct {
	configPath string
	duplicates string
	logLevel   string
	plain      bool

	cfg *config.Config
	log *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(version string) *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:     "books",
		Short:   "Chart-of-accounts import and balance reporting",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "path to a books.yaml file")
	flags.StringVar(&g.duplicates, "duplicates", "", "duplicate code policy: reject or last_wins")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&g.plain, "plain", false, "disable terminal styling")

	rootCmd.AddCommand(
		newValidateCommand(g),
		newTreeCommand(g),
		newImportCommand(g),
		newBalancesCommand(g),
	)
	return rootCmd
}

func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.duplicates != "" {
		p, err := coa.ParseDuplicatePolicy(g.duplicates)
		if err != nil {
			return err
		}
		cfg.Import.Duplicates = p
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	// The CLI keeps stdout for results.
	cfg.Log.Format = "text"
	g.cfg = cfg
	g.log = cfg.Log.NewLogger(cmd.ErrOrStderr())
	return nil
}

func (g *globals) importOptions() coa.Options {
	return g.cfg.Import.Options()
}

// openPostgres connects to DATABASE_URL; the caller closes the store.
func (g *globals) openPostgres(ctx context.Context) (*postgres.Store, error) {
	if g.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL (or database_url in --config) is required for this command")
	}
	s, err := postgres.Open(ctx, g.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return s, nil
}
