package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/render"
	"github.com/tinoosan/books/internal/service/account"
	"github.com/tinoosan/books/internal/service/balance"
	"github.com/tinoosan/books/internal/service/coa"
)

const chartArgHelp = "a .json or .csv chart file, or " + chart.BundledPrefix + "<name> such as " + chart.BundledPrefix + chart.DefaultChart

func newValidateCommand(g *globals) *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "validate <chart>",
		Short: "Import a chart into a scratch ledger and report the result",
		Long:  "Import a chart into a scratch in-memory ledger and report the result.\n\nThe chart is " + chartArgHelp + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sc, err := importScratch(ctx, args[0], currency, g.importOptions())
			if err != nil {
				return err
			}
			accts, err := sc.store.FindAccountsByLedger(ctx, sc.ledger.ID)
			if err != nil {
				return err
			}
			if err := ledger.NewTree(accts).Validate(*sc.ledger.RootAccountID); err != nil {
				return fmt.Errorf("chart tree: %w", err)
			}
			g.log.Debug("chart validated", "source", args[0], "accounts", len(accts))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d accounts\n", args[0], len(accts))
			return render.ImportResult(cmd.OutOrStdout(), sc.result, g.plain)
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "USD", "ledger currency (ISO 4217)")
	return cmd
}

type treeFlags struct {
	ownOnly    bool
	inverted   bool
	showHidden bool
}

func (f *treeFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.ownOnly, "own-only", false, "show each account's own balance instead of its subtree total")
	cmd.Flags().BoolVar(&f.inverted, "inverted", false, "show credit-normal balances as positive")
	cmd.Flags().BoolVar(&f.showHidden, "show-hidden", false, "include hidden accounts")
}

func (f *treeFlags) options(g *globals, precision int) render.Options {
	conv := balance.ConventionNatural
	if f.inverted {
		conv = balance.ConventionInverted
	}
	return render.Options{
		Precision:  precision,
		Convention: conv,
		OwnOnly:    f.ownOnly,
		ShowHidden: f.showHidden,
		Plain:      g.plain,
	}
}

func newTreeCommand(g *globals) *cobra.Command {
	var (
		currency string
		splits   string
		tf       treeFlags
	)
	cmd := &cobra.Command{
		Use:   "tree <chart>",
		Short: "Render a chart as a tree, optionally with balances from postings",
		Long: "Render a chart as a tree. With --splits, the postings in the file are recorded first\n" +
			"and every account shows its balance.\n\nThe chart is " + chartArgHelp + ".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sc, err := importScratch(ctx, args[0], currency, g.importOptions())
			if err != nil {
				return err
			}
			var bals balance.Balances
			if splits != "" {
				n, err := sc.recordPostings(ctx, splits)
				if err != nil {
					return err
				}
				start := time.Now()
				snap, err := balance.New(sc.store).Compute(ctx, sc.ledger.ID, balance.Options{IncludeDescendants: !tf.ownOnly})
				if err != nil {
					return err
				}
				g.log.Debug("balances computed", "transactions", n, "duration", time.Since(start).String())
				bals = snap.Balances
			}
			root, err := account.New(sc.store, sc.store).Tree(ctx, sc.ledger.ID)
			if err != nil {
				return err
			}
			return render.Tree(cmd.OutOrStdout(), root, bals, tf.options(g, sc.ledger.Precision))
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "USD", "ledger currency (ISO 4217)")
	cmd.Flags().StringVar(&splits, "splits", "", "JSON file of transactions to post before rendering")
	tf.register(cmd)
	return cmd
}

func newImportCommand(g *globals) *cobra.Command {
	var (
		ledgerID string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "import <chart>",
		Short: "Import a chart into a ledger in postgres",
		Long:  "Import a chart into a ledger stored in postgres (DATABASE_URL).\n\nThe chart is " + chartArgHelp + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(ledgerID)
			if err != nil {
				return fmt.Errorf("--ledger: %w", err)
			}
			rows, err := chart.Load(args[0])
			if err != nil {
				return err
			}
			store, err := g.openPostgres(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			importer := coa.New(store)
			start := time.Now()
			var res coa.Result
			if dryRun {
				res, err = importer.Plan(ctx, id, rows, g.importOptions())
			} else {
				res, err = importer.Import(ctx, id, rows, g.importOptions())
			}
			if err != nil {
				return err
			}
			g.log.Info("chart imported", "ledger_id", id, "dry_run", dryRun, "created", res.Created, "updated", res.Updated, "duration", time.Since(start).String())
			return render.ImportResult(cmd.OutOrStdout(), res, g.plain)
		},
	}
	cmd.Flags().StringVar(&ledgerID, "ledger", "", "target ledger id (required)")
	_ = cmd.MarkFlagRequired("ledger")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing")
	return cmd
}

func newBalancesCommand(g *globals) *cobra.Command {
	var (
		ledgerID string
		tf       treeFlags
	)
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Print the account tree of a postgres ledger with balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(ledgerID)
			if err != nil {
				return fmt.Errorf("--ledger: %w", err)
			}
			store, err := g.openPostgres(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := balance.New(store).Compute(ctx, id, balance.Options{IncludeDescendants: !tf.ownOnly})
			if err != nil {
				return err
			}
			root, err := account.New(store, store).Tree(ctx, id)
			if err != nil {
				return err
			}
			return render.Tree(cmd.OutOrStdout(), root, snap.Balances, tf.options(g, snap.Ledger.Precision))
		},
	}
	cmd.Flags().StringVar(&ledgerID, "ledger", "", "ledger id (required)")
	_ = cmd.MarkFlagRequired("ledger")
	tf.register(cmd)
	return cmd
}
