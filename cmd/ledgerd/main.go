package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/config"
	"github.com/tinoosan/books/internal/httpapi"
	"github.com/tinoosan/books/internal/service/book"
	"github.com/tinoosan/books/internal/service/coa"
	"github.com/tinoosan/books/internal/storage/memory"
	pgstore "github.com/tinoosan/books/internal/storage/postgres"
)

var (
	_ httpapi.Store = (*memory.Store)(nil)
	_ httpapi.Store = (*pgstore.Store)(nil)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("BOOKS_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	var (
		store   httpapi.Store
		closeFn func()
		seed    = cfg.DevSeed
	)
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		store, closeFn = pg, pg.Close
		logger.Info("storage backend: postgres")
	} else {
		// An empty memory store is of little use; always seed it.
		store, seed = memory.New(), true
		logger.Info("storage backend: memory")
	}

	if seed {
		if err := devSeed(ctx, logger, store, cfg); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	srv := httpapi.New(store, logger, httpapi.Options{
		Auth: httpapi.AuthConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		},
		Duplicates:  cfg.Import.Duplicates,
		StrictRoles: cfg.Import.StrictRoles,
	})

	if cfg.Import.WatchChart {
		go watchChart(ctx, logger, srv.Importer(), cfg)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("books service listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// devSeed bootstraps an owner and a ledger with the configured chart, or the
// default bundled chart, and prints the ids for copy and paste.
func devSeed(ctx context.Context, logger *slog.Logger, store httpapi.Store, cfg *config.Config) error {
	source := cfg.Import.Chart
	if source == "" {
		source = chart.BundledPrefix + chart.DefaultChart
	}
	rows, err := chart.Load(source)
	if err != nil {
		return err
	}
	books := book.New(store, store, coa.New(store))
	res, err := books.Bootstrap(ctx, book.BootstrapInput{
		OwnerName: "Dev",
		Ledger:    book.CreateInput{Name: "Dev ledger", Currency: "GBP"},
		Rows:      rows,
		Options:   cfg.Import.Options(),
	})
	if err != nil {
		return err
	}
	logger.Info("DEV seed",
		"owner_id", res.Owner.ID.String(),
		"ledger_id", res.Ledger.ID.String(),
		"chart", source,
		"accounts", res.Import.Created+res.Import.Updated+res.Import.Unchanged,
	)
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("owner_id:  %s\n", res.Owner.ID)
	fmt.Printf("ledger_id: %s\n", res.Ledger.ID)
	if res.Ledger.RootAccountID != nil {
		fmt.Printf("root_account_id: %s\n", *res.Ledger.RootAccountID)
	}
	fmt.Println("==================================================")
	return nil
}

// watchChart re-imports the chart file into the configured ledger on every change.
func watchChart(ctx context.Context, logger *slog.Logger, importer coa.Service, cfg *config.Config) {
	ledgerID, err := cfg.ImportLedgerID()
	if err != nil {
		logger.Error("chart watch disabled", "err", err)
		return
	}
	opts := cfg.Import.Options()
	w := chart.NewWatcher(cfg.Import.Chart, logger, func(ctx context.Context, rows []chart.Row) error {
		start := time.Now()
		res, err := importer.Import(ctx, ledgerID, rows, opts)
		httpapi.ObserveImport(res, err)
		if err != nil {
			return err
		}
		logger.Info("chart reloaded",
			"ledger_id", ledgerID,
			"created", res.Created,
			"updated", res.Updated,
			"duration", time.Since(start).String(),
		)
		return nil
	})
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("chart watcher stopped", "err", err)
	}
}
