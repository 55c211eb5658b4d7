// Package httpapi wires the HTTP surface of the books service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/books/internal/service/account"
	"github.com/tinoosan/books/internal/service/balance"
	"github.com/tinoosan/books/internal/service/book"
	"github.com/tinoosan/books/internal/service/coa"
	"github.com/tinoosan/books/internal/service/journal"
)

// Store is the persistence surface the server needs. Both the memory and
// the postgres stores satisfy it.
type Store interface {
	book.Repo
	book.Writer
	account.Repo
	account.Writer
	journal.Repo
	journal.Writer
	balance.Repo
	coa.Writer
	Ready(ctx context.Context) error
}

// Options tune the server. The zero value is usable.
type Options struct {
	Auth AuthConfig
	// Duplicates is the import policy used when a request does not name one.
	Duplicates coa.DuplicatePolicy
	// StrictRoles rejects chart rows whose role belongs to another kind.
	StrictRoles bool
}

// Server wires handlers and middleware using Chi.
type Server struct {
	books    book.Service
	accounts account.Service
	journal  journal.Service
	balances balance.Service
	importer coa.Service
	ready    func(ctx context.Context) error
	opts     Options
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging, panic recovery and handler outcomes.
func New(store Store, logger *slog.Logger, opts Options) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	if mw := authJWT(opts.Auth); mw != nil {
		r.Use(mw)
	}

	importer := coa.New(store)
	s := &Server{
		books:    book.New(store, store, importer),
		accounts: account.New(store, store),
		journal:  journal.New(store, store),
		balances: balance.New(store),
		importer: importer,
		ready:    store.Ready,
		opts:     opts,
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// Importer exposes the chart importer so that background reloads share the
// server's services.
func (s *Server) Importer() coa.Service { return s.importer }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Owners and ledgers
	s.rt.Post("/v1/owners", s.postOwner)
	s.rt.Get("/v1/owners/{id}", s.getOwner)
	s.rt.Post("/v1/ledgers", s.postLedger)
	s.rt.Get("/v1/ledgers", s.listLedgers)
	s.rt.Get("/v1/ledgers/{id}", s.getLedger)
	s.rt.Post("/v1/ledgers/{id}/archive", s.archiveLedger(true))
	s.rt.Post("/v1/ledgers/{id}/unarchive", s.archiveLedger(false))
	s.rt.Delete("/v1/ledgers/{id}", s.deleteLedger)
	// Chart of accounts
	s.rt.Post("/v1/ledgers/{id}/chart", s.importChart)
	s.rt.Get("/v1/ledgers/{id}/accounts", s.listAccounts)
	s.rt.Get("/v1/ledgers/{id}/accounts/tree", s.accountTree)
	s.rt.Get("/v1/accounts/{id}", s.getAccount)
	s.rt.Patch("/v1/accounts/{id}", s.updateAccount)
	s.rt.Delete("/v1/accounts/{id}", s.deactivateAccount)
	// Balances and transactions
	s.rt.Get("/v1/ledgers/{id}/balances", s.getBalances)
	s.rt.Post("/v1/ledgers/{id}/transactions", s.postTransaction)
	s.rt.Get("/v1/ledgers/{id}/transactions", s.listTransactions)
	s.rt.Post("/v1/ledgers/{id}/transactions/{txID}/reverse", s.reverseTransaction)
	// Dictionary
	s.rt.Get("/v1/dictionary/roles", s.getRolesDictionary)
	// Health (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}
