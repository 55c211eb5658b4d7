package memory

import (
	"github.com/tinoosan/books/internal/service/account"
	"github.com/tinoosan/books/internal/service/balance"
	"github.com/tinoosan/books/internal/service/book"
	"github.com/tinoosan/books/internal/service/coa"
	"github.com/tinoosan/books/internal/service/journal"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	// Service layer repos and writers
	_ journal.Repo   = (*Store)(nil)
	_ journal.Writer = (*Store)(nil)
	_ account.Repo   = (*Store)(nil)
	_ account.Writer = (*Store)(nil)
	_ book.Repo      = (*Store)(nil)
	_ book.Writer    = (*Store)(nil)
	_ balance.Repo   = (*Store)(nil)
	_ coa.Writer     = (*Store)(nil)
)
