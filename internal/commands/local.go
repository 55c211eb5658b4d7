package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/service/book"
	"github.com/tinoosan/books/internal/service/coa"
	"github.com/tinoosan/books/internal/service/journal"
	"github.com/tinoosan/books/internal/storage/memory"
)

// scratch is a throwaway in-memory ledger holding one imported chart.
type scratch struct {
	store  *memory.Store
	ledger ledger.Ledger
	result coa.Result
}

// importScratch loads source and imports it into a fresh in-memory ledger.
func importScratch(ctx context.Context, source, currency string, opts coa.Options) (*scratch, error) {
	rows, err := chart.Load(source)
	if err != nil {
		return nil, err
	}
	store := memory.New()
	books := book.New(store, store, coa.New(store))
	res, err := books.Bootstrap(ctx, book.BootstrapInput{
		OwnerName: "cli",
		Ledger:    book.CreateInput{Name: source, Currency: currency},
		Rows:      rows,
		Options:   opts,
	})
	if err != nil {
		return nil, err
	}
	return &scratch{store: store, ledger: res.Ledger, result: *res.Import}, nil
}

// postingFile is the --splits format: transactions naming accounts by code.
type postingFile []struct {
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description"`
	Splits      []struct {
		Account string      `json:"account"`
		Side    ledger.Side `json:"side"`
		Amount  string      `json:"amount"`
		Memo    string      `json:"memo,omitempty"`
	} `json:"splits"`
}

// recordPostings records every transaction in path against the scratch ledger.
func (s *scratch) recordPostings(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading splits: %w", err)
	}
	var file postingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("%w: splits file: %v", errs.ErrDecodeFailed, err)
	}
	accts, err := s.store.FindAccountsByLedger(ctx, s.ledger.ID)
	if err != nil {
		return 0, err
	}
	byCode := make(map[string]ledger.Account, len(accts))
	for _, a := range accts {
		byCode[ledger.NormalizeCode(a.Code)] = a
	}

	jr := journal.New(s.store, s.store)
	for i, entry := range file {
		tx := ledger.Transaction{LedgerID: s.ledger.ID, Description: entry.Description}
		if entry.Date != nil {
			tx.PostDate = *entry.Date
		}
		for j, sp := range entry.Splits {
			a, ok := byCode[ledger.NormalizeCode(sp.Account)]
			if !ok {
				return i, fmt.Errorf("transaction %d split %d: unknown account %q: %w", i+1, j+1, sp.Account, errs.ErrNotFound)
			}
			v, err := ledger.ParseRational(sp.Amount)
			if err != nil {
				return i, fmt.Errorf("transaction %d split %d: %v: %w", i+1, j+1, err, errs.ErrInvalidValue)
			}
			tx.Splits = append(tx.Splits, ledger.Split{AccountID: a.ID, Side: sp.Side, Value: v, Memo: sp.Memo})
		}
		if _, err := jr.Record(ctx, tx); err != nil {
			return i, fmt.Errorf("transaction %d: %w", i+1, err)
		}
	}
	return len(file), nil
}
