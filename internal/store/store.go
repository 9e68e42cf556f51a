// Package store holds account balances and the append-only transaction log.
// Two backends implement the same contract: an in-memory store with an
// optional journal, and a Postgres store. Both detect lost updates with a
// per-account version counter bumped on every successful mutation.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nischald42-create/aquabank/internal/domain"
)

// BalanceChange is one leg of an atomic commit. ExpectedVersion is the
// account version the caller read before deciding to apply Delta; a
// mismatch at commit time means a concurrent writer won and the whole
// commit is rejected with domain.ErrConflict.
type BalanceChange struct {
	AccountID       string `json:"account_id"`
	Delta           int64  `json:"delta"`
	ExpectedVersion int64  `json:"expected_version"`
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter"
// for that dimension.
type TransactionFilter struct {
	AccountID string
	Type      domain.TransactionType
	From      time.Time
	To        time.Time
}

// Store is the persistence contract shared by the memory and Postgres
// backends.
type Store interface {
	// CreateAccount persists a new account. If acc.ID is empty the store
	// assigns the next account number.
	CreateAccount(ctx context.Context, acc *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error)
	CloseAccount(ctx context.Context, id string) error

	// AdjustBalance applies delta iff the account's version still equals
	// expectedVersion and the resulting balance stays non-negative (for
	// non-overdraft accounts). Returns the updated account.
	AdjustBalance(ctx context.Context, id string, delta int64, expectedVersion int64) (*domain.Account, error)

	// ApplyTransfer commits every balance change and the transaction record
	// as one unit: either all legs and the record are durable, or nothing
	// is. The transaction must already carry its terminal status.
	ApplyTransfer(ctx context.Context, changes []BalanceChange, txn *domain.Transaction) error

	// RecordTransaction appends a transaction record without touching any
	// balance. Used for failed transfers.
	RecordTransaction(ctx context.Context, txn *domain.Transaction) error

	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*domain.Transaction, error)
}

func matches(t *domain.Transaction, f TransactionFilter) bool {
	if f.AccountID != "" {
		hit := (t.From != nil && *t.From == f.AccountID) || (t.To != nil && *t.To == f.AccountID)
		if !hit {
			return false
		}
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.CreatedAt.Before(f.To) {
		return false
	}
	return true
}
