// Package ledger executes money movements as all-or-nothing operations
// against the account store. Every movement produces exactly one immutable
// transaction record whose terminal status matches the balance mutations
// actually performed.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nischald42-create/aquabank/internal/domain"
	"github.com/nischald42-create/aquabank/internal/store"
)

// maxAttempts bounds the optimistic-conflict retry loop. A conflicting
// concurrent write triggers an immediate re-read and retry instead of a
// lock wait, so two transfers touching the same accounts in opposite order
// cannot deadlock.
const maxAttempts = 3

var transferOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aquabank_ledger_operations_total",
	Help: "Ledger operations by type and outcome",
}, []string{"type", "outcome"})

// Destination is the result of resolving a human-entered recipient
// identifier. External destinations get no credit leg.
type Destination struct {
	AccountID string
	External  bool
}

// Resolver maps a recipient identifier to a destination account or signals
// that it cannot be resolved.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (Destination, error)
}

// TransferRequest is the engine-level input for a transfer.
type TransferRequest struct {
	FromAccountID string
	ToIdentifier  string
	Amount        int64 // minor units
	Memo          string
}

// TransferResult carries the finalized record and the source account's
// committed balance.
type TransferResult struct {
	Transaction *domain.Transaction
	NewBalance  int64
}

// Engine validates and executes transfers, deposits, and withdrawals.
type Engine struct {
	store    store.Store
	resolver Resolver
}

func NewEngine(s store.Store, r Resolver) *Engine {
	return &Engine{store: s, resolver: r}
}

// Transfer moves req.Amount from the caller's account to the resolved
// destination. callerID must own the source account unless empty (trusted
// internal callers). Debit and credit commit as one unit; no reader ever
// observes one leg without the other.
func (e *Engine) Transfer(ctx context.Context, callerID string, req TransferRequest) (*TransferResult, error) {
	if err := domain.ValidateMinorUnits(req.Amount); err != nil {
		transferOutcomes.WithLabelValues("transfer", "invalid_amount").Inc()
		return nil, err
	}

	dest, err := e.resolver.Resolve(ctx, req.ToIdentifier)
	if err != nil {
		transferOutcomes.WithLabelValues("transfer", "recipient_not_found").Inc()
		return nil, err
	}
	if !dest.External && dest.AccountID == req.FromAccountID {
		transferOutcomes.WithLabelValues("transfer", "invalid_amount").Inc()
		return nil, domain.ErrSameAccount
	}

	var to *string
	if !dest.External {
		to = &dest.AccountID
	}
	from := req.FromAccountID
	txn := domain.NewTransaction(&from, to, req.Amount, domain.TypeTransfer, req.Memo)

	for attempt := 1; ; attempt++ {
		src, err := e.store.GetAccount(ctx, req.FromAccountID)
		if err != nil {
			return e.fail(ctx, txn, "transfer", err)
		}
		if callerID != "" && src.OwnerID != callerID {
			// Do not reveal other users' account numbers.
			return e.fail(ctx, txn, "transfer", domain.ErrAccountNotFound)
		}
		if !src.Overdraft && src.Balance < req.Amount {
			return e.fail(ctx, txn, "transfer", domain.ErrInsufficientFunds)
		}

		changes := []store.BalanceChange{
			{AccountID: src.ID, Delta: -req.Amount, ExpectedVersion: src.Version},
		}
		if !dest.External {
			dst, err := e.store.GetAccount(ctx, dest.AccountID)
			if err != nil {
				if errors.Is(err, domain.ErrAccountNotFound) {
					err = domain.ErrRecipientNotFound
				}
				return e.fail(ctx, txn, "transfer", err)
			}
			changes = append(changes, store.BalanceChange{
				AccountID: dst.ID, Delta: req.Amount, ExpectedVersion: dst.Version,
			})
		}

		txn.Status = domain.StatusCompleted
		err = e.store.ApplyTransfer(ctx, changes, txn)
		if err == nil {
			transferOutcomes.WithLabelValues("transfer", "completed").Inc()
			return &TransferResult{Transaction: txn, NewBalance: src.Balance - req.Amount}, nil
		}
		txn.Status = domain.StatusPending
		if errors.Is(err, domain.ErrConflict) && attempt < maxAttempts {
			continue
		}
		if errors.Is(err, domain.ErrConflict) {
			return e.fail(ctx, txn, "transfer", fmt.Errorf("%w: retries exhausted", domain.ErrConflict))
		}
		return e.fail(ctx, txn, "transfer", err)
	}
}

// Deposit credits an account from outside the bank (administrative funding).
func (e *Engine) Deposit(ctx context.Context, accountID string, amount int64, memo string) (*TransferResult, error) {
	if err := domain.ValidateMinorUnits(amount); err != nil {
		transferOutcomes.WithLabelValues("deposit", "invalid_amount").Inc()
		return nil, err
	}
	to := accountID
	txn := domain.NewTransaction(nil, &to, amount, domain.TypeDeposit, memo)
	return e.applySingle(ctx, txn, accountID, amount, "deposit")
}

// Withdraw debits an account to outside the bank.
func (e *Engine) Withdraw(ctx context.Context, accountID string, amount int64, memo string) (*TransferResult, error) {
	if err := domain.ValidateMinorUnits(amount); err != nil {
		transferOutcomes.WithLabelValues("withdrawal", "invalid_amount").Inc()
		return nil, err
	}
	from := accountID
	txn := domain.NewTransaction(&from, nil, amount, domain.TypeWithdrawal, memo)
	return e.applySingle(ctx, txn, accountID, -amount, "withdrawal")
}

// applySingle runs the one-leg retry loop shared by deposits and
// withdrawals.
func (e *Engine) applySingle(ctx context.Context, txn *domain.Transaction, accountID string, delta int64, op string) (*TransferResult, error) {
	for attempt := 1; ; attempt++ {
		acc, err := e.store.GetAccount(ctx, accountID)
		if err != nil {
			return e.fail(ctx, txn, op, err)
		}
		if delta < 0 && !acc.Overdraft && acc.Balance+delta < 0 {
			return e.fail(ctx, txn, op, domain.ErrInsufficientFunds)
		}

		txn.Status = domain.StatusCompleted
		err = e.store.ApplyTransfer(ctx, []store.BalanceChange{
			{AccountID: acc.ID, Delta: delta, ExpectedVersion: acc.Version},
		}, txn)
		if err == nil {
			transferOutcomes.WithLabelValues(op, "completed").Inc()
			return &TransferResult{Transaction: txn, NewBalance: acc.Balance + delta}, nil
		}
		txn.Status = domain.StatusPending
		if errors.Is(err, domain.ErrConflict) && attempt < maxAttempts {
			continue
		}
		if errors.Is(err, domain.ErrConflict) {
			return e.fail(ctx, txn, op, fmt.Errorf("%w: retries exhausted", domain.ErrConflict))
		}
		return e.fail(ctx, txn, op, err)
	}
}

// fail finalizes the record as failed (zero balance mutations) and returns
// the causing error. Store trouble while recording the failure is reported
// in preference to losing it silently.
func (e *Engine) fail(ctx context.Context, txn *domain.Transaction, op string, cause error) (*TransferResult, error) {
	transferOutcomes.WithLabelValues(op, outcomeLabel(cause)).Inc()
	txn.Status = domain.StatusFailed
	if err := e.store.RecordTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("recording failed %s: %w", op, err)
	}
	return nil, cause
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	}
	return "error"
}
