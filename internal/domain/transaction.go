package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a movement of funds.
type TransactionType string

const (
	TypeTransfer   TransactionType = "transfer"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus is monotone: pending -> completed or pending -> failed.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is the immutable record of one movement of funds. From is nil
// for external deposits, To is nil for external withdrawals and simulated
// outbound payments. Once the status reaches a terminal state the record
// never changes again; the set of all transactions is the append-only ledger.
type Transaction struct {
	ID        uuid.UUID         `json:"id"`
	From      *string           `json:"from_account_id,omitempty"`
	To        *string           `json:"to_account_id,omitempty"`
	Amount    int64             `json:"amount"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	Memo      string            `json:"memo,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewTransaction builds a pending record with a fresh ID.
func NewTransaction(from, to *string, amount int64, typ TransactionType, memo string) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		From:      from,
		To:        to,
		Amount:    amount,
		Type:      typ,
		Status:    StatusPending,
		Memo:      memo,
		CreatedAt: time.Now().UTC(),
	}
}

// Terminal reports whether the status can no longer change.
func (t *Transaction) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
