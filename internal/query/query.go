// Package query provides read-only projections over the account store and
// transaction log: balance lookup, filtered history, statement assembly,
// and recipient resolution. Nothing here mutates state, and repeated calls
// against unchanged state return identical results.
package query

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/nischald42-create/aquabank/internal/domain"
	"github.com/nischald42-create/aquabank/internal/ledger"
	"github.com/nischald42-create/aquabank/internal/store"
)

// externalMinDigits is the minimum length for a digits-only identifier to
// be treated as an external routing number rather than a typo.
const externalMinDigits = 10

// Service answers dashboard reads.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Balance returns the account's committed balance.
func (q *Service) Balance(ctx context.Context, accountID string) (int64, error) {
	acc, err := q.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Account returns the account's current snapshot.
func (q *Service) Account(ctx context.Context, accountID string) (*domain.Account, error) {
	return q.store.GetAccount(ctx, accountID)
}

// AccountsByOwner lists every account owned by ownerID.
func (q *Service) AccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	return q.store.ListAccountsByOwner(ctx, ownerID)
}

// History returns the account's transactions matching the filter, oldest
// first with the transaction ID as a tiebreaker so ordering is stable.
func (q *Service) History(ctx context.Context, f store.TransactionFilter) ([]*domain.Transaction, error) {
	txns, err := q.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.Before(txns[j].CreatedAt)
		}
		return txns[i].ID.String() < txns[j].ID.String()
	})
	return txns, nil
}

// Resolve implements ledger.Resolver. An existing account number resolves
// internally; a digits-only identifier long enough to be an external
// routing number resolves externally; everything else is unknown.
func (q *Service) Resolve(ctx context.Context, identifier string) (ledger.Destination, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return ledger.Destination{}, domain.ErrRecipientNotFound
	}
	acc, err := q.store.GetAccount(ctx, id)
	if err == nil {
		return ledger.Destination{AccountID: acc.ID}, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return ledger.Destination{}, err
	}
	if len(id) >= externalMinDigits && digitsOnly(id) {
		return ledger.Destination{External: true}, nil
	}
	return ledger.Destination{}, domain.ErrRecipientNotFound
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// delta is the signed effect of a completed transaction on accountID.
func delta(t *domain.Transaction, accountID string) int64 {
	if t.Status != domain.StatusCompleted {
		return 0
	}
	var d int64
	if t.From != nil && *t.From == accountID {
		d -= t.Amount
	}
	if t.To != nil && *t.To == accountID {
		d += t.Amount
	}
	return d
}

// Statement renders the account's activity over [from, to) as plain text
// with a running balance. The opening balance is derived from the current
// balance and the log, so the statement is a pure function of store state.
func (q *Service) Statement(ctx context.Context, accountID string, from, to time.Time) (string, error) {
	acc, err := q.store.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	all, err := q.History(ctx, store.TransactionFilter{AccountID: accountID})
	if err != nil {
		return "", err
	}

	// Walk back from the current balance to the period's opening balance.
	opening := acc.Balance
	var period []*domain.Transaction
	for _, t := range all {
		if !t.CreatedAt.Before(from) {
			opening -= delta(t, accountID)
		}
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) && t.Status == domain.StatusCompleted {
			period = append(period, t)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "AquaBank statement\n")
	fmt.Fprintf(&b, "Account: %s (%s)\n", acc.ID, acc.Name)
	fmt.Fprintf(&b, "Period:  %s to %s\n\n", from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Opening balance: %s\n\n", domain.FormatAmount(opening))
	fmt.Fprintf(&b, "%-12s %-11s %12s %12s  %s\n", "DATE", "TYPE", "AMOUNT", "BALANCE", "MEMO")

	running := opening
	for _, t := range period {
		d := delta(t, accountID)
		running += d
		fmt.Fprintf(&b, "%-12s %-11s %12s %12s  %s\n",
			t.CreatedAt.UTC().Format("2006-01-02"),
			t.Type,
			domain.FormatAmount(d),
			domain.FormatAmount(running),
			t.Memo,
		)
	}
	fmt.Fprintf(&b, "\nClosing balance: %s\n", domain.FormatAmount(running))
	return b.String(), nil
}

// PaymentCode builds the canonical payment-request URI encoded into the
// dashboard's QR codes. Rendering the code image is the UI's problem.
func (q *Service) PaymentCode(ctx context.Context, accountID string, amount int64) (string, error) {
	acc, err := q.store.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	v := url.Values{}
	v.Set("to", acc.ID)
	if amount > 0 {
		if err := domain.ValidateMinorUnits(amount); err != nil {
			return "", err
		}
		v.Set("amount", domain.FormatAmount(amount))
	}
	return "aquabank:pay?" + v.Encode(), nil
}
