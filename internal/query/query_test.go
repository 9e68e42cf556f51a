package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nischald42-create/aquabank/internal/domain"
	"github.com/nischald42-create/aquabank/internal/store"
)

func seedAccount(t *testing.T, s *store.MemoryStore, id string, balance int64) {
	t.Helper()
	acc := &domain.Account{ID: id, OwnerID: "owner", Name: "Checking " + id, Balance: balance, CreatedAt: time.Now().UTC()}
	if err := s.CreateAccount(context.Background(), acc); err != nil {
		t.Fatal(err)
	}
}

func record(t *testing.T, s *store.MemoryStore, from, to *string, amount int64, typ domain.TransactionType, status domain.TransactionStatus, at time.Time, memo string) {
	t.Helper()
	txn := domain.NewTransaction(from, to, amount, typ, memo)
	txn.Status = status
	txn.CreatedAt = at
	if err := s.RecordTransaction(context.Background(), txn); err != nil {
		t.Fatal(err)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedAccount(t, s, "CHK-001", 100)
	q := NewService(s)

	dest, err := q.Resolve(ctx, "CHK-001")
	if err != nil || dest.External || dest.AccountID != "CHK-001" {
		t.Fatalf("internal resolve dest=%+v err=%v", dest, err)
	}

	dest, err = q.Resolve(ctx, "12345678901")
	if err != nil || !dest.External {
		t.Fatalf("external resolve dest=%+v err=%v", dest, err)
	}

	for _, bad := range []string{"", "   ", "CHK-999", "12345"} {
		if _, err := q.Resolve(ctx, bad); !errors.Is(err, domain.ErrRecipientNotFound) {
			t.Errorf("Resolve(%q) err=%v, want ErrRecipientNotFound", bad, err)
		}
	}
}

func TestHistoryOrderingAndIdempotence(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedAccount(t, s, "A", 0)
	q := NewService(s)

	a := "A"
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	record(t, s, nil, &a, 300, domain.TypeDeposit, domain.StatusCompleted, base.Add(2*time.Hour), "late")
	record(t, s, nil, &a, 100, domain.TypeDeposit, domain.StatusCompleted, base, "early")
	record(t, s, &a, nil, 50, domain.TypeWithdrawal, domain.StatusCompleted, base.Add(time.Hour), "middle")

	first, err := q.History(ctx, store.TransactionFilter{AccountID: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 {
		t.Fatalf("len=%d want=3", len(first))
	}
	if first[0].Memo != "early" || first[1].Memo != "middle" || first[2].Memo != "late" {
		t.Fatalf("order=%s,%s,%s", first[0].Memo, first[1].Memo, first[2].Memo)
	}

	// Unchanged state, identical answer.
	second, err := q.History(ctx, store.TransactionFilter{AccountID: "A"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("repeated read differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestStatement(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	q := NewService(s)

	// Account currently holds 60.00 after: +100.00 deposit, -40.00 transfer.
	acc := &domain.Account{ID: "CHK-001", OwnerID: "owner", Name: "Everyday Checking", Balance: 6000}
	if err := s.CreateAccount(ctx, acc); err != nil {
		t.Fatal(err)
	}
	id := "CHK-001"
	other := "SAV-001"
	jan := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	record(t, s, nil, &id, 10000, domain.TypeDeposit, domain.StatusCompleted, jan, "payday")
	record(t, s, &id, &other, 4000, domain.TypeTransfer, domain.StatusCompleted, feb, "savings")
	// Failed transactions never appear on a statement.
	record(t, s, &id, &other, 99999, domain.TypeTransfer, domain.StatusFailed, feb.Add(time.Hour), "bounced")

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	text, err := q.Statement(ctx, "CHK-001", from, to)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"Account: CHK-001 (Everyday Checking)",
		"Opening balance: 100.00",
		"Closing balance: 60.00",
		"-40.00",
		"savings",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("statement missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "bounced") {
		t.Errorf("failed transaction leaked into statement:\n%s", text)
	}

	// Deterministic: same inputs, byte-identical output.
	again, err := q.Statement(ctx, "CHK-001", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if text != again {
		t.Error("statement is not deterministic")
	}
}

func TestPaymentCode(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedAccount(t, s, "CHK-001", 0)
	q := NewService(s)

	code, err := q.PaymentCode(ctx, "CHK-001", 4000)
	if err != nil {
		t.Fatal(err)
	}
	if code != "aquabank:pay?amount=40.00&to=CHK-001" {
		t.Fatalf("code=%q", code)
	}

	code, err = q.PaymentCode(ctx, "CHK-001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if code != "aquabank:pay?to=CHK-001" {
		t.Fatalf("amountless code=%q", code)
	}

	if _, err := q.PaymentCode(ctx, "missing", 0); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("missing account err=%v", err)
	}
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedAccount(t, s, "A", 876245)
	q := NewService(s)

	got, err := q.Balance(ctx, "A")
	if err != nil || got != 876245 {
		t.Fatalf("Balance=%d err=%v", got, err)
	}
	if _, err := q.Balance(ctx, "B"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("missing err=%v", err)
	}
}
