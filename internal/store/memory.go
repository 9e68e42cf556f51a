package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nischald42-create/aquabank/internal/domain"
)

// MemoryStore keeps the whole ledger in process memory behind one RWMutex.
// All multi-account commits happen inside a single critical section, so a
// reader never observes a half-applied transfer. An optional journal makes
// the state survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	log      []*domain.Transaction
	byID     map[uuid.UUID]*domain.Transaction
	nextNum  int64
	journal  *Journal
}

// NewMemoryStore returns an empty store with no journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*domain.Account),
		byID:     make(map[uuid.UUID]*domain.Transaction),
	}
}

// NewJournaledMemoryStore opens (or creates) the journal at path and replays
// it into a fresh store.
func NewJournaledMemoryStore(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	j, err := OpenJournal(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := j.Replay(s.replayRecord); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal replay: %w", err)
	}
	s.journal = j
	return s, nil
}

// Close releases the journal, if any.
func (s *MemoryStore) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// replayRecord applies one journal record. Runs single-threaded during
// startup, before the store is shared, so no locking.
func (s *MemoryStore) replayRecord(rec *journalRecord) error {
	switch rec.Kind {
	case recordAccount:
		cp := *rec.Account
		s.accounts[cp.ID] = &cp
		s.bumpAccountCounter(cp.ID)
	case recordClose:
		delete(s.accounts, rec.AccountID)
	case recordCommit:
		for _, c := range rec.Changes {
			acc, ok := s.accounts[c.AccountID]
			if !ok {
				return fmt.Errorf("journal references unknown account %s", c.AccountID)
			}
			acc.Balance += c.Delta
			acc.Version++
		}
		if rec.Txn != nil {
			s.appendLog(rec.Txn)
		}
	default:
		return fmt.Errorf("unknown journal record kind %q", rec.Kind)
	}
	return nil
}

func (s *MemoryStore) appendLog(txn *domain.Transaction) {
	cp := *txn
	s.log = append(s.log, &cp)
	s.byID[cp.ID] = &cp
}

// bumpAccountCounter keeps generated account numbers ahead of any replayed
// or caller-supplied numeric suffix.
func (s *MemoryStore) bumpAccountCounter(id string) {
	var n int64
	if _, err := fmt.Sscanf(id, "ACCT-%d", &n); err == nil && n > s.nextNum {
		s.nextNum = n
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.ID == "" {
		s.nextNum++
		acc.ID = fmt.Sprintf("ACCT-%06d", s.nextNum)
	} else {
		if _, exists := s.accounts[acc.ID]; exists {
			return fmt.Errorf("account %s already exists", acc.ID)
		}
		s.bumpAccountCounter(acc.ID)
	}
	cp := *acc
	s.accounts[cp.ID] = &cp
	if s.journal != nil {
		if err := s.journal.Append(&journalRecord{Kind: recordAccount, Account: &cp}); err != nil {
			delete(s.accounts, cp.ID)
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		cp := *acc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Account
	for _, acc := range s.accounts {
		if acc.OwnerID == ownerID {
			cp := *acc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CloseAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(s.accounts, id)
	if s.journal != nil {
		if err := s.journal.Append(&journalRecord{Kind: recordClose, AccountID: id}); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *MemoryStore) AdjustBalance(ctx context.Context, id string, delta int64, expectedVersion int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	change := BalanceChange{AccountID: id, Delta: delta, ExpectedVersion: expectedVersion}
	acc, err := s.checkChange(change)
	if err != nil {
		return nil, err
	}
	if s.journal != nil {
		rec := &journalRecord{Kind: recordCommit, Changes: []BalanceChange{change}}
		if err := s.journal.Append(rec); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	acc.Balance += delta
	acc.Version++
	cp := *acc
	return &cp, nil
}

// checkChange validates one leg against current state. Caller holds the
// write lock.
func (s *MemoryStore) checkChange(c BalanceChange) (*domain.Account, error) {
	acc, ok := s.accounts[c.AccountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if acc.Version != c.ExpectedVersion {
		return nil, domain.ErrConflict
	}
	if !acc.Overdraft && acc.Balance+c.Delta < 0 {
		return nil, domain.ErrInsufficientFunds
	}
	return acc, nil
}

func (s *MemoryStore) ApplyTransfer(ctx context.Context, changes []BalanceChange, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every leg before touching anything. Validation is cumulative:
	// each leg is checked against the state the preceding legs would leave
	// behind, so two legs naming the same account behave the same as two
	// sequential conditional updates.
	legs := make([]*domain.Account, len(changes))
	pendBal := make(map[string]int64)
	pendVer := make(map[string]int64)
	for i, c := range changes {
		acc, ok := s.accounts[c.AccountID]
		if !ok {
			return domain.ErrAccountNotFound
		}
		if acc.Version+pendVer[c.AccountID] != c.ExpectedVersion {
			return domain.ErrConflict
		}
		if !acc.Overdraft && acc.Balance+pendBal[c.AccountID]+c.Delta < 0 {
			return domain.ErrInsufficientFunds
		}
		pendBal[c.AccountID] += c.Delta
		pendVer[c.AccountID]++
		legs[i] = acc
	}
	if s.journal != nil {
		rec := &journalRecord{Kind: recordCommit, Changes: changes, Txn: txn}
		if err := s.journal.Append(rec); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	for i, c := range changes {
		legs[i].Balance += c.Delta
		legs[i].Version++
	}
	s.appendLog(txn)
	return nil
}

func (s *MemoryStore) RecordTransaction(ctx context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal != nil {
		rec := &journalRecord{Kind: recordCommit, Txn: txn}
		if err := s.journal.Append(rec); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	s.appendLog(txn)
	return nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Transaction
	for _, txn := range s.log {
		if matches(txn, f) {
			cp := *txn
			out = append(out, &cp)
		}
	}
	return out, nil
}
