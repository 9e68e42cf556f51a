package store

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/nischald42-create/aquabank/internal/domain"
)

// Journal is an append-only JSON-lines file recording every durable change
// to the in-memory store. Records are written and fsynced before the
// corresponding in-memory mutation, so a replayed journal reconstructs
// exactly the committed state.
type Journal struct {
	mu   sync.Mutex
	file *os.File
}

type recordKind string

const (
	recordAccount recordKind = "account"
	recordClose   recordKind = "close"
	recordCommit  recordKind = "commit"
)

type journalRecord struct {
	Kind      recordKind          `json:"kind"`
	Account   *domain.Account     `json:"account,omitempty"`
	AccountID string              `json:"account_id,omitempty"`
	Changes   []BalanceChange     `json:"changes,omitempty"`
	Txn       *domain.Transaction `json:"txn,omitempty"`
}

// OpenJournal opens or creates the journal file at path.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: f}, nil
}

// Append writes one record and forces it to disk.
func (j *Journal) Append(rec *journalRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := json.NewEncoder(j.file).Encode(rec); err != nil {
		return err
	}
	return j.file.Sync()
}

// Replay streams every record through fn, oldest first.
func (j *Journal) Replay(fn func(*journalRecord) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	dec := json.NewDecoder(j.file)
	for {
		var rec journalRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
}

func (j *Journal) Close() error {
	return j.file.Close()
}
