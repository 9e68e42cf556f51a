package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nischald42-create/aquabank/internal/domain"
)

// PostgresStore backs the ledger with Postgres via pgx. Multi-leg commits
// run inside a single database transaction; the version check is pushed
// into the UPDATE predicate so a stale writer changes zero rows.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects, pings, and returns the store.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// Pool exposes the underlying pool for tooling (seeder).
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.db
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

const accountCols = "id, owner_id, name, balance, version, overdraft, created_at"

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(&acc.ID, &acc.OwnerID, &acc.Name, &acc.Balance, &acc.Version, &acc.Overdraft, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &acc, nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	if acc.ID == "" {
		err := s.db.QueryRow(ctx,
			"SELECT 'ACCT-' || lpad(nextval('account_number_seq')::text, 6, '0')",
		).Scan(&acc.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	_, err := s.db.Exec(ctx,
		"INSERT INTO accounts (id, owner_id, name, balance, version, overdraft, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		acc.ID, acc.OwnerID, acc.Name, acc.Balance, acc.Version, acc.Overdraft, acc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRow(ctx, "SELECT "+accountCols+" FROM accounts WHERE id = $1", id)
	return scanAccount(row)
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return s.listAccounts(ctx, "SELECT "+accountCols+" FROM accounts ORDER BY id")
}

func (s *PostgresStore) ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	return s.listAccounts(ctx, "SELECT "+accountCols+" FROM accounts WHERE owner_id = $1 ORDER BY id", ownerID)
}

func (s *PostgresStore) listAccounts(ctx context.Context, sql string, args ...any) ([]*domain.Account, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	var out []*domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(&acc.ID, &acc.OwnerID, &acc.Name, &acc.Balance, &acc.Version, &acc.Overdraft, &acc.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		out = append(out, &acc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CloseAccount(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) AdjustBalance(ctx context.Context, id string, delta int64, expectedVersion int64) (*domain.Account, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	if err := applyChange(ctx, tx, BalanceChange{AccountID: id, Delta: delta, ExpectedVersion: expectedVersion}); err != nil {
		return nil, err
	}
	acc, err := scanAccount(tx.QueryRow(ctx, "SELECT "+accountCols+" FROM accounts WHERE id = $1", id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, writeErr(err)
	}
	return acc, nil
}

// writeErr maps driver errors on a write path to domain errors. A
// serialization or deadlock abort means another writer won the race on the
// same row, which callers treat like a stale version and retry.
func writeErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return domain.ErrConflict
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// applyChange issues the conditional update for one leg and translates a
// zero-row result into the precise domain error. It runs under read
// committed: a concurrent writer makes the UPDATE wait on the row lock and
// then re-check its predicate, so a lost race shows up as zero rows rather
// than a serialization abort.
func applyChange(ctx context.Context, tx pgx.Tx, c BalanceChange) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts
		    SET balance = balance + $1, version = version + 1
		  WHERE id = $2 AND version = $3 AND (overdraft OR balance + $1 >= 0)`,
		c.Delta, c.AccountID, c.ExpectedVersion,
	)
	if err != nil {
		return writeErr(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows touched: missing account, stale version, or the balance
	// floor. Re-read to report the precise cause.
	var version, balance int64
	var overdraft bool
	err = tx.QueryRow(ctx, "SELECT version, balance, overdraft FROM accounts WHERE id = $1", c.AccountID).
		Scan(&version, &balance, &overdraft)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if version != c.ExpectedVersion {
		return domain.ErrConflict
	}
	if !overdraft && balance+c.Delta < 0 {
		return domain.ErrInsufficientFunds
	}
	return domain.ErrConflict
}

func (s *PostgresStore) ApplyTransfer(ctx context.Context, changes []BalanceChange, txn *domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	for _, c := range changes {
		if err := applyChange(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return writeErr(err)
	}
	return nil
}

func (s *PostgresStore) RecordTransaction(ctx context.Context, txn *domain.Transaction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, from_account, to_account, amount, type, status, memo, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.From, txn.To, txn.Amount, txn.Type, txn.Status, txn.Memo, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

const txnCols = "id, from_account, to_account, amount, type, status, memo, created_at"

func (s *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := s.db.QueryRow(ctx, "SELECT "+txnCols+" FROM transactions WHERE id = $1", id).
		Scan(&txn.ID, &txn.From, &txn.To, &txn.Amount, &txn.Type, &txn.Status, &txn.Memo, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &txn, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]*domain.Transaction, error) {
	sql := "SELECT " + txnCols + " FROM transactions WHERE 1=1"
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.AccountID != "" {
		p := arg(f.AccountID)
		sql += " AND (from_account = " + p + " OR to_account = " + p + ")"
	}
	if f.Type != "" {
		sql += " AND type = " + arg(string(f.Type))
	}
	if !f.From.IsZero() {
		sql += " AND created_at >= " + arg(f.From)
	}
	if !f.To.IsZero() {
		sql += " AND created_at < " + arg(f.To)
	}
	sql += " ORDER BY created_at, id"

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	var out []*domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		if err := rows.Scan(&txn.ID, &txn.From, &txn.To, &txn.Amount, &txn.Type, &txn.Status, &txn.Memo, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		out = append(out, &txn)
	}
	return out, rows.Err()
}
