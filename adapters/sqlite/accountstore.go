package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fiberline/backoffice/ports"
)

// AccountStore implements ports.AccountStore using SQLite.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new SQLite account store.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (ports.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, identity_number, phone, address, status, created_at, updated_at
		FROM accounts
		WHERE id = ?
	`, id)
	return scanAccount(row)
}

// GetByIdentity retrieves an account by identity number.
func (s *AccountStore) GetByIdentity(ctx context.Context, identityNumber string) (ports.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, identity_number, phone, address, status, created_at, updated_at
		FROM accounts
		WHERE identity_number = ?
	`, identityNumber)
	return scanAccount(row)
}

// Create stores a new account. The identity_number unique index is the
// authoritative uniqueness constraint behind the intake gate.
func (s *AccountStore) Create(ctx context.Context, a ports.Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, identity_number, phone, address, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.IdentityNumber, nullString(a.Phone), nullString(a.Address), a.Status, a.CreatedAt, a.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Update modifies an existing account. The identity number is part of the
// update so data-entry corrections remain possible.
func (s *AccountStore) Update(ctx context.Context, a ports.Account) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET name = ?, identity_number = ?, phone = ?, address = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, a.Name, a.IdentityNumber, nullString(a.Phone), nullString(a.Address), a.Status, time.Now().UTC(), a.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns accounts with pagination, newest first.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]ports.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, identity_number, phone, address, status, created_at, updated_at
		FROM accounts
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ports.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Count returns the total account count.
func (s *AccountStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (ports.Account, error) {
	var a ports.Account
	var phone, address sql.NullString

	err := row.Scan(&a.ID, &a.Name, &a.IdentityNumber, &phone, &address, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Account{}, ErrNotFound
	}
	if err != nil {
		return ports.Account{}, err
	}

	a.Phone = phone.String
	a.Address = address.String
	return a, nil
}

func scanAccountRow(rows *sql.Rows) (ports.Account, error) {
	return scanAccount(rows)
}
