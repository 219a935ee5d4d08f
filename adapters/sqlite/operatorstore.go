package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fiberline/backoffice/ports"
)

// OperatorStore implements ports.OperatorStore using SQLite.
type OperatorStore struct {
	db *DB
}

// NewOperatorStore creates a new SQLite operator store.
func NewOperatorStore(db *DB) *OperatorStore {
	return &OperatorStore{db: db}
}

// GetByEmail retrieves an operator by email.
func (s *OperatorStore) GetByEmail(ctx context.Context, email string) (ports.Operator, error) {
	var op ports.Operator
	var name sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM operators
		WHERE email = ?
	`, email).Scan(&op.ID, &op.Email, &name, &op.PasswordHash, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Operator{}, ErrNotFound
	}
	if err != nil {
		return ports.Operator{}, err
	}

	op.Name = name.String
	return op, nil
}

// Create stores a new operator.
func (s *OperatorStore) Create(ctx context.Context, op ports.Operator) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (id, email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, op.ID, op.Email, nullString(op.Name), op.PasswordHash, op.CreatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Count returns the total operator count, used for first-run bootstrap.
func (s *OperatorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operators").Scan(&count)
	return count, err
}
