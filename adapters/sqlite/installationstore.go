package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fiberline/backoffice/ports"
)

// InstallationStore implements ports.InstallationStore using SQLite.
type InstallationStore struct {
	db *DB
}

// NewInstallationStore creates a new SQLite installation store.
func NewInstallationStore(db *DB) *InstallationStore {
	return &InstallationStore{db: db}
}

// Get retrieves an installation by ID.
func (s *InstallationStore) Get(ctx context.Context, id string) (ports.Installation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, plan_id, address, anchor_date, advance_payment, created_at, updated_at
		FROM installations
		WHERE id = ?
	`, id)
	return scanInstallation(row)
}

// Create stores a new installation and its billing configuration.
func (s *InstallationStore) Create(ctx context.Context, inst ports.Installation) error {
	now := time.Now().UTC()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	if inst.UpdatedAt.IsZero() {
		inst.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO installations (id, account_id, plan_id, address, anchor_date, advance_payment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, inst.ID, inst.AccountID, inst.PlanID, nullString(inst.Address),
		nullTimeZero(inst.AnchorDate), inst.AdvancePayment, inst.CreatedAt, inst.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateAnchor corrects the billing anchor date. No other configuration
// field is updatable: advance_payment is immutable after intake.
func (s *InstallationStore) UpdateAnchor(ctx context.Context, id string, anchor time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE installations
		SET anchor_date = ?, updated_at = ?
		WHERE id = ?
	`, nullTimeZero(anchor), time.Now().UTC(), id)
	if err != nil {
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

// ListByAccount returns the account's installations, oldest first.
func (s *InstallationStore) ListByAccount(ctx context.Context, accountID string) ([]ports.Installation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, plan_id, address, anchor_date, advance_payment, created_at, updated_at
		FROM installations
		WHERE account_id = ?
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installations []ports.Installation
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, err
		}
		installations = append(installations, inst)
	}
	return installations, rows.Err()
}

func scanInstallation(row rowScanner) (ports.Installation, error) {
	var inst ports.Installation
	var address sql.NullString
	var anchor sql.NullTime

	err := row.Scan(&inst.ID, &inst.AccountID, &inst.PlanID, &address, &anchor,
		&inst.AdvancePayment, &inst.CreatedAt, &inst.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Installation{}, ErrNotFound
	}
	if err != nil {
		return ports.Installation{}, err
	}

	inst.Address = address.String
	if anchor.Valid {
		inst.AnchorDate = anchor.Time
	}
	return inst, nil
}
