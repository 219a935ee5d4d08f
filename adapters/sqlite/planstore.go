package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fiberline/backoffice/ports"
)

// PlanStore implements ports.PlanStore using SQLite.
type PlanStore struct {
	db *DB
}

// NewPlanStore creates a new SQLite plan store.
func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

// Get retrieves a plan by ID.
func (s *PlanStore) Get(ctx context.Context, id string) (ports.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_monthly, download_mbps, upload_mbps, enabled, created_at, updated_at
		FROM plans
		WHERE id = ?
	`, id)
	return scanPlan(row)
}

// List returns all enabled plans.
func (s *PlanStore) List(ctx context.Context) ([]ports.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_monthly, download_mbps, upload_mbps, enabled, created_at, updated_at
		FROM plans
		WHERE enabled = 1
		ORDER BY price_monthly ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []ports.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// Create stores a new plan.
func (s *PlanStore) Create(ctx context.Context, p ports.Plan) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, price_monthly, download_mbps, upload_mbps, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.PriceMonthly, p.DownloadMbps, p.UploadMbps, p.Enabled, p.CreatedAt, p.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Update modifies a plan. Historical payments keep their frozen base
// amounts; a price change only affects future drafts.
func (s *PlanStore) Update(ctx context.Context, p ports.Plan) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE plans
		SET name = ?, price_monthly = ?, download_mbps = ?, upload_mbps = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.PriceMonthly, p.DownloadMbps, p.UploadMbps, p.Enabled, time.Now().UTC(), p.ID)
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

func scanPlan(row rowScanner) (ports.Plan, error) {
	var p ports.Plan

	err := row.Scan(&p.ID, &p.Name, &p.PriceMonthly, &p.DownloadMbps, &p.UploadMbps,
		&p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Plan{}, ErrNotFound
	}
	if err != nil {
		return ports.Plan{}, err
	}
	return p, nil
}
