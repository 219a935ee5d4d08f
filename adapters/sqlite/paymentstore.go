package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fiberline/backoffice/domain/billing"
)

// PaymentStore implements ports.PaymentStore using SQLite.
type PaymentStore struct {
	db *DB
}

// NewPaymentStore creates a new SQLite payment store.
func NewPaymentStore(db *DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentColumns = `
	id, installation_id, amount, base_amount,
	due_date, payment_date, engagement_date, status,
	method, reference, transfer_name,
	reconnection, discount, advance_payment,
	created_at, updated_at`

// Get retrieves a payment by ID.
func (s *PaymentStore) Get(ctx context.Context, id string) (billing.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = ?
	`, id)
	return scanPayment(row)
}

// Create stores a fully composed payment in one write.
func (s *PaymentStore) Create(ctx context.Context, p billing.Payment) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.InstallationID, p.Amount, p.BaseAmount,
		p.DueDate, nullTime(p.PaymentDate), nullTime(p.EngagementDate), string(p.Status),
		nullString(p.Method), nullString(p.Reference), nullString(p.TransferName),
		p.Reconnection, p.Discount, p.AdvancePayment,
		p.CreatedAt, p.UpdatedAt,
	)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Update rewrites a payment's mutable fields.
func (s *PaymentStore) Update(ctx context.Context, p billing.Payment) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET amount = ?, base_amount = ?,
		    due_date = ?, payment_date = ?, engagement_date = ?, status = ?,
		    method = ?, reference = ?, transfer_name = ?,
		    reconnection = ?, discount = ?, updated_at = ?
		WHERE id = ?
	`,
		p.Amount, p.BaseAmount,
		p.DueDate, nullTime(p.PaymentDate), nullTime(p.EngagementDate), string(p.Status),
		nullString(p.Method), nullString(p.Reference), nullString(p.TransferName),
		p.Reconnection, p.Discount, time.Now().UTC(),
		p.ID,
	)
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

// ListByInstallation returns payments ordered by due date ascending.
func (s *PaymentStore) ListByInstallation(ctx context.Context, installationID string) ([]billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE installation_id = ?
		ORDER BY due_date ASC, created_at ASC
	`, installationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SettledCycleCount counts the installation's terminal-paid payments.
func (s *PaymentStore) SettledCycleCount(ctx context.Context, installationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM payments
		WHERE installation_id = ? AND status IN (?, ?)
	`, installationID, string(billing.StatusPaymentDaily), string(billing.StatusLatePayment)).Scan(&count)
	return count, err
}

// OpenCommitment returns the installation's open postponement, if any.
func (s *PaymentStore) OpenCommitment(ctx context.Context, installationID string) (billing.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE installation_id = ? AND status = ? AND engagement_date IS NOT NULL
	`, installationID, string(billing.StatusPending))
	return scanPayment(row)
}

// ListOpenCommitments returns open postponements whose engagement date
// falls strictly before the given day.
func (s *PaymentStore) ListOpenCommitments(ctx context.Context, before time.Time) ([]billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = ? AND engagement_date IS NOT NULL AND engagement_date < ?
		ORDER BY engagement_date ASC
	`, string(billing.StatusPending), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (billing.Payment, error) {
	var p billing.Payment
	var status string
	var method, reference, transferName sql.NullString
	var paymentDate, engagementDate sql.NullTime

	err := row.Scan(
		&p.ID, &p.InstallationID, &p.Amount, &p.BaseAmount,
		&p.DueDate, &paymentDate, &engagementDate, &status,
		&method, &reference, &transferName,
		&p.Reconnection, &p.Discount, &p.AdvancePayment,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Payment{}, ErrNotFound
	}
	if err != nil {
		return billing.Payment{}, err
	}

	p.Status = billing.Status(status)
	p.Method = method.String
	p.Reference = reference.String
	p.TransferName = transferName.String
	if paymentDate.Valid {
		t := paymentDate.Time
		p.PaymentDate = &t
	}
	if engagementDate.Valid {
		t := engagementDate.Time
		p.EngagementDate = &t
	}
	return p, nil
}
