package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, user_id, amount_due, due_date, paid_date, status, created_at, updated_at`

func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		invoice.ID, invoice.UserID, invoice.AmountDue, invoice.DueDate,
		nullTime(invoice.PaidDate), invoice.Status, invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invoice %s: %w", invoice.ID, err)
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoice(r.db.QueryRowContext(ctx, query, id))
}

func (r *InvoiceRepository) Save(ctx context.Context, invoice *domain.Invoice) error {
	query := `
		UPDATE invoices
		SET status = $1, paid_date = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query,
		invoice.Status, nullTime(invoice.PaidDate), invoice.UpdatedAt, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to save invoice %s: %w", invoice.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = $1 ORDER BY due_date ASC`
	return r.list(ctx, query, userID)
}

func (r *InvoiceRepository) ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE status = $1 ORDER BY due_date ASC`
	return r.list(ctx, query, status)
}

func (r *InvoiceRepository) FindPendingPastDueDate(ctx context.Context, asOf time.Time) ([]domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = $1 AND due_date < $2
	`
	return r.list(ctx, query, domain.InvoiceStatusPending, asOf)
}

func (r *InvoiceRepository) SumPendingAmount(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount_due), 0)
		FROM invoices
		WHERE user_id = $1 AND status = $2
	`
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, userID, domain.InvoiceStatusPending).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending invoices for user %s: %w", userID, err)
	}
	return total, nil
}

func (r *InvoiceRepository) HasOverdue(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices WHERE user_id = $1 AND status = $2
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, domain.InvoiceStatusOverdue).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check overdue invoices for user %s: %w", userID, err)
	}
	return exists, nil
}

func (r *InvoiceRepository) list(ctx context.Context, query string, args ...any) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	invoice := &domain.Invoice{}
	var paidDate sql.NullTime
	err := row.Scan(
		&invoice.ID,
		&invoice.UserID,
		&invoice.AmountDue,
		&invoice.DueDate,
		&paidDate,
		&invoice.Status,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	if paidDate.Valid {
		invoice.PaidDate = &paidDate.Time
	}
	return invoice, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
