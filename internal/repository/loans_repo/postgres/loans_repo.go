package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanColumns = `id, user_id, principal, interest_rate, term_months, monthly_payment, remaining_amount, status, start_date, end_date, created_at, updated_at`

func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		loan.ID, loan.UserID, loan.Principal, loan.InterestRate, loan.TermMonths,
		loan.MonthlyPayment, loan.RemainingAmount, loan.Status,
		loan.StartDate, loan.EndDate, loan.CreatedAt, loan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan %s: %w", loan.ID, err)
	}
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(r.db.QueryRowContext(ctx, query, id))
}

func (r *LoanRepository) Save(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET remaining_amount = $1, status = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query,
		loan.RemainingAmount, loan.Status, loan.UpdatedAt, loan.ID)
	if err != nil {
		return fmt.Errorf("failed to save loan %s: %w", loan.ID, err)
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

func (r *LoanRepository) ListByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *LoanRepository) ListByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, status)
}

func (r *LoanRepository) FindActivePastEndDate(ctx context.Context, asOf time.Time) ([]domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = $1 AND end_date < $2 AND remaining_amount > 0
	`
	return r.list(ctx, query, domain.LoanStatusActive, asOf)
}

func (r *LoanRepository) SumOpenDebt(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(remaining_amount), 0)
		FROM loans
		WHERE user_id = $1 AND status IN ($2, $3)
	`
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, query,
		userID, domain.LoanStatusPending, domain.LoanStatusActive).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum open debt for user %s: %w", userID, err)
	}
	return total, nil
}

func (r *LoanRepository) HasOpenLoan(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM loans WHERE user_id = $1 AND status IN ($2, $3)
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query,
		userID, domain.LoanStatusPending, domain.LoanStatusActive).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open loans for user %s: %w", userID, err)
	}
	return exists, nil
}

func (r *LoanRepository) CountByUserAndStatus(ctx context.Context, userID string, status domain.LoanStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM loans WHERE user_id = $1 AND status = $2`
	var count int64
	err := r.db.QueryRowContext(ctx, query, userID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count loans for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *LoanRepository) list(ctx context.Context, query string, args ...any) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*domain.Loan, error) {
	loan := &domain.Loan{}
	err := row.Scan(
		&loan.ID,
		&loan.UserID,
		&loan.Principal,
		&loan.InterestRate,
		&loan.TermMonths,
		&loan.MonthlyPayment,
		&loan.RemainingAmount,
		&loan.Status,
		&loan.StartDate,
		&loan.EndDate,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}
	return loan, nil
}
