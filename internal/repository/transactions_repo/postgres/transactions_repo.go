package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, source_account_id, destination_account_id, amount, fee, type, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.SourceAccountID, tx.DestinationAccountID,
		tx.Amount, tx.Fee, tx.Type, tx.Status, tx.CreatedAt, nullTime(tx.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to create transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `
		SELECT id, source_account_id, destination_account_id, amount, fee, type, status, created_at, completed_at
		FROM transactions
		WHERE id = $1
	`
	return scanTransaction(r.db.QueryRowContext(ctx, query, id))
}

func (r *TransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $1, completed_at = $2
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, tx.Status, nullTime(tx.CompletedAt), tx.ID)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
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

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	query := `
		SELECT id, source_account_id, destination_account_id, amount, fee, type, status, created_at, completed_at
		FROM transactions
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (r *TransactionRepository) SumCompletedStandardDebits(ctx context.Context, accountID string, day time.Time) (decimal.Decimal, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE source_account_id = $1
		  AND status = $2
		  AND type = $3
		  AND created_at >= $4
		  AND created_at < $5
	`
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, query,
		accountID, domain.TransactionStatusCompleted, domain.TransactionTypeStandard, dayStart, dayEnd,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum daily debits for account %s: %w", accountID, err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	var completedAt sql.NullTime
	err := row.Scan(
		&tx.ID,
		&tx.SourceAccountID,
		&tx.DestinationAccountID,
		&tx.Amount,
		&tx.Fee,
		&tx.Type,
		&tx.Status,
		&tx.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	if completedAt.Valid {
		tx.CompletedAt = &completedAt.Time
	}
	return tx, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
