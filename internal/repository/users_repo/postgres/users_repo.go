package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bankcore/internal/domain"
)

type UserAttributesRepository struct {
	db *sql.DB
}

func NewUserAttributesRepository(db *sql.DB) *UserAttributesRepository {
	return &UserAttributesRepository{db: db}
}

func (r *UserAttributesRepository) GetAttributes(ctx context.Context, userID string) (*domain.UserAttributes, error) {
	query := `
		SELECT user_id, age, monthly_income, credit_score
		FROM user_attributes
		WHERE user_id = $1
	`
	attrs := &domain.UserAttributes{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&attrs.UserID,
		&attrs.Age,
		&attrs.MonthlyIncome,
		&attrs.CreditScore,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attributes for user %s: %w", userID, err)
	}
	return attrs, nil
}
