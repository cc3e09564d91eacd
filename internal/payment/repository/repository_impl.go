package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	if payment.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, account_id, amount, recorded_at) VALUES (?, ?, ?, ?)`,
		payment.ID,
		payment.AccountID,
		payment.Amount,
		payment.RecordedAt,
	).Error
}

func (r *repo) SumByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE account_id = ?`,
		accountID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
