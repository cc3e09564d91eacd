package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	"github.com/smallbiznis/dairy/internal/bill/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Create(bill).Error
}

func (r *repo) FindForPeriod(ctx context.Context, db *gorm.DB, accountID snowflake.ID, billType domain.BillType, period domain.Period) (*domain.Bill, error) {
	var bills []domain.Bill
	err := db.WithContext(ctx).
		Where("account_id = ? AND type = ? AND period_year = ? AND period_month = ?",
			accountID, billType, period.Year, int(period.Month)).
		Limit(1).
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return &bills[0], nil
}

func (r *repo) AttachDocument(ctx context.Context, db *gorm.DB, billID snowflake.ID, name string, content []byte) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE bills SET document_name = ?, document = ? WHERE id = ?`,
		name,
		content,
		billID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrBillNotFound
	}
	return nil
}

func (r *repo) ListUnbilledAccounts(ctx context.Context, db *gorm.DB, role accountdomain.Role, billType domain.BillType, period domain.Period) ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT a.id, a.user_name, a.email, a.role, a.role_accepted, a.is_paused, a.balance,
		        a.distributor_id, a.delivery_staff_id, a.created_at, a.updated_at
		 FROM accounts a
		 WHERE a.role = ? AND a.role_accepted = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM bills b
		     WHERE b.account_id = a.id AND b.type = ?
		       AND b.period_year = ? AND b.period_month = ?
		   )
		 ORDER BY a.id`,
		role,
		true,
		billType,
		period.Year,
		int(period.Month),
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
