package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_name, email, role, role_accepted, is_paused, balance,
		        distributor_id, delivery_staff_id, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// LockForUpdate reloads the account holding a row lock until db's
// transaction ends. Dialects without row locks ignore the clause.
func (r *repo) LockForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.Account, error) {
	out := make(map[snowflake.ID]domain.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var accounts []domain.Account
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, account := range accounts {
		out[account.ID] = account
	}
	return out, nil
}

func (r *repo) ListAccepted(ctx context.Context, db *gorm.DB, role domain.Role) ([]domain.Account, error) {
	var accounts []domain.Account
	err := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("role = ? AND role_accepted = ?", role, true).
		Order("id asc").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) SetPaused(ctx context.Context, db *gorm.DB, id snowflake.ID, paused bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET is_paused = ?, updated_at = ? WHERE id = ?`,
		paused,
		now,
		id,
	).Error
}

func (r *repo) AdjustBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`,
		delta,
		now,
		id,
	).Error
}

func (r *repo) SetBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance,
		now,
		id,
	).Error
}

func (r *repo) SaveBankDetails(ctx context.Context, db *gorm.DB, details *domain.BankDetails) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(details).Error
}

func (r *repo) FindBankDetails(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.BankDetails, error) {
	var details domain.BankDetails
	err := db.WithContext(ctx).Raw(
		`SELECT account_id, bank_name, account_no, ifsc_code, holder_name
		 FROM bank_accounts WHERE account_id = ?`,
		accountID,
	).Scan(&details).Error
	if err != nil {
		return nil, err
	}
	if details.AccountID == 0 {
		return nil, nil
	}
	return &details, nil
}
