package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	LockForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]Account, error)
	ListAccepted(ctx context.Context, db *gorm.DB, role Role) ([]Account, error)
	SetPaused(ctx context.Context, db *gorm.DB, id snowflake.ID, paused bool, now time.Time) error
	AdjustBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, now time.Time) error
	SetBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance int64, now time.Time) error

	SaveBankDetails(ctx context.Context, db *gorm.DB, details *BankDetails) error
	FindBankDetails(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*BankDetails, error)
}
