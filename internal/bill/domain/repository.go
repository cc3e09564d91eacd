package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindForPeriod(ctx context.Context, db *gorm.DB, accountID snowflake.ID, billType BillType, period Period) (*Bill, error)
	AttachDocument(ctx context.Context, db *gorm.DB, billID snowflake.ID, name string, content []byte) error

	// ListUnbilledAccounts returns role-accepted accounts of role that have no
	// bill of billType for period.
	ListUnbilledAccounts(ctx context.Context, db *gorm.DB, role accountdomain.Role, billType BillType, period Period) ([]accountdomain.Account, error)
}
