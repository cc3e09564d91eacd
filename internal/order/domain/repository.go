package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	BulkInsert(ctx context.Context, db *gorm.DB, orders []Order) error
	UpdateStatus(ctx context.Context, db *gorm.DB, ids []snowflake.ID, status OrderStatus) (int64, error)

	// ExistsInRange reports whether the customer has any order dated in
	// [from, to). A nil to leaves the range open ended.
	ExistsInRange(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from time.Time, to *time.Time) (bool, error)

	SumQuantityForDistributor(ctx context.Context, db *gorm.DB, distributorID snowflake.ID, day time.Time) ([]ProductQuantity, error)
	SummarizeDelivered(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from, to time.Time) ([]ProductSummary, error)
	SumDeliveredTotal(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (int64, error)
}
