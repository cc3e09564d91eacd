package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	"gorm.io/gorm"
)

type Repository interface {
	BulkInsert(ctx context.Context, db *gorm.DB, orders []DistributorOrder) error
	ExistsOn(ctx context.Context, db *gorm.DB, distributorID snowflake.ID, day time.Time) (bool, error)
	Summarize(ctx context.Context, db *gorm.DB, distributorID snowflake.ID, from, to time.Time) ([]orderdomain.ProductSummary, error)
	SumTotal(ctx context.Context, db *gorm.DB, distributorID snowflake.ID) (int64, error)
}
