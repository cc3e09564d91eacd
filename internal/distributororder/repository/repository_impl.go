package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/distributororder/domain"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) BulkInsert(ctx context.Context, db *gorm.DB, orders []domain.DistributorOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&orders).Error
}

func (r *repo) ExistsOn(ctx context.Context, db *gorm.DB, distributorID snowflake.ID, day time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.DistributorOrder{}).
		Where("distributor_id = ? AND order_date >= ? AND order_date < ?", distributorID, day, day.AddDate(0, 0, 1)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) Summarize(ctx context.Context, db *gorm.DB, distributorID snowflake.ID, from, to time.Time) ([]orderdomain.ProductSummary, error) {
	var rows []orderdomain.ProductSummary
	err := db.WithContext(ctx).Raw(
		`SELECT p.id AS product_id, p.name AS product_name,
		        CASE WHEN d.quantity > 0 THEN d.total_price / d.quantity ELSE 0 END AS unit_price,
		        SUM(d.quantity) AS quantity, SUM(d.total_price) AS amount
		 FROM distributor_orders d
		 JOIN products p ON p.id = d.product_id
		 WHERE d.distributor_id = ?
		   AND d.order_date >= ? AND d.order_date < ?
		 GROUP BY p.id, p.name, CASE WHEN d.quantity > 0 THEN d.total_price / d.quantity ELSE 0 END
		 ORDER BY p.id, unit_price`,
		distributorID,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) SumTotal(ctx context.Context, db *gorm.DB, distributorID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_price), 0) FROM distributor_orders WHERE distributor_id = ?`,
		distributorID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
