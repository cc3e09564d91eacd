package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/order/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 500

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if !order.Status.Valid() {
		return domain.ErrInvalidStatus
	}
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) BulkInsert(ctx context.Context, db *gorm.DB, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(orders, insertBatchSize).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, ids []snowflake.ID, status domain.OrderStatus) (int64, error) {
	if !status.Valid() {
		return 0, domain.ErrInvalidStatus
	}
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ? WHERE id IN ?`,
		status,
		ids,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ExistsInRange(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from time.Time, to *time.Time) (bool, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("customer_id = ? AND delivery_date >= ?", customerID, from)
	if to != nil {
		stmt = stmt.Where("delivery_date < ?", *to)
	}
	var count int64
	if err := stmt.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) SumQuantityForDistributor(ctx context.Context, db *gorm.DB, distributorID snowflake.ID, day time.Time) ([]domain.ProductQuantity, error) {
	var rows []domain.ProductQuantity
	err := db.WithContext(ctx).Raw(
		`SELECT o.product_id AS product_id, SUM(o.quantity) AS quantity
		 FROM orders o
		 JOIN accounts a ON a.id = o.customer_id
		 WHERE a.distributor_id = ?
		   AND o.delivery_date >= ? AND o.delivery_date < ?
		   AND o.status <> ?
		 GROUP BY o.product_id
		 ORDER BY o.product_id`,
		distributorID,
		day,
		day.AddDate(0, 0, 1),
		domain.OrderStatusCanceled,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) SummarizeDelivered(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from, to time.Time) ([]domain.ProductSummary, error) {
	var rows []domain.ProductSummary
	err := db.WithContext(ctx).Raw(
		`SELECT p.id AS product_id, p.name AS product_name,
		        CASE WHEN o.quantity > 0 THEN o.total_price / o.quantity ELSE 0 END AS unit_price,
		        SUM(o.quantity) AS quantity, SUM(o.total_price) AS amount
		 FROM orders o
		 JOIN products p ON p.id = o.product_id
		 WHERE o.customer_id = ? AND o.status = ?
		   AND o.delivery_date >= ? AND o.delivery_date < ?
		 GROUP BY p.id, p.name, CASE WHEN o.quantity > 0 THEN o.total_price / o.quantity ELSE 0 END
		 ORDER BY p.id, unit_price`,
		customerID,
		domain.OrderStatusDelivered,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) SumDeliveredTotal(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_price), 0) FROM orders WHERE customer_id = ? AND status = ?`,
		customerID,
		domain.OrderStatusDelivered,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
