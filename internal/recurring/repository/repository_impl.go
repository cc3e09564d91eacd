package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/recurring/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Template, error) {
	var templates []domain.Template
	err := db.WithContext(ctx).
		Model(&domain.Template{}).
		Order("customer_id asc").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repo) FindByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*domain.Template, error) {
	var template domain.Template
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, product_id, base_quantity, cadence, created_at, updated_at
		 FROM recurring_templates WHERE customer_id = ?`,
		customerID,
	).Scan(&template).Error
	if err != nil {
		return nil, err
	}
	if template.ID == 0 {
		return nil, nil
	}
	return &template, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, template *domain.Template) error {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_id", "base_quantity", "cadence", "updated_at"}),
		}).
		Create(template).Error
	if err != nil {
		return err
	}
	stored, err := r.FindByCustomer(ctx, db, template.CustomerID)
	if err != nil {
		return err
	}
	if stored != nil {
		*template = *stored
	}
	return nil
}
