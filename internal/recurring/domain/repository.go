package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	List(ctx context.Context, db *gorm.DB) ([]Template, error)
	FindByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*Template, error)
	// Upsert replaces the customer's template, keeping its id when one exists.
	Upsert(ctx context.Context, db *gorm.DB, template *Template) error
}
