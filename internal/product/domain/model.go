package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrProductNotFound = errors.New("product_not_found")
	ErrInvalidPrice    = errors.New("invalid_price")
)

type Product struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	Name             string       `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	Price            int64        `json:"price" gorm:"not null"`
	DistributorPrice *int64       `json:"distributor_price,omitempty"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// DistributorUnitPrice is the price a distributor pays per unit. Products
// without a distributor price fall back to the retail price.
func (p Product) DistributorUnitPrice() int64 {
	if p.DistributorPrice != nil {
		return *p.DistributorPrice
	}
	return p.Price
}
