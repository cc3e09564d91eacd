package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DistributorOrder is a distributor's purchase of one product for one day.
type DistributorOrder struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	DistributorID snowflake.ID `gorm:"not null;uniqueIndex:ux_distributor_orders_day,priority:1" json:"distributor_id"`
	ProductID     snowflake.ID `gorm:"not null;uniqueIndex:ux_distributor_orders_day,priority:3" json:"product_id"`
	Quantity      int64        `gorm:"not null" json:"quantity"`
	TotalPrice    int64        `gorm:"not null" json:"total_price"`
	OrderDate     time.Time    `gorm:"not null;uniqueIndex:ux_distributor_orders_day,priority:2" json:"order_date"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (DistributorOrder) TableName() string { return "distributor_orders" }
