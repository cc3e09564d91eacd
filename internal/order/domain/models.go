package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

var ErrInvalidStatus = errors.New("invalid_order_status")

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}

// Order is one dated delivery to a customer. TotalPrice is fixed at creation
// from the product price of that moment.
type Order struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID      snowflake.ID  `gorm:"not null;index:idx_orders_customer_date,priority:1" json:"customer_id"`
	DeliveryStaffID *snowflake.ID `json:"delivery_staff_id,omitempty"`
	ProductID       snowflake.ID  `gorm:"not null;index" json:"product_id"`
	Quantity        int64         `gorm:"not null" json:"quantity"`
	TotalPrice      int64         `gorm:"not null" json:"total_price"`
	DeliveryDate    time.Time     `gorm:"not null;index:idx_orders_customer_date,priority:2;index" json:"delivery_date"`
	Status          OrderStatus   `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
}

func (Order) TableName() string { return "orders" }

// ProductQuantity is demand for one product summed over many orders.
type ProductQuantity struct {
	ProductID snowflake.ID
	Quantity  int64
}

// ProductSummary is one line of a bill rollup: a product at one snapshotted
// unit price, so UnitPrice × Quantity always equals Amount.
type ProductSummary struct {
	ProductID   snowflake.ID
	ProductName string
	UnitPrice   int64
	Quantity    int64
	Amount      int64
}
