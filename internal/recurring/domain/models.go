package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrTemplateNotFound  = errors.New("recurring_template_not_found")
	ErrAlreadyScheduled  = errors.New("orders_already_scheduled")
	ErrNothingToSchedule = errors.New("no_schedulable_dates")
	ErrInvalidWindow     = errors.New("invalid_schedule_window")
	ErrCustomerPaused    = errors.New("customer_paused")
)

// Template is a customer's standing order. A customer has at most one.
type Template struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID   snowflake.ID `gorm:"not null;uniqueIndex" json:"customer_id"`
	ProductID    snowflake.ID `gorm:"not null" json:"product_id"`
	BaseQuantity int64        `gorm:"not null" json:"base_quantity"`
	Cadence      Cadence      `gorm:"type:varchar(32);not null" json:"cadence"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Template) TableName() string { return "recurring_templates" }
