package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrInvalidAmount = errors.New("invalid_payment_amount")

// Payment is money received from an account, recorded outside the batch jobs.
type Payment struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID  snowflake.ID `gorm:"not null;index" json:"account_id"`
	Amount     int64        `gorm:"not null" json:"amount"`
	RecordedAt time.Time    `gorm:"not null" json:"recorded_at"`
}

func (Payment) TableName() string { return "payments" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	SumByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error)
}
