package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/batch"
)

type Service interface {
	// ScheduleAll materializes every template for the rolling window that
	// starts on the first day of next month.
	ScheduleAll(ctx context.Context) (batch.Summary, error)
	// ScheduleBulkOrder saves one customer's template and materializes it.
	ScheduleBulkOrder(ctx context.Context, req BulkOrderRequest) (BulkOrderResult, error)
	// SaveTemplate validates and upserts a template without scheduling it.
	SaveTemplate(ctx context.Context, template Template) (*Template, error)
	GetTemplate(ctx context.Context, customerID snowflake.ID) (*Template, error)
}

// BulkOrderRequest is an ad hoc request to (re)schedule a customer. With
// Year and Month zero the window starts tomorrow and spans the configured
// horizon; otherwise it covers exactly that month.
type BulkOrderRequest struct {
	CustomerID   snowflake.ID
	ProductID    snowflake.ID
	BaseQuantity int64
	Cadence      string
	Year         int
	Month        time.Month
}

type BulkOrderResult struct {
	Template    Template
	WindowStart time.Time
	// WindowEnd is the first day after the window.
	WindowEnd     time.Time
	OrdersCreated int
}
