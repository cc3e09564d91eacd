package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/dairy/internal/batch"
)

var (
	ErrAlreadyAggregated = errors.New("distributor_day_already_aggregated")
	ErrNoDemand          = errors.New("no_customer_demand")
)

type Service interface {
	// AggregateDay rolls each distributor's customer orders for day into
	// distributor orders and debits the distributor once.
	AggregateDay(ctx context.Context, day time.Time) (batch.Summary, error)
	// Run aggregates the current day in the schedule timezone.
	Run(ctx context.Context) (batch.Summary, error)
}
