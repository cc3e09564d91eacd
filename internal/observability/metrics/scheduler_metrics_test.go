package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/dairy/internal/batch"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "enumeration",
			err:  batch.Enumeration(errors.New("list accounts")),
			want: SchedulerJobReasonEnumeration,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	if got := ClassifySchedulerErrorType(batch.Validation(errors.New("cadence"))); got != SchedulerErrorTypeValidation {
		t.Fatalf("expected validation, got %q", got)
	}
	if got := ClassifySchedulerErrorType(fmt.Errorf("tx: %w", &pgconn.PgError{Code: "08006"})); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db, got %q", got)
	}
	if IsSchedulerErrorRetryable(batch.Validation(errors.New("cadence"))) {
		t.Fatalf("validation errors must not be retryable")
	}
	if !IsSchedulerErrorRetryable(batch.Persistence(errors.New("conn reset"))) {
		t.Fatalf("persistence errors should be retryable")
	}
}

func TestObserveSummary(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "dairy",
		Environment: "test",
	})

	metrics.ObserveSummary("recurring_orders", batch.Summary{Processed: 3, Skipped: 2, Created: 90})

	if got := testutil.ToFloat64(metrics.batchItems.WithLabelValues("recurring_orders", BatchOutcomeProcessed)); got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.batchItems.WithLabelValues("recurring_orders", BatchOutcomeSkipped)); got != 2 {
		t.Fatalf("expected skipped count 2, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.rowsCreated.WithLabelValues("recurring_orders")); got != 90 {
		t.Fatalf("expected created rows 90, got %v", got)
	}
}

func TestIncGateDecision(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "dairy", Environment: "test"})

	metrics.IncGateDecision("monthly_bills", GateDecisionHeld)
	metrics.IncGateDecision("monthly_bills", GateDecisionHeld)

	if got := testutil.ToFloat64(metrics.gateDecisions.WithLabelValues("monthly_bills", GateDecisionHeld)); got != 2 {
		t.Fatalf("expected 2 held decisions, got %v", got)
	}
}
