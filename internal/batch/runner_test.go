package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunCountsOutcomes(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	summary := Run(context.Background(), Options{Job: "test", Workers: 2, Log: zaptest.NewLogger(t)}, items,
		func(i int) string { return fmt.Sprintf("account-%d", i) },
		func(ctx context.Context, i int) (Outcome, error) {
			switch i {
			case 2:
				return Outcome{}, NotEligible(errors.New("already_scheduled"))
			case 3:
				return Outcome{}, Persistence(errors.New("disk full"))
			case 4:
				return Outcome{Created: 1, Warnings: []string{"document: renderer offline"}}, nil
			}
			return Outcome{Created: 10}, nil
		})

	assert.Equal(t, StatusCompletedWithErrors, summary.Status)
	assert.Equal(t, 5, summary.Candidates)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 21, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)

	errs := append([]string(nil), summary.Errors...)
	sort.Strings(errs)
	require.Len(t, errs, 2)
	assert.Equal(t, "account-3: persistence_error: disk full", errs[0])
	assert.Equal(t, "account-4: document: renderer offline", errs[1])
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 20)

	summary := Run(context.Background(), Options{Job: "limit", Workers: 3}, items,
		func(int) string { return "x" },
		func(ctx context.Context, _ int) (Outcome, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return Outcome{}, nil
		})

	assert.Equal(t, StatusCompleted, summary.Status)
	assert.Equal(t, 20, summary.Processed)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRunRecoversPanics(t *testing.T) {
	summary := Run(context.Background(), Options{Job: "panic"}, []string{"a"},
		func(s string) string { return s },
		func(ctx context.Context, _ string) (Outcome, error) {
			panic("boom")
		})

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"a: panic: boom"}, summary.Errors)
}

func TestRunEmptyCompletes(t *testing.T) {
	summary := Run[int](context.Background(), Options{Job: "empty"}, nil, nil, nil)

	assert.Equal(t, StatusCompleted, summary.Status)
	assert.Zero(t, summary.Candidates)
	assert.False(t, summary.FinishedAt.IsZero())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation(errors.New("bad"))))
	assert.Equal(t, KindNotEligible, KindOf(fmt.Errorf("wrap: %w", NotEligible(errors.New("skip")))))
	assert.Equal(t, KindEnumeration, KindOf(Enumeration(errors.New("list"))))
	assert.Equal(t, KindPersistence, KindOf(Persistence(errors.New("tx"))))
	assert.Equal(t, KindNone, KindOf(errors.New("plain")))
	assert.Nil(t, Validation(nil))

	wrapped := Validation(ErrValidation)
	assert.Equal(t, "validation_error", wrapped.Error())
}
