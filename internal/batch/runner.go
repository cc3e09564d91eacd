package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome is what a task reports for a single account.
// Warnings are failures that happened after the account's writes committed.
type Outcome struct {
	Created  int
	Warnings []string
}

type Task[T any] func(ctx context.Context, item T) (Outcome, error)

type Options struct {
	Job     string
	Workers int
	Now     func() time.Time
	Log     *zap.Logger
}

// Run fans task out over items with at most Workers in flight. A failing
// item never aborts the others; NotEligible errors count as skips.
func Run[T any](ctx context.Context, opts Options, items []T, label func(T) string, task Task[T]) Summary {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	summary := Summary{
		Job:        opts.Job,
		Status:     StatusRunning,
		Candidates: len(items),
		StartedAt:  now(),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() error {
			name := label(item)
			outcome, err := runTask(ctx, item, task)

			mu.Lock()
			defer mu.Unlock()
			switch KindOf(err) {
			case KindNone:
				if err != nil {
					break
				}
				summary.Processed++
				summary.Created += outcome.Created
				for _, w := range outcome.Warnings {
					summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", name, w))
				}
				return nil
			case KindNotEligible:
				summary.Skipped++
				log.Debug("batch.item.skipped", zap.String("job", opts.Job), zap.String("item", name), zap.Error(err))
				return nil
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", name, err))
			log.Warn("batch.item.failed", zap.String("job", opts.Job), zap.String("item", name), zap.Error(err))
			return nil
		})
	}
	_ = g.Wait()

	summary.finish(now())
	return summary
}

func runTask[T any](ctx context.Context, item T, task Task[T]) (out Outcome, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx, item)
}
