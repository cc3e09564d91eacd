package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/dairy/internal/batch"
	obslogger "github.com/smallbiznis/dairy/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	"github.com/smallbiznis/dairy/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	key            string
	startedAt      time.Time
	candidates     int
	processedCount int
	createdCount   int
	skippedCount   int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddSummary(summary batch.Summary) {
	if r == nil {
		return
	}
	r.candidates += summary.Candidates
	r.processedCount += summary.Processed
	r.createdCount += summary.Created
	r.skippedCount += summary.Skipped
	r.errorCount += len(summary.Errors)
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job, key string) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		key:       key,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obslogger.WithJob(ctx, job, run.runID)
	ctx, _ = correlation.EnsureCorrelationID(ctx)
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("gate_key", run.key),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("gate_key", run.key),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("candidates", run.candidates),
		zap.Int("processed_count", run.processedCount),
		zap.Int("created_count", run.createdCount),
		zap.Int("skipped_count", run.skippedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, job string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if run != nil {
		run.IncError()
	}
	baseFields := []zap.Field{
		zap.String("job", job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.String("error", err.Error()),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
	}
	s.logger(ctx).Error(msg, append(baseFields, fields...)...)
}

func (s *Scheduler) logSummary(ctx context.Context, summary batch.Summary) {
	log := s.logger(ctx)
	for _, line := range summary.Errors {
		log.Warn("scheduler.job.item_error",
			zap.String("batch", summary.Job),
			zap.String("detail", line),
		)
	}
}
