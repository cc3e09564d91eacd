package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/batch"
	billingdomain "github.com/smallbiznis/dairy/internal/billing/domain"
	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/smallbiznis/dairy/internal/config"
	distributiondomain "github.com/smallbiznis/dairy/internal/distribution/domain"
	"github.com/smallbiznis/dairy/internal/idempotency"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	recurringdomain "github.com/smallbiznis/dairy/internal/recurring/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "github.com/smallbiznis/dairy/internal/scheduler"

type Params struct {
	fx.In

	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Gate            *idempotency.Gate
	RecurringSvc    recurringdomain.Service
	DistributionSvc distributiondomain.Service
	BillingSvc      billingdomain.Service
	Schedule        *config.ScheduleConfigHolder `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	gate            *idempotency.Gate
	recurringSvc    recurringdomain.Service
	distributionSvc distributiondomain.Service
	billingSvc      billingdomain.Service
	schedule        *config.ScheduleConfigHolder
}

// job is one gated batch. due decides whether a tick on today should fire
// it and key names the run-once mark for that firing.
type job struct {
	name string
	due  func(today time.Time, cfg config.ScheduleConfig) bool
	key  func(today time.Time, cfg config.ScheduleConfig) string
	run  func(ctx context.Context) ([]batch.Summary, error)
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Gate == nil ||
		p.RecurringSvc == nil || p.DistributionSvc == nil || p.BillingSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		genID:           p.GenID,
		clock:           p.Clock,
		gate:            p.Gate,
		recurringSvc:    p.RecurringSvc,
		distributionSvc: p.DistributionSvc,
		billingSvc:      p.BillingSvc,
		schedule:        p.Schedule,
	}, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{
			name: JobDistributorOrders,
			due:  func(time.Time, config.ScheduleConfig) bool { return true },
			key: func(today time.Time, _ config.ScheduleConfig) string {
				return dayKey(JobDistributorOrders, today)
			},
			run: func(ctx context.Context) ([]batch.Summary, error) {
				summary, err := s.distributionSvc.Run(ctx)
				return []batch.Summary{summary}, err
			},
		},
		{
			name: JobRecurringOrders,
			due: func(today time.Time, cfg config.ScheduleConfig) bool {
				return today.Day() == cfg.RecurringOrderDay
			},
			key: func(today time.Time, _ config.ScheduleConfig) string {
				return monthKey(JobRecurringOrders, today)
			},
			run: func(ctx context.Context) ([]batch.Summary, error) {
				summary, err := s.recurringSvc.ScheduleAll(ctx)
				return []batch.Summary{summary}, err
			},
		},
		{
			name: JobMonthlyBills,
			due: func(today time.Time, cfg config.ScheduleConfig) bool {
				return today.Day() == cfg.BillingDay
			},
			// keyed by the billed month
			key: func(today time.Time, _ config.ScheduleConfig) string {
				return JobMonthlyBills + ":" + billingdomain.PreviousPeriod(today, time.UTC).String()
			},
			run: s.billingSvc.RunMonthly,
		},
	}
}

func (s *Scheduler) findJob(name string) (job, bool) {
	for _, j := range s.jobs() {
		if j.name == name {
			return j, true
		}
	}
	return job{}, false
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	key string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "scheduler."+name)
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduler.job", name),
		attribute.String("scheduler.gate_key", key),
	)

	ctx, run, owner := s.ensureJobRun(ctx, name, key)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	// a deadline is a soft timeout, the next firing picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.logSchedulerError(ctx, nil, "scheduler.job.failed", name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// runGated passes j through the gate and runs it when the gate allows. A
// run that fails or times out gives its mark back so a later tick retries.
func (s *Scheduler) runGated(ctx context.Context, j job, today time.Time, cfg config.ScheduleConfig, force bool) error {
	key := j.key(today, cfg)

	acquire := s.gate.Acquire
	if force {
		acquire = s.gate.Force
	}
	lease, gateErr := acquire(ctx, key, cfg.GateTTL)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncGateDecision(j.name, lease.Decision)
	if gateErr != nil {
		s.logSchedulerError(ctx, nil, "scheduler.gate.error", j.name, gateErr,
			zap.String("gate_key", key),
			zap.String("decision", lease.Decision),
		)
	}
	if !lease.Run() {
		s.logger(ctx).Info("scheduler.job.skipped",
			zap.String("job", j.name),
			zap.String("gate_key", key),
			zap.String("decision", lease.Decision),
		)
		return nil
	}

	failed := false
	err := s.runJob(ctx, j.name, key, cfg.JobTimeout, func(ctx context.Context) error {
		summaries, err := j.run(ctx)
		run := jobRunFromContext(ctx)
		for _, summary := range summaries {
			if summary.Job == "" {
				continue
			}
			run.AddSummary(summary)
			schedMetrics.ObserveSummary(j.name, summary)
			s.logSummary(ctx, summary)
		}
		if err == nil {
			err = ctx.Err()
		}
		failed = err != nil
		return err
	})

	if failed {
		if releaseErr := s.gate.Release(context.WithoutCancel(ctx), lease); releaseErr != nil {
			s.logSchedulerError(ctx, nil, "scheduler.gate.release_failed", j.name, releaseErr,
				zap.String("gate_key", key),
			)
		}
	}
	return err
}

// RunOnce fires every enabled job that is due today in the schedule timezone.
func (s *Scheduler) RunOnce(parent context.Context) error {
	cfg := s.schedule.Get()
	today := clock.Today(s.clock.Now(), cfg.Location())

	var err error
	for _, j := range s.jobs() {
		if !isJobEnabled(cfg, j.name) || !j.due(today, cfg) {
			continue
		}
		err = errors.Join(err, s.runGated(parent, j, today, cfg, false))
	}
	return err
}

// RunJob runs one job now regardless of its calendar day. Without force
// the gate still suppresses a second run for the same key.
func (s *Scheduler) RunJob(ctx context.Context, name string, force bool) error {
	j, ok := s.findJob(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	cfg := s.schedule.Get()
	today := clock.Today(s.clock.Now(), cfg.Location())
	return s.runGated(ctx, j, today, cfg, force)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.schedule.Get().RunInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(interval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		// schedule.yml may have changed the interval since the last tick
		if current := s.schedule.Get().RunInterval; current != interval {
			s.log.Info("scheduler.interval.changed",
				zap.Duration("from", interval),
				zap.Duration("to", current),
			)
			interval = current
			ticker.Reset(interval)
		}
		nextRun = nextRun.Add(interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
