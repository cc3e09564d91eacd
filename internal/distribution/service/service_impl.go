package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	"github.com/smallbiznis/dairy/internal/batch"
	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/smallbiznis/dairy/internal/config"
	"github.com/smallbiznis/dairy/internal/distribution/domain"
	distributororderdomain "github.com/smallbiznis/dairy/internal/distributororder/domain"
	obslogger "github.com/smallbiznis/dairy/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	productdomain "github.com/smallbiznis/dairy/internal/product/domain"
	dbpkg "github.com/smallbiznis/dairy/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const JobName = "distributor_orders"

type Params struct {
	fx.In

	DB                   *gorm.DB
	Log                  *zap.Logger
	GenID                *snowflake.Node
	Clock                clock.Clock
	AccountRepo          accountdomain.Repository
	ProductRepo          productdomain.Repository
	OrderRepo            orderdomain.Repository
	DistributorOrderRepo distributororderdomain.Repository
	Schedule             *config.ScheduleConfigHolder `optional:"true"`
	Metrics              *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db                   *gorm.DB
	log                  *zap.Logger
	genID                *snowflake.Node
	clock                clock.Clock
	accountRepo          accountdomain.Repository
	productRepo          productdomain.Repository
	orderRepo            orderdomain.Repository
	distributorOrderRepo distributororderdomain.Repository
	schedule             *config.ScheduleConfigHolder
	metrics              *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:                   p.DB,
		log:                  p.Log.Named("distribution.service"),
		genID:                p.GenID,
		clock:                p.Clock,
		accountRepo:          p.AccountRepo,
		productRepo:          p.ProductRepo,
		orderRepo:            p.OrderRepo,
		distributorOrderRepo: p.DistributorOrderRepo,
		schedule:             p.Schedule,
		metrics:              p.Metrics,
	}
}

func (s *Service) Run(ctx context.Context) (batch.Summary, error) {
	cfg := s.schedule.Get()
	return s.AggregateDay(ctx, clock.Today(s.clock.Now(), cfg.Location()))
}

func (s *Service) AggregateDay(ctx context.Context, day time.Time) (batch.Summary, error) {
	day = clock.Date(day.Year(), day.Month(), day.Day())
	cfg := s.schedule.Get()

	distributors, err := s.accountRepo.ListAccepted(ctx, s.db, accountdomain.RoleDistributor)
	if err != nil {
		return batch.Summary{Job: JobName, Status: batch.StatusIdle}, batch.Enumeration(fmt.Errorf("list distributors: %w", err))
	}

	summary := batch.Run(ctx, batch.Options{
		Job:     JobName,
		Workers: cfg.Workers,
		Now:     s.clock.Now,
		Log:     obslogger.WithContext(ctx, s.log),
	}, distributors,
		func(a accountdomain.Account) string { return "distributor " + a.UserName },
		func(ctx context.Context, distributor accountdomain.Account) (batch.Outcome, error) {
			created, err := s.aggregate(ctx, distributor, day)
			return batch.Outcome{Created: created}, err
		})

	obslogger.WithContext(ctx, s.log).Info("distribution.aggregate.finish",
		zap.String("day", day.Format(time.DateOnly)),
		zap.Int("candidates", summary.Candidates),
		zap.Int("processed", summary.Processed),
		zap.Int("orders_created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (s *Service) aggregate(ctx context.Context, distributor accountdomain.Account, day time.Time) (int, error) {
	exists, err := s.distributorOrderRepo.ExistsOn(ctx, s.db, distributor.ID, day)
	if err != nil {
		return 0, batch.Persistence(fmt.Errorf("check distributor orders: %w", err))
	}
	if exists {
		return 0, batch.NotEligible(domain.ErrAlreadyAggregated)
	}

	demand, err := s.orderRepo.SumQuantityForDistributor(ctx, s.db, distributor.ID, day)
	if err != nil {
		return 0, batch.Persistence(fmt.Errorf("sum customer demand: %w", err))
	}
	if len(demand) == 0 {
		return 0, batch.NotEligible(domain.ErrNoDemand)
	}

	ids := make([]snowflake.ID, 0, len(demand))
	for _, line := range demand {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return 0, batch.Persistence(fmt.Errorf("load products: %w", err))
	}

	now := s.clock.Now()
	var total int64
	rows := make([]distributororderdomain.DistributorOrder, 0, len(demand))
	for _, line := range demand {
		product, ok := products[line.ProductID]
		if !ok {
			return 0, batch.Validation(fmt.Errorf("%w: %s", productdomain.ErrProductNotFound, line.ProductID))
		}
		amount := line.Quantity * product.DistributorUnitPrice()
		total += amount
		rows = append(rows, distributororderdomain.DistributorOrder{
			ID:            s.genID.Generate(),
			DistributorID: distributor.ID,
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			TotalPrice:    amount,
			OrderDate:     day,
			CreatedAt:     now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.distributorOrderRepo.BulkInsert(ctx, tx, rows); err != nil {
			return err
		}
		return s.accountRepo.AdjustBalance(ctx, tx, distributor.ID, -total, now)
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return 0, batch.NotEligible(domain.ErrAlreadyAggregated)
		}
		return 0, batch.Persistence(err)
	}

	obslogger.WithContext(ctx, s.log).Debug("distribution.aggregate.distributor",
		zap.String("distributor_id", distributor.ID.String()),
		zap.Int("lines", len(rows)),
		zap.Int64("debited", total),
	)
	s.metrics.RecordDistributorOrders(ctx, len(rows), total)
	return len(rows), nil
}
