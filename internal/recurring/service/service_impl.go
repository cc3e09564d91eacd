package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	"github.com/smallbiznis/dairy/internal/batch"
	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/smallbiznis/dairy/internal/config"
	obslogger "github.com/smallbiznis/dairy/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	productdomain "github.com/smallbiznis/dairy/internal/product/domain"
	"github.com/smallbiznis/dairy/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const JobName = "recurring_orders"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	ProductRepo productdomain.Repository
	OrderRepo   orderdomain.Repository
	Schedule    *config.ScheduleConfigHolder `optional:"true"`
	Metrics     *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	accountRepo accountdomain.Repository
	productRepo productdomain.Repository
	orderRepo   orderdomain.Repository
	schedule    *config.ScheduleConfigHolder
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("recurring.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		productRepo: p.ProductRepo,
		orderRepo:   p.OrderRepo,
		schedule:    p.Schedule,
		metrics:     p.Metrics,
	}
}

// window is the span of dates to materialize. checkEnd bounds the
// already-scheduled lookup; nil means any later order counts.
type window struct {
	start    time.Time
	months   int
	checkEnd *time.Time
}

func (s *Service) ScheduleAll(ctx context.Context) (batch.Summary, error) {
	cfg := s.schedule.Get()
	today := clock.Today(s.clock.Now(), cfg.Location())
	win := window{
		start:  clock.AddMonths(clock.StartOfMonth(today), 1),
		months: cfg.HorizonMonths,
	}

	templates, err := s.repo.List(ctx, s.db)
	if err != nil {
		return batch.Summary{Job: JobName, Status: batch.StatusIdle}, batch.Enumeration(fmt.Errorf("list templates: %w", err))
	}

	summary := batch.Run(ctx, batch.Options{
		Job:     JobName,
		Workers: cfg.Workers,
		Now:     s.clock.Now,
		Log:     obslogger.WithContext(ctx, s.log),
	}, templates,
		func(t domain.Template) string { return "customer " + t.CustomerID.String() },
		func(ctx context.Context, t domain.Template) (batch.Outcome, error) {
			customer, product, err := s.load(ctx, t.CustomerID, t.ProductID)
			if err != nil {
				return batch.Outcome{}, err
			}
			if err := schedulable(customer); err != nil {
				return batch.Outcome{}, err
			}
			created, err := s.materialize(ctx, t, customer, product, win, today)
			return batch.Outcome{Created: created}, err
		})

	obslogger.WithContext(ctx, s.log).Info("recurring.schedule.finish",
		zap.String("window_start", win.start.Format(time.DateOnly)),
		zap.Int("horizon_months", win.months),
		zap.Int("candidates", summary.Candidates),
		zap.Int("processed", summary.Processed),
		zap.Int("orders_created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (s *Service) ScheduleBulkOrder(ctx context.Context, req domain.BulkOrderRequest) (domain.BulkOrderResult, error) {
	cadence, err := domain.ParseCadence(req.Cadence)
	if err != nil {
		return domain.BulkOrderResult{}, batch.Validation(err)
	}
	if req.BaseQuantity <= 0 {
		return domain.BulkOrderResult{}, batch.Validation(domain.ErrInvalidQuantity)
	}

	customer, product, err := s.load(ctx, req.CustomerID, req.ProductID)
	if err != nil {
		return domain.BulkOrderResult{}, err
	}

	cfg := s.schedule.Get()
	now := s.clock.Now()
	today := clock.Today(now, cfg.Location())

	win := window{start: today.AddDate(0, 0, 1), months: cfg.HorizonMonths}
	if req.Year != 0 || req.Month != 0 {
		if req.Year < 1 || req.Month < time.January || req.Month > time.December {
			return domain.BulkOrderResult{}, batch.Validation(domain.ErrInvalidWindow)
		}
		win = window{start: clock.Date(req.Year, req.Month, 1), months: 1}
	}
	end := clock.AddMonths(clock.StartOfMonth(win.start), win.months)
	win.checkEnd = &end

	template := domain.Template{
		ID:           s.genID.Generate(),
		CustomerID:   customer.ID,
		ProductID:    product.ID,
		BaseQuantity: req.BaseQuantity,
		Cadence:      cadence,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Upsert(ctx, s.db, &template); err != nil {
		return domain.BulkOrderResult{}, batch.Persistence(fmt.Errorf("save template: %w", err))
	}

	created, err := s.materialize(ctx, template, customer, product, win, today)
	result := domain.BulkOrderResult{
		Template:      template,
		WindowStart:   win.start,
		WindowEnd:     end,
		OrdersCreated: created,
	}
	if err != nil {
		return result, err
	}

	obslogger.WithContext(ctx, s.log).Info("recurring.bulk_order.scheduled",
		zap.String("customer_id", customer.ID.String()),
		zap.String("cadence", string(cadence)),
		zap.String("window_start", win.start.Format(time.DateOnly)),
		zap.String("window_end", end.Format(time.DateOnly)),
		zap.Int("orders_created", created),
	)
	return result, nil
}

func (s *Service) SaveTemplate(ctx context.Context, template domain.Template) (*domain.Template, error) {
	if !template.Cadence.Valid() {
		return nil, batch.Validation(domain.ErrUnsupportedCadence)
	}
	if template.BaseQuantity <= 0 {
		return nil, batch.Validation(domain.ErrInvalidQuantity)
	}
	if _, _, err := s.load(ctx, template.CustomerID, template.ProductID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if template.ID == 0 {
		template.ID = s.genID.Generate()
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now
	if err := s.repo.Upsert(ctx, s.db, &template); err != nil {
		return nil, batch.Persistence(fmt.Errorf("save template: %w", err))
	}
	return &template, nil
}

func (s *Service) GetTemplate(ctx context.Context, customerID snowflake.ID) (*domain.Template, error) {
	template, err := s.repo.FindByCustomer(ctx, s.db, customerID)
	if err != nil {
		return nil, batch.Persistence(err)
	}
	if template == nil {
		return nil, domain.ErrTemplateNotFound
	}
	return template, nil
}

func (s *Service) load(ctx context.Context, customerID, productID snowflake.ID) (*accountdomain.Account, *productdomain.Product, error) {
	customer, err := s.accountRepo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return nil, nil, batch.Persistence(fmt.Errorf("load customer: %w", err))
	}
	if customer == nil {
		return nil, nil, batch.Validation(accountdomain.ErrAccountNotFound)
	}
	if customer.Role != accountdomain.RoleCustomer {
		return nil, nil, batch.Validation(accountdomain.ErrRoleMismatch)
	}

	product, err := s.productRepo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, nil, batch.Persistence(fmt.Errorf("load product: %w", err))
	}
	if product == nil {
		return nil, nil, batch.Validation(productdomain.ErrProductNotFound)
	}
	return customer, product, nil
}

// schedulable reports whether the monthly run may generate orders for the
// customer. Paused customers resume only through an explicit bulk order.
func schedulable(customer *accountdomain.Account) error {
	if err := accountdomain.EnsureActiveRole(customer, accountdomain.RoleCustomer); err != nil {
		if errors.Is(err, accountdomain.ErrRoleNotAccepted) {
			return batch.NotEligible(err)
		}
		return batch.Validation(err)
	}
	if customer.IsPaused {
		return batch.NotEligible(domain.ErrCustomerPaused)
	}
	return nil
}

// materialize writes the expanded orders for one customer in a single
// transaction and lifts the customer's pause once they are committed.
// The customer row is locked while the window is rechecked so concurrent
// runs cannot both insert.
func (s *Service) materialize(
	ctx context.Context,
	template domain.Template,
	customer *accountdomain.Account,
	product *productdomain.Product,
	win window,
	today time.Time,
) (int, error) {
	scheduled, err := s.orderRepo.ExistsInRange(ctx, s.db, customer.ID, win.start, win.checkEnd)
	if err != nil {
		return 0, batch.Persistence(fmt.Errorf("check existing orders: %w", err))
	}
	if scheduled {
		return 0, batch.NotEligible(domain.ErrAlreadyScheduled)
	}

	entries, err := domain.Expand(domain.ExpandRequest{
		Start:        win.start,
		Months:       win.months,
		BaseQuantity: template.BaseQuantity,
		Cadence:      template.Cadence,
		Today:        today,
	})
	if err != nil {
		return 0, batch.Validation(err)
	}
	if len(entries) == 0 {
		return 0, batch.NotEligible(domain.ErrNothingToSchedule)
	}

	now := s.clock.Now()
	orders := make([]orderdomain.Order, 0, len(entries))
	for _, entry := range entries {
		orders = append(orders, orderdomain.Order{
			ID:              s.genID.Generate(),
			CustomerID:      customer.ID,
			DeliveryStaffID: customer.DeliveryStaffID,
			ProductID:       product.ID,
			Quantity:        entry.Quantity,
			TotalPrice:      product.Price * entry.Quantity,
			DeliveryDate:    entry.Date,
			Status:          orderdomain.OrderStatusPending,
			CreatedAt:       now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.accountRepo.LockForUpdate(ctx, tx, customer.ID)
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		if locked == nil {
			return batch.Validation(accountdomain.ErrAccountNotFound)
		}
		scheduled, err := s.orderRepo.ExistsInRange(ctx, tx, customer.ID, win.start, win.checkEnd)
		if err != nil {
			return fmt.Errorf("recheck existing orders: %w", err)
		}
		if scheduled {
			return batch.NotEligible(domain.ErrAlreadyScheduled)
		}
		if err := s.orderRepo.BulkInsert(ctx, tx, orders); err != nil {
			return fmt.Errorf("insert orders: %w", err)
		}
		if customer.IsPaused {
			if err := s.accountRepo.SetPaused(ctx, tx, customer.ID, false, now); err != nil {
				return fmt.Errorf("unpause customer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if batch.KindOf(err) != batch.KindNone {
			return 0, err
		}
		return 0, batch.Persistence(err)
	}

	s.metrics.RecordOrdersScheduled(ctx, JobName, len(orders))
	return len(orders), nil
}
