package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	"github.com/smallbiznis/dairy/internal/batch"
	billdomain "github.com/smallbiznis/dairy/internal/bill/domain"
	"github.com/smallbiznis/dairy/internal/billing/domain"
	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/smallbiznis/dairy/internal/config"
	distributororderdomain "github.com/smallbiznis/dairy/internal/distributororder/domain"
	obslogger "github.com/smallbiznis/dairy/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dairy/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	paymentdomain "github.com/smallbiznis/dairy/internal/payment/domain"
	dbpkg "github.com/smallbiznis/dairy/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const JobName = "monthly_bills"

type Params struct {
	fx.In

	DB                   *gorm.DB
	Log                  *zap.Logger
	GenID                *snowflake.Node
	Clock                clock.Clock
	AccountRepo          accountdomain.Repository
	OrderRepo            orderdomain.Repository
	DistributorOrderRepo distributororderdomain.Repository
	PaymentRepo          paymentdomain.Repository
	BillRepo             billdomain.Repository
	Generator            domain.DocumentGenerator     `optional:"true"`
	Schedule             *config.ScheduleConfigHolder `optional:"true"`
	Metrics              *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db                   *gorm.DB
	log                  *zap.Logger
	genID                *snowflake.Node
	clock                clock.Clock
	accountRepo          accountdomain.Repository
	orderRepo            orderdomain.Repository
	distributorOrderRepo distributororderdomain.Repository
	paymentRepo          paymentdomain.Repository
	billRepo             billdomain.Repository
	generator            domain.DocumentGenerator
	schedule             *config.ScheduleConfigHolder
	metrics              *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:                   p.DB,
		log:                  p.Log.Named("billing.service"),
		genID:                p.GenID,
		clock:                p.Clock,
		accountRepo:          p.AccountRepo,
		orderRepo:            p.OrderRepo,
		distributorOrderRepo: p.DistributorOrderRepo,
		paymentRepo:          p.PaymentRepo,
		billRepo:             p.BillRepo,
		generator:            p.Generator,
		schedule:             p.Schedule,
		metrics:              p.Metrics,
	}
}

// DocumentName is the file name a bill document is stored under.
func DocumentName(userName string, period billdomain.Period) string {
	name := slug.Make(userName)
	if name == "" {
		name = "account"
	}
	return fmt.Sprintf("bill_%s_%d_%d.pdf", name, int(period.Month), period.Year)
}

func (s *Service) RunMonthly(ctx context.Context) ([]batch.Summary, error) {
	cfg := s.schedule.Get()
	period := domain.PreviousPeriod(s.clock.Now(), cfg.Location())

	summaries := make([]batch.Summary, 0, 2)
	for _, role := range []accountdomain.Role{accountdomain.RoleCustomer, accountdomain.RoleDistributor} {
		summary, err := s.GenerateBills(ctx, domain.GenerateRequest{Role: role, Period: period})
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Service) GenerateBills(ctx context.Context, req domain.GenerateRequest) (batch.Summary, error) {
	job := JobName + ":" + string(req.Role)
	billType, err := domain.BillTypeFor(req.Role)
	if err != nil {
		return batch.Summary{Job: job, Status: batch.StatusIdle}, batch.Validation(err)
	}
	if err := req.Period.Validate(); err != nil {
		return batch.Summary{Job: job, Status: batch.StatusIdle}, batch.Validation(err)
	}

	accounts, err := s.billRepo.ListUnbilledAccounts(ctx, s.db, req.Role, billType, req.Period)
	if err != nil {
		return batch.Summary{Job: job, Status: batch.StatusIdle}, batch.Enumeration(fmt.Errorf("list unbilled accounts: %w", err))
	}

	cfg := s.schedule.Get()
	summary := batch.Run(ctx, batch.Options{
		Job:     job,
		Workers: cfg.Workers,
		Now:     s.clock.Now,
		Log:     obslogger.WithContext(ctx, s.log),
	}, accounts,
		func(a accountdomain.Account) string { return string(a.Role) + " " + a.UserName },
		func(ctx context.Context, account accountdomain.Account) (batch.Outcome, error) {
			return s.billAccount(ctx, account, billType, req.Period)
		})

	obslogger.WithContext(ctx, s.log).Info("billing.generate.finish",
		zap.String("role", string(req.Role)),
		zap.String("period", req.Period.String()),
		zap.Int("candidates", summary.Candidates),
		zap.Int("bills_created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *Service) billAccount(ctx context.Context, account accountdomain.Account, billType billdomain.BillType, period billdomain.Period) (batch.Outcome, error) {
	lines, err := s.breakdown(ctx, s.db, account, billType, period)
	if err != nil {
		return batch.Outcome{}, batch.Persistence(fmt.Errorf("summarize period: %w", err))
	}
	if len(lines) == 0 {
		return batch.Outcome{}, batch.NotEligible(domain.ErrNothingToBill)
	}

	now := s.clock.Now()
	items, amount := totals(lines)
	bill := billdomain.Bill{
		ID:               s.genID.Generate(),
		AccountID:        account.ID,
		Type:             billType,
		PeriodYear:       period.Year,
		PeriodMonth:      int(period.Month),
		TotalItems:       items,
		TotalAmount:      amount,
		ProductBreakdown: datatypes.JSONSlice[billdomain.BreakdownLine](lines),
		CreatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.billRepo.Insert(ctx, tx, &bill); err != nil {
			return err
		}
		if billType != billdomain.BillTypeCustomer {
			return nil
		}
		balance, err := s.customerBalance(ctx, tx, account.ID)
		if err != nil {
			return err
		}
		return s.accountRepo.SetBalance(ctx, tx, account.ID, balance, now)
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return batch.Outcome{}, batch.NotEligible(domain.ErrBillExists)
		}
		return batch.Outcome{}, batch.Persistence(err)
	}
	s.metrics.RecordBillGenerated(ctx, string(account.Role))

	outcome := batch.Outcome{Created: 1}
	if err := s.attachDocument(ctx, account, bill, lines); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("billing.document.failed",
			zap.String("account_id", account.ID.String()),
			zap.String("bill_id", bill.ID.String()),
			zap.Error(err),
		)
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("document: %v", err))
	}
	return outcome, nil
}

// attachDocument renders and stores the bill document. The bill row is
// already committed, so failures here never roll it back.
func (s *Service) attachDocument(ctx context.Context, account accountdomain.Account, bill billdomain.Bill, lines []billdomain.BreakdownLine) error {
	if s.generator == nil {
		return nil
	}
	data, err := s.assemble(ctx, account, bill.Type, bill.Period(), lines)
	if err != nil {
		s.metrics.RecordDocumentFailure(ctx, string(account.Role), "assemble")
		return err
	}
	data.BillID = bill.ID
	data.GeneratedAt = bill.CreatedAt

	content, err := s.generator.Render(ctx, data)
	if err != nil {
		s.metrics.RecordDocumentFailure(ctx, string(account.Role), "render")
		return fmt.Errorf("render: %w", err)
	}
	if err := s.billRepo.AttachDocument(ctx, s.db, bill.ID, DocumentName(account.UserName, bill.Period()), content); err != nil {
		s.metrics.RecordDocumentFailure(ctx, string(account.Role), "store")
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func (s *Service) Preview(ctx context.Context, accountID snowflake.ID, period billdomain.Period) (domain.BillData, error) {
	if err := period.Validate(); err != nil {
		return domain.BillData{}, batch.Validation(err)
	}
	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return domain.BillData{}, batch.Persistence(err)
	}
	if account == nil {
		return domain.BillData{}, batch.Validation(accountdomain.ErrAccountNotFound)
	}
	billType, err := domain.BillTypeFor(account.Role)
	if err != nil {
		return domain.BillData{}, batch.Validation(err)
	}

	lines, err := s.breakdown(ctx, s.db, *account, billType, period)
	if err != nil {
		return domain.BillData{}, batch.Persistence(err)
	}
	data, err := s.assemble(ctx, *account, billType, period, lines)
	if err != nil {
		return domain.BillData{}, batch.Persistence(err)
	}
	data.GeneratedAt = s.clock.Now()

	existing, err := s.billRepo.FindForPeriod(ctx, s.db, account.ID, billType, period)
	if err != nil {
		return domain.BillData{}, batch.Persistence(err)
	}
	if existing != nil {
		data.BillID = existing.ID
	}
	return data, nil
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (int64, error) {
	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return 0, batch.Persistence(err)
	}
	if account == nil {
		return 0, batch.Validation(accountdomain.ErrAccountNotFound)
	}

	switch account.Role {
	case accountdomain.RoleCustomer:
		balance, err := s.customerBalance(ctx, s.db, account.ID)
		if err != nil {
			return 0, batch.Persistence(err)
		}
		return balance, nil
	case accountdomain.RoleDistributor:
		paid, err := s.paymentRepo.SumByAccount(ctx, s.db, account.ID)
		if err != nil {
			return 0, batch.Persistence(err)
		}
		spent, err := s.distributorOrderRepo.SumTotal(ctx, s.db, account.ID)
		if err != nil {
			return 0, batch.Persistence(err)
		}
		return paid - spent, nil
	}
	return 0, batch.Validation(accountdomain.ErrInvalidRole)
}

// customerBalance is all payments minus everything delivered so far.
func (s *Service) customerBalance(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (int64, error) {
	paid, err := s.paymentRepo.SumByAccount(ctx, db, customerID)
	if err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	delivered, err := s.orderRepo.SumDeliveredTotal(ctx, db, customerID)
	if err != nil {
		return 0, fmt.Errorf("sum delivered: %w", err)
	}
	return paid - delivered, nil
}

func (s *Service) breakdown(ctx context.Context, db *gorm.DB, account accountdomain.Account, billType billdomain.BillType, period billdomain.Period) ([]billdomain.BreakdownLine, error) {
	var (
		rows []orderdomain.ProductSummary
		err  error
	)
	switch billType {
	case billdomain.BillTypeCustomer:
		rows, err = s.orderRepo.SummarizeDelivered(ctx, db, account.ID, period.Start(), period.End())
	case billdomain.BillTypeDistributor:
		rows, err = s.distributorOrderRepo.Summarize(ctx, db, account.ID, period.Start(), period.End())
	default:
		return nil, billdomain.ErrInvalidBillType
	}
	if err != nil {
		return nil, err
	}

	lines := make([]billdomain.BreakdownLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, billdomain.BreakdownLine{
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
			UnitPrice:   row.UnitPrice,
			Amount:      row.Amount,
		})
	}
	return lines, nil
}

func (s *Service) assemble(ctx context.Context, account accountdomain.Account, billType billdomain.BillType, period billdomain.Period, lines []billdomain.BreakdownLine) (domain.BillData, error) {
	items, amount := totals(lines)
	data := domain.BillData{
		Type:        billType,
		Account:     party(account),
		Period:      period,
		MonthName:   period.MonthName(),
		TotalItems:  items,
		TotalAmount: amount,
		Breakdown:   lines,
	}
	if billType != billdomain.BillTypeCustomer || account.DistributorID == nil {
		return data, nil
	}

	supplier, err := s.accountRepo.FindByID(ctx, s.db, *account.DistributorID)
	if err != nil {
		return domain.BillData{}, fmt.Errorf("load supplier: %w", err)
	}
	if supplier == nil {
		return data, nil
	}
	p := party(*supplier)
	data.Supplier = &p

	bank, err := s.accountRepo.FindBankDetails(ctx, s.db, supplier.ID)
	if err != nil {
		return domain.BillData{}, fmt.Errorf("load bank details: %w", err)
	}
	data.Bank = bank
	return data, nil
}

func party(account accountdomain.Account) domain.Party {
	return domain.Party{ID: account.ID, Name: account.UserName, Email: account.Email}
}

func totals(lines []billdomain.BreakdownLine) (items, amount int64) {
	for _, line := range lines {
		items += line.Quantity
		amount += line.Amount
	}
	return items, amount
}
