package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	accountrepo "github.com/smallbiznis/dairy/internal/account/repository"
	"github.com/smallbiznis/dairy/internal/batch"
	billdomain "github.com/smallbiznis/dairy/internal/bill/domain"
	billrepo "github.com/smallbiznis/dairy/internal/bill/repository"
	"github.com/smallbiznis/dairy/internal/billing/domain"
	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/smallbiznis/dairy/internal/config"
	distributororderrepo "github.com/smallbiznis/dairy/internal/distributororder/repository"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	orderrepo "github.com/smallbiznis/dairy/internal/order/repository"
	paymentrepo "github.com/smallbiznis/dairy/internal/payment/repository"
	productdomain "github.com/smallbiznis/dairy/internal/product/domain"
	schedtesting "github.com/smallbiznis/dairy/internal/scheduler/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubGenerator struct {
	mu    sync.Mutex
	calls []domain.BillData
	err   error
}

func (g *stubGenerator) Render(_ context.Context, data domain.BillData) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, data)
	if g.err != nil {
		return nil, g.err
	}
	return []byte("%PDF-stub"), nil
}

func setupService(t *testing.T, now time.Time, generator domain.DocumentGenerator) (*Service, *schedtesting.Fixture) {
	t.Helper()
	fix := schedtesting.NewFixture(t, now)
	svc := New(Params{
		DB:                   fix.DB,
		Log:                  zaptest.NewLogger(t),
		GenID:                fix.GenID,
		Clock:                clock.NewFakeClock(now),
		AccountRepo:          accountrepo.Provide(),
		OrderRepo:            orderrepo.Provide(),
		DistributorOrderRepo: distributororderrepo.Provide(),
		PaymentRepo:          paymentrepo.Provide(),
		BillRepo:             billrepo.Provide(),
		Generator:            generator,
		Schedule:             config.NewStaticScheduleConfigHolder(config.ScheduleConfig{Timezone: "UTC", Workers: 2}),
	})
	return svc.(*Service), fix
}

var march = billdomain.Period{Year: 2026, Month: time.March}

type billingWorld struct {
	fix         *schedtesting.Fixture
	distributor accountdomain.Account
	alice       accountdomain.Account
	bob         accountdomain.Account
}

func seedWorld(t *testing.T, fix *schedtesting.Fixture) billingWorld {
	t.Helper()
	dist := fix.Distributor("North Dairy", 0)
	fix.BankDetails(dist)
	alice := fix.Customer("Alice Sharma", &dist, nil)
	bob := fix.Customer("bob", &dist, nil)
	carol := fix.Customer("carol", &dist, nil)
	fix.Update(&carol, map[string]any{"role_accepted": false})

	milk := fix.Product("milk", 30, 25)
	curd := fix.Product("curd", 40, -1)

	fix.Order(alice, milk, 2, clock.Date(2026, time.March, 3), orderdomain.OrderStatusDelivered)
	fix.Order(alice, milk, 1, clock.Date(2026, time.March, 4), orderdomain.OrderStatusDelivered)
	fix.Order(alice, curd, 1, clock.Date(2026, time.March, 5), orderdomain.OrderStatusDelivered)
	fix.Order(alice, milk, 1, clock.Date(2026, time.March, 6), orderdomain.OrderStatusPending)
	fix.Order(alice, milk, 1, clock.Date(2026, time.February, 27), orderdomain.OrderStatusDelivered)
	fix.Order(carol, milk, 1, clock.Date(2026, time.March, 3), orderdomain.OrderStatusDelivered)
	fix.Payment(alice, 500)

	fix.DistributorOrder(dist, milk, 10, clock.Date(2026, time.March, 3))
	fix.DistributorOrder(dist, milk, 5, clock.Date(2026, time.March, 4))
	fix.Payment(dist, 1000)

	return billingWorld{fix: fix, distributor: dist, alice: alice, bob: bob}
}

func TestGenerateCustomerBills(t *testing.T) {
	generator := &stubGenerator{}
	svc, fix := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), generator)
	world := seedWorld(t, fix)

	summary, err := svc.GenerateBills(context.Background(), domain.GenerateRequest{
		Role:   accountdomain.RoleCustomer,
		Period: march,
	})
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Created)

	bills := fix.Bills(world.alice.ID)
	require.Len(t, bills, 1)
	bill := bills[0]
	assert.Equal(t, billdomain.BillTypeCustomer, bill.Type)
	assert.Equal(t, march, bill.Period())
	assert.Equal(t, int64(4), bill.TotalItems)
	assert.Equal(t, int64(130), bill.TotalAmount)
	require.Len(t, bill.ProductBreakdown, 2)
	assert.Equal(t, "milk", bill.ProductBreakdown[0].ProductName)
	assert.Equal(t, int64(3), bill.ProductBreakdown[0].Quantity)
	assert.Equal(t, int64(30), bill.ProductBreakdown[0].UnitPrice)
	assert.Equal(t, int64(90), bill.ProductBreakdown[0].Amount)
	assert.Equal(t, "curd", bill.ProductBreakdown[1].ProductName)
	assert.Equal(t, int64(40), bill.ProductBreakdown[1].Amount)

	require.NotNil(t, bill.DocumentName)
	assert.Equal(t, "bill_alice-sharma_3_2026.pdf", *bill.DocumentName)
	assert.Equal(t, []byte("%PDF-stub"), bill.Document)

	// payments minus every delivered order, February included
	assert.Equal(t, int64(500-160), fix.Reload(world.alice.ID).Balance)
	assert.Empty(t, fix.Bills(world.bob.ID))

	require.Len(t, generator.calls, 1)
	data := generator.calls[0]
	assert.Equal(t, bill.ID, data.BillID)
	assert.Equal(t, "March", data.MonthName)
	require.NotNil(t, data.Supplier)
	assert.Equal(t, "North Dairy", data.Supplier.Name)
	require.NotNil(t, data.Bank)
	assert.Equal(t, "SBIN0000001", data.Bank.IFSCCode)

	again, err := svc.GenerateBills(context.Background(), domain.GenerateRequest{
		Role:   accountdomain.RoleCustomer,
		Period: march,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Candidates)
	assert.Equal(t, 0, again.Created)
	assert.Len(t, fix.Bills(world.alice.ID), 1)
}

func TestGenerateDistributorBills(t *testing.T) {
	svc, fix := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), &stubGenerator{})
	world := seedWorld(t, fix)

	summary, err := svc.GenerateBills(context.Background(), domain.GenerateRequest{
		Role:   accountdomain.RoleDistributor,
		Period: march,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	bills := fix.Bills(world.distributor.ID)
	require.Len(t, bills, 1)
	assert.Equal(t, billdomain.BillTypeDistributor, bills[0].Type)
	assert.Equal(t, int64(15), bills[0].TotalItems)
	assert.Equal(t, int64(375), bills[0].TotalAmount)
	require.Len(t, bills[0].ProductBreakdown, 1)
	assert.Equal(t, int64(25), bills[0].ProductBreakdown[0].UnitPrice)

	// distributor balances move only with the daily debit
	assert.Equal(t, int64(0), fix.Reload(world.distributor.ID).Balance)
}

func TestBreakdownFollowsOrderSnapshots(t *testing.T) {
	svc, fix := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), nil)
	world := seedWorld(t, fix)

	// catalog price rises mid-March; earlier orders keep their snapshot
	var milk productdomain.Product
	require.NoError(t, fix.DB.Where("name = ?", "milk").Take(&milk).Error)
	milk.Price = 35
	milk.DistributorPrice = ptr(int64(28))
	require.NoError(t, fix.DB.Save(&milk).Error)
	fix.Order(world.alice, milk, 2, clock.Date(2026, time.March, 20), orderdomain.OrderStatusDelivered)
	fix.DistributorOrder(world.distributor, milk, 5, clock.Date(2026, time.March, 20))

	customer, err := svc.Preview(context.Background(), world.alice.ID, march)
	require.NoError(t, err)
	require.Len(t, customer.Breakdown, 3)
	assert.Equal(t, int64(30), customer.Breakdown[0].UnitPrice)
	assert.Equal(t, int64(90), customer.Breakdown[0].Amount)
	assert.Equal(t, int64(35), customer.Breakdown[1].UnitPrice)
	assert.Equal(t, int64(70), customer.Breakdown[1].Amount)
	assert.Equal(t, int64(200), customer.TotalAmount)

	distributor, err := svc.Preview(context.Background(), world.distributor.ID, march)
	require.NoError(t, err)
	require.Len(t, distributor.Breakdown, 2)
	assert.Equal(t, int64(25), distributor.Breakdown[0].UnitPrice)
	assert.Equal(t, int64(28), distributor.Breakdown[1].UnitPrice)
	assert.Equal(t, int64(375+140), distributor.TotalAmount)

	for _, line := range append(customer.Breakdown, distributor.Breakdown...) {
		assert.Equal(t, line.Amount, line.UnitPrice*line.Quantity, line.ProductName)
	}
}

func ptr[T any](v T) *T { return &v }

func TestDocumentFailureKeepsBill(t *testing.T) {
	generator := &stubGenerator{err: errors.New("renderer offline")}
	svc, fix := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), generator)
	world := seedWorld(t, fix)

	summary, err := svc.GenerateBills(context.Background(), domain.GenerateRequest{
		Role:   accountdomain.RoleCustomer,
		Period: march,
	})
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompletedWithErrors, summary.Status)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "renderer offline")

	bills := fix.Bills(world.alice.ID)
	require.Len(t, bills, 1)
	assert.Nil(t, bills[0].DocumentName)
	assert.Empty(t, bills[0].Document)
	assert.Equal(t, int64(340), fix.Reload(world.alice.ID).Balance)
}

func TestGenerateBillsRejectsBadRequests(t *testing.T) {
	svc, _ := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), nil)

	_, err := svc.GenerateBills(context.Background(), domain.GenerateRequest{Role: accountdomain.RoleAdmin, Period: march})
	assert.ErrorIs(t, err, accountdomain.ErrInvalidRole)
	assert.Equal(t, batch.KindValidation, batch.KindOf(err))

	_, err = svc.GenerateBills(context.Background(), domain.GenerateRequest{
		Role:   accountdomain.RoleCustomer,
		Period: billdomain.Period{Year: 2026, Month: 0},
	})
	assert.ErrorIs(t, err, billdomain.ErrInvalidPeriod)
}

func TestRunMonthlyBillsPreviousMonth(t *testing.T) {
	svc, fix := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), nil)
	world := seedWorld(t, fix)

	summaries, err := svc.RunMonthly(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, JobName+":customer", summaries[0].Job)
	assert.Equal(t, JobName+":distributor", summaries[1].Job)

	require.Len(t, fix.Bills(world.alice.ID), 1)
	require.Len(t, fix.Bills(world.distributor.ID), 1)
	assert.Equal(t, march, fix.Bills(world.alice.ID)[0].Period())
	// no generator configured
	assert.Nil(t, fix.Bills(world.alice.ID)[0].DocumentName)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	svc, fix := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), nil)
	world := seedWorld(t, fix)

	data, err := svc.Preview(context.Background(), world.alice.ID, march)
	require.NoError(t, err)
	assert.Zero(t, data.BillID)
	assert.Equal(t, int64(130), data.TotalAmount)
	assert.Equal(t, int64(4), data.TotalItems)
	assert.Equal(t, "Alice Sharma", data.Account.Name)
	require.NotNil(t, data.Supplier)
	assert.Equal(t, int64(0), fix.Count(&billdomain.Bill{}))

	_, err = svc.GenerateBills(context.Background(), domain.GenerateRequest{Role: accountdomain.RoleCustomer, Period: march})
	require.NoError(t, err)

	data, err = svc.Preview(context.Background(), world.alice.ID, march)
	require.NoError(t, err)
	assert.Equal(t, fix.Bills(world.alice.ID)[0].ID, data.BillID)
}

func TestBalance(t *testing.T) {
	svc, fix := setupService(t, time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC), nil)
	world := seedWorld(t, fix)

	balance, err := svc.Balance(context.Background(), world.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(340), balance)

	balance, err = svc.Balance(context.Background(), world.distributor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000-375), balance)

	_, err = svc.Balance(context.Background(), fix.GenID.Generate())
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)
}

func TestPreviousPeriod(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	assert.Equal(t, billdomain.Period{Year: 2025, Month: time.December},
		domain.PreviousPeriod(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), time.UTC))
	// still March 31 in UTC but already April in Kolkata
	assert.Equal(t, march,
		domain.PreviousPeriod(time.Date(2026, time.March, 31, 20, 0, 0, 0, time.UTC), kolkata))
	assert.Equal(t, billdomain.Period{Year: 2026, Month: time.February},
		domain.PreviousPeriod(time.Date(2026, time.March, 31, 20, 0, 0, 0, time.UTC), nil))
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "bill_alice-sharma_3_2026.pdf", DocumentName("Alice Sharma", march))
	assert.Equal(t, "bill_account_12_2025.pdf", DocumentName("  ", billdomain.Period{Year: 2025, Month: time.December}))
}
