// Package testing holds database fixtures shared by the batch job tests.
package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	billdomain "github.com/smallbiznis/dairy/internal/bill/domain"
	distributororderdomain "github.com/smallbiznis/dairy/internal/distributororder/domain"
	"github.com/smallbiznis/dairy/internal/migration"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	paymentdomain "github.com/smallbiznis/dairy/internal/payment/domain"
	productdomain "github.com/smallbiznis/dairy/internal/product/domain"
	recurringdomain "github.com/smallbiznis/dairy/internal/recurring/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns an isolated in-memory database with the schema migrated.
// A single connection is used so concurrent workers serialize on it.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", ulid.Make().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(migration.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Fixture seeds accounts, products and orders with fixed timestamps.
type Fixture struct {
	DB    *gorm.DB
	GenID *snowflake.Node
	Now   time.Time

	t testing.TB
}

func NewFixture(t testing.TB, now time.Time) *Fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Fixture{DB: OpenDB(t), GenID: node, Now: now.UTC(), t: t}
}

func (f *Fixture) create(value any) {
	f.t.Helper()
	if err := f.DB.Create(value).Error; err != nil {
		f.t.Fatalf("seed %T: %v", value, err)
	}
}

// Account inserts an accepted account with the given role.
func (f *Fixture) Account(name string, role accountdomain.Role) accountdomain.Account {
	f.t.Helper()
	account := accountdomain.Account{
		ID:           f.GenID.Generate(),
		UserName:     name,
		Email:        name + "@example.com",
		Role:         role,
		RoleAccepted: true,
		CreatedAt:    f.Now,
		UpdatedAt:    f.Now,
	}
	f.create(&account)
	return account
}

func (f *Fixture) Distributor(name string, balance int64) accountdomain.Account {
	f.t.Helper()
	account := f.Account(name, accountdomain.RoleDistributor)
	if balance != 0 {
		f.Update(&account, map[string]any{"balance": balance})
	}
	return account
}

// Customer inserts a customer served by the distributor and delivery staff,
// either of which may be nil.
func (f *Fixture) Customer(name string, distributor, staff *accountdomain.Account) accountdomain.Account {
	f.t.Helper()
	account := accountdomain.Account{
		ID:           f.GenID.Generate(),
		UserName:     name,
		Email:        name + "@example.com",
		Role:         accountdomain.RoleCustomer,
		RoleAccepted: true,
		CreatedAt:    f.Now,
		UpdatedAt:    f.Now,
	}
	if distributor != nil {
		account.DistributorID = &distributor.ID
	}
	if staff != nil {
		account.DeliveryStaffID = &staff.ID
	}
	f.create(&account)
	return account
}

// Update applies column changes to a seeded account and reloads it.
func (f *Fixture) Update(account *accountdomain.Account, columns map[string]any) {
	f.t.Helper()
	if err := f.DB.Model(&accountdomain.Account{}).Where("id = ?", account.ID).Updates(columns).Error; err != nil {
		f.t.Fatalf("update account: %v", err)
	}
	*account = f.Reload(account.ID)
}

func (f *Fixture) Reload(id snowflake.ID) accountdomain.Account {
	f.t.Helper()
	var account accountdomain.Account
	if err := f.DB.Where("id = ?", id).Take(&account).Error; err != nil {
		f.t.Fatalf("reload account: %v", err)
	}
	return account
}

func (f *Fixture) BankDetails(account accountdomain.Account) accountdomain.BankDetails {
	f.t.Helper()
	details := accountdomain.BankDetails{
		AccountID:  account.ID,
		BankName:   "State Bank",
		AccountNo:  "000123456789",
		IFSCCode:   "SBIN0000001",
		HolderName: account.UserName,
	}
	f.create(&details)
	return details
}

// Product inserts a product. A negative distributorPrice leaves it unset.
func (f *Fixture) Product(name string, price, distributorPrice int64) productdomain.Product {
	f.t.Helper()
	product := productdomain.Product{
		ID:        f.GenID.Generate(),
		Name:      name,
		Price:     price,
		CreatedAt: f.Now,
		UpdatedAt: f.Now,
	}
	if distributorPrice >= 0 {
		product.DistributorPrice = &distributorPrice
	}
	f.create(&product)
	return product
}

func (f *Fixture) Template(customer accountdomain.Account, product productdomain.Product, base int64, cadence recurringdomain.Cadence) recurringdomain.Template {
	f.t.Helper()
	template := recurringdomain.Template{
		ID:           f.GenID.Generate(),
		CustomerID:   customer.ID,
		ProductID:    product.ID,
		BaseQuantity: base,
		Cadence:      cadence,
		CreatedAt:    f.Now,
		UpdatedAt:    f.Now,
	}
	f.create(&template)
	return template
}

func (f *Fixture) Order(customer accountdomain.Account, product productdomain.Product, qty int64, day time.Time, status orderdomain.OrderStatus) orderdomain.Order {
	f.t.Helper()
	order := orderdomain.Order{
		ID:              f.GenID.Generate(),
		CustomerID:      customer.ID,
		DeliveryStaffID: customer.DeliveryStaffID,
		ProductID:       product.ID,
		Quantity:        qty,
		TotalPrice:      qty * product.Price,
		DeliveryDate:    day.UTC(),
		Status:          status,
		CreatedAt:       f.Now,
	}
	f.create(&order)
	return order
}

func (f *Fixture) DistributorOrder(distributor accountdomain.Account, product productdomain.Product, qty int64, day time.Time) distributororderdomain.DistributorOrder {
	f.t.Helper()
	order := distributororderdomain.DistributorOrder{
		ID:            f.GenID.Generate(),
		DistributorID: distributor.ID,
		ProductID:     product.ID,
		Quantity:      qty,
		TotalPrice:    qty * product.DistributorUnitPrice(),
		OrderDate:     day.UTC(),
		CreatedAt:     f.Now,
	}
	f.create(&order)
	return order
}

func (f *Fixture) Payment(account accountdomain.Account, amount int64) paymentdomain.Payment {
	f.t.Helper()
	payment := paymentdomain.Payment{
		ID:         f.GenID.Generate(),
		AccountID:  account.ID,
		Amount:     amount,
		RecordedAt: f.Now,
	}
	f.create(&payment)
	return payment
}

// Orders returns a customer's orders by delivery date.
func (f *Fixture) Orders(customerID snowflake.ID) []orderdomain.Order {
	f.t.Helper()
	var orders []orderdomain.Order
	if err := f.DB.Where("customer_id = ?", customerID).Order("delivery_date ASC").Find(&orders).Error; err != nil {
		f.t.Fatalf("list orders: %v", err)
	}
	return orders
}

func (f *Fixture) DistributorOrders(distributorID snowflake.ID) []distributororderdomain.DistributorOrder {
	f.t.Helper()
	var orders []distributororderdomain.DistributorOrder
	if err := f.DB.Where("distributor_id = ?", distributorID).Order("product_id ASC").Find(&orders).Error; err != nil {
		f.t.Fatalf("list distributor orders: %v", err)
	}
	return orders
}

func (f *Fixture) Bills(accountID snowflake.ID) []billdomain.Bill {
	f.t.Helper()
	var bills []billdomain.Bill
	if err := f.DB.Where("account_id = ?", accountID).Order("period_year ASC, period_month ASC").Find(&bills).Error; err != nil {
		f.t.Fatalf("list bills: %v", err)
	}
	return bills
}

func (f *Fixture) Count(model any) int64 {
	f.t.Helper()
	var count int64
	if err := f.DB.Model(model).Count(&count).Error; err != nil {
		f.t.Fatalf("count %T: %v", model, err)
	}
	return count
}
