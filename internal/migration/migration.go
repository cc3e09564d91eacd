package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	billdomain "github.com/smallbiznis/dairy/internal/bill/domain"
	distributororderdomain "github.com/smallbiznis/dairy/internal/distributororder/domain"
	orderdomain "github.com/smallbiznis/dairy/internal/order/domain"
	paymentdomain "github.com/smallbiznis/dairy/internal/payment/domain"
	productdomain "github.com/smallbiznis/dairy/internal/product/domain"
	recurringdomain "github.com/smallbiznis/dairy/internal/recurring/domain"
	"gorm.io/gorm"
)

// Models lists every table the jobs touch, in dependency order.
func Models() []any {
	return []any{
		&accountdomain.Account{},
		&accountdomain.BankDetails{},
		&productdomain.Product{},
		&recurringdomain.Template{},
		&orderdomain.Order{},
		&distributororderdomain.DistributorOrder{},
		&billdomain.Bill{},
		&paymentdomain.Payment{},
	}
}

// Apply brings the schema up to date. Postgres runs the embedded SQL
// migrations; the other dialects fall back to gorm's AutoMigrate.
func Apply(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
