package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dairy/internal/account"
	"github.com/smallbiznis/dairy/internal/bill"
	"github.com/smallbiznis/dairy/internal/billing"
	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/smallbiznis/dairy/internal/config"
	"github.com/smallbiznis/dairy/internal/distribution"
	"github.com/smallbiznis/dairy/internal/distributororder"
	"github.com/smallbiznis/dairy/internal/idempotency"
	"github.com/smallbiznis/dairy/internal/migration"
	"github.com/smallbiznis/dairy/internal/observability"
	"github.com/smallbiznis/dairy/internal/order"
	"github.com/smallbiznis/dairy/internal/payment"
	"github.com/smallbiznis/dairy/internal/product"
	"github.com/smallbiznis/dairy/internal/providers"
	"github.com/smallbiznis/dairy/internal/recurring"
	"github.com/smallbiznis/dairy/internal/redis"
	"github.com/smallbiznis/dairy/internal/scheduler"
	"github.com/smallbiznis/dairy/internal/server"
	"github.com/smallbiznis/dairy/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "dairy",
		Short:   "Dairy subscription batch engine",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newSchedulerCmd(), newRunCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the batch scheduler and the ops server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one batch job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: scheduler.JobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if the job already ran for its period")
	return cmd
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Apply migrations, then start the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runScheduler()
			return nil
		},
	}
}

// domain wires everything the batch jobs need.
func domain() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		idempotency.Module,

		account.Module,
		product.Module,
		order.Module,
		distributororder.Module,
		payment.Module,
		bill.Module,

		recurring.Module,
		distribution.Module,
		billing.Module,
		providers.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runScheduler() {
	app := fx.New(
		domain(),
		scheduler.Daemon,
		server.Module,
	)
	app.Run()
}

func runJob(ctx context.Context, name string, force bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var sched *scheduler.Scheduler
	app := fx.New(
		domain(),
		scheduler.Module,
		fx.Populate(&sched),
	)

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	return sched.RunJob(ctx, name, force)
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
