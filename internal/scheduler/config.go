package scheduler

import (
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/dairy/internal/config"
)

const (
	JobDistributorOrders = "distributor_orders"
	JobRecurringOrders   = "recurring_orders"
	JobMonthlyBills      = "monthly_bills"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_scheduler_job")
)

// JobNames lists the jobs in the order a tick runs them.
func JobNames() []string {
	return []string{JobDistributorOrders, JobRecurringOrders, JobMonthlyBills}
}

func isJobEnabled(cfg config.ScheduleConfig, jobName string) bool {
	// An empty list enables every job.
	if len(cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

func monthKey(job string, d time.Time) string {
	return job + ":" + d.Format("2006-01")
}

func dayKey(job string, d time.Time) string {
	return job + ":" + d.Format(time.DateOnly)
}
