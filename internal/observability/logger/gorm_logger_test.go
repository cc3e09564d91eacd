package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/dairy/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(cfg GormLoggerConfig) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), cfg), logs
}

func TestGormLoggerTagsQueriesWithJobRun(t *testing.T) {
	l, logs := newObservedGormLogger(GormLoggerConfig{Level: gormlogger.Info})

	ctx := WithJob(context.Background(), "recurring_orders", "run-42")
	ctx = correlation.ContextWithCorrelationID(ctx, "corr-7")
	l.Trace(ctx, time.Now(), func() (string, int64) {
		return `INSERT INTO "orders" ("id","customer_id") VALUES (?,?)`, 31
	}, nil)

	entries := logs.FilterMessage("gorm.query").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "recurring_orders", fields["job"])
	assert.Equal(t, "run-42", fields["run_id"])
	assert.Equal(t, "corr-7", fields["correlation_id"])
	assert.Equal(t, "INSERT", fields["operation"])
	assert.Equal(t, "orders", fields["table"])
	assert.Equal(t, int64(31), fields["rows_affected"])
}

func TestGormLoggerLevels(t *testing.T) {
	l, logs := newObservedGormLogger(GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        10 * time.Millisecond,
		IgnoreRecordNotFound: true,
	})
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT * FROM accounts WHERE id = ? FOR UPDATE", 1 }

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Zero(t, logs.Len(), "fast queries stay quiet below info")

	l.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len(), "record not found is ignored")

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	l.Trace(ctx, time.Now(), sql, errors.New("connection reset"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, int64(10), entries[0].ContextMap()["slow_threshold_ms"])
	assert.Equal(t, "SELECT", entries[0].ContextMap()["operation"])
	assert.Equal(t, "accounts", entries[0].ContextMap()["table"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "connection reset", entries[1].ContextMap()["error"])

	silent, silentLogs := newObservedGormLogger(GormLoggerConfig{Level: gormlogger.Silent})
	silent.Trace(ctx, time.Now(), sql, errors.New("boom"))
	silent.Error(ctx, "dropped %s", "event")
	assert.Zero(t, silentLogs.Len())
}

func TestGormLoggerEvents(t *testing.T) {
	l, logs := newObservedGormLogger(GormLoggerConfig{Level: gormlogger.Warn})

	l.Info(context.Background(), "ignored %d", 1)
	l.Warn(context.Background(), "pool %s", "saturated")

	entries := logs.FilterMessage("gorm.event").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "pool saturated", entries[0].ContextMap()["message"])
	assert.Equal(t, "gorm", entries[0].ContextMap()["component"])
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseGormLevel("off"))
	assert.Equal(t, gormlogger.Error, ParseGormLevel("ERROR"))
	assert.Equal(t, gormlogger.Info, ParseGormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel(""))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel("verbose"))
}

func TestStatementTarget(t *testing.T) {
	tests := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT p.id FROM orders o JOIN products p ON p.id = o.product_id`, "SELECT", "orders"},
		{`UPDATE accounts SET is_paused = ? WHERE id = ?`, "UPDATE", "accounts"},
		{`DELETE FROM "bills" WHERE id = ?`, "DELETE", "bills"},
		{`WITH due AS (SELECT id FROM bills) SELECT * FROM due`, "SELECT", "bills"},
		{`VACUUM`, "UNKNOWN", ""},
	}
	for _, tt := range tests {
		operation, table := statementTarget(tt.sql)
		assert.Equal(t, tt.operation, operation, tt.sql)
		assert.Equal(t, tt.table, table, tt.sql)
	}
}
