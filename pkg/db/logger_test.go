package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func observed(level logger.LogLevel, showSQL bool) (*ZapGormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewZapGormLogger(zap.New(core), level, showSQL, 0), logs
}

func query(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestTraceSkipsRecordNotFound(t *testing.T) {
	l, logs := observed(logger.Warn, false)
	ctx := context.Background()

	l.Trace(ctx, time.Now(), query("SELECT 1"), logger.ErrRecordNotFound)
	require.Zero(t, logs.Len())

	l.Trace(ctx, time.Now(), query("SELECT 1"), errors.New("deadlock"))
	require.Equal(t, 1, logs.FilterMessage("gorm.query").Len())
}

func TestTraceFlagsSlowQueries(t *testing.T) {
	l, logs := observed(logger.Warn, false)
	require.Equal(t, defaultSlowThreshold, l.SlowThreshold)

	l.Trace(context.Background(), time.Now().Add(-time.Second), query("UPDATE prizes"), nil)
	require.Equal(t, 1, logs.FilterMessage("gorm.slow_query").Len())
}

func TestTraceShowsSQLOnlyAtInfo(t *testing.T) {
	l, logs := observed(logger.Warn, true)
	l.Trace(context.Background(), time.Now(), query("SELECT 1"), nil)
	require.Zero(t, logs.Len())

	l.LogMode(logger.Info).Trace(context.Background(), time.Now(), query("SELECT 1"), nil)
	require.Equal(t, 1, logs.FilterMessage("gorm.query").Len())

	l.LogMode(logger.Silent).Trace(context.Background(), time.Now(), query("SELECT 1"), errors.New("x"))
	require.Equal(t, 1, logs.Len())
}
