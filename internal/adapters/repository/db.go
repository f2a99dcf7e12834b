package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const slowQueryThreshold = 500 * time.Millisecond

// Open connects to driver/dsn with the service logger plugged into gorm.
func Open(driver, dsn string, l logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql":
		dialector = postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
	case DriverSQLite, "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if l == nil {
		l = logger.Nop()
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: &gormLog{l: l.Named("gorm"), level: gormlogger.Warn}})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if _, ok := dialector.(*sqlite.Dialector); ok {
		// SQLite allows one writer; a single connection also keeps
		// in-memory databases shared across calls.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates every table the stores use.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&transactionRow{},
		&employeeRow{},
		&recordRow{},
		&runRow{},
		&scheduleRow{},
		&scheduleEntryRow{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLog routes gorm's logging into the service logger.
type gormLog struct {
	l     logger.Logger
	level gormlogger.LogLevel
}

func (g *gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLog{l: g.l, level: level}
}

func (g *gormLog) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.l.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.l.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.l.Error(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		g.l.Error(ctx, "query failed",
			logger.String("sql", sql), logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed), logger.Error(err))
	case elapsed > slowQueryThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.l.Warn(ctx, "slow query",
			logger.String("sql", sql), logger.Int64("rows", rows), logger.Duration("elapsed", elapsed))
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.l.Debug(ctx, "query",
			logger.String("sql", sql), logger.Int64("rows", rows), logger.Duration("elapsed", elapsed))
	}
}
