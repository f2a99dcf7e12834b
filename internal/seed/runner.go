package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

const outputFilePermission = 0o600

// Writer is the source store the punches are written to.
type Writer interface {
	PutEmployee(ctx context.Context, e model.Employee, a *model.ShiftAssignment) error
	AddTransactions(ctx context.Context, txns ...model.RawTransaction) ([]int64, error)
}

// Run generates a data set and writes it to w in batches.
func Run(ctx context.Context, cfg Config, w Writer) (Stats, error) {
	start := time.Now()
	log := logger.Get().Named("seed")

	data, stats, err := Generate(cfg)
	if err != nil {
		return Stats{}, err
	}
	log.Info(ctx, "generated punches",
		logger.Int("employees", stats.Employees),
		logger.Int("transactions", stats.Transactions),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("missing", stats.Missing),
	)

	for _, e := range data.Employees {
		if err := w.PutEmployee(ctx, e.Employee, &model.ShiftAssignment{StaffNo: e.StaffNo, Type: e.Schedule}); err != nil {
			return stats, fmt.Errorf("employee %s: %w", e.StaffNo, err)
		}
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = len(data.Transactions)
	}
	for lo := 0; lo < len(data.Transactions); lo += batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		hi := min(lo+batch, len(data.Transactions))
		if _, err := w.AddTransactions(ctx, data.Transactions[lo:hi]...); err != nil {
			return stats, fmt.Errorf("transactions %d-%d: %w", lo, hi, err)
		}
		log.Debug(ctx, "batch written", logger.Int("from", lo), logger.Int("to", hi))
	}

	if cfg.OutputFile != "" {
		if err := writeJSON(cfg.OutputFile, data); err != nil {
			return stats, err
		}
		log.Info(ctx, "punches saved", logger.String("file", cfg.OutputFile))
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "seeding completed", logger.Duration("duration", stats.Duration))
	return stats, nil
}

func writeJSON(path string, data Data) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal punches: %w", err)
	}
	if err := os.WriteFile(path, b, outputFilePermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
