package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/repository"
	"github.com/widjis/attend-now-report-view-sub001/internal/config"
	"github.com/widjis/attend-now-report-view-sub001/internal/seed"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		os.Stderr.WriteString("invalid timezone: " + err.Error() + "\n")
		os.Exit(1)
	}

	defaults := seed.Defaults(time.Now().In(loc).AddDate(0, 0, -7))
	var (
		driver      = flag.String("driver", cfg.Source.Driver, "Source database driver (sqlite, postgres)")
		dsn         = flag.String("dsn", cfg.Source.DSN, "Source database DSN")
		employees   = flag.Int("employees", defaults.Employees, "Number of employees to generate")
		from        = flag.String("from", defaults.From.Format("2006-01-02"), "First work date (YYYY-MM-DD)")
		days        = flag.Int("days", defaults.Days, "Number of work dates")
		controllers = flag.String("controllers", strings.Join(defaults.Controllers, ","), "Comma separated door controllers")
		missing     = flag.Float64("missing", defaults.MissingRate, "Share of shifts without a clock-out")
		duplicates  = flag.Float64("duplicates", defaults.DuplicateRate, "Share of clock-ins read twice")
		stray       = flag.Float64("stray", defaults.StrayRate, "Share of shifts with an out-of-range read")
		seedValue   = flag.Uint64("seed", defaults.Seed, "Random seed")
		output      = flag.String("output", "", "Also write the generated punches to this JSON file")
		migrate     = flag.Bool("migrate", true, "Create missing tables first")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start, err := time.ParseInLocation("2006-01-02", *from, loc)
	if err != nil {
		log.Error(ctx, "invalid -from", logger.Error(err))
		os.Exit(2)
	}

	db, err := repository.Open(*driver, *dsn, log)
	if err != nil {
		log.Error(ctx, "open source database", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = repository.Close(db) }()
	if *migrate {
		if err := repository.Migrate(db); err != nil {
			log.Error(ctx, "migrate source database", logger.Error(err))
			return
		}
	}

	sc := seed.Config{
		Employees:     *employees,
		From:          start,
		Days:          *days,
		Location:      loc,
		Controllers:   strings.Split(*controllers, ","),
		MissingRate:   *missing,
		DuplicateRate: *duplicates,
		StrayRate:     *stray,
		Seed:          *seedValue,
		BatchSize:     cfg.Sync.BatchSize,
		OutputFile:    *output,
	}
	store := repository.NewSQLStore(db, repository.WithName(cfg.Source.Name), repository.WithLocation(loc), repository.WithLogger(log))
	stats, err := seed.Run(ctx, sc, store)
	if err != nil {
		log.Error(ctx, "seeding failed", logger.Error(err))
		return
	}
	log.Info(ctx, "seeded source database",
		logger.String("driver", *driver),
		logger.Int("employees", stats.Employees),
		logger.Int("transactions", stats.Transactions),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("missing", stats.Missing),
		logger.Int("stray", stats.Stray),
	)
}
