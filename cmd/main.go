package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/config"
	"github.com/societyops/ledger/internal/httpapi"
	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/service/account"
	"github.com/societyops/ledger/internal/service/billing"
	"github.com/societyops/ledger/internal/service/journal"
	"github.com/societyops/ledger/internal/service/posting"
	"github.com/societyops/ledger/internal/service/reports"
	"github.com/societyops/ledger/internal/storage/memory"
	pgstore "github.com/societyops/ledger/internal/storage/postgres"
)

// store is the storage surface the services are wired against. Both the
// memory and postgres backends satisfy it.
type store interface {
	journal.Repo
	journal.Writer
	account.Writer
	billing.UnitReader
	posting.BillStore
	Ready(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	var st store
	var closeFn func()
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		if cfg.DevSeed {
			units, err := pg.SeedDev(ctx)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logger.Info("dev seed applied", "backend", "postgres", "units", len(units))
			}
		}
		st = pg
		logger.Info("storage backend: postgres")
	} else {
		mem := memory.New()
		if cfg.DevSeed {
			seedDevUnits(mem, logger)
		}
		st = mem
		logger.Info("storage backend: memory")
	}

	accountSvc := account.New(st, st)
	if err := accountSvc.EnsureChart(ctx); err != nil {
		logger.Error("chart seed failed", "err", err)
		os.Exit(1)
	}

	billingCfg, err := cfg.BillingDefaults()
	if err != nil {
		logger.Error("billing config invalid", "err", err)
		os.Exit(1)
	}

	ledgerSvc := journal.New(st, st)
	billingSvc := billing.New(st, ledgerSvc, billingCfg, logger)
	workflow := posting.New(st, ledgerSvc, billingSvc, logger)
	reportSvc := reports.New(st, st)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.New(httpapi.Options{
			Ledger:    ledgerSvc,
			Accounts:  accountSvc,
			Workflow:  workflow,
			Reports:   reportSvc,
			Ready:     func() error { return st.Ready(context.Background()) },
			Logger:    logger,
			RateLimit: cfg.RateLimit,
		}).Handler(),
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("society ledger listening", "addr", srv.Addr, "currency", cfg.Currency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// seedDevUnits loads a few flats for local runs against the memory store.
func seedDevUnits(mem *memory.Store, l *slog.Logger) {
	units := []ledger.Unit{
		{ID: uuid.New(), FlatNumber: "A-101", AreaSqft: decimal.NewFromInt(1000), Occupants: 4, OwnerName: "R. Sharma"},
		{ID: uuid.New(), FlatNumber: "A-102", AreaSqft: decimal.NewFromInt(850), Occupants: 2, OwnerName: "S. Iyer"},
		{ID: uuid.New(), FlatNumber: "B-201", AreaSqft: decimal.NewFromInt(1200), Occupants: 0, OwnerName: "K. Patel"},
	}
	for _, u := range units {
		mem.SeedUnit(u)
	}
	l.Info("dev seed applied", "backend", "memory", "units", len(units))
}

func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
