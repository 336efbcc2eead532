package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/mise-erp/mise-erp/internal/app"
	"github.com/mise-erp/mise-erp/internal/catalog"
	"github.com/mise-erp/mise-erp/internal/finance"
	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/platform/cache"
	"github.com/mise-erp/mise-erp/internal/platform/db"
	"github.com/mise-erp/mise-erp/internal/procurement"
	"github.com/mise-erp/mise-erp/internal/production"
	"github.com/mise-erp/mise-erp/internal/sales"
	"github.com/mise-erp/mise-erp/internal/sequence"
	"github.com/mise-erp/mise-erp/internal/shared"
	"github.com/mise-erp/mise-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	audit := shared.NewAuditLogger(pool)
	codes := sequence.NewGenerator(redisClient)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), audit)
	catalogService := catalog.NewService(catalog.NewRepository(pool), audit)
	financeService := finance.NewService(finance.NewRepository(pool), audit)
	procurementService := procurement.NewService(logger, procurement.NewRepository(pool), codes, financeService, jobsClient, audit)
	salesService := sales.NewService(logger, sales.NewRepository(pool), codes, financeService, jobsClient, audit)
	productionService := production.NewService(logger, production.NewRepository(pool), codes, jobsClient, audit)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		LedgerHandler:      ledger.NewHandler(logger, ledgerService),
		CatalogHandler:     catalog.NewHandler(logger, catalogService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		SalesHandler:       sales.NewHandler(logger, salesService),
		ProductionHandler:  production.NewHandler(logger, productionService),
		FinanceHandler:     finance.NewHandler(logger, financeService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
