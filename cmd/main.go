// Command coinfolio replays an exchange account's parsed activity history,
// prints a portfolio summary and serves the valuation API.
//
// Usage:
//
//	coinfolio --config config.yaml
//	coinfolio --events events.json --base USD --ratesurl http://localhost:7878
//	coinfolio setup (interactive config wizard)
//
// No exchange API keys are required: the live rate fallbacks use public
// market endpoints.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/coinfolio/config"
	"github.com/vadiminshakov/coinfolio/internal"
	"github.com/vadiminshakov/coinfolio/internal/setup"
	"github.com/vadiminshakov/coinfolio/internal/web"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	records, err := internal.LoadActivity(cfg.EventsFile)
	if err != nil {
		logger.Fatal("failed to load activity records", zap.Error(err))
	}

	engine, err := internal.NewEngine(cfg, records, logger)
	if err != nil {
		logger.Fatal("failed to build valuation engine", zap.Error(err))
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("failed to close engine", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	total, _, err := engine.CurrentValue(ctx)
	if err != nil {
		logger.Warn("failed to value current holdings", zap.Error(err))
	} else {
		logger.Info("current portfolio value",
			zap.String("value", total.StringFixed(2)),
			zap.String("currency", cfg.BaseCurrency))
	}

	server := web.NewServer(cfg.ListenAddr, engine, logger)
	if cfg.Domain != "" {
		err = server.StartWithAutoTLS(ctx, cfg.Domain, "")
	} else {
		err = server.Start(ctx)
	}
	if err != nil {
		logger.Fatal("portfolio API server failed", zap.Error(err))
	}
}
