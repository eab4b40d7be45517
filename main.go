package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fundingflow/config"
	"fundingflow/internal/aggregator"
	"fundingflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithEnv("APP_ENV").WithFields(logger.Fields{
		"service": cfg.Fundingflow.Name,
		"version": cfg.Fundingflow.Version,
	}).Info("starting fundingflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(
			cfg.Metrics.CloudWatch.Region,
			cfg.Metrics.CloudWatch.Namespace,
			cfg.Metrics.CloudWatch.Dashboard,
		)
		logger.CreateDefaultDashboard(ctx)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		reportInterval := cfg.Metrics.ReportInterval
		if reportInterval <= 0 {
			reportInterval = 30 * time.Second
		}
		logger.StartReport(ctx, log, reportInterval)
	}

	agg, err := aggregator.New(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to build aggregator")
		os.Exit(1)
	}

	if err := agg.Start(ctx); err != nil {
		log.WithError(err).Error("Failed to start aggregator")
		os.Exit(1)
	}
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		agg.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("fundingflow stopped")
}
