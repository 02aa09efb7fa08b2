package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/mozilla-services/tiles-edge/internal/adm"
	"github.com/mozilla-services/tiles-edge/internal/cache"
	"github.com/mozilla-services/tiles-edge/internal/config"
	"github.com/mozilla-services/tiles-edge/internal/imagestore"
	logger "github.com/mozilla-services/tiles-edge/internal/telemetry/logging"
	metricsserver "github.com/mozilla-services/tiles-edge/internal/telemetry/metrics"
	"github.com/mozilla-services/tiles-edge/internal/telemetry/report"
	"github.com/mozilla-services/tiles-edge/internal/tiles"
	"github.com/mozilla-services/tiles-edge/internal/web"
)

func main() {
	configPath := flag.String("c", "configs/example/tiles-edge.yaml", "path to the tiles-edge configuration file")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("failed to create startup logger: %v", err)
	}
	initialLogger.Info("starting tiles-edge", zap.String("config_path", *configPath))

	cfg, err := config.Load(*configPath)
	if err != nil {
		initialLogger.Fatal("failed to load config", zap.Error(err))
	}

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()
	zapLogger := dynamicLogger.Logger

	ruleset := adm.NewRuleset()
	rulesetData, err := os.ReadFile(cfg.FilterRulesetPath)
	if err != nil {
		zapLogger.Fatal("failed to read filter ruleset", zap.Error(err))
	}
	if err := ruleset.Load(rulesetData); err != nil {
		zapLogger.Fatal("failed to load filter ruleset", zap.Error(err))
	}

	reporter, err := report.New(cfg.Report, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize telemetry reporter", zap.Error(err))
	}

	startedAt := time.Now()
	settings := adm.Settings{
		Endpoint:        cfg.Adm.Endpoint,
		PartnerID:       cfg.Adm.PartnerID,
		Sub1:            cfg.Adm.Sub1,
		Timeout:         cfg.Adm.Timeout,
		QueryTiles:      cfg.Adm.QueryTileCount,
		MaxTiles:        cfg.Adm.MaxTiles,
		FallbackCountry: cfg.FallbackCountry,
		ExcludedDMAs:    cfg.ExcludedDMASet(),
		TestMode:        adm.TestMode(cfg.Adm.TestMode),
		TestFilePath:    cfg.Adm.TestFilePath,
	}
	fetcher := adm.NewFetcher(settings, startedAt)
	validator := adm.NewValidator(ruleset, reporter)

	var store tiles.ImageStore
	if cfg.Image.Enabled {
		store = imagestore.New(cfg.Image.CDNBase, cfg.Image.Timeout)
	}

	audienceCache := cache.New(cfg.Cache.ShardCount)
	metrics := metricsserver.NewCollector()

	tileHandler := &web.TileHandler{
		Ruleset:              ruleset,
		Fetcher:              fetcher,
		Validator:            validator,
		Store:                store,
		ImageReporter:        reporter,
		EmptyReporter:        reporter,
		FetchReporter:        reporter,
		Locator:              web.NewHeaderLocator(),
		Cache:                audienceCache,
		Metrics:              metrics,
		Logger:               zapLogger,
		TTL:                  cfg.Cache.TTL,
		JitterPercent:        cfg.Cache.JitterPercent,
		MaxTiles:             cfg.Adm.MaxTiles,
		ExcludedCountries200: cfg.ExcludedCountries200,
	}

	server := web.NewServer(tileHandler, zapLogger)

	httpServer := &fasthttp.Server{
		Handler:                      server.HandleRequest,
		Name:                         "tiles-edge",
		ReadTimeout:                  cfg.Server.ReadTimeout,
		WriteTimeout:                 cfg.Server.WriteTimeout,
		IdleTimeout:                  60 * time.Second,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}

	go func() {
		zapLogger.Info("tile server listening", zap.String("listen", cfg.Server.Listen))
		if err := httpServer.ListenAndServe(cfg.Server.Listen); err != nil {
			zapLogger.Error("tile server stopped", zap.Error(err))
		}
	}()

	metricsServer, err := metricsserver.StartMetricsServer(
		cfg.Metrics.Enabled,
		cfg.Metrics.Listen,
		cfg.Metrics.Path,
		metrics,
		zapLogger,
	)
	if err != nil {
		zapLogger.Fatal("failed to start metrics server", zap.Error(err))
	}

	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	dynamicLogger.EnsureInfoLevelForShutdown()
	zapLogger.Info("shutting down tiles-edge")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.ShutdownWithContext(shutdownCtx); err != nil {
		zapLogger.Error("failed to shut down tile server gracefully", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			zapLogger.Error("failed to shut down metrics server gracefully", zap.Error(err))
		}
	}

	report.Flush(2 * time.Second)
	zapLogger.Info("tiles-edge stopped")
}
