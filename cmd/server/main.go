package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/billing"
	"github.com/dmorneau/ledgerbook/internal/config"
	"github.com/dmorneau/ledgerbook/internal/currency"
	"github.com/dmorneau/ledgerbook/internal/export"
	openaiext "github.com/dmorneau/ledgerbook/internal/infrastructure/external/openai"
	"github.com/dmorneau/ledgerbook/internal/infrastructure/persistence/sqlite"
	"github.com/dmorneau/ledgerbook/internal/ingest"
	"github.com/dmorneau/ledgerbook/internal/interfaces/http"
	"github.com/dmorneau/ledgerbook/internal/ledger"
	"github.com/dmorneau/ledgerbook/internal/reports"
	"github.com/dmorneau/ledgerbook/internal/worker"
	"github.com/dmorneau/ledgerbook/pkg/database"
	"github.com/dmorneau/ledgerbook/pkg/utils"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Ledgerbook",
		zap.Int("port", cfg.Server.Port),
		zap.String("db", cfg.Database.Path))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	kv, err := sqlite.NewKV(db, logger)
	if err != nil {
		logger.Fatal("Failed to initialize persistence", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	converter := currency.NewConverter(currency.DefaultRates())

	store, err := ledger.Open(ctx, kv, converter, logger)
	if err != nil {
		logger.Fatal("Failed to open ledger store", zap.Error(err))
	}

	engine := billing.NewEngine(converter)
	reporter := reports.NewService(store, engine)
	excel := export.NewExcelWriter(logger)

	extractor := openaiext.NewExtractor(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.Temperature,
		logger,
	)
	importer := ingest.NewImporter(store, extractor, logger)

	manager := worker.NewManager(logger)
	if cfg.Scan.Enabled {
		manager.Register(ingest.NewScanner(
			store,
			importer,
			logger,
			cfg.Scan.Dirs,
			cfg.Scan.Interval,
			cfg.Scan.FileDelay,
		))
	}

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	server := http.NewServer(http.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, store, engine, reporter, importer, excel, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	cancel()
	manager.StopAll()

	logger.Info("Ledgerbook stopped")
}
