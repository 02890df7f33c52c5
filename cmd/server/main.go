package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/application/service"
	"github.com/procure2pay/server/internal/approval"
	"github.com/procure2pay/server/internal/config"
	"github.com/procure2pay/server/internal/extraction"
	"github.com/procure2pay/server/internal/infrastructure/persistence/repository"
	"github.com/procure2pay/server/internal/infrastructure/persistence/sqlite"
	"github.com/procure2pay/server/internal/infrastructure/storage"
	"github.com/procure2pay/server/internal/infrastructure/worker"
	httpserver "github.com/procure2pay/server/internal/interfaces/http"
	"github.com/procure2pay/server/internal/purchaseorder"
	"github.com/procure2pay/server/internal/validation"
	"github.com/procure2pay/server/pkg/database"
	"github.com/procure2pay/server/pkg/utils"
)

func main() {
	// Local overrides from .env, ignored when absent
	_ = gotenv.Load()

	cfg, err := config.Load(configPath())
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

	logger.Info("Starting procurement approval service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
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

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db.DB, logger)

	// Initialize repositories
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	lineItemRepo := repository.NewLineItemRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)
	orderRepo := repository.NewPurchaseOrderRepository(db.DB, logger)
	receiptRepo := repository.NewReceiptRepository(db.DB, logger)
	reportRepo := repository.NewValidationReportRepository(db.DB, logger)

	// Document storage
	fileStorage := storage.NewLocalFileStorage(cfg.Storage.BaseDir, logger)

	// Extraction chain: PDF text, then AI when configured, then patterns
	textReader := extraction.NewFitzTextReader(logger)
	var extractor *extraction.ChainExtractor
	if cfg.OpenAI.APIKey != "" {
		ai := extraction.NewOpenAIExtractor(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.Temperature,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Timeout,
			logger,
		)
		extractor = extraction.NewChainExtractor(textReader, ai, logger)
	} else {
		logger.Warn("OpenAI API key not configured, extraction uses pattern matching only")
		extractor = extraction.NewChainExtractor(textReader, nil, logger)
	}

	// Validation engine
	engine := validation.NewEngine(validation.Config{
		AmountTolerance:  cfg.Validation.AmountTolerance,
		FuzzyVendor:      cfg.Validation.FuzzyVendor,
		VendorSimilarity: cfg.Validation.VendorSimilarity,
		DateCheck:        cfg.Validation.DateCheck,
		DateGrace:        cfg.Validation.DateGrace,
	}, logger)

	// Purchase order generation
	generator := purchaseorder.NewGenerator(logger)
	renderer := purchaseorder.NewExcelRenderer(logger)

	// Application services
	requestService := service.NewRequestService(
		requestRepo,
		lineItemRepo,
		approvalRepo,
		orderRepo,
		txManager,
		approval.NewThresholdResolver(cfg.Approval.ThresholdCents),
		generator,
		extractor,
		renderer,
		fileStorage,
		logger,
	)
	receiptService := service.NewReceiptService(
		requestRepo,
		orderRepo,
		receiptRepo,
		reportRepo,
		txManager,
		extractor,
		engine,
		fileStorage,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers
	workers := worker.NewManager(logger)
	workers.Register(worker.NewArtifactWorker(
		worker.DefaultArtifactWorkerConfig(),
		orderRepo,
		renderer,
		fileStorage,
		logger,
	))
	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	defer workers.StopAll()

	// HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, requestService, receiptService, &sugaredLogger{logger.Sugar()})

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	logger.Info("Server exited")
}

// sugaredLogger adapts zap's sugared logger to the HTTP server's Logger interface.
type sugaredLogger struct {
	*zap.SugaredLogger
}

func (l *sugaredLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

func (l *sugaredLogger) Error(msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, keysAndValues...)
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/config.yaml"
}
