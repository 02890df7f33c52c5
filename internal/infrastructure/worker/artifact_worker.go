package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/application/port"
	"github.com/procure2pay/server/internal/domain/entity"
)

// ArtifactWorkerConfig holds configuration for the artifact worker
type ArtifactWorkerConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	RenderTimeout time.Duration
}

// DefaultArtifactWorkerConfig returns default configuration
func DefaultArtifactWorkerConfig() ArtifactWorkerConfig {
	return ArtifactWorkerConfig{
		PollInterval:  10 * time.Second,
		BatchSize:     5,
		RenderTimeout: 30 * time.Second,
	}
}

// ArtifactWorker renders purchase order workbooks in the background.
// Rendering is best-effort at approval time; this worker picks up orders
// whose artifact is still missing and retries them.
type ArtifactWorker struct {
	config ArtifactWorkerConfig

	orders   port.PurchaseOrderRepository
	renderer port.ArtifactRenderer
	storage  port.FileStorage
	logger   *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	processedCount int
	failedCount    int
}

// NewArtifactWorker creates a new artifact worker
func NewArtifactWorker(
	config ArtifactWorkerConfig,
	orders port.PurchaseOrderRepository,
	renderer port.ArtifactRenderer,
	storage port.FileStorage,
	logger *zap.Logger,
) *ArtifactWorker {
	return &ArtifactWorker{
		config:   config,
		orders:   orders,
		renderer: renderer,
		storage:  storage,
		logger:   logger,
	}
}

// Start begins the worker polling loop
func (w *ArtifactWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("artifact worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("ArtifactWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop()

	return nil
}

// Stop gracefully terminates the worker
func (w *ArtifactWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("ArtifactWorker stopped",
		zap.Int("processed_count", w.processedCount),
		zap.Int("failed_count", w.failedCount))

	return nil
}

// Name returns the worker name for identification
func (w *ArtifactWorker) Name() string {
	return "ArtifactWorker"
}

// pollLoop runs the main polling loop in background
func (w *ArtifactWorker) pollLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			if err := w.processPendingArtifacts(); err != nil {
				w.logger.Error("Failed to process pending artifacts", zap.Error(err))
			}
		}
	}
}

// processPendingArtifacts renders one batch of missing workbooks
func (w *ArtifactWorker) processPendingArtifacts() error {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	orders, err := w.orders.ListMissingArtifacts(ctx, w.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list orders missing artifacts: %w", err)
	}

	if len(orders) == 0 {
		return nil
	}

	w.logger.Debug("Rendering pending artifacts", zap.Int("count", len(orders)))

	for _, po := range orders {
		if err := w.renderArtifact(ctx, po); err != nil {
			w.logger.Warn("Failed to render artifact",
				zap.String("po_number", po.PONumber),
				zap.Error(err))

			w.mu.Lock()
			w.failedCount++
			w.mu.Unlock()
		} else {
			w.mu.Lock()
			w.processedCount++
			w.mu.Unlock()
		}
	}

	return nil
}

// renderArtifact renders and stores a single workbook
func (w *ArtifactWorker) renderArtifact(ctx context.Context, po *entity.PurchaseOrder) error {
	renderCtx, cancel := context.WithTimeout(ctx, w.config.RenderTimeout)
	defer cancel()

	data, err := w.renderer.Render(po)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	path := fmt.Sprintf("purchase_orders/%s.xlsx", po.PONumber)
	if err := w.storage.Save(renderCtx, path, data); err != nil {
		return fmt.Errorf("storage failed: %w", err)
	}

	if err := w.orders.SetArtifactPath(ctx, po.ID, path); err != nil {
		return err
	}

	w.logger.Info("Artifact rendered",
		zap.String("po_number", po.PONumber),
		zap.String("path", path))

	return nil
}
