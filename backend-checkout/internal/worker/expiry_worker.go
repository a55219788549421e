package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prohmpiriya/class-checkout/pkg/logger"
)

// Pruner drops checkouts whose retention has run out and reports how many
type Pruner interface {
	Prune() int
}

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// ScanInterval is the interval between sweeps of the checkout store
	ScanInterval time.Duration
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: time.Minute,
	}
}

// ExpiryWorker sweeps expired checkouts out of a store that has no native
// TTL. The Redis store expires keys itself and needs no worker.
type ExpiryWorker struct {
	store   Pruner
	config  *ExpiryWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalExpired     int64
	lastScanTime     time.Time
	lastExpiredCount int
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(store Pruner, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil || config.ScanInterval <= 0 {
		config = DefaultExpiryWorkerConfig()
	}

	return &ExpiryWorker{
		store:  store,
		config: config,
		log:    logger.Get(),
		stopCh: make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting checkout expiry worker", zap.Duration("interval", w.config.ScanInterval))

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the expiry worker and waits for the current sweep to finish
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Checkout expiry worker stopped")
}

func (w *ExpiryWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one pass over the store
func (w *ExpiryWorker) Sweep() int {
	removed := w.store.Prune()

	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.lastExpiredCount = removed
	w.totalExpired += int64(removed)
	w.mu.Unlock()

	if removed > 0 {
		w.log.Debug("pruned expired checkouts", zap.Int("count", removed))
	}
	return removed
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}

// ExpiryWorkerStats contains worker statistics
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}
