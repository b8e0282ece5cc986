package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/zap"
)

// SweepWorker periodically removes expired entries from a Sweeper.
type SweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *logging.Service

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweepWorker(sweeper Sweeper, interval time.Duration, logger *logging.Service) *SweepWorker {
	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

func (w *SweepWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx, w.done)

	w.logger.Info("started sweep worker", zap.Duration("interval", w.interval))
}

func (w *SweepWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Stop cancels the worker and waits for the current sweep to finish.
func (w *SweepWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
