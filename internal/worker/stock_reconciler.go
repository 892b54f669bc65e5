package worker

import (
	"context"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"go.uber.org/zap"
)

// Reconciler is the single pass the poller repeats.
type Reconciler interface {
	RunOnce(ctx context.Context) (usecase.ReconcileReport, error)
}

// StockPoller re-drives pending stock decrements on a fixed tick.
type StockPoller struct {
	rec      Reconciler
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewStockPoller(rec Reconciler, interval time.Duration, log *zap.Logger) *StockPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StockPoller{rec: rec, interval: interval, timeout: interval, log: log}
}

// Run blocks until ctx is done.
func (p *StockPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *StockPoller) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rep, err := p.rec.RunOnce(ctx)
	if err != nil {
		p.log.Warn("stock reconcile pass failed", zap.Error(err))
		return
	}
	if rep.Applied+rep.Short+rep.Failed == 0 {
		return
	}
	p.log.Info("stock reconcile pass",
		zap.Int("applied", rep.Applied),
		zap.Int("short", rep.Short),
		zap.Int("failed", rep.Failed),
	)
}
