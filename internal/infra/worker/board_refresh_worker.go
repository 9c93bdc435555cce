package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/infra/cache"
)

type tagInvalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

type boardRefresher interface {
	RefreshAll(ctx context.Context) error
}

// BoardRefreshWorker drops cached CRM data on a fixed interval and reloads
// every board that has been opened, picking up changes made outside this
// service.
type BoardRefreshWorker struct {
	cache        tagInvalidator
	boards       boardRefresher
	tickInterval time.Duration
	logger       *zap.Logger
}

func NewBoardRefreshWorker(c tagInvalidator, boards boardRefresher, interval time.Duration, logger *zap.Logger) *BoardRefreshWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardRefreshWorker{
		cache:        c,
		boards:       boards,
		tickInterval: interval,
		logger:       logger,
	}
}

func (w *BoardRefreshWorker) Start(ctx context.Context) {
	if w.tickInterval <= 0 {
		return
	}
	w.logger.Info("board refresh worker started", zap.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("board refresh worker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *BoardRefreshWorker) refresh(ctx context.Context) {
	start := time.Now()
	if err := w.cache.Invalidate(ctx, cache.TagLead, cache.TagLeadStage); err != nil {
		w.logger.Warn("invalidate board cache", zap.Error(err))
	}
	if err := w.boards.RefreshAll(ctx); err != nil {
		w.logger.Warn("refresh boards", zap.Error(err))
		return
	}
	w.logger.Debug("boards refreshed", zap.Duration("elapsed", time.Since(start)))
}
