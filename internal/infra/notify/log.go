package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/board"
)

// LogNotifier writes every notification to the service log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n board.Notification) {
	fields := []zap.Field{
		zap.String("pipeline", n.PipelineID),
		zap.String("lead", n.LeadID),
		zap.String("message", n.Message),
	}
	if n.Level == board.LevelError {
		l.Logger.Warn("board notification", fields...)
		return
	}
	l.Logger.Info("board notification", fields...)
}
