package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/entity"
)

type PipelineLister interface {
	ListPipelines(ctx context.Context) ([]entity.Pipeline, error)
}

type PipelineHandler struct {
	Pipelines PipelineLister
	Logger    *zap.Logger
}

func NewPipelineHandler(pipelines PipelineLister, logger *zap.Logger) *PipelineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineHandler{Pipelines: pipelines, Logger: logger}
}

// HandleList (GET /pipelines) feeds the board picker.
func (h *PipelineHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.Pipelines.ListPipelines(r.Context())
	if err != nil {
		h.Logger.Warn("list pipelines", zap.Error(err))
		writeError(w, err)
		return
	}
	if pipelines == nil {
		pipelines = []entity.Pipeline{}
	}
	writeData(w, http.StatusOK, pipelines, "")
}
