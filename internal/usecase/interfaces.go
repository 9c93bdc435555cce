package usecase

import (
	"context"

	"github.com/xavierca1/leadboard/internal/entity"
)

type LeadGateway interface {
	GetLead(ctx context.Context, id string) (*entity.Lead, error)
	CreateLead(ctx context.Context, lead *entity.Lead) (*entity.Lead, error)
	UpdateLead(ctx context.Context, lead *entity.Lead) (*entity.Lead, error)
	DeleteLead(ctx context.Context, id string) error
}

type StageGateway interface {
	ListStages(ctx context.Context, filter entity.StageFilter) ([]entity.Stage, error)
	CreateStage(ctx context.Context, stage *entity.Stage) (*entity.Stage, error)
	UpdateStage(ctx context.Context, stage *entity.Stage) (*entity.Stage, error)
	DeleteStage(ctx context.Context, id string) error
}

// BoardRefresher reloads a pipeline's board after a form changed its data.
type BoardRefresher interface {
	RefreshPipeline(ctx context.Context, pipelineID string) error
}
