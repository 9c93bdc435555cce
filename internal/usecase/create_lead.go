package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/entity"
)

type CreateLeadUseCase struct {
	Leads  LeadGateway
	Stages StageGateway
	Boards BoardRefresher
	Logger *zap.Logger
}

func NewCreateLeadUseCase(leads LeadGateway, stages StageGateway, boards BoardRefresher, logger *zap.Logger) *CreateLeadUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateLeadUseCase{Leads: leads, Stages: stages, Boards: boards, Logger: logger}
}

func (uc *CreateLeadUseCase) Execute(ctx context.Context, input CreateLeadInput) (*LeadOutput, error) {
	errs := validateStruct(input)
	value, verr := parseAmount("leadValue", input.LeadValue)
	if verr != nil {
		errs = append(errs, *verr)
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	stageID, err := uc.resolveStage(ctx, input.PipelineID, input.LeadStage)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &entity.Lead{
		Title:      strings.TrimSpace(input.Title),
		PipelineID: input.PipelineID,
		LeadStage:  stageID,
		Interest:   entity.Interest(input.Interest),
		LeadValue:  value,
		CurrencyID: input.CurrencyID,
		SourceID:   input.SourceID,
		StatusID:   input.StatusID,
		CategoryID: input.CategoryID,
		Email:      strings.TrimSpace(input.Email),
		Members:    entity.MemberSet(input.Members),
		UpdatedBy:  input.ActorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := uc.Leads.CreateLead(ctx, lead)
	if err != nil {
		return nil, remoteError("failed to create lead", err)
	}

	uc.Logger.Info("lead created",
		zap.String("lead", created.ID),
		zap.String("pipeline", created.PipelineID),
		zap.String("stage", created.LeadStage))
	refreshBoard(ctx, uc.Boards, uc.Logger, created.PipelineID)

	return &LeadOutput{Lead: created, Msg: "Lead created successfully"}, nil
}

// resolveStage checks an explicit stage or picks the pipeline's default stage,
// falling back to the first stage in natural order.
func (uc *CreateLeadUseCase) resolveStage(ctx context.Context, pipelineID, stageID string) (string, error) {
	stages, err := uc.Stages.ListStages(ctx, entity.StageFilter{StageType: entity.StageTypeLead, PipelineID: pipelineID})
	if err != nil {
		return "", remoteError("failed to load stages", err)
	}
	stages = pipelineStages(stages, pipelineID)

	if stageID != "" {
		if _, ok := entity.FindStage(stages, stageID); !ok {
			return "", &DomainError{
				Code:    CodeStageNotFound,
				Message: fmt.Sprintf("stage %s does not belong to pipeline %s", stageID, pipelineID),
			}
		}
		return stageID, nil
	}

	if len(stages) == 0 {
		return "", &DomainError{Code: CodeNoStage, Message: "pipeline has no lead stages"}
	}
	for _, s := range stages {
		if s.IsDefault {
			return s.ID, nil
		}
	}
	entity.SortStagesNatural(stages)
	return stages[0].ID, nil
}

func refreshBoard(ctx context.Context, boards BoardRefresher, logger *zap.Logger, pipelineID string) {
	if boards == nil || pipelineID == "" {
		return
	}
	if err := boards.RefreshPipeline(ctx, pipelineID); err != nil {
		logger.Warn("board refresh after form submit failed",
			zap.String("pipeline", pipelineID),
			zap.Error(err))
	}
}

func pipelineStages(stages []entity.Stage, pipelineID string) []entity.Stage {
	out := make([]entity.Stage, 0, len(stages))
	for _, s := range stages {
		if s.PipelineID == "" || s.PipelineID == pipelineID {
			out = append(out, s)
		}
	}
	return out
}
