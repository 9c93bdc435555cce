package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/entity"
)

type CreateStageUseCase struct {
	Stages StageGateway
	Boards BoardRefresher
	Logger *zap.Logger
}

func NewCreateStageUseCase(stages StageGateway, boards BoardRefresher, logger *zap.Logger) *CreateStageUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateStageUseCase{Stages: stages, Boards: boards, Logger: logger}
}

// Execute creates a lead stage. A new default stage demotes the previous
// default of the pipeline; if that fails the new stage is deleted again so the
// pipeline keeps a single default.
func (uc *CreateStageUseCase) Execute(ctx context.Context, input CreateStageInput) (*StageOutput, error) {
	if errs := validateStruct(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	var previousDefaults []entity.Stage
	if input.IsDefault {
		stages, err := uc.Stages.ListStages(ctx, entity.StageFilter{StageType: entity.StageTypeLead, PipelineID: input.PipelineID})
		if err != nil {
			return nil, remoteError("failed to load stages", err)
		}
		for _, s := range pipelineStages(stages, input.PipelineID) {
			if s.IsDefault {
				previousDefaults = append(previousDefaults, s)
			}
		}
	}

	stage := &entity.Stage{
		Name:       strings.TrimSpace(input.Name),
		PipelineID: input.PipelineID,
		StageType:  entity.StageTypeLead,
		IsDefault:  input.IsDefault,
		Order:      input.Order,
	}

	var created *entity.Stage
	txn := NewTransaction(uc.Logger)
	txn.AddOperation("create_stage", func(ctx context.Context) error {
		var err error
		created, err = uc.Stages.CreateStage(ctx, stage)
		return err
	})
	txn.AddCompensation("delete_stage", func(ctx context.Context) error {
		return uc.Stages.DeleteStage(ctx, created.ID)
	})
	for _, prev := range previousDefaults {
		prev := prev
		demoted := prev
		demoted.IsDefault = false
		txn.AddOperation("demote_default_"+prev.ID, func(ctx context.Context) error {
			_, err := uc.Stages.UpdateStage(ctx, &demoted)
			return err
		})
		txn.AddCompensation("restore_default_"+prev.ID, func(ctx context.Context) error {
			restored := prev
			_, err := uc.Stages.UpdateStage(ctx, &restored)
			return err
		})
	}

	if err := txn.Execute(ctx); err != nil {
		if created == nil {
			return nil, remoteError("failed to create stage", err)
		}
		return nil, &TechnicalError{Code: CodeDefaultSwitch, Message: "failed to switch default stage", Err: err}
	}

	uc.Logger.Info("stage created",
		zap.String("stage", created.ID),
		zap.String("pipeline", created.PipelineID),
		zap.Bool("default", created.IsDefault))
	refreshBoard(ctx, uc.Boards, uc.Logger, created.PipelineID)

	return &StageOutput{Stage: created, Msg: "Stage created successfully"}, nil
}
