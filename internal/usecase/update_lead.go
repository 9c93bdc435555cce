package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/entity"
	"github.com/xavierca1/leadboard/internal/infra/integration/crmapi"
)

type UpdateLeadUseCase struct {
	Leads  LeadGateway
	Stages StageGateway
	Boards BoardRefresher
	Logger *zap.Logger
}

func NewUpdateLeadUseCase(leads LeadGateway, stages StageGateway, boards BoardRefresher, logger *zap.Logger) *UpdateLeadUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateLeadUseCase{Leads: leads, Stages: stages, Boards: boards, Logger: logger}
}

func (uc *UpdateLeadUseCase) Execute(ctx context.Context, input UpdateLeadInput) (*LeadOutput, error) {
	errs := validateStruct(input)
	value, verr := parseAmount("leadValue", input.LeadValue)
	if verr != nil {
		errs = append(errs, *verr)
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	current, err := uc.Leads.GetLead(ctx, input.ID)
	if err != nil {
		if errors.Is(err, crmapi.ErrNotFound) {
			return nil, &DomainError{Code: CodeLeadNotFound, Message: "lead not found"}
		}
		return nil, remoteError("failed to load lead", err)
	}

	lead := *current
	if input.LeadStage != "" && input.LeadStage != current.LeadStage {
		if current.IsConverted {
			return nil, &DomainError{Code: CodeLeadConverted, Message: "Cannot move a converted lead"}
		}
		stages, err := uc.Stages.ListStages(ctx, entity.StageFilter{StageType: entity.StageTypeLead, PipelineID: current.PipelineID})
		if err != nil {
			return nil, remoteError("failed to load stages", err)
		}
		if _, ok := entity.FindStage(pipelineStages(stages, current.PipelineID), input.LeadStage); !ok {
			return nil, &DomainError{Code: CodeStageNotFound, Message: "stage does not belong to the lead's pipeline"}
		}
		lead.LeadStage = input.LeadStage
	}

	lead.Title = strings.TrimSpace(input.Title)
	lead.Interest = entity.Interest(input.Interest)
	lead.LeadValue = value
	lead.CurrencyID = input.CurrencyID
	lead.SourceID = input.SourceID
	lead.StatusID = input.StatusID
	lead.CategoryID = input.CategoryID
	lead.Email = strings.TrimSpace(input.Email)
	lead.Members = entity.MemberSet(input.Members)
	lead.UpdatedBy = input.ActorID
	lead.UpdatedAt = time.Now().UTC()

	updated, err := uc.Leads.UpdateLead(ctx, &lead)
	if err != nil {
		return nil, remoteError("failed to update lead", err)
	}

	uc.Logger.Info("lead updated", zap.String("lead", updated.ID))
	refreshBoard(ctx, uc.Boards, uc.Logger, updated.PipelineID)

	return &LeadOutput{Lead: updated, Msg: "Lead updated successfully"}, nil
}
