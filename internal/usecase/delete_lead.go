package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/infra/integration/crmapi"
)

type DeleteLeadUseCase struct {
	Leads  LeadGateway
	Boards BoardRefresher
	Logger *zap.Logger
}

func NewDeleteLeadUseCase(leads LeadGateway, boards BoardRefresher, logger *zap.Logger) *DeleteLeadUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeleteLeadUseCase{Leads: leads, Boards: boards, Logger: logger}
}

// Execute deletes remotely; the lead leaves the board on the following refresh.
func (uc *DeleteLeadUseCase) Execute(ctx context.Context, input DeleteLeadInput) error {
	if errs := validateStruct(input); len(errs) > 0 {
		return validationFailed(errs)
	}

	current, err := uc.Leads.GetLead(ctx, input.ID)
	if err != nil {
		if errors.Is(err, crmapi.ErrNotFound) {
			return &DomainError{Code: CodeLeadNotFound, Message: "lead not found"}
		}
		return remoteError("failed to load lead", err)
	}

	if err := uc.Leads.DeleteLead(ctx, input.ID); err != nil {
		return remoteError("failed to delete lead", err)
	}

	uc.Logger.Info("lead deleted", zap.String("lead", input.ID), zap.String("actor", input.ActorID))
	refreshBoard(ctx, uc.Boards, uc.Logger, current.PipelineID)
	return nil
}
