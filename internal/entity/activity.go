package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ActivityOperation string

const (
	ActivityMove     ActivityOperation = "move"
	ActivityRollback ActivityOperation = "rollback"
	ActivityReject   ActivityOperation = "reject"
	ActivityReorder  ActivityOperation = "reorder"
)

// ActivityEvent is one entry of the board activity ledger.
type ActivityEvent struct {
	ID         string            `json:"id"`
	PipelineID string            `json:"pipeline"`
	LeadID     string            `json:"lead_id,omitempty"`
	Operation  ActivityOperation `json:"operation"`
	FromStage  string            `json:"from_stage,omitempty"`
	ToStage    string            `json:"to_stage,omitempty"`
	ActorID    string            `json:"actor_id"`
	Detail     string            `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewActivityEvent(pipelineID string, op ActivityOperation, actorID string) ActivityEvent {
	return ActivityEvent{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Operation:  op,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

type ActivityRepositoryInterface interface {
	Record(ctx context.Context, event ActivityEvent) error
	ListByPipeline(ctx context.Context, pipelineID string, limit int) ([]ActivityEvent, error)
}
