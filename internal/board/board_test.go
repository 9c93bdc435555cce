package board

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/leadboard/internal/entity"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListStages(ctx context.Context, filter entity.StageFilter) ([]entity.Stage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Stage), args.Error(1)
}

func (m *MockGateway) ListLeads(ctx context.Context, filter entity.LeadFilter) ([]entity.Lead, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Lead), args.Error(1)
}

func (m *MockGateway) UpdateLeadStage(ctx context.Context, update entity.LeadStageUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

type serverError struct {
	msg string
}

func (e serverError) Error() string         { return "crm api: " + e.msg }
func (e serverError) ServerMessage() string { return e.msg }

const pipelineID = "p1"

func testStages() []entity.Stage {
	return []entity.Stage{
		{ID: "A", Name: "New", PipelineID: pipelineID, StageType: entity.StageTypeLead, Order: 1, IsDefault: true},
		{ID: "B", Name: "Qualified", PipelineID: pipelineID, StageType: entity.StageTypeLead, Order: 2},
		{ID: "C", Name: "Won", PipelineID: pipelineID, StageType: entity.StageTypeLead, Order: 3},
	}
}

func testLeads() []entity.Lead {
	return []entity.Lead{
		{ID: "1", Title: "Acme", PipelineID: pipelineID, LeadStage: "A", CurrencyID: "usd"},
		{ID: "2", Title: "Globex", PipelineID: pipelineID, LeadStage: "A", CurrencyID: "usd"},
		{ID: "3", Title: "Initech", PipelineID: pipelineID, LeadStage: "B", CurrencyID: "eur"},
	}
}

func stagesOf(leads []entity.Lead) map[string]string {
	out := make(map[string]string, len(leads))
	for _, l := range leads {
		out[l.ID] = l.LeadStage
	}
	return out
}

// loadedController returns a controller loaded with testStages and the given leads.
func loadedController(gw *MockGateway, notifier Notifier, leads []entity.Lead) *Controller {
	gw.On("ListStages", mock.Anything, entity.StageFilter{StageType: entity.StageTypeLead, PipelineID: pipelineID}).
		Return(testStages(), nil)
	gw.On("ListLeads", mock.Anything, entity.LeadFilter{PipelineID: pipelineID}).
		Return(leads, nil)

	c := NewController(pipelineID, Deps{Gateway: gw, Notifier: notifier})
	if err := c.Refresh(context.Background()); err != nil {
		panic(err)
	}
	return c
}
