package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadboard/internal/board"
	"github.com/xavierca1/leadboard/internal/entity"
	"github.com/xavierca1/leadboard/internal/infra/http/middleware"
	"github.com/xavierca1/leadboard/internal/usecase"
)

type remoteErr struct{ msg string }

func (e remoteErr) Error() string         { return "crm: " + e.msg }
func (e remoteErr) ServerMessage() string { return e.msg }

// fakeCRM is an in-memory CRM API serving both the board and the forms.
type fakeCRM struct {
	mu        sync.Mutex
	stages    []entity.Stage
	leads     map[string]entity.Lead
	moveErr   error
	nextID    int
	moveCalls int

	// When set, UpdateLeadStage closes moveStarted and waits on moveRelease.
	moveStarted chan struct{}
	moveRelease chan struct{}
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		stages: []entity.Stage{
			{ID: "A", Name: "New", PipelineID: "p1", StageType: entity.StageTypeLead, Order: 1, IsDefault: true},
			{ID: "B", Name: "Qualified", PipelineID: "p1", StageType: entity.StageTypeLead, Order: 2},
			{ID: "C", Name: "Won", PipelineID: "p1", StageType: entity.StageTypeLead, Order: 3},
		},
		leads: map[string]entity.Lead{
			"1": {ID: "1", Title: "Acme", PipelineID: "p1", LeadStage: "A"},
			"2": {ID: "2", Title: "Globex", PipelineID: "p1", LeadStage: "A"},
			"3": {ID: "3", Title: "Initech", PipelineID: "p1", LeadStage: "B", IsConverted: true},
		},
	}
}

func (f *fakeCRM) ListStages(_ context.Context, filter entity.StageFilter) ([]entity.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Stage(nil), f.stages...), nil
}

func (f *fakeCRM) ListLeads(_ context.Context, filter entity.LeadFilter) ([]entity.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Lead
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		if l, ok := f.leads[id]; ok && l.PipelineID == filter.PipelineID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeCRM) UpdateLeadStage(_ context.Context, u entity.LeadStageUpdate) error {
	if f.moveRelease != nil {
		close(f.moveStarted)
		<-f.moveRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moveCalls++
	if f.moveErr != nil {
		return f.moveErr
	}
	l := f.leads[u.ID]
	l.LeadStage = u.LeadStage
	f.leads[u.ID] = l
	return nil
}

func (f *fakeCRM) GetLead(_ context.Context, id string) (*entity.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &l, nil
}

func (f *fakeCRM) CreateLead(_ context.Context, lead *entity.Lead) (*entity.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	created := *lead
	created.ID = string(rune('3' + f.nextID))
	f.leads[created.ID] = created
	return &created, nil
}

func (f *fakeCRM) UpdateLead(_ context.Context, lead *entity.Lead) (*entity.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = *lead
	return lead, nil
}

func (f *fakeCRM) DeleteLead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.leads, id)
	return nil
}

func (f *fakeCRM) CreateStage(_ context.Context, s *entity.Stage) (*entity.Stage, error) {
	created := *s
	created.ID = "S-" + s.Name
	return &created, nil
}

func (f *fakeCRM) UpdateStage(_ context.Context, s *entity.Stage) (*entity.Stage, error) {
	return s, nil
}

func (f *fakeCRM) DeleteStage(context.Context, string) error { return nil }

func (f *fakeCRM) ListPipelines(context.Context) ([]entity.Pipeline, error) {
	return []entity.Pipeline{{ID: "p1", Name: "Sales"}}, nil
}

type testServer struct {
	crm      *fakeCRM
	registry *board.Registry
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	crm := newFakeCRM()
	registry := board.NewRegistry(board.Deps{Gateway: crm, Notifier: board.NopNotifier{}})

	return &testServer{
		crm:      crm,
		registry: registry,
		handler: NewRouter(RouterConfig{
			Boards:    NewBoardHandler(registry, nil, nil, nil),
			Pipelines: NewPipelineHandler(crm, nil),
			Leads:     NewLeadHandler(
				usecase.NewCreateLeadUseCase(crm, crm, registry, nil),
				usecase.NewUpdateLeadUseCase(crm, crm, registry, nil),
				usecase.NewDeleteLeadUseCase(crm, registry, nil),
			),
			Stages:      NewStageHandler(usecase.NewCreateStageUseCase(crm, registry, nil)),
			Health:      NewHealthHandler(nil, nil, nil, "http://crm.test", "test"),
			CORSOrigins: []string{"*"},
		}),
	}
}

type envelope struct {
	Data    json.RawMessage           `json:"data"`
	Message string                    `json:"message"`
	Code    string                    `json:"code"`
	Errors  []usecase.ValidationError `json:"errors"`
}

func (s *testServer) do(t *testing.T, method, path, actor string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set(middleware.ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func columnLeads(view board.View, stageID string) []string {
	for _, col := range view.Columns {
		if col.Stage.ID == stageID {
			ids := []string{}
			for _, l := range col.Leads {
				ids = append(ids, l.ID)
			}
			return ids
		}
	}
	return nil
}

func TestBoardRoutesRequireActor(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/boards/p1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestViewBoard(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/boards/p1", "u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[board.View](t, env)
	require.Len(t, view.Columns, 3)
	assert.Equal(t, []string{"1", "2"}, columnLeads(view, "A"))
	assert.Equal(t, []string{"3"}, columnLeads(view, "B"))
	assert.Empty(t, columnLeads(view, "C"))
}

func TestDragCardOverCardMovesLead(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: board.ItemCard, ID: "2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dragging", decodeData[SessionResponse](t, env).State)

	rec, _ = s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: board.ItemCard, ID: "1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/boards/p1/drag/drop", "u1", DropRequest{Over: &board.DragItem{Kind: board.ItemCard, ID: "3"}})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeData[board.DropResult](t, env)
	assert.Equal(t, board.OutcomeMoved, res.Outcome)
	assert.Equal(t, "B", res.ToStage)
	assert.Equal(t, board.MsgMoveSucceeded, env.Message)

	_, env = s.do(t, http.MethodGet, "/boards/p1/drag", "u1", nil)
	assert.Equal(t, "idle", decodeData[SessionResponse](t, env).State)

	_, env = s.do(t, http.MethodGet, "/boards/p1", "u1", nil)
	assert.Equal(t, []string{"2", "3"}, columnLeads(decodeData[board.View](t, env), "B"))
}

func TestDragSessionsArePerActor(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: board.ItemCard, ID: "1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/boards/p1/drag/start", "u2", board.DragItem{Kind: board.ItemCard, ID: "2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/boards/p1/drag/cancel", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decodeData[SessionResponse](t, env).State)

	rec, _ = s.do(t, http.MethodPost, "/boards/p1/drag/drop", "u1", DropRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDropRollbackReturnsServerMessage(t *testing.T) {
	s := newTestServer(t)
	s.crm.moveErr = remoteErr{msg: "stage is locked"}

	s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: board.ItemCard, ID: "2"})
	rec, env := s.do(t, http.MethodPost, "/boards/p1/drag/drop", "u1", DropRequest{Over: &board.DragItem{Kind: board.ItemColumn, ID: "C"}})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "stage is locked", env.Message)
	assert.Equal(t, board.OutcomeRolledBack, decodeData[board.DropResult](t, env).Outcome)

	_, env = s.do(t, http.MethodGet, "/boards/p1", "u1", nil)
	view := decodeData[board.View](t, env)
	assert.Equal(t, []string{"1", "2"}, columnLeads(view, "A"))
	assert.Empty(t, columnLeads(view, "C"))
}

func TestDropOutsideTargetIsNoop(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: board.ItemCard, ID: "1"})
	rec, env := s.do(t, http.MethodPost, "/boards/p1/drag/drop", "u1", DropRequest{})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, board.OutcomeNoop, decodeData[board.DropResult](t, env).Outcome)
	assert.Zero(t, s.crm.moveCalls)
}

func TestDragConvertedLeadIsRejected(t *testing.T) {
	s := newTestServer(t)

	for _, over := range []board.DragItem{
		{Kind: board.ItemCard, ID: "1"},
		{Kind: board.ItemColumn, ID: "C"},
	} {
		rec, _ := s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: board.ItemCard, ID: "3"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec, env := s.do(t, http.MethodPost, "/boards/p1/drag/drop", "u1", DropRequest{Over: &over})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, board.MsgConvertedLead, env.Message)

		_, env = s.do(t, http.MethodGet, "/boards/p1/drag", "u1", nil)
		assert.Equal(t, "idle", decodeData[SessionResponse](t, env).State)
	}

	_, env := s.do(t, http.MethodGet, "/boards/p1", "u1", nil)
	view := decodeData[board.View](t, env)
	assert.Equal(t, []string{"3"}, columnLeads(view, "B"))
	assert.Empty(t, columnLeads(view, "C"))
	assert.Zero(t, s.crm.moveCalls)
}

func TestDragSessionReportsReconcilingDuringRemoteCall(t *testing.T) {
	s := newTestServer(t)
	s.crm.moveStarted = make(chan struct{})
	s.crm.moveRelease = make(chan struct{})

	s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: board.ItemCard, ID: "2"})

	done := make(chan int, 1)
	go func() {
		rec, _ := s.do(t, http.MethodPost, "/boards/p1/drag/drop", "u1", DropRequest{Over: &board.DragItem{Kind: board.ItemColumn, ID: "C"}})
		done <- rec.Code
	}()
	<-s.crm.moveStarted

	_, env := s.do(t, http.MethodGet, "/boards/p1/drag", "u1", nil)
	sess := decodeData[SessionResponse](t, env)
	assert.Equal(t, "reconciling", sess.State)
	require.NotNil(t, sess.Item)
	assert.Equal(t, "2", sess.Item.ID)
	assert.Equal(t, "A", sess.OriginStage)

	close(s.crm.moveRelease)
	assert.Equal(t, http.StatusOK, <-done)

	_, env = s.do(t, http.MethodGet, "/boards/p1/drag", "u1", nil)
	assert.Equal(t, "idle", decodeData[SessionResponse](t, env).State)
}

func TestMoveConvertedLeadIsRejected(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPut, "/boards/p1/leads/3/stage", "u1", MoveRequest{LeadStage: "C"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, board.MsgConvertedLead, env.Message)
	assert.Zero(t, s.crm.moveCalls)
}

func TestMoveLeadErrors(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPut, "/boards/p1/leads/1/stage", "u1", MoveRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/boards/p1/leads/1/stage", "u1", MoveRequest{LeadStage: "Z"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/boards/p1/leads/99/stage", "u1", MoveRequest{LeadStage: "B"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReorderColumns(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPut, "/boards/p1/columns", "u1", ReorderRequest{StageID: "C", ToIndex: 0})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"C", "A", "B"}, decodeData[board.DropResult](t, env).Columns)
	assert.Equal(t, []string{"C", "A", "B"}, s.registry.Orders().Order("p1"))

	rec, _ = s.do(t, http.MethodPut, "/boards/p1/columns", "u1", ReorderRequest{StageID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidDragItem(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/boards/p1/drag/start", "u1", board.DragItem{Kind: "row", ID: "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/boards/p1/drag/start", bytes.NewBufferString("{"))
	req.Header.Set(middleware.ActorHeader, "u1")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestActivityDisabled(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/boards/p1/activity", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ACTIVITY_DISABLED", env.Code)
}

func TestCreateLeadRefreshesLoadedBoard(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/boards/p1", "u1", nil)

	rec, env := s.do(t, http.MethodPost, "/leads", "u1", usecase.CreateLeadInput{Title: "Umbrella", PipelineID: "p1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeData[entity.Lead](t, env)
	assert.Equal(t, "A", created.LeadStage)
	assert.Equal(t, "u1", created.UpdatedBy)

	_, env = s.do(t, http.MethodGet, "/boards/p1", "u1", nil)
	assert.Contains(t, columnLeads(decodeData[board.View](t, env), "A"), created.ID)
}

func TestCreateLeadValidation(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/leads", "u1", usecase.CreateLeadInput{Interest: "hot"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, usecase.CodeValidation, env.Code)
	assert.NotEmpty(t, env.Errors)
}

func TestUpdateConvertedLeadStageConflict(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPut, "/leads/3", "u1", usecase.UpdateLeadInput{Title: "Initech", LeadStage: "C"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, usecase.CodeLeadConverted, env.Code)
}

func TestDeleteLead(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/boards/p1", "u1", nil)

	rec, _ := s.do(t, http.MethodDelete, "/leads/1", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, env := s.do(t, http.MethodGet, "/boards/p1", "u1", nil)
	assert.Equal(t, []string{"2"}, columnLeads(decodeData[board.View](t, env), "A"))
}

func TestCreateStage(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/stages", "u1", usecase.CreateStageInput{Name: "Lost", PipelineID: "p1", Order: 4})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "S-Lost", decodeData[entity.Stage](t, env).ID)
}

func TestListPipelines(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/pipelines", "u1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []entity.Pipeline{{ID: "p1", Name: "Sales"}}, decodeData[[]entity.Pipeline](t, env))
}
