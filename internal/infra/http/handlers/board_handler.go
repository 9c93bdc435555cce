package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/board"
	"github.com/xavierca1/leadboard/internal/entity"
	"github.com/xavierca1/leadboard/internal/infra/cache"
	"github.com/xavierca1/leadboard/internal/infra/http/middleware"
)

type BoardSource interface {
	Get(ctx context.Context, pipelineID string) (*board.Controller, error)
}

type TagInvalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

type ActivityLister interface {
	ListByPipeline(ctx context.Context, pipelineID string, limit int) ([]entity.ActivityEvent, error)
}

type BoardHandler struct {
	Boards   BoardSource
	Sessions *SessionStore
	Cache    TagInvalidator
	Activity ActivityLister
	Logger   *zap.Logger
}

func NewBoardHandler(boards BoardSource, c TagInvalidator, activity ActivityLister, logger *zap.Logger) *BoardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardHandler{
		Boards:   boards,
		Sessions: NewSessionStore(),
		Cache:    c,
		Activity: activity,
		Logger:   logger,
	}
}

type SessionResponse struct {
	State string          `json:"state"`
	Item  *board.DragItem `json:"item,omitempty"`
	// OriginStage is where a reconciling card returns if the move fails.
	OriginStage string `json:"originStage,omitempty"`
}

type DropRequest struct {
	Over *board.DragItem `json:"over"`
}

type MoveRequest struct {
	LeadStage string `json:"leadStage"`
}

type ReorderRequest struct {
	StageID string `json:"stageId"`
	ToIndex int    `json:"toIndex"`
}

func (h *BoardHandler) controller(w http.ResponseWriter, r *http.Request) (*board.Controller, bool) {
	c, err := h.Boards.Get(r.Context(), chi.URLParam(r, "pipelineID"))
	if err != nil {
		h.Logger.Warn("load board", zap.String("pipeline", chi.URLParam(r, "pipelineID")), zap.Error(err))
		writeError(w, err)
		return nil, false
	}
	return c, true
}

// HandleView (GET /boards/{pipelineID})
func (h *BoardHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, c.View(), "")
}

// HandleRefresh (POST /boards/{pipelineID}/refresh) drops cached CRM data and reloads the board.
func (h *BoardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(r.Context(), cache.TagLead, cache.TagLeadStage); err != nil {
			h.Logger.Warn("invalidate before refresh", zap.Error(err))
		}
	}
	if err := c.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c.View(), "Board refreshed")
}

// HandleSession (GET /boards/{pipelineID}/drag)
func (h *BoardHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	sess := h.Sessions.Get(middleware.ActorFromContext(r.Context()), c.PipelineID())
	writeData(w, http.StatusOK, sessionResponse(c, sess), "")
}

// HandleDragStart (POST /boards/{pipelineID}/drag/start)
func (h *BoardHandler) HandleDragStart(w http.ResponseWriter, r *http.Request) {
	var item board.DragItem
	if !decodeJSON(w, r, &item) {
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	sess := h.Sessions.Get(middleware.ActorFromContext(r.Context()), c.PipelineID())
	if err := c.BeginDrag(sess, item); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sessionResponse(c, sess), "")
}

// HandleDrop (POST /boards/{pipelineID}/drag/drop). A missing "over" is a drop
// outside any target.
func (h *BoardHandler) HandleDrop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	actor := middleware.ActorFromContext(r.Context())
	sess := h.Sessions.Get(actor, c.PipelineID())

	// Detached so a closed tab cannot cancel the CRM call mid-move.
	res, err := c.Drop(context.WithoutCancel(r.Context()), sess, req.Over, actor)
	h.writeResult(w, res, err)
}

// HandleDragCancel (POST /boards/{pipelineID}/drag/cancel)
func (h *BoardHandler) HandleDragCancel(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	sess := h.Sessions.Get(middleware.ActorFromContext(r.Context()), c.PipelineID())
	c.Cancel(sess)
	writeData(w, http.StatusOK, sessionResponse(c, sess), "")
}

// HandleMoveLead (PUT /boards/{pipelineID}/leads/{leadID}/stage)
func (h *BoardHandler) HandleMoveLead(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LeadStage == "" {
		writeErrorResponse(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "leadStage is required")
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	actor := middleware.ActorFromContext(r.Context())
	res, err := c.MoveLead(context.WithoutCancel(r.Context()), chi.URLParam(r, "leadID"), req.LeadStage, actor)
	h.writeResult(w, res, err)
}

// HandleReorderColumns (PUT /boards/{pipelineID}/columns)
func (h *BoardHandler) HandleReorderColumns(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	cols, err := c.ReorderColumn(r.Context(), req.StageID, req.ToIndex, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, board.DropResult{Outcome: board.OutcomeReordered, Columns: cols}, "")
}

// HandleActivity (GET /boards/{pipelineID}/activity?limit=n)
func (h *BoardHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if h.Activity == nil {
		writeErrorResponse(w, http.StatusNotFound, "ACTIVITY_DISABLED", "activity ledger is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.Activity.ListByPipeline(r.Context(), chi.URLParam(r, "pipelineID"), limit)
	if err != nil {
		h.Logger.Error("list activity", zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to load activity")
		return
	}
	if events == nil {
		events = []entity.ActivityEvent{}
	}
	writeData(w, http.StatusOK, events, "")
}

// writeResult reports a move. A rolled back move carries the result and the
// server's message so the client can show it next to the restored card.
func (h *BoardHandler) writeResult(w http.ResponseWriter, res board.DropResult, err error) {
	if err == nil {
		msg := ""
		if res.Outcome == board.OutcomeMoved {
			msg = board.MsgMoveSucceeded
		}
		writeData(w, http.StatusOK, res, msg)
		return
	}
	if res.Outcome == board.OutcomeRolledBack {
		writeJSON(w, http.StatusBadGateway, ApiResponse{
			Data:    res,
			Message: board.RemoteMessage(err, board.MsgMoveFailed),
			Code:    "MOVE_ROLLED_BACK",
		})
		return
	}
	writeError(w, err)
}

func sessionResponse(c *board.Controller, s *board.Session) SessionResponse {
	state, item := c.Inspect(s)
	resp := SessionResponse{State: state.String()}
	if state != board.StateIdle {
		resp.Item = &item
	}
	if state == board.StateReconciling && item.Kind == board.ItemCard {
		for _, l := range c.InspectSnapshot(s) {
			if l.ID == item.ID {
				resp.OriginStage = l.LeadStage
				break
			}
		}
	}
	return resp
}
