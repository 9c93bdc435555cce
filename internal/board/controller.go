package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/entity"
)

const (
	MsgConvertedLead = "Cannot move a converted lead"
	MsgMoveSucceeded = "Lead moved successfully"
	MsgMoveFailed    = "Failed to move lead"
	MsgMoveInFlight  = "Lead is still being updated"
)

var (
	ErrConvertedLead = errors.New("cannot move a converted lead")
	ErrMoveInFlight  = errors.New("lead has a move in flight")
	ErrLeadNotFound  = errors.New("lead not found")
	ErrStageNotFound = errors.New("stage not found")
)

// Gateway is the remote side of the board: the CRM API, usually behind the cache.
type Gateway interface {
	ListStages(ctx context.Context, filter entity.StageFilter) ([]entity.Stage, error)
	ListLeads(ctx context.Context, filter entity.LeadFilter) ([]entity.Lead, error)
	UpdateLeadStage(ctx context.Context, update entity.LeadStageUpdate) error
}

type EventPublisher interface {
	PublishLeadMoved(ctx context.Context, event LeadMovedEvent) error
}

type ActivityRecorder interface {
	Record(ctx context.Context, event entity.ActivityEvent) error
}

type LeadMovedEvent struct {
	PipelineID string `json:"pipeline"`
	LeadID     string `json:"lead_id"`
	FromStage  string `json:"from_stage"`
	ToStage    string `json:"to_stage"`
	UpdatedBy  string `json:"updated_by"`
}

type Outcome string

const (
	OutcomeNoop       Outcome = "noop"
	OutcomeReordered  Outcome = "reordered"
	OutcomeMoved      Outcome = "moved"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeRejected   Outcome = "rejected"
)

type DropResult struct {
	Outcome   Outcome  `json:"outcome"`
	LeadID    string   `json:"lead_id,omitempty"`
	FromStage string   `json:"from_stage,omitempty"`
	ToStage   string   `json:"to_stage,omitempty"`
	Columns   []string `json:"columns,omitempty"`
}

type Deps struct {
	Gateway   Gateway
	Orders    *OrderStore
	Notifier  Notifier
	Publisher EventPublisher
	Activity  ActivityRecorder
	Logger    *zap.Logger
}

// Controller owns the view-model of one pipeline's board and keeps it
// consistent with the CRM API through optimistic moves and exact rollbacks.
type Controller struct {
	pipelineID string
	deps       Deps
	logger     *zap.Logger

	mu       sync.Mutex
	loaded   bool
	stages   []entity.Stage
	leads    []entity.Lead
	version  uint64
	inflight map[string]struct{}
}

func NewController(pipelineID string, deps Deps) *Controller {
	if deps.Orders == nil {
		deps.Orders = NewOrderStore(ScopePipeline)
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		pipelineID: pipelineID,
		deps:       deps,
		logger:     logger.With(zap.String("pipeline", pipelineID)),
		inflight:   make(map[string]struct{}),
	}
}

func (c *Controller) PipelineID() string {
	return c.pipelineID
}

// Refresh replaces local state with what the CRM API currently returns.
func (c *Controller) Refresh(ctx context.Context) error {
	stages, err := c.deps.Gateway.ListStages(ctx, entity.StageFilter{
		StageType:  entity.StageTypeLead,
		PipelineID: c.pipelineID,
	})
	if err != nil {
		return fmt.Errorf("load stages: %w", err)
	}
	leads, err := c.deps.Gateway.ListLeads(ctx, entity.LeadFilter{PipelineID: c.pipelineID})
	if err != nil {
		return fmt.Errorf("load leads: %w", err)
	}

	boardStages := make([]entity.Stage, 0, len(stages))
	for _, st := range stages {
		if st.StageType != entity.StageTypeLead {
			continue
		}
		if st.PipelineID != "" && st.PipelineID != c.pipelineID {
			continue
		}
		boardStages = append(boardStages, st)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = boardStages
	c.leads = leads
	c.loaded = true
	c.version++

	c.logger.Debug("board refreshed",
		zap.Int("stages", len(boardStages)),
		zap.Int("leads", len(leads)))
	return nil
}

// EnsureLoaded loads the board on first use.
func (c *Controller) EnsureLoaded(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}
	return c.Refresh(ctx)
}

func (c *Controller) Leads() []entity.Lead {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.leads)
}

func (c *Controller) Stages() []entity.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.stages)
}

func (c *Controller) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

type Column struct {
	Stage  entity.Stage    `json:"stage"`
	Leads  []entity.Lead   `json:"leads"`
	Totals []CurrencyTotal `json:"totals"`
}

type View struct {
	PipelineID string   `json:"pipeline"`
	Version    uint64   `json:"version"`
	Columns    []Column `json:"columns"`
	// Unknown collects leads whose stage is not loaded.
	Unknown *Column `json:"unknown,omitempty"`
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	ordered := SortStages(c.stages, c.deps.Orders.Order(c.pipelineID))
	buckets, orphans := Partition(ordered, c.leads)

	view := View{
		PipelineID: c.pipelineID,
		Version:    c.version,
		Columns:    make([]Column, 0, len(ordered)),
	}
	for _, st := range ordered {
		leads := buckets[st.ID]
		if leads == nil {
			leads = []entity.Lead{}
		}
		view.Columns = append(view.Columns, Column{Stage: st, Leads: leads, Totals: Totals(leads)})
	}
	if len(orphans) > 0 {
		view.Unknown = &Column{
			Stage:  entity.Stage{Name: entity.UnknownStageName, StageType: entity.StageTypeLead},
			Leads:  orphans,
			Totals: Totals(orphans),
		}
	}
	return view
}

// ColumnIDs returns the stage ids in display order.
func (c *Controller) ColumnIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.columnIDsLocked()
}

func (c *Controller) columnIDsLocked() []string {
	ordered := SortStages(c.stages, c.deps.Orders.Order(c.pipelineID))
	ids := make([]string, len(ordered))
	for i, st := range ordered {
		ids[i] = st.ID
	}
	return ids
}

func (c *Controller) BeginDrag(s *Session, item DragItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.begin(item)
}

// Cancel abandons an active drag. A session that is reconciling a drop is
// left alone; it returns to Idle once the remote call settles.
func (c *Controller) Cancel(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.state == StateDragging {
		s.reset()
	}
}

// Inspect reads a session under the board lock.
func (c *Controller) Inspect(s *Session) (State, DragItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.state, s.item
}

// InspectSnapshot returns the pre-move lead list held by a reconciling session.
func (c *Controller) InspectSnapshot(s *Session) []entity.Lead {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.Snapshot()
}

type actionKind int

const (
	actionNoop actionKind = iota
	actionReorder
	actionMove
)

type dropAction struct {
	kind    actionKind
	stageID string
	index   int
	leadID  string
	dest    string
}

// classifyLocked decides what a drop means, in precedence order:
// column reorder, card over card, card over column, no-op.
func (c *Controller) classifyLocked(item DragItem, over *DragItem) dropAction {
	if over == nil || over.ID == "" {
		return dropAction{kind: actionNoop}
	}

	if item.Kind == ItemColumn {
		cols := c.columnIDsLocked()
		target := ""
		switch over.Kind {
		case ItemColumn:
			target = over.ID
		case ItemCard:
			if l, ok := c.findLeadLocked(over.ID); ok {
				target = l.LeadStage
			}
		}
		idx := slices.Index(cols, target)
		if idx < 0 {
			return dropAction{kind: actionNoop}
		}
		return dropAction{kind: actionReorder, stageID: item.ID, index: idx}
	}

	switch over.Kind {
	case ItemCard:
		target, ok := c.findLeadLocked(over.ID)
		if !ok {
			return dropAction{kind: actionNoop}
		}
		return dropAction{kind: actionMove, leadID: item.ID, dest: target.LeadStage}
	case ItemColumn:
		return dropAction{kind: actionMove, leadID: item.ID, dest: over.ID}
	}
	return dropAction{kind: actionNoop}
}

// Drop ends the drag session held by s. A nil over means the element was
// dropped outside any valid target.
func (c *Controller) Drop(ctx context.Context, s *Session, over *DragItem, actorID string) (DropResult, error) {
	c.mu.Lock()
	if s.state != StateDragging {
		c.mu.Unlock()
		return DropResult{}, ErrNoDragSession
	}

	action := c.classifyLocked(s.item, over)
	switch action.kind {
	case actionReorder:
		cols, err := c.reorderLocked(action.stageID, action.index)
		s.reset()
		c.mu.Unlock()
		if err != nil {
			return DropResult{Outcome: OutcomeNoop}, err
		}
		c.afterReorder(ctx, cols, actorID)
		return DropResult{Outcome: OutcomeReordered, Columns: cols}, nil

	case actionMove:
		pm, res, err := c.prepareMoveLocked(action.leadID, action.dest, s)
		if err != nil || pm == nil {
			s.reset()
			c.mu.Unlock()
			c.afterReject(ctx, action.leadID, action.dest, actorID, err)
			return res, err
		}
		c.mu.Unlock()

		// The session stays Reconciling until the remote call settles.
		res, err = c.commitMove(ctx, pm, actorID)
		c.mu.Lock()
		s.reset()
		c.mu.Unlock()
		return res, err
	}

	// No target is a no-op for every item, converted cards included: nothing
	// was attempted, so there is nothing to reject.
	s.reset()
	c.mu.Unlock()
	recordMove(OutcomeNoop)
	return DropResult{Outcome: OutcomeNoop}, nil
}

// MoveLead moves a card without a drag session, with the same contract as a card drop.
func (c *Controller) MoveLead(ctx context.Context, leadID, dest, actorID string) (DropResult, error) {
	c.mu.Lock()
	pm, res, err := c.prepareMoveLocked(leadID, dest, nil)
	c.mu.Unlock()
	if err != nil || pm == nil {
		c.afterReject(ctx, leadID, dest, actorID, err)
		return res, err
	}
	return c.commitMove(ctx, pm, actorID)
}

type pendingMove struct {
	leadID   string
	from     string
	to       string
	snapshot []entity.Lead
	version  uint64
}

// prepareMoveLocked checks the move preconditions and applies the optimistic
// update. A nil pendingMove with a nil error is a no-op.
func (c *Controller) prepareMoveLocked(leadID, dest string, s *Session) (*pendingMove, DropResult, error) {
	idx := slices.IndexFunc(c.leads, func(l entity.Lead) bool { return l.ID == leadID })
	if idx < 0 {
		return nil, DropResult{Outcome: OutcomeRejected, LeadID: leadID}, ErrLeadNotFound
	}
	lead := c.leads[idx]
	res := DropResult{LeadID: leadID, FromStage: lead.LeadStage, ToStage: dest}

	if !lead.CanMove() {
		res.Outcome = OutcomeRejected
		return nil, res, ErrConvertedLead
	}
	if dest == lead.LeadStage {
		res.Outcome = OutcomeNoop
		return nil, res, nil
	}
	if _, ok := entity.FindStage(c.stages, dest); !ok {
		res.Outcome = OutcomeRejected
		return nil, res, ErrStageNotFound
	}
	if _, busy := c.inflight[leadID]; busy {
		res.Outcome = OutcomeRejected
		return nil, res, ErrMoveInFlight
	}

	snapshot := slices.Clone(c.leads)
	if s != nil {
		s.reconcile(snapshot)
	}

	next := slices.Clone(c.leads)
	next[idx].LeadStage = dest
	c.leads = next
	c.version++
	c.inflight[leadID] = struct{}{}
	movesInFlight.Inc()

	return &pendingMove{
		leadID:   leadID,
		from:     lead.LeadStage,
		to:       dest,
		snapshot: snapshot,
		version:  c.version,
	}, res, nil
}

func (c *Controller) commitMove(ctx context.Context, pm *pendingMove, actorID string) (DropResult, error) {
	res := DropResult{LeadID: pm.leadID, FromStage: pm.from, ToStage: pm.to}

	err := c.deps.Gateway.UpdateLeadStage(ctx, entity.LeadStageUpdate{
		ID:        pm.leadID,
		LeadStage: pm.to,
		UpdatedBy: actorID,
	})

	c.mu.Lock()
	delete(c.inflight, pm.leadID)
	movesInFlight.Dec()
	if err != nil {
		c.rollbackLocked(pm)
	}
	c.mu.Unlock()

	if err != nil {
		res.Outcome = OutcomeRolledBack
		recordMove(OutcomeRolledBack)
		c.logger.Warn("lead move rolled back",
			zap.String("lead", pm.leadID),
			zap.String("to", pm.to),
			zap.Error(err))
		c.notify(ctx, LevelError, RemoteMessage(err, MsgMoveFailed), pm.leadID)
		c.record(ctx, entity.ActivityRollback, pm.leadID, pm.from, pm.to, actorID, err.Error())
		return res, fmt.Errorf("update lead stage: %w", err)
	}

	res.Outcome = OutcomeMoved
	recordMove(OutcomeMoved)
	c.logger.Info("lead moved",
		zap.String("lead", pm.leadID),
		zap.String("from", pm.from),
		zap.String("to", pm.to))
	c.notify(ctx, LevelSuccess, MsgMoveSucceeded, pm.leadID)
	c.record(ctx, entity.ActivityMove, pm.leadID, pm.from, pm.to, actorID, "")
	if c.deps.Publisher != nil {
		event := LeadMovedEvent{
			PipelineID: c.pipelineID,
			LeadID:     pm.leadID,
			FromStage:  pm.from,
			ToStage:    pm.to,
			UpdatedBy:  actorID,
		}
		if err := c.deps.Publisher.PublishLeadMoved(ctx, event); err != nil {
			c.logger.Warn("publish lead moved", zap.Error(err))
		}
	}
	return res, nil
}

// rollbackLocked restores the pre-move snapshot exactly when nothing else has
// touched the lead list since the optimistic update. Otherwise only the moved
// lead is put back, so concurrent moves of other leads survive.
func (c *Controller) rollbackLocked(pm *pendingMove) {
	if c.version == pm.version {
		c.leads = pm.snapshot
		c.version++
		return
	}

	idx := slices.IndexFunc(c.leads, func(l entity.Lead) bool { return l.ID == pm.leadID })
	if idx < 0 || c.leads[idx].LeadStage != pm.to {
		return
	}
	next := slices.Clone(c.leads)
	next[idx].LeadStage = pm.from
	c.leads = next
	c.version++
}

// ReorderColumn moves a column to toIndex in the displayed order and stores
// the result. It never calls the CRM API.
func (c *Controller) ReorderColumn(ctx context.Context, stageID string, toIndex int, actorID string) ([]string, error) {
	c.mu.Lock()
	cols, err := c.reorderLocked(stageID, toIndex)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.afterReorder(ctx, cols, actorID)
	return cols, nil
}

func (c *Controller) reorderLocked(stageID string, toIndex int) ([]string, error) {
	cols := c.columnIDsLocked()
	from := slices.Index(cols, stageID)
	if from < 0 {
		return nil, ErrStageNotFound
	}
	to := min(max(toIndex, 0), len(cols)-1)
	if from == to {
		return cols, nil
	}

	next := slices.Delete(slices.Clone(cols), from, from+1)
	next = slices.Insert(next, to, stageID)
	c.deps.Orders.SetOrder(c.pipelineID, next)
	return next, nil
}

func (c *Controller) afterReorder(ctx context.Context, cols []string, actorID string) {
	columnReorders.Inc()
	recordMove(OutcomeReordered)
	c.record(ctx, entity.ActivityReorder, "", "", "", actorID, fmt.Sprint(cols))
}

func (c *Controller) afterReject(ctx context.Context, leadID, dest, actorID string, err error) {
	if err == nil {
		recordMove(OutcomeNoop)
		return
	}
	recordMove(OutcomeRejected)

	msg := err.Error()
	switch {
	case errors.Is(err, ErrConvertedLead):
		msg = MsgConvertedLead
	case errors.Is(err, ErrMoveInFlight):
		msg = MsgMoveInFlight
	}
	c.notify(ctx, LevelError, msg, leadID)
	c.record(ctx, entity.ActivityReject, leadID, "", dest, actorID, err.Error())
}

func (c *Controller) findLeadLocked(id string) (entity.Lead, bool) {
	idx := slices.IndexFunc(c.leads, func(l entity.Lead) bool { return l.ID == id })
	if idx < 0 {
		return entity.Lead{}, false
	}
	return c.leads[idx], true
}

func (c *Controller) notify(ctx context.Context, level Level, msg, leadID string) {
	c.deps.Notifier.Notify(ctx, Notification{
		PipelineID: c.pipelineID,
		Level:      level,
		Message:    msg,
		LeadID:     leadID,
		At:         time.Now().UTC(),
	})
}

func (c *Controller) record(ctx context.Context, op entity.ActivityOperation, leadID, from, to, actorID, detail string) {
	if c.deps.Activity == nil {
		return
	}
	event := entity.NewActivityEvent(c.pipelineID, op, actorID)
	event.LeadID = leadID
	event.FromStage = from
	event.ToStage = to
	event.Detail = detail
	if err := c.deps.Activity.Record(ctx, event); err != nil {
		c.logger.Warn("record activity", zap.String("operation", string(op)), zap.Error(err))
	}
}

// RemoteMessage extracts the server supplied message from a remote error.
func RemoteMessage(err error, fallback string) string {
	var sm interface{ ServerMessage() string }
	if errors.As(err, &sm) {
		if msg := sm.ServerMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
