package board

import (
	"errors"
	"fmt"

	"github.com/xavierca1/leadboard/internal/entity"
)

type State int

const (
	StateIdle State = iota
	StateDragging
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateReconciling:
		return "reconciling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type ItemKind string

const (
	ItemColumn ItemKind = "column"
	ItemCard   ItemKind = "card"
)

func (k ItemKind) Valid() bool {
	return k == ItemColumn || k == ItemCard
}

// DragItem identifies the dragged element or the element under the pointer at drop.
type DragItem struct {
	Kind ItemKind `json:"kind"`
	ID   string   `json:"id"`
}

var (
	ErrDragInProgress = errors.New("a drag session is already active")
	ErrNoDragSession  = errors.New("no drag session is active")
	ErrInvalidItem    = errors.New("invalid drag item")
)

// Session is the drag state of one user on one board:
// Idle -> Dragging(item) -> Reconciling(item, snapshot) -> Idle.
// It is not safe for concurrent use; the Controller guards it while operating on it.
type Session struct {
	state    State
	item     DragItem
	snapshot []entity.Lead
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) State() State {
	return s.state
}

// Item returns the dragged element while a drag is active.
func (s *Session) Item() (DragItem, bool) {
	if s.state == StateIdle {
		return DragItem{}, false
	}
	return s.item, true
}

// Snapshot is the lead list captured before the optimistic update. Only set while reconciling.
func (s *Session) Snapshot() []entity.Lead {
	return s.snapshot
}

func (s *Session) begin(item DragItem) error {
	if s.state != StateIdle {
		return ErrDragInProgress
	}
	if !item.Kind.Valid() || item.ID == "" {
		return ErrInvalidItem
	}
	s.state = StateDragging
	s.item = item
	return nil
}

func (s *Session) reconcile(snapshot []entity.Lead) {
	s.state = StateReconciling
	s.snapshot = snapshot
}

func (s *Session) reset() {
	s.state = StateIdle
	s.item = DragItem{}
	s.snapshot = nil
}
