package board

import (
	"slices"
	"sync"

	"github.com/xavierca1/leadboard/internal/entity"
)

type OrderScope string

const (
	// ScopePipeline keeps one manual column order per pipeline.
	ScopePipeline OrderScope = "pipeline"
	// ScopeGlobal keeps a single flat order shared by every pipeline.
	ScopeGlobal OrderScope = "global"
)

func ParseOrderScope(s string) OrderScope {
	if OrderScope(s) == ScopeGlobal {
		return ScopeGlobal
	}
	return ScopePipeline
}

// OrderStore remembers the last manual column arrangement for the lifetime of
// the process. Nothing is persisted: a restart falls back to the natural order.
type OrderStore struct {
	mu     sync.RWMutex
	scope  OrderScope
	orders map[string][]string
}

func NewOrderStore(scope OrderScope) *OrderStore {
	return &OrderStore{
		scope:  scope,
		orders: make(map[string][]string),
	}
}

func (s *OrderStore) Scope() OrderScope {
	return s.scope
}

// SetOrder replaces the order wholesale. Membership is not validated.
func (s *OrderStore) SetOrder(pipelineID string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) == 0 {
		delete(s.orders, s.key(pipelineID))
		return
	}
	s.orders[s.key(pipelineID)] = slices.Clone(ids)
}

func (s *OrderStore) Order(pipelineID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.orders[s.key(pipelineID)])
}

func (s *OrderStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.orders)
}

func (s *OrderStore) key(pipelineID string) string {
	if s.scope == ScopeGlobal {
		return ""
	}
	return pipelineID
}

// SortStages returns the stages in display order: ids present in order come
// first in list order, the rest follow in natural order. Ids in order that are
// not part of stages are ignored.
func SortStages(stages []entity.Stage, order []string) []entity.Stage {
	natural := slices.Clone(stages)
	entity.SortStagesNatural(natural)
	if len(order) == 0 {
		return natural
	}

	out := make([]entity.Stage, 0, len(natural))
	placed := make(map[string]bool, len(order))
	for _, id := range order {
		if placed[id] {
			continue
		}
		if st, ok := entity.FindStage(natural, id); ok {
			out = append(out, st)
			placed[id] = true
		}
	}
	for _, st := range natural {
		if !placed[st.ID] {
			out = append(out, st)
		}
	}
	return out
}
