package board

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry hands out one Controller per pipeline, loading it on first use.
// All controllers share the registry's OrderStore.
type Registry struct {
	deps Deps

	mu     sync.Mutex
	boards map[string]*Controller
}

func NewRegistry(deps Deps) *Registry {
	if deps.Orders == nil {
		deps.Orders = NewOrderStore(ScopePipeline)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Registry{
		deps:   deps,
		boards: make(map[string]*Controller),
	}
}

func (r *Registry) Orders() *OrderStore {
	return r.deps.Orders
}

func (r *Registry) Get(ctx context.Context, pipelineID string) (*Controller, error) {
	if pipelineID == "" {
		return nil, errors.New("pipeline id is required")
	}

	r.mu.Lock()
	c, ok := r.boards[pipelineID]
	if !ok {
		c = NewController(pipelineID, r.deps)
		r.boards[pipelineID] = c
	}
	r.mu.Unlock()

	if err := c.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Loaded returns the controllers created so far, sorted by pipeline id.
func (r *Registry) Loaded() []*Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Controller, 0, len(r.boards))
	for _, c := range r.boards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pipelineID < out[j].pipelineID })
	return out
}

// RefreshAll reloads every loaded board. A failing board does not stop the others.
func (r *Registry) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, c := range r.Loaded() {
		if err := c.Refresh(ctx); err != nil {
			r.deps.Logger.Warn("refresh board failed",
				zap.String("pipeline", c.PipelineID()),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RefreshPipeline reloads one board if it has been loaded. Boards nobody has
// opened yet are left alone; they load fresh on first Get.
func (r *Registry) RefreshPipeline(ctx context.Context, pipelineID string) error {
	r.mu.Lock()
	c, ok := r.boards[pipelineID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Refresh(ctx)
}
