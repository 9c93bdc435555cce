package board

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadboard/internal/entity"
)

func TestRegistryLoadsOnceAndSharesOrders(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	gw.On("ListStages", mock.Anything, mock.Anything).Return(testStages(), nil)
	gw.On("ListLeads", mock.Anything, mock.Anything).Return(testLeads(), nil)

	r := NewRegistry(Deps{Gateway: gw})

	c1, err := r.Get(ctx, pipelineID)
	require.NoError(t, err)
	c2, err := r.Get(ctx, pipelineID)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	gw.AssertNumberOfCalls(t, "ListLeads", 1)
	assert.Same(t, r.Orders(), c1.deps.Orders)
}

func TestRegistryRequiresPipeline(t *testing.T) {
	r := NewRegistry(Deps{Gateway: new(MockGateway)})
	_, err := r.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestRegistryRefreshAllReportsFailures(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	gw.On("ListStages", mock.Anything, mock.Anything).Return(testStages(), nil)
	gw.On("ListLeads", mock.Anything, entity.LeadFilter{PipelineID: "p1"}).Return(testLeads(), nil)
	gw.On("ListLeads", mock.Anything, entity.LeadFilter{PipelineID: "p2"}).Return(nil, errors.New("down")).Once()
	gw.On("ListLeads", mock.Anything, entity.LeadFilter{PipelineID: "p2"}).Return(nil, errors.New("still down"))

	r := NewRegistry(Deps{Gateway: gw})
	_, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	_, err = r.Get(ctx, "p2")
	require.Error(t, err)

	assert.Len(t, r.Loaded(), 2)
	assert.Error(t, r.RefreshAll(ctx))
}

func TestRegistryRefreshPipelineSkipsUnloadedBoards(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	gw.On("ListStages", mock.Anything, mock.Anything).Return(testStages(), nil)
	gw.On("ListLeads", mock.Anything, mock.Anything).Return(testLeads(), nil)

	r := NewRegistry(Deps{Gateway: gw})
	require.NoError(t, r.RefreshPipeline(ctx, "never-opened"))
	gw.AssertNotCalled(t, "ListLeads", mock.Anything, mock.Anything)

	c, err := r.Get(ctx, pipelineID)
	require.NoError(t, err)
	before := c.Version()

	require.NoError(t, r.RefreshPipeline(ctx, pipelineID))
	assert.Greater(t, c.Version(), before)
	gw.AssertNumberOfCalls(t, "ListLeads", 2)
}
