package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadboard/internal/entity"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession()
	_, ok := s.Item()
	assert.False(t, ok)
	assert.Equal(t, "idle", s.State().String())

	require.NoError(t, s.begin(DragItem{Kind: ItemCard, ID: "1"}))
	item, ok := s.Item()
	assert.True(t, ok)
	assert.Equal(t, "1", item.ID)

	snap := []entity.Lead{{ID: "1"}}
	s.reconcile(snap)
	assert.Equal(t, StateReconciling, s.State())
	assert.Equal(t, snap, s.Snapshot())
	assert.ErrorIs(t, s.begin(DragItem{Kind: ItemCard, ID: "2"}), ErrDragInProgress)

	s.reset()
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Snapshot())
}

func TestSessionRejectsInvalidItems(t *testing.T) {
	s := NewSession()
	assert.ErrorIs(t, s.begin(DragItem{Kind: "row", ID: "1"}), ErrInvalidItem)
	assert.ErrorIs(t, s.begin(DragItem{Kind: ItemColumn}), ErrInvalidItem)
	assert.Equal(t, StateIdle, s.State())
}
