package badger

import (
	"context"
	"testing"

	"github.com/poiesic/predindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointStore(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	task := "Kalshi/market/active"

	cp, err := stores.Checkpoints.LoadCheckpoint(ctx, task)
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Task: task, Cursor: "c2", Pages: 1}))
	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Task: task, Cursor: "c3", Pages: 2}))

	cp, err = stores.Checkpoints.LoadCheckpoint(ctx, task)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "c3", cp.Cursor)
	assert.Equal(t, 2, cp.Pages)
	assert.False(t, cp.UpdatedAt.IsZero())

	require.NoError(t, stores.Checkpoints.ClearCheckpoint(ctx, task))
	cp, err = stores.Checkpoints.LoadCheckpoint(ctx, task)
	require.NoError(t, err)
	assert.Nil(t, cp)

	// clearing a missing checkpoint is fine
	require.NoError(t, stores.Checkpoints.ClearCheckpoint(ctx, "Polymarket/market/"))
}
