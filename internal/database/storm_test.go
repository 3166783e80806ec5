package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stormDB(t *testing.T) *storm.DB {
	t.Helper()

	db, err := StormOpen(filepath.Join(t.TempDir(), "playerdata.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	require.NoError(t, StormInit(db))
	return db
}

func TestStorm_Scenario(t *testing.T) {
	c := NewStorm(stormDB(t))
	ctx := context.Background()

	score, err := c.AddScore(ctx, "alice", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, score.ID)
	assert.False(t, score.CreatedAt.IsZero())

	updated, err := c.UpdateScore(ctx, "alice", 20)
	require.NoError(t, err)
	assert.Equal(t, score.ID, updated.ID)
	assert.Equal(t, 20, updated.Score)

	found, err := c.FindScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 20, found.Score)
	assert.Equal(t, "alice", found.PlayerName)

	// Zero is a valid score.
	_, err = c.UpdateScore(ctx, "alice", 0)
	require.NoError(t, err)
	found, err = c.FindScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, found.Score)

	require.NoError(t, c.DeleteScore(ctx, "alice"))
	_, err = c.FindScore(ctx, "alice")
	assert.True(t, apperror.IsNotFound(err))
}

func TestStorm_NotFound(t *testing.T) {
	c := NewStorm(stormDB(t))
	ctx := context.Background()

	_, err := c.FindScore(ctx, "nonexistent_player")
	assert.True(t, apperror.IsNotFound(err))

	_, err = c.UpdateScore(ctx, "nonexistent_player", 42)
	assert.True(t, apperror.IsNotFound(err))

	err = c.DeleteScore(ctx, "nonexistent_player")
	assert.True(t, apperror.IsNotFound(err))
}

func TestStorm_Duplicates(t *testing.T) {
	c := NewStorm(stormDB(t))
	ctx := context.Background()

	oldest, err := c.AddScore(ctx, "player_001", 1500)
	require.NoError(t, err)
	newest, err := c.AddScore(ctx, "player_001", 900)
	require.NoError(t, err)
	assert.NotEqual(t, oldest.ID, newest.ID)

	found, err := c.FindScore(ctx, "player_001")
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, found.ID)

	updated, err := c.UpdateScore(ctx, "player_001", 2000)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, updated.ID)

	require.NoError(t, c.DeleteScore(ctx, "player_001"))

	found, err = c.FindScore(ctx, "player_001")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, found.ID)
	assert.Equal(t, 900, found.Score)
}

func TestStorm_OldestBySubsecondTimestamp(t *testing.T) {
	db := stormDB(t)
	c := NewStorm(db)
	ctx := context.Background()

	// Serialized timestamps without fractional seconds sort after the ones with.
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	node := db.From(ScoresNode)
	require.NoError(t, node.Save(&model.Score{
		Base:       model.Base{ID: "9d0b1c3e-0000-4000-8000-000000000002", CreatedAt: t0.Add(500 * time.Millisecond)},
		PlayerName: "alice",
		Score:      2,
	}))
	require.NoError(t, node.Save(&model.Score{
		Base:       model.Base{ID: "9d0b1c3e-0000-4000-8000-000000000001", CreatedAt: t0},
		PlayerName: "alice",
		Score:      1,
	}))

	found, err := c.FindScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, found.Score)

	scores, err := c.ListScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, scores[0].Score)
	assert.Equal(t, 2, scores[1].Score)

	updated, err := c.UpdateScore(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, "9d0b1c3e-0000-4000-8000-000000000001", updated.ID)

	require.NoError(t, c.DeleteScore(ctx, "alice"))
	found, err = c.FindScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, found.Score)
}

func TestStorm_ListScores(t *testing.T) {
	c := NewStorm(stormDB(t))
	ctx := context.Background()

	scores, err := c.ListScores(ctx)
	require.NoError(t, err)
	assert.Empty(t, scores)

	for i := 0; i < 150; i++ {
		_, err := c.AddScore(ctx, fmt.Sprintf("player_%03d", i), i)
		require.NoError(t, err)
	}

	scores, err = c.ListScores(ctx)
	require.NoError(t, err)
	assert.Len(t, scores, ListLimit)
	assert.Equal(t, "player_000", scores[0].PlayerName)
	assert.Equal(t, "player_099", scores[ListLimit-1].PlayerName)
}

func TestStorm_ReIndex(t *testing.T) {
	db := stormDB(t)
	c := NewStorm(db)
	ctx := context.Background()

	_, err := c.AddScore(ctx, "player_042", 42)
	require.NoError(t, err)

	require.NoError(t, StormReIndex(db))

	found, err := c.FindScore(ctx, "player_042")
	require.NoError(t, err)
	assert.Equal(t, 42, found.Score)
}
