package database

import (
	"context"
	"testing"

	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongo_AddScore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		score, err := c.AddScore(context.Background(), "alice", 10)
		require.NoError(mt, err)
		assert.Len(mt, score.ID, 24)
		assert.Equal(mt, "alice", score.PlayerName)
		assert.Equal(mt, 10, score.Score)
	})

	mt.Run("failure", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := c.AddScore(context.Background(), "alice", 10)
		assert.ErrorIs(mt, err, apperror.ErrStoreUnavailable)
	})
}

func TestMongo_FindScore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.scores", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "player_name", Value: "player_003"},
			{Key: "score", Value: 3200},
		}))

		score, err := c.FindScore(context.Background(), "player_003")
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), score.ID)
		assert.Equal(mt, 3200, score.Score)
	})

	mt.Run("not found", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.scores", mtest.FirstBatch))

		_, err := c.FindScore(context.Background(), "nonexistent_player")
		assert.True(mt, apperror.IsNotFound(err))
	})
}

func TestMongo_ListScores(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.scores", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "player_name", Value: "player_001"},
				{Key: "score", Value: 1500},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "player_name", Value: "player_002"},
				{Key: "score", Value: 2450},
			},
		))

		scores, err := c.ListScores(context.Background())
		require.NoError(mt, err)
		require.Len(mt, scores, 2)
		assert.Equal(mt, "player_001", scores[0].PlayerName)
		assert.Equal(mt, 2450, scores[1].Score)
	})
}

func TestMongo_UpdateScore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "player_name", Value: "alice"},
			{Key: "score", Value: 20},
		}}))

		score, err := c.UpdateScore(context.Background(), "alice", 20)
		require.NoError(mt, err)
		assert.Equal(mt, 20, score.Score)
	})

	mt.Run("not found", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := c.UpdateScore(context.Background(), "nonexistent_player", 20)
		assert.True(mt, apperror.IsNotFound(err))
	})
}

func TestMongo_DeleteScore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "player_name", Value: "alice"},
			{Key: "score", Value: 20},
		}}))

		assert.NoError(mt, c.DeleteScore(context.Background(), "alice"))
	})

	mt.Run("not found", func(mt *mtest.T) {
		c := &mongodb{scores: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		err := c.DeleteScore(context.Background(), "nonexistent_player")
		assert.True(mt, apperror.IsNotFound(err))
	})
}

func TestMongoInit(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(mt, MongoInit(context.Background(), mt.DB))
	})
}
