package database

import (
	"context"

	"github.com/mdouchement/playerdata/internal/model"
)

// ListLimit is the maximum number of scores returned by ListScores.
const ListLimit = 100

type (
	// A Client can interacts with the database.
	//
	// Player names are not unique. When several scores share the same name,
	// FindScore, UpdateScore and DeleteScore all target the oldest one.
	Client interface {
		ScoreInteraction
	}

	// A ScoreInteraction defines all the methods used to interact with a score record.
	ScoreInteraction interface {
		// AddScore inserts a new score, duplicated player names are allowed.
		AddScore(ctx context.Context, playerName string, score int) (*model.Score, error)
		// FindScore returns the score of the given player.
		FindScore(ctx context.Context, playerName string) (*model.Score, error)
		// ListScores returns at most ListLimit scores in insertion order.
		ListScores(ctx context.Context) ([]*model.Score, error)
		// UpdateScore sets the score of the given player and returns the updated record.
		UpdateScore(ctx context.Context, playerName string, score int) (*model.Score, error)
		// DeleteScore removes the score of the given player.
		DeleteScore(ctx context.Context, playerName string) error
	}
)
