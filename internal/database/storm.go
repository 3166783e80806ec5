package database

import (
	"context"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/pkg/errors"
)

// ScoresNode is the Storm node holding the scores.
const ScoresNode = "scores"

type strm struct {
	node storm.Node
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

// StormOpen opens the Storm database.
// The returned database is shared by the score client and the blob backends and must be closed by the caller.
func StormOpen(database string) (*storm.DB, error) {
	db, err := storm.Open(database, StormCodec)
	return db, errors.Wrap(err, "could not get database connection")
}

// StormInit initializes the score bucket and indexes.
func StormInit(db storm.Node) error {
	err := db.From(ScoresNode).Init(&model.Score{})
	return errors.Wrap(err, "could not init score index")
}

// StormReIndex rebuilds the score indexes.
func StormReIndex(db storm.Node) error {
	err := db.From(ScoresNode).ReIndex(&model.Score{})
	return errors.Wrap(err, "could not ReIndex scores")
}

// NewStorm returns a Client storing the scores in the given Storm database.
func NewStorm(db storm.Node) Client {
	return &strm{
		node: db.From(ScoresNode),
	}
}

func (c *strm) save(node storm.Node, m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(node.Save(m), "could not save the model")
}

func (c *strm) AddScore(_ context.Context, playerName string, score int) (*model.Score, error) {
	m := &model.Score{
		PlayerName: playerName,
		Score:      score,
	}

	if err := c.save(c.node, m); err != nil {
		return nil, apperror.Unavailable("scores.Add", err)
	}
	return m, nil
}

func (c *strm) FindScore(_ context.Context, playerName string) (*model.Score, error) {
	score, err := c.first(c.node, playerName)
	if err != nil {
		return nil, c.classify("scores.Find", err)
	}
	return score, nil
}

func (c *strm) ListScores(_ context.Context) ([]*model.Score, error) {
	scores := make([]*model.Score, 0)
	err := c.node.Select().OrderBy("CreatedAt").Limit(ListLimit).Find(&scores)
	if err != nil && !c.isNotFound(err) {
		return nil, apperror.Unavailable("scores.List", errors.Wrap(err, "could not get all scores"))
	}
	return scores, nil
}

func (c *strm) UpdateScore(_ context.Context, playerName string, score int) (*model.Score, error) {
	const op = "scores.Update"

	tx, err := c.node.Begin(true)
	if err != nil {
		return nil, apperror.Unavailable(op, err)
	}
	defer tx.Rollback()

	m, err := c.first(tx, playerName)
	if err != nil {
		return nil, c.classify(op, err)
	}

	m.Score = score
	if err = c.save(tx, m); err != nil {
		return nil, apperror.Unavailable(op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, apperror.Unavailable(op, err)
	}
	return m, nil
}

func (c *strm) DeleteScore(_ context.Context, playerName string) error {
	const op = "scores.Delete"

	tx, err := c.node.Begin(true)
	if err != nil {
		return apperror.Unavailable(op, err)
	}
	defer tx.Rollback()

	m, err := c.first(tx, playerName)
	if err != nil {
		return c.classify(op, err)
	}

	if err = tx.DeleteStruct(m); err != nil {
		return apperror.Unavailable(op, errors.Wrap(err, "could not delete the model"))
	}

	return apperror.Unavailable(op, tx.Commit())
}

// first returns the oldest score of the given player.
func (c *strm) first(node storm.Node, playerName string) (*model.Score, error) {
	var score model.Score
	err := node.Select(q.Eq("PlayerName", playerName)).OrderBy("CreatedAt").First(&score)
	return &score, errors.Wrap(err, "could not find score")
}

func (c *strm) classify(op string, err error) error {
	if c.isNotFound(err) {
		return apperror.NotFound(op)
	}
	return apperror.Unavailable(op, err)
}

func (c *strm) isNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}
