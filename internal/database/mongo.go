package database

import (
	"context"
	"time"

	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ScoresCollection is the MongoDB collection holding the scores.
const ScoresCollection = "scores"

type mongodb struct {
	scores *mongo.Collection
}

// mongoScore is a document of the scores collection.
type mongoScore struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	PlayerName string             `bson:"player_name"`
	Score      int                `bson:"score"`
}

// MongoConnect connects to MongoDB and checks the connection within timeout.
// The returned client must be disconnected by the caller.
func MongoConnect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to MongoDB")
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err = client.Ping(pctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(err, "could not ping MongoDB")
	}
	return client, nil
}

// MongoInit creates the index used by the player name lookups.
func MongoInit(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(ScoresCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "player_name", Value: 1},
			{Key: "_id", Value: 1},
		},
	})
	return errors.Wrap(err, "could not create score index")
}

// NewMongo returns a Client storing the scores in the given MongoDB database.
func NewMongo(db *mongo.Database) Client {
	return &mongodb{
		scores: db.Collection(ScoresCollection),
	}
}

func (c *mongodb) AddScore(ctx context.Context, playerName string, score int) (*model.Score, error) {
	result, err := c.scores.InsertOne(ctx, mongoScore{
		PlayerName: playerName,
		Score:      score,
	})
	if err != nil {
		return nil, apperror.Unavailable("scores.Add", errors.Wrap(err, "could not insert score"))
	}

	doc := mongoScore{PlayerName: playerName, Score: score}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.score(), nil
}

func (c *mongodb) FindScore(ctx context.Context, playerName string) (*model.Score, error) {
	var doc mongoScore
	err := c.scores.FindOne(ctx, bson.M{"player_name": playerName}, options.FindOne().SetSort(oldestFirst())).Decode(&doc)
	if err != nil {
		return nil, c.classify("scores.Find", err)
	}
	return doc.score(), nil
}

func (c *mongodb) ListScores(ctx context.Context) ([]*model.Score, error) {
	const op = "scores.List"

	cursor, err := c.scores.Find(ctx, bson.M{}, options.Find().SetSort(oldestFirst()).SetLimit(ListLimit))
	if err != nil {
		return nil, apperror.Unavailable(op, errors.Wrap(err, "could not list scores"))
	}
	defer cursor.Close(ctx)

	scores := make([]*model.Score, 0)
	for cursor.Next(ctx) {
		var doc mongoScore
		if err := cursor.Decode(&doc); err != nil {
			return nil, apperror.Unavailable(op, errors.Wrap(err, "could not decode score"))
		}
		scores = append(scores, doc.score())
	}

	return scores, apperror.Unavailable(op, cursor.Err())
}

func (c *mongodb) UpdateScore(ctx context.Context, playerName string, score int) (*model.Score, error) {
	opts := options.FindOneAndUpdate().
		SetSort(oldestFirst()).
		SetReturnDocument(options.After)

	var doc mongoScore
	err := c.scores.FindOneAndUpdate(ctx, bson.M{"player_name": playerName}, bson.M{"$set": bson.M{"score": score}}, opts).Decode(&doc)
	if err != nil {
		return nil, c.classify("scores.Update", err)
	}
	return doc.score(), nil
}

func (c *mongodb) DeleteScore(ctx context.Context, playerName string) error {
	opts := options.FindOneAndDelete().SetSort(oldestFirst())

	err := c.scores.FindOneAndDelete(ctx, bson.M{"player_name": playerName}, opts).Err()
	if err != nil {
		return c.classify("scores.Delete", err)
	}
	return nil
}

func (c *mongodb) classify(op string, err error) error {
	if err == mongo.ErrNoDocuments {
		return apperror.NotFound(op)
	}
	return apperror.Unavailable(op, err)
}

// oldestFirst sorts on the ObjectID which starts with the creation timestamp.
func oldestFirst() bson.D {
	return bson.D{{Key: "_id", Value: 1}}
}

func (d *mongoScore) score() *model.Score {
	m := &model.Score{
		PlayerName: d.PlayerName,
		Score:      d.Score,
	}
	if !d.ID.IsZero() {
		m.SetID(d.ID.Hex())
		m.SetCreatedAt(d.ID.Timestamp().UTC())
	}
	return m
}
