package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"time"

	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type gridFS struct {
	db  *mongo.Database
	col Collection
}

// gridfsFile is a document of the `<bucket>.files' collection.
type gridfsFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	ChunkSize  int32              `bson:"chunkSize"`
	UploadDate time.Time          `bson:"uploadDate"`
	Filename   string             `bson:"filename"`
	Metadata   struct {
		ContentType string `bson:"contentType"`
		MD5         string `bson:"md5"`
	} `bson:"metadata"`
}

// NewGridFS returns a new backend using the GridFS bucket named after the collection.
// GridFS writes the files document after all the chunks, so partial uploads are never visible.
func NewGridFS(db *mongo.Database, col Collection) Backend {
	return &gridFS{
		db:  db,
		col: col,
	}
}

func (b *gridFS) Name() string {
	return "gridfs"
}

func (b *gridFS) Collection() Collection {
	return b.col
}

func (b *gridFS) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*model.Blob, error) {
	op := b.col.Name + ".Upload"
	if !b.col.Accepts(contentType) {
		return nil, apperror.UnsupportedType(op, contentType)
	}

	bucket, err := b.bucket(ctx)
	if err != nil {
		return nil, apperror.Unavailable(op, err)
	}

	h := md5.New()
	metadata := bson.D{{Key: "contentType", Value: MediaType(contentType)}}
	oid, err := bucket.UploadFromStream(filename, io.TeeReader(&ctxReader{ctx: ctx, rc: io.NopCloser(r)}, h), options.GridFSUpload().SetMetadata(metadata))
	if err != nil {
		return nil, apperror.Unavailable(op, errors.Wrap(err, "could not upload"))
	}

	// The checksum is only known once the content has been consumed.
	_, err = b.files().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"metadata.md5": hex.EncodeToString(h.Sum(nil))},
	})
	if err != nil {
		bucket.Delete(oid)
		return nil, apperror.Unavailable(op, errors.Wrap(err, "could not set checksum"))
	}

	return b.Metadata(ctx, oid.Hex())
}

func (b *gridFS) OpenDownloadStream(ctx context.Context, id string) (*model.Blob, io.ReadCloser, error) {
	op := b.col.Name + ".Download"

	blob, err := b.Metadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	oid, _ := primitive.ObjectIDFromHex(blob.ID)

	bucket, err := b.bucket(ctx)
	if err != nil {
		return nil, nil, apperror.Unavailable(op, err)
	}

	stream, err := bucket.OpenDownloadStream(oid)
	if err != nil {
		if err == gridfs.ErrFileNotFound {
			return nil, nil, apperror.NotFound(op)
		}
		return nil, nil, apperror.Unavailable(op, err)
	}

	return blob, &ctxReader{ctx: ctx, rc: stream}, nil
}

func (b *gridFS) Metadata(ctx context.Context, id string) (*model.Blob, error) {
	op := b.col.Name + ".Metadata"
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.InvalidInput(op, "malformed id")
	}

	var file gridfsFile
	err = b.files().FindOne(ctx, bson.M{"_id": oid}).Decode(&file)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperror.NotFound(op)
		}
		return nil, apperror.Unavailable(op, err)
	}

	return file.blob(), nil
}

func (b *gridFS) List(ctx context.Context) ([]*model.Blob, error) {
	op := b.col.Name + ".List"

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(ListLimit)
	cursor, err := b.files().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperror.Unavailable(op, err)
	}
	defer cursor.Close(ctx)

	blobs := make([]*model.Blob, 0)
	for cursor.Next(ctx) {
		var file gridfsFile
		if err := cursor.Decode(&file); err != nil {
			return nil, apperror.Unavailable(op, errors.Wrap(err, "could not decode file"))
		}
		blobs = append(blobs, file.blob())
	}

	return blobs, apperror.Unavailable(op, cursor.Err())
}

func (b *gridFS) Delete(ctx context.Context, id string) error {
	op := b.col.Name + ".Delete"
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperror.InvalidInput(op, "malformed id")
	}

	bucket, err := b.bucket(ctx)
	if err != nil {
		return apperror.Unavailable(op, err)
	}

	// The driver removes the files document before the chunks.
	err = bucket.Delete(oid)
	if err != nil {
		if err == gridfs.ErrFileNotFound {
			return apperror.NotFound(op)
		}
		return apperror.Unavailable(op, err)
	}
	return nil
}

// Cleanup is a no-op, the driver aborts failed uploads by removing their chunks.
func (b *gridFS) Cleanup(_ context.Context) error {
	return nil
}

// bucket returns a bucket bound to the deadline of ctx.
// Deadlines are bucket wide so a bucket is never shared between operations.
func (b *gridFS) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	opts := options.GridFSBucket().
		SetName(b.col.Name).
		SetChunkSizeBytes(int32(b.col.chunkSize()))

	bucket, err := gridfs.NewBucket(b.db, opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not get bucket")
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err = bucket.SetWriteDeadline(deadline); err != nil {
			return nil, errors.Wrap(err, "could not set write deadline")
		}
		if err = bucket.SetReadDeadline(deadline); err != nil {
			return nil, errors.Wrap(err, "could not set read deadline")
		}
	}

	return bucket, nil
}

func (b *gridFS) files() *mongo.Collection {
	return b.db.Collection(b.col.Name + ".files")
}

func (f *gridfsFile) blob() *model.Blob {
	uploaded := f.UploadDate.UTC()
	blob := &model.Blob{
		Filename:    f.Filename,
		ContentType: f.Metadata.ContentType,
		Length:      f.Length,
		ChunkSize:   int(f.ChunkSize),
		ChunkCount:  model.ChunksFor(f.Length, int(f.ChunkSize)),
		Checksum:    f.Metadata.MD5,
		UploadDate:  uploaded,
	}
	blob.SetID(f.ID.Hex())
	blob.SetCreatedAt(uploaded)
	blob.SetUpdatedAt(uploaded)
	return blob
}
