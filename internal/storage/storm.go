package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	node  storm.Node
	col   Collection
	grace time.Duration
}

// NewStorm returns a new Storm backend storing the collection in its own node of db.
// Chunks are persisted first and the record last, so a record is never visible before its content.
func NewStorm(db storm.Node, col Collection, grace time.Duration) Backend {
	return &strm{
		node:  db.From(col.Name),
		col:   col,
		grace: grace,
	}
}

// StormInit initializes the buckets and indexes of the given collections.
func StormInit(db storm.Node, collections ...Collection) error {
	for _, col := range collections {
		node := db.From(col.Name)

		if err := node.Init(&model.Blob{}); err != nil {
			return errors.Wrapf(err, "could not init %s blob index", col.Name)
		}

		if err := node.Init(&model.Chunk{}); err != nil {
			return errors.Wrapf(err, "could not init %s chunk index", col.Name)
		}
	}
	return nil
}

// StormReIndex rebuilds the indexes of the given collections.
func StormReIndex(db storm.Node, collections ...Collection) error {
	for _, col := range collections {
		node := db.From(col.Name)

		if err := node.ReIndex(&model.Blob{}); err != nil {
			return errors.Wrapf(err, "could not ReIndex %s blobs", col.Name)
		}

		if err := node.ReIndex(&model.Chunk{}); err != nil {
			return errors.Wrapf(err, "could not ReIndex %s chunks", col.Name)
		}
	}
	return nil
}

func (b *strm) Name() string {
	return "storm"
}

func (b *strm) Collection() Collection {
	return b.col
}

func (b *strm) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*model.Blob, error) {
	op := b.col.Name + ".Upload"
	if !b.col.Accepts(contentType) {
		return nil, apperror.UnsupportedType(op, contentType)
	}

	now := time.Now().UTC()
	blob := &model.Blob{
		Filename:    filename,
		ContentType: MediaType(contentType),
		ChunkSize:   b.col.chunkSize(),
		UploadDate:  now,
	}
	blob.SetID(uuid.Must(uuid.NewV4()).String())
	blob.SetCreatedAt(now)
	blob.SetUpdatedAt(now)

	//

	length, checksum, count, err := split(ctx, r, blob.ChunkSize, func(n int, data []byte) error {
		chunk := &model.Chunk{
			ID:        model.ChunkID(blob.ID, n),
			FileID:    blob.ID,
			N:         n,
			Data:      data,
			CreatedAt: now,
		}
		return apperror.Unavailable(op, errors.Wrap(b.node.Save(chunk), "could not save chunk"))
	})
	if err != nil {
		b.discard(blob.ID, count)
		return nil, err
	}

	blob.Length = length
	blob.Checksum = checksum
	blob.ChunkCount = count

	//

	if err = b.node.Save(blob); err != nil {
		b.discard(blob.ID, count)
		return nil, apperror.Unavailable(op, errors.Wrap(err, "could not save blob"))
	}

	return blob, nil
}

func (b *strm) OpenDownloadStream(ctx context.Context, id string) (*model.Blob, io.ReadCloser, error) {
	blob, err := b.Metadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	r := newChunkReader(ctx, blob.ChunkCount, func(ctx context.Context, n int) (io.ReadCloser, error) {
		var chunk model.Chunk
		err := b.node.One("ID", model.ChunkID(blob.ID, n), &chunk)
		if err != nil {
			if errors.Cause(err) == storm.ErrNotFound {
				return nil, errors.Wrapf(io.ErrUnexpectedEOF, "missing chunk %d of %s", n, blob.ID)
			}
			return nil, apperror.Unavailable(b.col.Name+".Download", err)
		}

		if len(chunk.Data) != expectedChunkLength(blob, n) {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "corrupted chunk %d of %s", n, blob.ID)
		}

		return io.NopCloser(bytes.NewReader(chunk.Data)), nil
	})
	return blob, r, nil
}

func (b *strm) Metadata(_ context.Context, id string) (*model.Blob, error) {
	op := b.col.Name + ".Metadata"
	if _, err := uuid.FromString(id); err != nil {
		return nil, apperror.InvalidInput(op, "malformed id")
	}

	var blob model.Blob
	err := b.node.One("ID", id, &blob)
	if err != nil {
		if errors.Cause(err) == storm.ErrNotFound {
			return nil, apperror.NotFound(op)
		}
		return nil, apperror.Unavailable(op, err)
	}
	return &blob, nil
}

func (b *strm) List(_ context.Context) ([]*model.Blob, error) {
	blobs := make([]*model.Blob, 0)
	err := b.node.Select().OrderBy("CreatedAt").Limit(ListLimit).Find(&blobs)
	if err != nil && errors.Cause(err) != storm.ErrNotFound {
		return nil, apperror.Unavailable(b.col.Name+".List", err)
	}
	return blobs, nil
}

func (b *strm) Delete(_ context.Context, id string) error {
	op := b.col.Name + ".Delete"
	if _, err := uuid.FromString(id); err != nil {
		return apperror.InvalidInput(op, "malformed id")
	}

	tx, err := b.node.Begin(true)
	if err != nil {
		return apperror.Unavailable(op, err)
	}
	defer tx.Rollback()

	var blob model.Blob
	err = tx.One("ID", id, &blob)
	if err != nil {
		if errors.Cause(err) == storm.ErrNotFound {
			return apperror.NotFound(op)
		}
		return apperror.Unavailable(op, err)
	}

	if err = tx.DeleteStruct(&blob); err != nil {
		return apperror.Unavailable(op, errors.Wrap(err, "could not delete blob"))
	}

	for n := 0; n < blob.ChunkCount; n++ {
		err = tx.DeleteStruct(&model.Chunk{ID: model.ChunkID(id, n)})
		if err != nil && errors.Cause(err) != storm.ErrNotFound {
			return apperror.Unavailable(op, errors.Wrap(err, "could not delete chunk"))
		}
	}

	return apperror.Unavailable(op, tx.Commit())
}

func (b *strm) Cleanup(ctx context.Context) error {
	op := b.col.Name + ".Cleanup"
	cutoff := time.Now().UTC().Add(-b.grace)

	// Collect candidates first, the existence checks can not run inside the iteration transaction.
	candidates := map[string][]string{}
	err := b.node.Select().Each(new(model.Chunk), func(record interface{}) error {
		chunk := record.(*model.Chunk)
		if chunk.CreatedAt.After(cutoff) {
			return nil
		}
		candidates[chunk.FileID] = append(candidates[chunk.FileID], chunk.ID)
		return nil
	})
	if err != nil && errors.Cause(err) != storm.ErrNotFound {
		return apperror.Unavailable(op, err)
	}

	//

	var orphans []string
	for fileID, chunks := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		var blob model.Blob
		err := b.node.One("ID", fileID, &blob)
		if err == nil {
			continue
		}
		if errors.Cause(err) != storm.ErrNotFound {
			return apperror.Unavailable(op, err)
		}
		orphans = append(orphans, chunks...)
	}

	if len(orphans) == 0 {
		return nil
	}

	tx, err := b.node.Begin(true)
	if err != nil {
		return apperror.Unavailable(op, err)
	}
	defer tx.Rollback()

	for _, id := range orphans {
		err = tx.DeleteStruct(&model.Chunk{ID: id})
		if err != nil && errors.Cause(err) != storm.ErrNotFound {
			return apperror.Unavailable(op, errors.Wrap(err, "could not delete chunk"))
		}
	}

	return apperror.Unavailable(op, tx.Commit())
}

// discard removes the staged chunks of an aborted upload.
// Failures are ignored, leftovers are collected by Cleanup.
func (b *strm) discard(id string, count int) {
	tx, err := b.node.Begin(true)
	if err != nil {
		return
	}
	defer tx.Rollback()

	for n := 0; n < count; n++ {
		tx.DeleteStruct(&model.Chunk{ID: model.ChunkID(id, n)})
	}
	tx.Commit()
}

func expectedChunkLength(blob *model.Blob, n int) int {
	if n < blob.ChunkCount-1 {
		return blob.ChunkSize
	}
	return int(blob.Length - int64(blob.ChunkSize)*int64(blob.ChunkCount-1))
}
