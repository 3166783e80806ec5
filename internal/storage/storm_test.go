package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stormDB(t *testing.T) *storm.DB {
	t.Helper()

	db, err := storm.Open(filepath.Join(t.TempDir(), "playerdata.db"), storm.Codec(json.Codec))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	require.NoError(t, StormInit(db, Sprites(), Audio()))
	return db
}

func small(col Collection, size int) Collection {
	col.ChunkSize = size
	return col
}

func TestStorm_UnsupportedType(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()

	cases := []struct {
		col         Collection
		contentType string
	}{
		{col: Sprites(), contentType: "audio/mpeg"},
		{col: Sprites(), contentType: "text/plain"},
		{col: Sprites(), contentType: ""},
		{col: Audio(), contentType: "image/png"},
		{col: Audio(), contentType: "application/octet-stream"},
	}

	for _, c := range cases {
		backend := NewStorm(db, c.col, DefaultGracePeriod)

		_, err := backend.Upload(ctx, "file.bin", c.contentType, bytes.NewBufferString("data"))
		assert.True(t, apperror.IsUnsupportedType(err), c.contentType)

		blobs, err := backend.List(ctx)
		assert.NoError(t, err)
		assert.Empty(t, blobs)
	}
}

func TestStorm_RoundTrip(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, small(Sprites(), 16), DefaultGracePeriod)

	for _, size := range []int{0, 1, 15, 16, 17, 32, 55} {
		content := make([]byte, size)
		_, err := rand.Read(content)
		require.NoError(t, err)

		blob, err := backend.Upload(ctx, "hero_walk.png", "image/png", bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, int64(size), blob.Length)
		assert.Equal(t, model.ChunksFor(int64(size), 16), blob.ChunkCount)
		assert.Equal(t, "image/png", blob.ContentType)

		meta, r, err := backend.OpenDownloadStream(ctx, blob.ID)
		require.NoError(t, err)
		assert.Equal(t, blob.Checksum, meta.Checksum)

		data, err := io.ReadAll(r)
		assert.NoError(t, err)
		assert.NoError(t, r.Close())
		assert.Equal(t, content, data, "size %d", size)

		// A fresh stream starts over.
		_, r, err = backend.OpenDownloadStream(ctx, blob.ID)
		require.NoError(t, err)
		data, err = io.ReadAll(r)
		assert.NoError(t, err)
		assert.NoError(t, r.Close())
		assert.Equal(t, content, data, "size %d", size)
	}
}

func TestStorm_LargeAudio(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, Audio(), DefaultGracePeriod)

	content := make([]byte, 5<<20)
	_, err := rand.Read(content)
	require.NoError(t, err)
	expected := sha256.Sum256(content)

	blob, err := backend.Upload(ctx, "main_theme.mp3", "audio/mpeg", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 21, blob.ChunkCount)

	_, r, err := backend.OpenDownloadStream(ctx, blob.ID)
	require.NoError(t, err)
	defer r.Close()

	h := sha256.New()
	n, err := io.Copy(h, r)
	assert.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, expected[:], h.Sum(nil))
}

func TestStorm_Metadata(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, Sprites(), DefaultGracePeriod)

	blob, err := backend.Upload(ctx, "coin_spin.png", "image/png; charset=binary", bytes.NewBufferString("png"))
	require.NoError(t, err)

	meta, err := backend.Metadata(ctx, blob.ID)
	require.NoError(t, err)
	assert.Equal(t, blob.ID, meta.ID)
	assert.Equal(t, "coin_spin.png", meta.Filename)
	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, int64(3), meta.Length)
	assert.Equal(t, DefaultChunkSize, meta.ChunkSize)
	sum := md5.Sum([]byte("png"))
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.Checksum)
	assert.WithinDuration(t, time.Now(), meta.UploadDate, time.Minute)

	_, err = backend.Metadata(ctx, "a'b")
	assert.True(t, apperror.IsInvalidInput(err))

	_, err = backend.Metadata(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e")
	assert.True(t, apperror.IsNotFound(err))
}

func TestStorm_CollectionsAreIsolated(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	sprites := NewStorm(db, Sprites(), DefaultGracePeriod)
	audio := NewStorm(db, Audio(), DefaultGracePeriod)

	blob, err := sprites.Upload(ctx, "door_open.png", "image/png", bytes.NewBufferString("door"))
	require.NoError(t, err)

	_, err = audio.Metadata(ctx, blob.ID)
	assert.True(t, apperror.IsNotFound(err))
	_, _, err = audio.OpenDownloadStream(ctx, blob.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.True(t, apperror.IsNotFound(audio.Delete(ctx, blob.ID)))

	_, err = sprites.Metadata(ctx, blob.ID)
	assert.NoError(t, err)
}

func TestStorm_Delete(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, small(Sprites(), 4), DefaultGracePeriod)

	blob, err := backend.Upload(ctx, "trap_spike.png", "image/png", bytes.NewBufferString("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 3, chunks(t, db, "sprites"))

	require.NoError(t, backend.Delete(ctx, blob.ID))

	_, err = backend.Metadata(ctx, blob.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, 0, chunks(t, db, "sprites"))

	assert.True(t, apperror.IsNotFound(backend.Delete(ctx, blob.ID)))
	assert.True(t, apperror.IsInvalidInput(backend.Delete(ctx, "<tag>")))
}

func TestStorm_ListIsCapped(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, Sprites(), DefaultGracePeriod)

	var first string
	for i := 0; i < 150; i++ {
		blob, err := backend.Upload(ctx, "npc_villager.png", "image/png", bytes.NewReader(nil))
		require.NoError(t, err)
		if i == 0 {
			first = blob.ID
		}
	}

	blobs, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Len(t, blobs, ListLimit)
	assert.Equal(t, first, blobs[0].ID)
}

func TestStorm_ListOrder(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, Sprites(), DefaultGracePeriod)

	blobs, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs)

	var ids []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		blob, err := backend.Upload(ctx, name, "image/png", bytes.NewBufferString(name))
		require.NoError(t, err)
		ids = append(ids, blob.ID)
	}

	blobs, err = backend.List(ctx)
	require.NoError(t, err)
	require.Len(t, blobs, 3)
	for i, blob := range blobs {
		assert.Equal(t, ids[i], blob.ID)
	}
}

func TestStorm_ListOrderBySubsecondTimestamp(t *testing.T) {
	db := stormDB(t)
	backend := NewStorm(db, Sprites(), DefaultGracePeriod)

	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	node := db.From("sprites")
	for _, blob := range []*model.Blob{
		{Base: model.Base{ID: "later", CreatedAt: t0.Add(500 * time.Millisecond)}, Filename: "b.png"},
		{Base: model.Base{ID: "earlier", CreatedAt: t0}, Filename: "a.png"},
	} {
		require.NoError(t, node.Save(blob))
	}

	blobs, err := backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "earlier", blobs[0].ID)
	assert.Equal(t, "later", blobs[1].ID)
}

func TestStorm_DownloadCancel(t *testing.T) {
	db := stormDB(t)
	backend := NewStorm(db, small(Audio(), 4), DefaultGracePeriod)

	blob, err := backend.Upload(context.Background(), "jump.wav", "audio/wav", bytes.NewBufferString("0123456789"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, r, err := backend.OpenDownloadStream(ctx, blob.ID)
	require.NoError(t, err)

	p := make([]byte, 4)
	_, err = io.ReadFull(r, p)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(p))

	cancel()
	_, err = io.ReadAll(r)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestStorm_UploadFailureLeavesNothing(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, small(Audio(), 4), DefaultGracePeriod)

	r := io.MultiReader(bytes.NewBufferString("0123456789"), &failingReader{})
	_, err := backend.Upload(ctx, "explosion.wav", "audio/wav", r)
	assert.Error(t, err)

	blobs, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs)
	assert.Equal(t, 0, chunks(t, db, "audio"))
}

func TestStorm_Cleanup(t *testing.T) {
	db := stormDB(t)
	ctx := context.Background()
	backend := NewStorm(db, small(Sprites(), 4), time.Hour)

	blob, err := backend.Upload(ctx, "boss_roar.png", "image/png", bytes.NewBufferString("0123456789"))
	require.NoError(t, err)

	node := db.From("sprites")
	old := time.Now().UTC().Add(-2 * time.Hour)
	for n := 0; n < 2; n++ {
		require.NoError(t, node.Save(&model.Chunk{
			ID:        model.ChunkID("orphan", n),
			FileID:    "orphan",
			N:         n,
			Data:      []byte("lost"),
			CreatedAt: old,
		}))
	}
	require.NoError(t, node.Save(&model.Chunk{
		ID:        model.ChunkID("staging", 0),
		FileID:    "staging",
		Data:      []byte("wip"),
		CreatedAt: time.Now().UTC(),
	}))
	assert.Equal(t, 6, chunks(t, db, "sprites"))

	require.NoError(t, backend.Cleanup(ctx))
	assert.Equal(t, 4, chunks(t, db, "sprites"))

	_, r, err := backend.OpenDownloadStream(ctx, blob.ID)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func chunks(t *testing.T, db *storm.DB, name string) int {
	t.Helper()

	n, err := db.From(name).Count(&model.Chunk{})
	require.NoError(t, err)
	return n
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}
