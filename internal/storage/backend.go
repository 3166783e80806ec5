package storage

import (
	"context"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/mdouchement/playerdata/internal/model"
)

const (
	// ListLimit is the maximum number of records returned by a listing.
	ListLimit = 100
	// DefaultChunkSize is the chunk size used when a Collection does not define one (255 KiB like GridFS).
	DefaultChunkSize = 255 << 10
	// DefaultGracePeriod is the age from which an unreferenced chunk is considered orphaned.
	DefaultGracePeriod = time.Hour
)

type (
	// Backend is the interface that wraps the blob operations of one collection.
	Backend interface {
		// Name returns the name of the backend implementation.
		Name() string
		// Collection returns the collection served by the backend.
		Collection() Collection

		// Upload stores the content read from r and returns its record.
		// The record is only visible once all its chunks are persisted.
		Upload(ctx context.Context, filename, contentType string, r io.Reader) (*model.Blob, error)
		// OpenDownloadStream returns the record and a lazy reader of its content.
		// The reader must be closed by the caller.
		OpenDownloadStream(ctx context.Context, id string) (*model.Blob, io.ReadCloser, error)
		// Metadata returns the record without content.
		Metadata(ctx context.Context, id string) (*model.Blob, error)
		// List returns at most ListLimit records in insertion order.
		List(ctx context.Context) ([]*model.Blob, error)
		// Delete removes the record and all its chunks.
		Delete(ctx context.Context, id string) error

		// Cleanup removes chunks left behind by aborted uploads or deletions.
		Cleanup(ctx context.Context) error
	}

	// A Collection is a named partition of the blob storage with its own content type whitelist.
	Collection struct {
		Name         string
		ContentTypes []string
		ChunkSize    int
	}
)

// Sprites returns the default sprites collection.
func Sprites() Collection {
	return Collection{
		Name:         "sprites",
		ContentTypes: []string{"image/png", "image/jpeg"},
		ChunkSize:    DefaultChunkSize,
	}
}

// Audio returns the default audio collection.
func Audio() Collection {
	return Collection{
		Name:         "audio",
		ContentTypes: []string{"audio/mpeg", "audio/wav"},
		ChunkSize:    DefaultChunkSize,
	}
}

// Accepts returns true if the media type of contentType is whitelisted.
func (c Collection) Accepts(contentType string) bool {
	mediatype := MediaType(contentType)
	if mediatype == "" {
		return false
	}

	for _, ct := range c.ContentTypes {
		if strings.EqualFold(ct, mediatype) {
			return true
		}
	}
	return false
}

func (c Collection) chunkSize() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

// MediaType returns the lowercased media type of contentType without its parameters.
// It returns an empty string when contentType cannot be parsed.
func MediaType(contentType string) string {
	mediatype, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mediatype
}
