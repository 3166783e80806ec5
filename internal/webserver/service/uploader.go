package service

import (
	"context"
	"io"
	"time"

	"github.com/mdouchement/playerdata/internal/metrics"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/mdouchement/playerdata/internal/storage"
)

// A BlobUploader performs upload and metrics.
type BlobUploader struct {
	storage  storage.Backend
	observer metrics.Observer
}

// NewBlobUploader returns a new BlobUploader.
func NewBlobUploader(storage storage.Backend, observer metrics.Observer) *BlobUploader {
	return &BlobUploader{
		storage:  storage,
		observer: observer,
	}
}

// Upload stores the content read from r and returns the created record.
func (s *BlobUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*model.Blob, error) {
	start := time.Now()

	blob, err := s.storage.Upload(ctx, filename, contentType, r)

	var size int64
	if blob != nil {
		size = blob.Length
	}
	s.observer.RecordUpload(s.storage.Collection().Name, time.Since(start), size, err)

	return blob, err
}
