package service

import (
	"context"
	"time"

	"github.com/mdouchement/playerdata/internal/metrics"
	"github.com/mdouchement/playerdata/internal/storage"
)

// A BlobDestroyer removes blobs from storage.
type BlobDestroyer struct {
	storage  storage.Backend
	observer metrics.Observer
}

// NewBlobDestroyer returns a new BlobDestroyer.
func NewBlobDestroyer(storage storage.Backend, observer metrics.Observer) *BlobDestroyer {
	return &BlobDestroyer{
		storage:  storage,
		observer: observer,
	}
}

// Destroy removes the record and the chunks of the given blob.
func (s *BlobDestroyer) Destroy(ctx context.Context, id string) error {
	start := time.Now()

	err := s.storage.Delete(ctx, id)
	s.observer.RecordDelete(s.storage.Collection().Name, time.Since(start), err)
	return err
}
