package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/mdouchement/playerdata/internal/metrics"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/mdouchement/playerdata/internal/storage"
)

// A BlobDownloader opens download streams.
type BlobDownloader struct {
	storage  storage.Backend
	observer metrics.Observer
}

// NewBlobDownloader returns a new BlobDownloader.
func NewBlobDownloader(storage storage.Backend, observer metrics.Observer) *BlobDownloader {
	return &BlobDownloader{
		storage:  storage,
		observer: observer,
	}
}

// Stream opens the download stream of the given blob.
// The returned reader must be closed, the download metrics are recorded on Close.
func (s *BlobDownloader) Stream(ctx context.Context, id string) (*model.Blob, io.ReadCloser, error) {
	start := time.Now()

	blob, rc, err := s.storage.OpenDownloadStream(ctx, id)
	if err != nil {
		s.observer.RecordDownload(s.storage.Collection().Name, time.Since(start), 0, err)
		return nil, nil, err
	}

	return blob, &mreader{
		ReadCloser: rc,
		done: func(n int64, err error) {
			s.observer.RecordDownload(s.storage.Collection().Name, time.Since(start), n, err)
		},
	}, nil
}

//
//-----
//

// mreader counts the streamed bytes and reports them once closed.
type mreader struct {
	io.ReadCloser
	n    int64
	err  error
	once sync.Once
	done func(n int64, err error)
}

func (r *mreader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.n += int64(n)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

func (r *mreader) Close() error {
	err := r.ReadCloser.Close()
	r.once.Do(func() {
		r.done(r.n, r.err)
	})
	return err
}
