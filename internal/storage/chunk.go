package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

var errClosed = errors.New("read on closed stream")

// split reads r by pieces of size bytes and hands each of them to fn.
// The given slice is reused between calls so fn must not retain it.
func split(ctx context.Context, r io.Reader, size int, fn func(n int, data []byte) error) (length int64, checksum string, count int, err error) {
	h := md5.New()
	buf := make([]byte, size)

	for {
		if err = ctx.Err(); err != nil {
			return length, "", count, err
		}

		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if err = fn(count, buf[:n]); err != nil {
				return length, "", count, err
			}
			h.Write(buf[:n])
			length += int64(n)
			count++
		}

		switch rerr {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			return length, hex.EncodeToString(h.Sum(nil)), count, nil
		default:
			return length, "", count, errors.Wrap(rerr, "could not read content")
		}
	}
}

//
//-----
//

// A chunkReader streams the chunks of a blob, fetching them one at a time.
type chunkReader struct {
	ctx     context.Context
	count   int
	next    int
	fetch   func(ctx context.Context, n int) (io.ReadCloser, error)
	current io.ReadCloser
	closed  bool
}

func newChunkReader(ctx context.Context, count int, fetch func(ctx context.Context, n int) (io.ReadCloser, error)) *chunkReader {
	return &chunkReader{
		ctx:   ctx,
		count: count,
		fetch: fetch,
	}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errClosed
	}

	for {
		if r.current == nil {
			if r.next >= r.count {
				return 0, io.EOF
			}
			if err := r.ctx.Err(); err != nil {
				return 0, err
			}

			rc, err := r.fetch(r.ctx, r.next)
			if err != nil {
				return 0, err
			}
			r.current = rc
			r.next++
		}

		n, err := r.current.Read(p)
		if err == io.EOF {
			r.current.Close()
			r.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *chunkReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.current != nil {
		err := r.current.Close()
		r.current = nil
		return err
	}
	return nil
}

//
//-----
//

// A ctxReader fails reads once its context is done.
type ctxReader struct {
	ctx    context.Context
	rc     io.ReadCloser
	closed bool
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errClosed
	}
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.rc.Read(p)
}

func (r *ctxReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}
