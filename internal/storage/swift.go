package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/model"
	"github.com/ncw/swift/v2"
	"github.com/pkg/errors"
)

const (
	swiftMetaFilename    = "filename"
	swiftMetaContentType = "content-type"
	swiftMetaLength      = "length"
	swiftMetaChunkSize   = "chunk-size"
	swiftMetaChunkCount  = "chunk-count"
	swiftMetaChecksum    = "checksum"
	swiftMetaUploadDate  = "upload-date"
)

var swiftID = regexp.MustCompile(`^[0-9a-f]{24}$`)

type swft struct {
	conn  *swift.Connection
	col   Collection
	grace time.Duration
}

// NewSwift returns a new OpenStack Swift backend.
// Records are zero-byte objects of the `<collection>' container carrying the metadata as headers,
// chunks are stored in the `<collection>_segments' container and written before their record.
func NewSwift(conn *swift.Connection, col Collection, grace time.Duration) Backend {
	return &swft{
		conn:  conn,
		col:   col,
		grace: grace,
	}
}

// SwiftInit creates the containers of the given collections.
func SwiftInit(ctx context.Context, conn *swift.Connection, collections ...Collection) error {
	for _, col := range collections {
		if err := conn.ContainerCreate(ctx, col.Name, nil); err != nil {
			return errors.Wrapf(err, "could not create container %s", col.Name)
		}

		if err := conn.ContainerCreate(ctx, segmentsContainer(col), nil); err != nil {
			return errors.Wrapf(err, "could not create container %s", segmentsContainer(col))
		}
	}
	return nil
}

func (b *swft) Name() string {
	return "swift"
}

func (b *swft) Collection() Collection {
	return b.col
}

func (b *swft) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*model.Blob, error) {
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
	blob.SetID(newSwiftID(now))
	blob.SetCreatedAt(now)
	blob.SetUpdatedAt(now)

	//

	length, checksum, count, err := split(ctx, r, blob.ChunkSize, func(n int, data []byte) error {
		_, err := b.conn.ObjectPut(ctx, b.segments(), segmentName(blob.ID, n), bytes.NewReader(data), false, "", "application/octet-stream", nil)
		return apperror.Unavailable(op, errors.Wrap(err, "could not put segment"))
	})
	if err != nil {
		b.discard(blob.ID, count)
		return nil, err
	}

	blob.Length = length
	blob.Checksum = checksum
	blob.ChunkCount = count

	//

	headers := swift.Metadata{
		swiftMetaFilename:    url.PathEscape(blob.Filename),
		swiftMetaContentType: blob.ContentType,
		swiftMetaLength:      strconv.FormatInt(blob.Length, 10),
		swiftMetaChunkSize:   strconv.Itoa(blob.ChunkSize),
		swiftMetaChunkCount:  strconv.Itoa(blob.ChunkCount),
		swiftMetaChecksum:    blob.Checksum,
		swiftMetaUploadDate:  blob.UploadDate.Format(time.RFC3339Nano),
	}.ObjectHeaders()

	_, err = b.conn.ObjectPut(ctx, b.col.Name, blob.ID, bytes.NewReader(nil), false, "", blob.ContentType, headers)
	if err != nil {
		b.discard(blob.ID, count)
		return nil, apperror.Unavailable(op, errors.Wrap(err, "could not put record"))
	}

	return blob, nil
}

func (b *swft) OpenDownloadStream(ctx context.Context, id string) (*model.Blob, io.ReadCloser, error) {
	blob, err := b.Metadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	r := newChunkReader(ctx, blob.ChunkCount, func(ctx context.Context, n int) (io.ReadCloser, error) {
		file, _, err := b.conn.ObjectOpen(ctx, b.segments(), segmentName(blob.ID, n), false, nil)
		if err != nil {
			if err == swift.ObjectNotFound {
				return nil, errors.Wrapf(io.ErrUnexpectedEOF, "missing chunk %d of %s", n, blob.ID)
			}
			return nil, apperror.Unavailable(b.col.Name+".Download", err)
		}
		return file, nil
	})
	return blob, r, nil
}

func (b *swft) Metadata(ctx context.Context, id string) (*model.Blob, error) {
	op := b.col.Name + ".Metadata"
	if !swiftID.MatchString(id) {
		return nil, apperror.InvalidInput(op, "malformed id")
	}

	info, headers, err := b.conn.Object(ctx, b.col.Name, id)
	if err != nil {
		if err == swift.ObjectNotFound {
			return nil, apperror.NotFound(op)
		}
		return nil, apperror.Unavailable(op, err)
	}

	blob, err := swiftBlob(id, info, headers)
	if err != nil {
		return nil, apperror.Unavailable(op, err)
	}
	return blob, nil
}

func (b *swft) List(ctx context.Context) ([]*model.Blob, error) {
	op := b.col.Name + ".List"

	// Identifiers are time ordered so the lexicographic listing is the insertion order.
	objects, err := b.conn.Objects(ctx, b.col.Name, &swift.ObjectsOpts{Limit: ListLimit})
	if err != nil {
		return nil, apperror.Unavailable(op, err)
	}

	blobs := make([]*model.Blob, 0, len(objects))
	for _, object := range objects {
		blob, err := b.Metadata(ctx, object.Name)
		if apperror.IsNotFound(err) || apperror.IsInvalidInput(err) {
			continue // deleted meanwhile or foreign object
		}
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

func (b *swft) Delete(ctx context.Context, id string) error {
	op := b.col.Name + ".Delete"

	blob, err := b.Metadata(ctx, id)
	if err != nil {
		return err
	}

	err = b.conn.ObjectDelete(ctx, b.col.Name, blob.ID)
	if err != nil {
		if err == swift.ObjectNotFound {
			return apperror.NotFound(op)
		}
		return apperror.Unavailable(op, err)
	}

	// The record is gone, remaining segments are invisible and swept by Cleanup on failure.
	b.discard(blob.ID, blob.ChunkCount)
	return nil
}

func (b *swft) Cleanup(ctx context.Context) error {
	op := b.col.Name + ".Cleanup"
	cutoff := time.Now().UTC().Add(-b.grace)

	segments, err := b.conn.ObjectsAll(ctx, b.segments(), nil)
	if err != nil {
		return apperror.Unavailable(op, err)
	}

	exists := map[string]bool{}
	for _, segment := range segments {
		if segment.LastModified.After(cutoff) {
			continue
		}

		id := strings.SplitN(segment.Name, "/", 2)[0]
		found, ok := exists[id]
		if !ok {
			_, err := b.Metadata(ctx, id)
			switch {
			case err == nil:
				found = true
			case apperror.IsNotFound(err), apperror.IsInvalidInput(err):
				found = false
			default:
				return err
			}
			exists[id] = found
		}
		if found {
			continue
		}

		err = b.conn.ObjectDelete(ctx, b.segments(), segment.Name)
		if err != nil && err != swift.ObjectNotFound {
			return apperror.Unavailable(op, err)
		}
	}
	return nil
}

// discard removes the segments of a blob. Failures are ignored, leftovers are collected by Cleanup.
func (b *swft) discard(id string, count int) {
	for n := 0; n < count; n++ {
		b.conn.ObjectDelete(context.Background(), b.segments(), segmentName(id, n))
	}
}

func (b *swft) segments() string {
	return segmentsContainer(b.col)
}

func segmentsContainer(col Collection) string {
	return col.Name + "_segments"
}

func segmentName(id string, n int) string {
	return fmt.Sprintf("%s/%08d", id, n)
}

// newSwiftID returns a 24 hexadecimal characters identifier prefixed by the timestamp.
func newSwiftID(t time.Time) string {
	random := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	return fmt.Sprintf("%016x%s", t.UnixNano(), random[:8])
}

func swiftBlob(id string, info swift.Object, headers swift.Headers) (*model.Blob, error) {
	meta := headers.ObjectMetadata()

	filename, err := url.PathUnescape(meta[swiftMetaFilename])
	if err != nil {
		return nil, errors.Wrap(err, "filename metadata")
	}
	length, err := strconv.ParseInt(meta[swiftMetaLength], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "length metadata")
	}
	chunkSize, err := strconv.Atoi(meta[swiftMetaChunkSize])
	if err != nil {
		return nil, errors.Wrap(err, "chunk-size metadata")
	}
	chunkCount, err := strconv.Atoi(meta[swiftMetaChunkCount])
	if err != nil {
		return nil, errors.Wrap(err, "chunk-count metadata")
	}
	uploaded, err := time.Parse(time.RFC3339Nano, meta[swiftMetaUploadDate])
	if err != nil {
		return nil, errors.Wrap(err, "upload-date metadata")
	}

	contentType := meta[swiftMetaContentType]
	if contentType == "" {
		contentType = info.ContentType
	}

	blob := &model.Blob{
		Filename:    filename,
		ContentType: contentType,
		Length:      length,
		ChunkSize:   chunkSize,
		ChunkCount:  chunkCount,
		Checksum:    meta[swiftMetaChecksum],
		UploadDate:  uploaded.UTC(),
	}
	blob.SetID(id)
	blob.SetCreatedAt(blob.UploadDate)
	blob.SetUpdatedAt(blob.UploadDate)
	return blob, nil
}
