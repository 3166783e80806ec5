package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/metrics"
	"github.com/mdouchement/playerdata/internal/storage"
	"github.com/mdouchement/playerdata/internal/validator"
	"github.com/mdouchement/playerdata/internal/webserver/serializer"
	"github.com/mdouchement/playerdata/internal/webserver/service"
	"github.com/mdouchement/playerdata/internal/webserver/weberror"
)

// An asset serves the blobs of one collection.
type asset struct {
	logger   logger.Logger
	storage  storage.Backend
	observer metrics.Observer
	timeout  time.Duration
	kind     string // singular name used in responses
	idKey    string // response key of an uploaded asset identifier
}

func (h *asset) Upload(c echo.Context) error {
	c.Set("handler_method", h.storage.Collection().Name+".Upload")

	fh, err := c.FormFile("file")
	if err != nil {
		return weberror.New(http.StatusBadRequest, "missing file")
	}

	// Filenames are stored as given, they are never used as lookup keys.
	if fh.Filename == "" {
		return weberror.FromError(apperror.InvalidInput(h.storage.Collection().Name+".Upload", "empty filename"))
	}

	file, err := fh.Open()
	if err != nil {
		return weberror.FromError(err)
	}
	defer file.Close()

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	uploader := service.NewBlobUploader(h.storage, h.observer)
	blob, err := uploader.Upload(ctx, fh.Filename, fh.Header.Get(echo.HeaderContentType), file)
	if err != nil {
		return weberror.FromError(err)
	}

	h.logger.Debugf("%s: uploaded %s (%d bytes)", h.storage.Collection().Name, blob.ID, blob.Length)

	return c.JSON(http.StatusOK, echo.Map{
		"message": h.kind + " uploaded",
		h.idKey:   blob.ID,
	})
}

func (h *asset) Download(c echo.Context) error {
	c.Set("handler_method", h.storage.Collection().Name+".Download")

	id := c.Param("id")
	if err := validator.Check("id", id); err != nil {
		return weberror.FromError(err)
	}

	// The stream only follows the request context, a client disconnection stops it.
	downloader := service.NewBlobDownloader(h.storage, h.observer)
	blob, r, err := downloader.Stream(c.Request().Context(), id)
	if err != nil {
		return h.error(err)
	}
	defer r.Close()

	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(blob.Length, 10))
	c.Response().Header().Set("Etag", strconv.Quote(blob.Checksum))
	return c.Stream(http.StatusOK, blob.ContentType, r)
}

func (h *asset) Show(c echo.Context) error {
	c.Set("handler_method", h.storage.Collection().Name+".Show")

	id := c.Param("id")
	if err := validator.Check("id", id); err != nil {
		return weberror.FromError(err)
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	blob, err := h.storage.Metadata(ctx, id)
	if err != nil {
		return h.error(err)
	}

	return c.JSON(http.StatusOK, serializer.Blob(blob))
}

func (h *asset) List(c echo.Context) error {
	c.Set("handler_method", h.storage.Collection().Name+".List")

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	blobs, err := h.storage.List(ctx)
	if err != nil {
		return weberror.FromError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"all_" + h.storage.Collection().Name: serializer.Blobs(blobs),
	})
}

func (h *asset) Delete(c echo.Context) error {
	c.Set("handler_method", h.storage.Collection().Name+".Delete")

	id := c.Param("id")
	if err := validator.Check("id", id); err != nil {
		return weberror.FromError(err)
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	destroyer := service.NewBlobDestroyer(h.storage, h.observer)
	if err := destroyer.Destroy(ctx, id); err != nil {
		return h.error(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": h.kind + " deleted",
	})
}

func (h *asset) error(err error) error {
	if apperror.IsNotFound(err) {
		return &weberror.Error{
			Code:    http.StatusNotFound,
			Message: h.kind + " file not found",
			Err:     err,
		}
	}
	return weberror.FromError(err)
}
