package apperror

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	err := errors.Wrap(NotFound("sprites.Metadata"), "facade")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidInput(err))
	assert.True(t, IsClientError(err))

	err = Unavailable("scores.Add", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.False(t, IsClientError(err))
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))
	assert.Equal(t, "scores.Add: store unavailable: unexpected EOF", err.Error())

	assert.Nil(t, Unavailable("scores.Add", nil))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "audio.Upload: unsupported content type: text/plain", UnsupportedType("audio.Upload", "text/plain").Error())
	assert.Equal(t, "invalid input: player_name", InvalidInput("", "player_name").Error())
	assert.True(t, IsUnsupportedType(UnsupportedType("", "x")))
}
