package weberror

import (
	"fmt"
	"net/http"

	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/pkg/errors"
)

// InternalServerError is the only message rendered for server side failures.
const InternalServerError = "internal server error"

type (
	// HTTPCoder interface is implemented by application errors.
	HTTPCoder interface {
		// HTTPCode return the HTTP status code for the given error.
		HTTPCode() int
	}

	// Error is the payload rendered in case of error.
	Error struct {
		Code    int    `json:"-"`
		Message string `json:"message"`
		Err     error  `json:"-"`
	}
)

// StatusCode the know HHTP status for the given err. If unknown, it returns 500.
func StatusCode(err error) int {
	if hc, ok := err.(HTTPCoder); ok {
		return hc.HTTPCode()
	}
	return http.StatusInternalServerError
}

// New returns a new Error.
func New(code int, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// FromError returns the Error rendering the given application error.
// Client errors keep their message, anything else is rendered as an opaque 500
// and the original error is only kept for logging.
func FromError(err error) error {
	if err == nil {
		return nil
	}

	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}

	switch {
	case apperror.IsNotFound(err):
		return &Error{Code: http.StatusNotFound, Message: message(err), Err: err}
	case apperror.IsInvalidInput(err), apperror.IsUnsupportedType(err):
		return &Error{Code: http.StatusBadRequest, Message: message(err), Err: err}
	default:
		return &Error{Code: http.StatusInternalServerError, Message: InternalServerError, Err: err}
	}
}

// Error stringifies the error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// HTTPCode returns the HTTP status code.
func (e *Error) HTTPCode() int {
	return e.Code
}

// Unwrap returns the error which produced e, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// message returns the user facing part of an application error, without operation nor cause.
func message(err error) string {
	var aerr *apperror.Error
	if !errors.As(err, &aerr) {
		return "bad request"
	}

	if aerr.Msg == "" {
		return aerr.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", aerr.Kind, aerr.Msg)
}
