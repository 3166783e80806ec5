package apperror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Use errors.Is against them to classify a failure.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnsupportedType  = errors.New("unsupported content type")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// An Error carries the kind of failure, the operation which failed and the optional underlying error.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

// Error stringifies the error.
func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Msg != "" {
		s = fmt.Sprintf("%s: %s", s, e.Msg)
	}
	if e.Op != "" {
		s = fmt.Sprintf("%s: %s", e.Op, s)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

// Unwrap returns the kind so errors.Is works through any wrapping.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Cause returns the underlying error, if any.
func (e *Error) Cause() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// InvalidInput returns an ErrInvalidInput error.
func InvalidInput(op, msg string) error {
	return &Error{Kind: ErrInvalidInput, Op: op, Msg: msg}
}

// UnsupportedType returns an ErrUnsupportedType error for the given content type.
func UnsupportedType(op, contentType string) error {
	return &Error{Kind: ErrUnsupportedType, Op: op, Msg: contentType}
}

// NotFound returns an ErrNotFound error.
func NotFound(op string) error {
	return &Error{Kind: ErrNotFound, Op: op}
}

// Unavailable wraps a persistence failure as ErrStoreUnavailable.
// It returns nil if err is nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrStoreUnavailable, Op: op, Err: err}
}

// IsInvalidInput returns true if err is an ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnsupportedType returns true if err is an ErrUnsupportedType.
func IsUnsupportedType(err error) bool {
	return errors.Is(err, ErrUnsupportedType)
}

// IsNotFound returns true if err is an ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true for the expected, user-facing failures.
func IsClientError(err error) bool {
	return IsInvalidInput(err) || IsUnsupportedType(err) || IsNotFound(err)
}
