// Package errors provides the shared error taxonomy for pagehost.
//
// Failures are classified into a small set of kinds (input, upload,
// authorization, randomness) so commands can pick exit codes and the gate
// can pick HTTP status codes without matching on error strings.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure classes of the sharing contract.
// Match with errors.Is; wrapped errors created by the constructors below
// report true for their class sentinel.
var (
	// ErrInput indicates an unusable input file or argument.
	ErrInput = stderrors.New("invalid input")

	// ErrUpload indicates the page store rejected or failed an upload.
	ErrUpload = stderrors.New("upload failed")

	// ErrAuthorization indicates a token or policy check failed.
	ErrAuthorization = stderrors.New("authorization denied")

	// ErrRandomness indicates the system entropy source failed. Key and
	// token generation must stop rather than degrade.
	ErrRandomness = stderrors.New("randomness unavailable")

	// ErrExternalService indicates a dependency outside this process failed.
	ErrExternalService = stderrors.New("external service unavailable")
)

// errInternal backs errors that carry no more specific class.
var errInternal = stderrors.New("internal error")

// Kind classifies an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindInput
	KindUpload
	KindAuthorization
	KindRandomness
	KindExternalService
)

// Error wraps a failure with its classification and operation context.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Op names the operation that failed, e.g. "share" or "convert".
	Op string

	// Path is the file path or object key involved, when known.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.Path)
	}
	detail := e.Err
	if detail == nil {
		detail = e.sentinel()
	}
	if b.Len() == 0 {
		return detail.Error()
	}
	return fmt.Sprintf("%s: %v", b.String(), detail)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind,
// making errors.Is(err, ErrUpload) work on wrapped errors.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindInput:
		return ErrInput
	case KindUpload:
		return ErrUpload
	case KindAuthorization:
		return ErrAuthorization
	case KindRandomness:
		return ErrRandomness
	case KindExternalService:
		return ErrExternalService
	default:
		return errInternal
	}
}

// NewInputError classifies err as an input failure for the given file.
func NewInputError(op, path string, err error) *Error {
	return &Error{Kind: KindInput, Op: op, Path: path, Err: err}
}

// NewUploadError classifies err as an upload failure for the given object key.
func NewUploadError(op, key string, err error) *Error {
	return &Error{Kind: KindUpload, Op: op, Path: key, Err: err}
}

// NewAuthorizationError classifies err as an authorization failure.
func NewAuthorizationError(op, key string, err error) *Error {
	return &Error{Kind: KindAuthorization, Op: op, Path: key, Err: err}
}

// NewRandomnessError classifies err as an entropy failure.
func NewRandomnessError(op string, err error) *Error {
	return &Error{Kind: KindRandomness, Op: op, Err: err}
}

// NewExternalServiceError reports an unavailable external dependency.
func NewExternalServiceError(msg string) error {
	return &Error{Kind: KindExternalService, Err: stderrors.New(msg)}
}

// WrapInternal wraps err as an internal failure under msg. If the context
// was already canceled and err does not carry that cause, the cancellation
// is recorded alongside.
func WrapInternal(ctx context.Context, err error, msg string) error {
	if ctx != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !stderrors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (context: %v)", err, ctxErr)
		}
	}
	return &Error{Kind: KindInternal, Op: msg, Err: err}
}

// IsInput reports whether err is classified as an input failure.
func IsInput(err error) bool {
	return stderrors.Is(err, ErrInput)
}

// IsUpload reports whether err is classified as an upload failure.
func IsUpload(err error) bool {
	return stderrors.Is(err, ErrUpload)
}

// IsAuthorization reports whether err is classified as an authorization failure.
func IsAuthorization(err error) bool {
	return stderrors.Is(err, ErrAuthorization)
}

// IsRandomness reports whether err is classified as an entropy failure.
func IsRandomness(err error) bool {
	return stderrors.Is(err, ErrRandomness)
}

// IsExternalService reports whether err is classified as an external
// service failure.
func IsExternalService(err error) bool {
	return stderrors.Is(err, ErrExternalService)
}
