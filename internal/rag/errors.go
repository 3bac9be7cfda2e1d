package rag

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "VALIDATION_ERROR"
	KindNotFound      Kind = "NOT_FOUND"
	KindStore         Kind = "STORE_ERROR"
	KindEmbedding     Kind = "EMBEDDING_SERVICE_ERROR"
	KindIndex         Kind = "INDEX_SERVICE_ERROR"
	KindCompletion    Kind = "COMPLETION_SERVICE_ERROR"
	KindConfiguration Kind = "CONFIGURATION_ERROR"
	KindInternal      Kind = "INTERNAL_ERROR"
)

var ErrNotFound = errors.New("not found")

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with kind. An error that already carries a Kind keeps it, so a
// configuration error raised inside an adapter is not relabelled by callers.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}

func Configuration(op string, err error) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is what callers see; upstream detail stays in the server log.
func PublicMessage(kind Kind) string {
	switch kind {
	case KindStore:
		return "document store unavailable"
	case KindEmbedding:
		return "embedding service unavailable"
	case KindIndex:
		return "vector index unavailable"
	case KindCompletion:
		return "completion service unavailable"
	case KindConfiguration:
		return "service misconfigured"
	case KindNotFound:
		return "resource not found"
	default:
		return "internal server error"
	}
}

// ErrorMessage is the client-facing text for err. Validation errors carry their
// own message without the op prefix; everything else gets the kind's generic text.
func ErrorMessage(err error) string {
	kind := KindOf(err)
	if kind == KindValidation {
		var re *Error
		if errors.As(err, &re) && re.Err != nil {
			return re.Err.Error()
		}
	}
	return PublicMessage(kind)
}

// StatusError is returned by HTTP adapters when an upstream answers with a
// non-success status.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ErrMalformedResponse marks an upstream reply that decoded but lacked the
// expected payload. Retrying will not help.
var ErrMalformedResponse = errors.New("malformed upstream response")
