// Package apperr defines the error taxonomy shared by the mutation layer,
// the stores and the sync engine. Every failure is scoped to a single
// mutation or query; nothing here is fatal to the process.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindInvalidTransition Kind = "invalid_transition"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindNetwork           Kind = "network"
)

// ErrWriteConflict is returned by stores when a conditional write loses:
// the stored status no longer matches the expected one. The mutation layer
// translates it into an InvalidTransition against the fresh state.
var ErrWriteConflict = errors.New("write conflict")

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func InvalidTransitionf(format string, args ...any) *Error {
	return newf(KindInvalidTransition, format, args...)
}

func Forbiddenf(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Networkf(format string, args ...any) *Error {
	return newf(KindNetwork, format, args...)
}

// KindOf classifies any error; unknown errors map to KindNetwork so the
// sync engine treats them as transient rather than discarding the mutation.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrWriteConflict) {
		return KindConflict
	}
	return KindNetwork
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// HTTPStatus maps the taxonomy onto response codes at the API boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// ReconciliationError surfaces a queued mutation that was invalidated by a
// competing authoritative change. Ticket carries the authoritative state so
// the caller can reconcile its view.
type ReconciliationError struct {
	MutationID string
	Cause      error
	Ticket     *models.Ticket
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("mutation %s rejected: %v", e.MutationID, e.Cause)
}

func (e *ReconciliationError) Unwrap() error { return e.Cause }
