package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind classifies a failed operation for callers: validation errors are
// bad input rejected before any write, not-found and precondition errors are
// wrong-state rejections, integrity errors would corrupt the ledger (guarded
// defensively, unreachable from valid states), and conflict errors are
// concurrent-modification failures worth one retry.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindPrecondition ErrorKind = "precondition"
	KindIntegrity    ErrorKind = "integrity"
	KindConflict     ErrorKind = "conflict"
)

// DomainError carries an ErrorKind alongside the message so adapters can map
// failures to response codes without string matching.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

func Validationf(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Preconditionf(format string, args ...any) error {
	return &DomainError{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

func Integrityf(format string, args ...any) error {
	return &DomainError{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err. Postgres serialization failures
// (40001) and deadlocks (40P01) classify as conflicts; anything else
// unclassified is reported as an integrity failure.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return KindConflict
		}
	}
	return KindIntegrity
}

// IsRetryable reports whether the caller should retry the operation once.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConflict
}
