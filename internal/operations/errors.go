package operations

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"studyhub/internal/validation"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindStorage
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error is the only error type operations return to callers. Message is safe to show
// to clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) *Error      { return &Error{Kind: KindValidation, Message: message} }
func NotFound(message string) *Error        { return &Error{Kind: KindNotFound, Message: message} }
func Forbidden(message string) *Error       { return &Error{Kind: KindForbidden, Message: message} }
func Conflict(message string) *Error        { return &Error{Kind: KindConflict, Message: message} }
func Unauthenticated(message string) *Error { return &Error{Kind: KindUnauthenticated, Message: message} }

func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Server Error", Err: err}
}

// KindOf reports the kind of err, treating foreign errors as internal.
func KindOf(err error) Kind {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindInternal
}

func validate(input interface{}) error {
	if err := validation.Struct(input); err != nil {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	return nil
}

// lookup maps a missing row, or an id that is not a uuid, to NotFound and anything else
// to Internal.
func lookup(err error, what string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
		return NotFound(what + " not found")
	}
	return Internal(err)
}

// wrap passes *Error through and turns anything else into Internal.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var opErr *Error
	if errors.As(err, &opErr) {
		return err
	}
	return Internal(err)
}
