// Package errs holds the error taxonomy shared by the stores, the managers and the HTTP layer.
// Every error crossing the API boundary carries a machine readable Kind and a human readable Detail.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindAuthRequired Kind = "authentication_required"
	KindStorage      Kind = "storage"
)

type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Detail, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing resource, e.g. NotFound("post", id).
func NotFound(resource, id string) error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf("%s not found: %s", resource, id)}
}

func Forbidden(detail string) error {
	return &Error{Kind: KindForbidden, Detail: detail}
}

func AuthRequired() error {
	return &Error{Kind: KindAuthRequired, Detail: "authentication required"}
}

// Storage wraps an unexpected store failure. The cause is kept for logs only.
func Storage(err error) error {
	return &Error{Kind: KindStorage, Detail: "storage failure", Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail is the client-safe message for err.
func Detail(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindStorage {
		return "internal error"
	}
	return e.Detail
}
