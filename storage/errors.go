package storage

import (
	"errors"
	"linkfeed/errs"
)

// Fault maps a store error onto the API error taxonomy. Errors that already carry a kind
// (content validation done by the stores) pass through unchanged.
func Fault(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errs.KindOf(err) != "":
		return err
	case errors.Is(err, ErrNotFound):
		return errs.NotFound(resource, id)
	default:
		return errs.Storage(err)
	}
}
