package plain

import (
	"linkfeed/errs"
	"linkfeed/schemas"
	"math"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest is a 1-based page number and a page size. Size 0 means DefaultPageSize.
type PageRequest struct {
	Page int
	Size int
}

// PostsFilter restricts a listing to one author. The zero value lists everything.
type PostsFilter struct {
	AuthorID schemas.UserId
}

func (f PostsFilter) IsGlobal() bool {
	return f.AuthorID == ""
}

// CorrectDestruct validates the request and returns the normalized size and the
// offset of its first item. Page numbers below 1 are rejected, never clamped. Offsets
// past math.MaxInt64 saturate, so such pages come back empty.
func CorrectDestruct(req PageRequest) (offset int64, size int, err error) {
	size = req.Size
	switch {
	case size < 0:
		return 0, 0, errs.Validation("page size must not be negative: %d", size)
	case size == 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		return 0, 0, errs.Validation("page size must not exceed %d: %d", MaxPageSize, size)
	}

	if req.Page < 1 {
		return 0, 0, errs.Validation("page must be at least 1: %d", req.Page)
	}
	if int64(req.Page-1) > math.MaxInt64/int64(size) {
		return math.MaxInt64, size, nil
	}
	return int64(req.Page-1) * int64(size), size, nil
}

// TotalPages is ceil(total/size), zero for an empty listing.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
