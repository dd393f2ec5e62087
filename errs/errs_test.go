package errs

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: Validation("content too long: %d", 1001), want: KindValidation},
		{name: "not found", err: NotFound("post", "abc"), want: KindNotFound},
		{name: "forbidden", err: Forbidden("not the author"), want: KindForbidden},
		{name: "auth", err: AuthRequired(), want: KindAuthRequired},
		{name: "storage", err: Storage(errors.New("connection reset")), want: KindStorage},
		{name: "wrapped", err: fmt.Errorf("edit: %w", NotFound("post", "abc")), want: KindNotFound},
		{name: "foreign", err: errors.New("boom"), want: ""},
		{name: "nil", err: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestDetailHidesStorageCause(t *testing.T) {
	err := Storage(errors.New("dial tcp 10.0.0.3:27017: connection refused"))

	assert.Equal(t, "internal error", Detail(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "internal error", Detail(errors.New("raw")))
	assert.Equal(t, "post not found: 42", Detail(NotFound("post", "42")))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Forbidden("x"), KindForbidden))
	assert.False(t, Is(Forbidden("x"), KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
}
