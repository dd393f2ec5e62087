package plain

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"linkfeed/errs"
	"math"
	"testing"
)

func TestCorrectDestruct(t *testing.T) {
	tests := []struct {
		name       string
		req        PageRequest
		wantOffset int64
		wantSize   int
		wantErr    bool
	}{
		{name: "first page", req: PageRequest{Page: 1, Size: 10}, wantOffset: 0, wantSize: 10},
		{name: "second page", req: PageRequest{Page: 2, Size: 10}, wantOffset: 10, wantSize: 10},
		{name: "default size", req: PageRequest{Page: 3}, wantOffset: 20, wantSize: DefaultPageSize},
		{name: "max size", req: PageRequest{Page: 1, Size: MaxPageSize}, wantOffset: 0, wantSize: MaxPageSize},
		{name: "huge page saturates", req: PageRequest{Page: math.MaxInt64/10 + 2, Size: 10}, wantOffset: math.MaxInt64, wantSize: 10},
		{name: "max int page", req: PageRequest{Page: math.MaxInt, Size: MaxPageSize}, wantOffset: math.MaxInt64, wantSize: MaxPageSize},
		{name: "page zero", req: PageRequest{Page: 0, Size: 10}, wantErr: true},
		{name: "negative page", req: PageRequest{Page: -1, Size: 10}, wantErr: true},
		{name: "negative size", req: PageRequest{Page: 1, Size: -5}, wantErr: true},
		{name: "oversized", req: PageRequest{Page: 1, Size: MaxPageSize + 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, size, err := CorrectDestruct(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 2, TotalPages(15, 10))
	assert.Equal(t, 15, TotalPages(15, 1))
}
