package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	cases := []struct {
		name       string
		page       int
		limit      int
		total      int
		totalPages int
		hasNext    bool
		hasPrev    bool
	}{
		{"first of many", 1, 20, 45, 3, true, false},
		{"middle page", 2, 20, 45, 3, true, true},
		{"last page", 3, 20, 45, 3, false, true},
		{"exact fit", 2, 10, 20, 2, false, true},
		{"empty", 1, 20, 0, 0, false, false},
		{"single item", 1, 20, 1, 1, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.page, tc.limit, tc.total)
			assert.Equal(t, tc.page, p.CurrentPage)
			assert.Equal(t, tc.totalPages, p.TotalPages)
			assert.Equal(t, tc.total, p.TotalCount)
			assert.Equal(t, tc.hasNext, p.HasNext)
			assert.Equal(t, tc.hasPrev, p.HasPrev)
		})
	}
}

func TestEnvelopeOmitsEmptyFields(t *testing.T) {
	out, err := json.Marshal(NewSuccess("ok", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok"}`, string(out))

	out, err = json.Marshal(NewError("NOT_FOUND", "task not found", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"code":"NOT_FOUND","message":"task not found"}`, string(out))
}

func TestPaginationKeysAreCamelCase(t *testing.T) {
	env := NewSuccess("ok", []string{})
	env.Pagination = NewPagination(2, 10, 31)

	out, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))

	pagination, ok := decoded["pagination"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"currentPage", "totalPages", "totalCount", "hasNext", "hasPrev"} {
		assert.Contains(t, pagination, key)
	}
}
