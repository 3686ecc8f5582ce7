package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1789"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1789", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestSizeClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Size())
}

func TestTrim(t *testing.T) {
	ids := []int64{10, 9, 8}
	extract := func(id int64) string { return strconv.FormatInt(id, 10) }

	items, info := Trim(ids, Pagination{PageSize: 2}, extract)
	assert.Equal(t, []int64{10, 9}, items)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "9", cursor.ID)

	items, info = Trim(ids, Pagination{PageSize: 3}, extract)
	assert.Len(t, items, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
