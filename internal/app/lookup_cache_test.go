package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrollment_sync/internal/domain/directory"
)

func TestCourseLookupCache_SearchesOncePerIdentifier(t *testing.T) {
	ctx := context.Background()
	cache := NewCourseLookupCache()

	calls := map[string]int{}
	search := func(_ context.Context, id string) (*directory.Course, error) {
		calls[id]++
		if id == "hit" {
			return &directory.Course{ID: 1, IDNumber: id}, nil
		}
		return nil, nil
	}

	for i := 0; i < 5; i++ {
		c, err := cache.Resolve(ctx, "hit", search)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, int64(1), c.ID)

		miss, err := cache.Resolve(ctx, "miss", search)
		require.NoError(t, err)
		assert.Nil(t, miss)
	}

	assert.Equal(t, 1, calls["hit"])
	assert.Equal(t, 1, calls["miss"])
	assert.Equal(t, 2, cache.Searches())
	assert.Equal(t, 2, cache.Len())
}

func TestCourseLookupCache_FailedSearchIsNotRetried(t *testing.T) {
	ctx := context.Background()
	cache := NewCourseLookupCache()
	boom := errors.New("catalog unavailable")

	calls := 0
	search := func(context.Context, string) (*directory.Course, error) {
		calls++
		return nil, boom
	}

	_, err := cache.Resolve(ctx, "x", search)
	assert.ErrorIs(t, err, boom)

	c, err := cache.Resolve(ctx, "x", search)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrEarlierSearchFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
