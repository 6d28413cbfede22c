package repository

import (
	"context"
	"testing"
	"time"

	"salonbook/internal/availability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAvailabilityCache(t *testing.T) {
	cache := NewMemoryAvailabilityCache(time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()
	q := availability.Query{PlaceID: 1, Date: day}

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, q, sampleResult()))
		got, ok, err := cache.Get(ctx, q)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, sampleResult(), got)
	})

	t.Run("InvalidateDay", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, availability.Query{PlaceID: 1, Date: day, EmployeeID: 3}, sampleResult()))
		require.NoError(t, cache.InvalidateDay(ctx, 1, day))

		_, ok, _ := cache.Get(ctx, q)
		assert.False(t, ok)
		_, ok, _ = cache.Get(ctx, availability.Query{PlaceID: 1, Date: day, EmployeeID: 3})
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, q, sampleResult()))
		now = now.Add(2 * time.Minute)
		_, ok, err := cache.Get(ctx, q)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
