package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/openbarn/authgate/internal/auth/cache"
	"github.com/openbarn/authgate/internal/auth/cache/drivers/memory"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k", "also-missing"))

	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	now := time.Unix(1700000000, 0)
	c.SetClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "k", "v", 30*time.Second))

	now = now.Add(29 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	now := time.Unix(1700000000, 0)
	c.SetClock(func() time.Time { return now })

	ok, err := c.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Second write loses and must not disturb the value or TTL.
	ok, err = c.SetNX(ctx, "k", "second", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "first", got)

	now = now.Add(61 * time.Second)
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)

	// Expired key behaves as absent.
	ok, err = c.SetNX(ctx, "k", "third", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	t.Run("missing key fails", func(t *testing.T) {
		ok, err := c.CompareAndSwap(ctx, "absent", "a", "b", time.Minute)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("wrong prev fails", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "s", "PENDING", time.Minute))

		ok, err := c.CompareAndSwap(ctx, "s", "SCANNED", "CONFIRMED", time.Minute)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := c.Get(ctx, "s")
		require.NoError(t, err)
		require.Equal(t, "PENDING", got)
	})

	t.Run("matching prev swaps", func(t *testing.T) {
		ok, err := c.CompareAndSwap(ctx, "s", "PENDING", "SCANNED", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := c.Get(ctx, "s")
		require.NoError(t, err)
		require.Equal(t, "SCANNED", got)
	})

	t.Run("only one of two racing swaps wins", func(t *testing.T) {
		a, err := c.CompareAndSwap(ctx, "s", "SCANNED", "CONFIRMED", time.Minute)
		require.NoError(t, err)
		b, err := c.CompareAndSwap(ctx, "s", "SCANNED", "CANCELLED", time.Minute)
		require.NoError(t, err)
		require.True(t, a)
		require.False(t, b)
	})
}

func TestGetDelSingleObserver(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	require.NoError(t, c.Set(ctx, "k", "payload", time.Minute))

	got, err := c.GetDel(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "payload", got)

	_, err = c.GetDel(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestIncrWindow(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	now := time.Unix(1700000000, 0)
	c.SetClock(func() time.Time { return now })

	for i := int64(1); i <= 5; i++ {
		n, err := c.Incr(ctx, "counter", time.Hour)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	// Ticks inside the window must not slide it.
	now = now.Add(59 * time.Minute)
	n, err := c.Incr(ctx, "counter", time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)

	now = now.Add(2 * time.Minute)
	n, err = c.Incr(ctx, "counter", time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
