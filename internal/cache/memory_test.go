package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return current })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", string(value))

	current = current.Add(time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreIncrementWithTTL(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return current })
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rate", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	current = current.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "rate", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)
}

func TestMemoryStoreCompareAndDeleteSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	deleted, err := store.CompareAndDelete(ctx, "k", []byte("x"))
	require.NoError(t, err)
	require.False(t, deleted)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.CompareAndDelete(ctx, "k", []byte("v")); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("abc"), 0))

	value, _, _ := store.Get(ctx, "k")
	value[0] = 'z'

	again, _, _ := store.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}
