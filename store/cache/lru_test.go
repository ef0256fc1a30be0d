package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRU_BasicOperations(t *testing.T) {
	cache := New[string](100, 0, nil)

	t.Run("SetAndGet", func(t *testing.T) {
		cache.Set("key1", "value1")

		val, ok := cache.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, "value1", val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := cache.Get("nonexistent")
		assert.False(t, ok)
		assert.Empty(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		cache.Set("key2", "original")
		cache.Set("key2", "updated")

		val, ok := cache.Get("key2")
		assert.True(t, ok)
		assert.Equal(t, "updated", val)
		assert.Equal(t, 2, cache.Size())
	})
}

func TestLRU_Eviction(t *testing.T) {
	cache := New[int](3, 0, nil)

	cache.Set("key1", 1)
	cache.Set("key2", 2)
	cache.Set("key3", 3)
	assert.Equal(t, 3, cache.Size())

	// Access key1 to make it recently used
	cache.Get("key1")

	// Add new entry, should evict key2 (LRU)
	cache.Set("key4", 4)
	assert.Equal(t, 3, cache.Size())

	_, ok := cache.Get("key2")
	assert.False(t, ok)

	_, ok = cache.Get("key1")
	assert.True(t, ok)
}

func TestLRU_WeightBudget(t *testing.T) {
	weigh := func(b []byte) int64 { return int64(len(b)) }
	cache := New[[]byte](100, 10, weigh)

	cache.Set("a", make([]byte, 4))
	cache.Set("b", make([]byte, 4))
	assert.Equal(t, int64(8), cache.Weight())

	// Needs room for 4 more: "a" is the oldest and goes.
	cache.Set("c", make([]byte, 4))
	_, ok := cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(8), cache.Weight())

	t.Run("TooHeavyIsSkipped", func(t *testing.T) {
		cache.Set("huge", make([]byte, 11))
		_, ok := cache.Get("huge")
		assert.False(t, ok)
		assert.Equal(t, 2, cache.Size())
	})

	t.Run("ReplacingHeavyValueDropsOldCopy", func(t *testing.T) {
		cache.Set("b", make([]byte, 11))
		_, ok := cache.Get("b")
		assert.False(t, ok)
		assert.Equal(t, int64(4), cache.Weight())
	})
}

func TestLRU_Invalidate(t *testing.T) {
	cache := New[int](100, 0, nil)

	t.Run("ExactMatch", func(t *testing.T) {
		cache.Set("static\x00a", 1)
		cache.Set("static\x00b", 2)

		assert.Equal(t, 1, cache.Invalidate("static\x00a"))

		_, ok := cache.Get("static\x00a")
		assert.False(t, ok)
		_, ok = cache.Get("static\x00b")
		assert.True(t, ok)
	})

	t.Run("WildcardPattern", func(t *testing.T) {
		cache.Clear()
		cache.Set("static\x00a", 1)
		cache.Set("static\x00b", 2)
		cache.Set("dynamic\x00a", 3)

		assert.Equal(t, 2, cache.Invalidate("static\x00*"))

		_, ok := cache.Get("static\x00b")
		assert.False(t, ok)
		_, ok = cache.Get("dynamic\x00a")
		assert.True(t, ok)
	})
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	cache := New[int](1000, 0, nil)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", n)
			cache.Set(key, n)
			v, ok := cache.Get(key)
			assert.True(t, ok)
			assert.Equal(t, n, v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, cache.Size())
}
