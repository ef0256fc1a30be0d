package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/meditation/store"
)

func newEntry(key, body string) *store.Entry {
	return &store.Entry{
		Key:        key,
		Method:     http.MethodGet,
		URL:        key[len("GET "):],
		Status:     http.StatusOK,
		StatusText: "OK",
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte(body),
		StoredTs:   1700000000,
	}
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s *store.Store)) {
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			fn(t, NewTestingStore(t, driver))
		})
	}
}

func TestPutAndMatch(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		key := "GET http://app.local/index.html"

		e, err := s.Match(ctx, "static-v1", key)
		require.NoError(t, err)
		assert.Nil(t, e)

		require.NoError(t, s.Put(ctx, "static-v1", newEntry(key, "<html>v1</html>")))

		e, err = s.Match(ctx, "static-v1", key)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, http.StatusOK, e.Status)
		assert.Equal(t, "OK", e.StatusText)
		assert.Equal(t, "text/plain", e.Header.Get("Content-Type"))
		assert.Equal(t, "<html>v1</html>", string(e.Body))

		// A later put for the same key replaces the snapshot.
		require.NoError(t, s.Put(ctx, "static-v1", newEntry(key, "<html>v2</html>")))
		e, err = s.Match(ctx, "static-v1", key)
		require.NoError(t, err)
		assert.Equal(t, "<html>v2</html>", string(e.Body))

		keys, err := s.Keys(ctx, "static-v1")
		require.NoError(t, err)
		assert.Equal(t, []string{key}, keys)
	})
}

func TestEntriesAreSnapshots(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		key := "GET http://app.local/src/App.css"

		e := newEntry(key, "body{}")
		require.NoError(t, s.Put(ctx, "static-v1", e))
		e.Body[0] = 'X'
		e.Header.Set("Content-Type", "changed")

		got, err := s.Match(ctx, "static-v1", key)
		require.NoError(t, err)
		assert.Equal(t, "body{}", string(got.Body))
		assert.Equal(t, "text/plain", got.Header.Get("Content-Type"))

		got.Body[0] = 'Y'
		again, err := s.Match(ctx, "static-v1", key)
		require.NoError(t, err)
		assert.Equal(t, "body{}", string(again.Body))
	})
}

func TestNamespaces(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		require.NoError(t, s.Open(ctx, "meditation-v1"))
		require.NoError(t, s.Open(ctx, "static-v1"))
		require.NoError(t, s.Put(ctx, "dynamic-v1", newEntry("GET http://app.local/videos/a.mp4", "video")))
		// Opening twice keeps the original position.
		require.NoError(t, s.Open(ctx, "meditation-v1"))

		names, err := s.Namespaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"meditation-v1", "static-v1", "dynamic-v1"}, names)

		ok, err := s.HasNamespace(ctx, "static-v1")
		require.NoError(t, err)
		assert.True(t, ok)

		deleted, err := s.DeleteNamespace(ctx, "dynamic-v1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = s.DeleteNamespace(ctx, "dynamic-v1")
		require.NoError(t, err)
		assert.False(t, deleted)

		e, err := s.Match(ctx, "dynamic-v1", "GET http://app.local/videos/a.mp4")
		require.NoError(t, err)
		assert.Nil(t, e, "entries go away with their namespace")

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, []store.NamespaceStat{
			{Name: "meditation-v1", Entries: 0},
			{Name: "static-v1", Entries: 0},
		}, stats)
	})
}

func TestMatchAny(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		key := "GET http://app.local/music/a.mp3"

		e, err := s.MatchAny(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, e)

		require.NoError(t, s.Open(ctx, "static-v1"))
		require.NoError(t, s.Put(ctx, "dynamic-v1", newEntry(key, "from dynamic")))

		e, err = s.MatchAny(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "from dynamic", string(e.Body))

		// The earliest namespace wins when several hold the key.
		require.NoError(t, s.Put(ctx, "static-v1", newEntry(key, "from static")))
		e, err = s.MatchAny(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "from static", string(e.Body))
	})
}

func TestPutRequiresKey(t *testing.T) {
	s := NewTestingStore(t, "memory")
	err := s.Put(context.Background(), "static-v1", &store.Entry{})
	assert.Error(t, err)
}
