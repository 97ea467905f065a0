package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestBadger_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	c := cache.NewBadger(s, "v1")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "detail:movie/550", []byte(`{"id":550}`), time.Hour))

	val, ok, err := c.Get(ctx, "detail:movie/550")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":550}`, string(val))

	raw, ok, err := s.GetRaw(ctx, "cache:v1:detail:movie/550")
	require.NoError(t, err)
	assert.True(t, ok, "entries live under the versioned prefix")
	assert.Equal(t, val, raw)
}

func TestBadger_SchemaVersionIsolation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v1 := cache.NewBadger(s, "v1")
	v2 := cache.NewBadger(s, "v2")

	require.NoError(t, v1.Set(ctx, "k", []byte("old"), time.Hour))

	_, ok, err := v2.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "bumping the schema version must not read stale rows")
}

func TestBadger_DefaultVersion(t *testing.T) {
	assert.Equal(t, "cache:v1:", cache.Prefix("v1"))

	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cache.NewBadger(s, "").Set(ctx, "k", []byte("x"), 0))

	_, ok, err := s.GetRaw(ctx, "cache:v1:k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNoop(t *testing.T) {
	var c cache.Cache = cache.Noop{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClear_DropsAllSchemaVersions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, cache.NewBadger(s, "v1").Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, cache.NewBadger(s, "v2").Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, s.SetRaw(ctx, "other:keep", []byte("3"), 0))

	require.NoError(t, cache.Clear(s))

	tests := []struct {
		key  string
		want bool
	}{
		{key: "cache:v1:a", want: false},
		{key: "cache:v2:b", want: false},
		{key: "other:keep", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, ok, err := s.GetRaw(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
