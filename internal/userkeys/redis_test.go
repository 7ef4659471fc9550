package userkeys

import (
	"context"
	"strings"
	"testing"

	"svgforge-go/internal/secretbox"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

const testSealKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(mr.Close)

	box, err := secretbox.New(testSealKey)
	require.NoError(t, err)

	rs := NewRedisStore(mr.Addr(), "", 0, "svgforge:", box)
	require.NoError(t, rs.Initialize(context.Background()))
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func TestRedisStoreSetGetDelete(t *testing.T) {
	rs, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, rs.Set(ctx, "alice@example.com", "AIzaSy-alice"))

	got, err := rs.Get(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "AIzaSy-alice", got)

	require.NoError(t, rs.Delete(ctx, "alice@example.com"))

	_, err = rs.Get(ctx, "alice@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreSealsAtRest(t *testing.T) {
	rs, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, rs.Set(ctx, "bob@example.com", "AIzaSy-bob-plaintext"))

	raw, err := mr.Get("svgforge:userkey:bob@example.com")
	require.NoError(t, err)
	require.False(t, strings.Contains(raw, "AIzaSy-bob-plaintext"), "stored value must not contain plaintext key")
}

func TestRedisStoreOverwrite(t *testing.T) {
	rs, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, rs.Set(ctx, "u", "first"))
	require.NoError(t, rs.Set(ctx, "u", "second"))

	got, err := rs.Get(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, "second", got)
}

func TestRedisStoreDeleteMissing(t *testing.T) {
	rs, _ := newTestRedisStore(t)
	require.ErrorIs(t, rs.Delete(context.Background(), "nobody"), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_, err := ms.Get(ctx, "u")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, ms.Set(ctx, "u", "key"))
	got, err := ms.Get(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, "key", got)

	require.NoError(t, ms.Delete(ctx, "u"))
	require.ErrorIs(t, ms.Delete(ctx, "u"), ErrNotFound)
}
