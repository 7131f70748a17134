package archivecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBucketOf(t *testing.T) {
	timestamps := []int64{0, 1, 1799, 1800, 1801, 1733229000, 1733229001, 1733230799}
	for _, ts := range timestamps {
		bucket := BucketOf(ts)
		require.Equal(t, bucket, BucketOf(bucket), "flooring must be idempotent")
		require.LessOrEqual(t, bucket, ts)
		require.Less(t, ts, bucket+1800)
		require.Zero(t, bucket%1800)
	}

	require.Equal(t, int64(1733229000), BucketOf(1733229000))
	require.Equal(t, int64(1733229000), BucketOf(1733229725))
}

func TestRoundTrip(t *testing.T) {
	cache := Open[string](Options{})

	_, ok := cache.Get(5000, 2101, BucketOf(1733229000))
	require.False(t, ok)

	cache.Put(5000, 2101, BucketOf(1733229000), []string{"a", "b"}, 1733229000, 1733230800)

	entry, ok := cache.Get(5000, 2101, BucketOf(1733229725))
	require.True(t, ok, "any timestamp in the bucket maps to the same key")
	diff := cmp.Diff(Entry[string]{
		Items: []string{"a", "b"},
		Start: 1733229000,
		End:   1733230800,
	}, entry)
	require.Empty(t, diff)

	// different talkgroup, same bucket
	_, ok = cache.Get(5000, 2102, BucketOf(1733229000))
	require.False(t, ok)
}

func TestOverwrite(t *testing.T) {
	cache := Open[int](Options{})

	cache.Put(1, 2, 0, []int{1}, 0, 1800)
	cache.Put(1, 2, 0, []int{1, 2, 3}, 0, 1800)

	entry, ok := cache.Get(1, 2, 0)
	require.True(t, ok)
	require.Len(t, entry.Items, 3)
	require.Equal(t, 1, cache.Len())
}

func TestWholeCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	current := time.Unix(1733229000, 0)

	cache := Open[string](Options{
		Dir: dir,
		TTL: time.Hour,
		Now: func() time.Time { return current },
	})
	cache.Put(1, 2, 0, []string{"x"}, 0, 1800)
	cache.Put(3, 4, 1800, []string{"y"}, 1800, 3600)

	// first save stamps the expiry
	err := cache.Close()
	if err != nil {
		t.Fatal(err)
	}

	entry, ok := cache.Get(1, 2, 0)
	require.True(t, ok)
	require.Equal(t, []string{"x"}, entry.Items)

	current = current.Add(time.Hour * 2)

	_, ok = cache.Get(1, 2, 0)
	require.False(t, ok)
	require.Zero(t, cache.Len(), "expiry clears the whole cache, not one entry")
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	current := time.Unix(1733229000, 0)
	now := func() time.Time { return current }

	cache := Open[string](Options{Dir: dir, TTL: time.Hour, Now: now})
	cache.Put(5000, 2101, 1733229000, []string{"call"}, 1733229000, 1733230800)
	err := cache.Close()
	if err != nil {
		t.Fatal(err)
	}

	reloaded := Open[string](Options{Dir: dir, TTL: time.Hour, Now: now})
	entry, ok := reloaded.Get(5000, 2101, 1733229000)
	require.True(t, ok)
	require.Equal(t, []string{"call"}, entry.Items)
}

func TestPersistenceExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	current := time.Unix(1733229000, 0)

	cache := Open[string](Options{
		Dir: dir,
		TTL: time.Hour,
		Now: func() time.Time { return current },
	})
	cache.Put(1, 2, 0, []string{"stale"}, 0, 1800)
	err := cache.Close()
	if err != nil {
		t.Fatal(err)
	}

	later := current.Add(time.Hour * 25)
	reloaded := Open[string](Options{
		Dir: dir,
		TTL: time.Hour,
		Now: func() time.Time { return later },
	})
	require.Zero(t, reloaded.Len())
}

func TestCorruptFileIsColdStart(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "cache.gob"), []byte("not gob data"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	cache := Open[string](Options{Dir: dir})
	require.Zero(t, cache.Len())

	// and the cache remains usable
	cache.Put(1, 2, 0, []string{"fresh"}, 0, 1800)
	err = cache.Close()
	if err != nil {
		t.Fatal(err)
	}
}
