// Package archivecache stores fetched archive windows keyed by
// (system, talkgroup, time bucket) so repeat requests for the same
// half-hour block never touch the network.
package archivecache

import (
	"encoding/gob"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// BucketInterval is the archive granularity of the upstream site:
// every archived window starts on a 30 minute boundary.
const BucketInterval = time.Minute * 30

const cacheFilename = "cache.gob"

// BucketOf floors an epoch timestamp to the start of its bucket.
func BucketOf(ts int64) int64 {
	interval := int64(BucketInterval / time.Second)
	return ts - ts%interval
}

type Key struct {
	System    int64
	Talkgroup int64
	Bucket    int64
}

// Entry holds one bucket's worth of items along with the authoritative
// [Start, End) window the server reported for it.
type Entry[T any] struct {
	Items []T
	Start int64
	End   int64
}

type persisted[T any] struct {
	Entries   map[Key]Entry[T]
	ExpiresAt int64
}

type Options struct {
	// Dir is where the cache file lives. Empty means in-memory only.
	Dir string
	// TTL bounds the lifetime of the cache as a whole, counted from
	// the first save. Zero means DefaultTTL.
	TTL time.Duration
	// Now is overridable for tests.
	Now func() time.Time
}

const DefaultTTL = time.Hour * 24

// Cache is safe for concurrent use. The whole cache expires at once:
// once the expiry timestamp passes, the next access clears everything.
type Cache[T any] struct {
	mu        sync.Mutex
	dir       string
	ttl       time.Duration
	now       func() time.Time
	entries   map[Key]Entry[T]
	expiresAt int64
}

// Open loads any previously persisted state. A missing or unreadable
// cache file is a cold start, never an error.
func Open[T any](opts Options) *Cache[T] {
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache[T]{
		dir:     opts.Dir,
		ttl:     opts.TTL,
		now:     opts.Now,
		entries: map[Key]Entry[T]{},
	}
	c.load()
	return c
}

func (c *Cache[T]) load() {
	if c.dir == "" {
		return
	}
	f, err := os.Open(filepath.Join(c.dir, cacheFilename))
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		slog.Warn("failed to open cache file, starting cold", "err", err)
		return
	}
	defer f.Close()

	var state persisted[T]
	err = gob.NewDecoder(f).Decode(&state)
	if err != nil {
		slog.Warn("cache file is corrupt, starting cold", "err", err)
		return
	}

	if state.ExpiresAt != 0 && c.now().Unix() >= state.ExpiresAt {
		slog.Debug("persisted cache has expired, starting cold")
		return
	}

	c.entries = state.Entries
	if c.entries == nil {
		c.entries = map[Key]Entry[T]{}
	}
	c.expiresAt = state.ExpiresAt
}

// expire clears the whole cache once the cache-wide deadline passes.
// Callers must hold c.mu.
func (c *Cache[T]) expire() {
	if c.expiresAt == 0 || c.now().Unix() < c.expiresAt {
		return
	}
	c.entries = map[Key]Entry[T]{}
	c.expiresAt = 0
}

// Get returns the cached entry for a bucket-aligned key. Callers are
// expected to run their timestamp through BucketOf first.
func (c *Cache[T]) Get(system, talkgroup, bucket int64) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expire()
	entry, ok := c.entries[Key{System: system, Talkgroup: talkgroup, Bucket: bucket}]
	return entry, ok
}

// Put stores an entry unconditionally, overwriting any previous value
// for the same key.
func (c *Cache[T]) Put(system, talkgroup, bucket int64, items []T, start, end int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expire()
	c.entries[Key{System: system, Talkgroup: talkgroup, Bucket: bucket}] = Entry[T]{
		Items: items,
		Start: start,
		End:   end,
	}
}

// Len reports the number of live entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expire()
	return len(c.entries)
}

// Close persists the cache. The cache-wide expiry is stamped on the
// first save and carried unchanged afterwards.
func (c *Cache[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dir == "" {
		return nil
	}

	c.expire()
	if c.expiresAt == 0 {
		c.expiresAt = c.now().Add(c.ttl).Unix()
	}

	err := os.MkdirAll(c.dir, 0o755)
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(c.dir, cacheFilename))
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(persisted[T]{
		Entries:   c.entries,
		ExpiresAt: c.expiresAt,
	})
}
