package txcache

import (
	"errors"
	"fmt"
)

// Witness is opaque data threaded from the scope owner to [Reader.Get],
// typically to collect or replay proof hints. The cache never looks at it.
type Witness = any

// Reader is the backend consulted on a cache miss.
//
// Get must be deterministic for a given (key, version) within one
// verification run. An absent key is reported as [Absent] with a nil
// error; a non-nil error means the backend itself failed.
type Reader interface {
	Get(key Key, version Version, witness Witness) (Value, error)
}

// ReaderFunc adapts a function to [Reader].
type ReaderFunc func(key Key, version Version, witness Witness) (Value, error)

// Get calls f.
func (f ReaderFunc) Get(key Key, version Version, witness Witness) (Value, error) {
	return f(key, version, witness)
}

// Cache is the per-scope read/write cache.
//
// It holds the scope's [Log], the backend reads in the order they
// happened, and an optional [Version] that salts every key.
//
// A Cache is consumed exactly once: merged into another cache with one of
// the MergeLeft variants or frozen with [Cache.Freeze]. Using it afterwards
// panics.
//
// The zero Cache is an empty, unversioned cache.
type Cache struct {
	log      Log
	reads    []Entry
	version  Version
	consumed bool
}

// New returns an empty unversioned cache.
func New() *Cache {
	return &Cache{}
}

// NewWithVersion returns an empty cache whose keys are salted by v and whose
// backend reads are made at v. [NoVersion] gives an unversioned cache.
func NewWithVersion(v Version) *Cache {
	return &Cache{version: v}
}

// NewWithCapacity returns an empty cache sized for capacity keys.
func NewWithCapacity(version Version, capacity int) *Cache {
	return &Cache{
		log:     Log{entries: make(map[CacheKey]Access, capacity)},
		version: version,
	}
}

// Version returns the version the cache was created with.
func (c *Cache) Version() Version {
	return c.version
}

// Log returns the scope's access log. The log is owned by c.
func (c *Cache) Log() *Log {
	c.mustBeLive()

	return &c.log
}

// OrderedReads returns a copy of the backend reads in fetch order.
func (c *Cache) OrderedReads() []Entry {
	c.mustBeLive()

	return append([]Entry(nil), c.reads...)
}

// GetOrFetch returns the value of key as this scope sees it.
//
// On a miss the backend is asked for key at the cache's version. The result
// is recorded as a read, even when the key is absent, and appended to the
// ordered reads. Backend errors are returned unchanged and nothing is
// recorded.
func (c *Cache) GetOrFetch(key Key, backend Reader, witness Witness) (Value, error) {
	c.mustBeLive()

	cacheKey := key.WithVersion(c.version)
	if v, ok := c.log.Get(cacheKey); ok {
		return v, nil
	}

	if backend == nil {
		return Value{}, errors.New("txcache: get or fetch: backend is nil")
	}

	v, err := backend.Get(key, c.version, witness)
	if err != nil {
		return Value{}, err
	}

	err = c.log.RecordRead(cacheKey, v)
	if err != nil {
		return Value{}, fmt.Errorf("recording backend read: %w", err)
	}

	c.reads = append(c.reads, Entry{Key: cacheKey, Value: v})

	return v, nil
}

// TryGet returns the value of key if this scope has seen it, without
// consulting the backend.
func (c *Cache) TryGet(key Key) (Value, bool) {
	c.mustBeLive()

	return c.log.Get(key.WithVersion(c.version))
}

// Set records a write of value to key.
func (c *Cache) Set(key Key, value Value) {
	c.mustBeLive()
	c.log.RecordWrite(key.WithVersion(c.version), value)
}

// Delete records a write of [Absent] to key.
func (c *Cache) Delete(key Key) {
	c.mustBeLive()
	c.log.RecordWrite(key.WithVersion(c.version), Absent)
}

// MergeLeft folds later, the cache of a scope that ran after c's, into c.
// See [Log.MergeLeft].
//
// Only the access logs are merged: later's backend reads stay with later,
// because in a scope hierarchy they were served through c and c already
// recorded them. Caches of different versions must not be merged; this is
// not checked.
//
// On success later is consumed. On error neither cache changes.
func (c *Cache) MergeLeft(later *Cache) error {
	return c.merge(later, (*Log).MergeLeft)
}

// MergeLeftWithReads is [Cache.MergeLeft] for a later cache that read the
// backend itself instead of through c, e.g. one executed in parallel. Its
// backend reads are appended to c's ordered reads, except for keys c had
// already seen, whose values c recorded first.
func (c *Cache) MergeLeftWithReads(later *Cache) error {
	c.mustBeLive()

	if later == nil {
		return nil
	}

	later.mustBeLive()

	var fresh []Entry

	for _, e := range later.reads {
		if _, known := c.log.Get(e.Key); !known {
			fresh = append(fresh, e)
		}
	}

	err := c.merge(later, (*Log).MergeLeft)
	if err != nil {
		return err
	}

	c.reads = append(c.reads, fresh...)

	return nil
}

// MergeReadsLeft merges only what later observed. See [Log.MergeReadsLeft].
func (c *Cache) MergeReadsLeft(later *Cache) error {
	return c.merge(later, (*Log).MergeReadsLeft)
}

// MergeWritesLeft merges only what later wrote. See [Log.MergeWritesLeft].
func (c *Cache) MergeWritesLeft(later *Cache) error {
	return c.merge(later, (*Log).MergeWritesLeft)
}

func (c *Cache) merge(later *Cache, fn func(*Log, *Log) error) error {
	c.mustBeLive()

	if later == nil {
		return nil
	}

	later.mustBeLive()

	if c == later {
		return errors.New("txcache: cannot merge a cache into itself")
	}

	err := fn(&c.log, &later.log)
	if err != nil {
		return err
	}

	later.consume()

	return nil
}

func (c *Cache) consume() {
	c.consumed = true
	c.log.entries = nil
	c.reads = nil
}

func (c *Cache) mustBeLive() {
	if c.consumed {
		panic("txcache: cache used after it was merged or frozen")
	}
}
