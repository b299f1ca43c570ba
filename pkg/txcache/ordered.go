package txcache

import "slices"

// OrderedReadsAndWrites is the deterministic outcome of a scope: what was
// read from the backend, in the order it was read, and what must be written
// back, sorted by key.
type OrderedReadsAndWrites struct {
	Reads  []Entry
	Writes []Entry
}

// Freeze consumes c and returns its reads and writes.
//
// Writes are sorted by [CacheKey.Compare] so applying them does not depend
// on execution order and is reproducible during verification.
func (c *Cache) Freeze() OrderedReadsAndWrites {
	c.mustBeLive()

	writes := c.log.TakeWrites()
	slices.SortFunc(writes, func(a, b Entry) int { return a.Key.Compare(b.Key) })

	out := OrderedReadsAndWrites{
		Reads:  c.reads,
		Writes: writes,
	}

	c.consume()

	return out
}

// IsEmpty reports whether nothing was read or written.
func (o OrderedReadsAndWrites) IsEmpty() bool {
	return len(o.Reads) == 0 && len(o.Writes) == 0
}
