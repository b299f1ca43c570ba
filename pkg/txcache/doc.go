// Package txcache tracks every key a unit of execution reads or writes.
//
// A scope (a call, a transaction, a batch) owns one [Cache]. Reads that miss
// the cache go to a [Reader] supplied by the caller and are remembered, so a
// later read of the same key inside the scope must observe the same value or
// the scope fails with [ErrInconsistentRead]. Writes are folded into a small
// per-key state machine ([Access]) that remembers the first value observed
// and the last value written.
//
// When a scope finishes, its cache is merged leftward into the parent's
// ([Cache.MergeLeft]). The merge checks that the later scope's first
// observation of every key agrees with the earlier scope's last observation
// and fails with a [*MergeError] otherwise. A merge is all-or-nothing: on
// error neither side is modified.
//
// The outermost scope is frozen into [OrderedReadsAndWrites]: backend reads
// in the order they happened and writes sorted by key, ready to be applied to
// storage or embedded in a proof.
//
// The package does no I/O of its own and has no internal locking. A Cache
// belongs to the goroutine running its scope; merges into a shared parent
// must be serialized by the caller.
package txcache
