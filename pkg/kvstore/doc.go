// Package kvstore provides reference backends for [txcache.Cache]: a
// versioned in-memory store, a versioned SQLite store and a replay reader
// that serves reads from a witness alone.
//
// Memory and SQLite record every value they serve into the run's witness
// when it is a [*witness.ArrayWitness] (prover mode). Replay consumes those
// hints in the same order (verifier mode), so a batch re-executed against
// Replay sees exactly what the original run saw without touching storage.
//
// Versions are commit heights. Version 0 is the empty store; every Commit
// creates the next height. A read at height h sees the newest write at or
// below h; an unversioned read sees the latest state.
package kvstore
