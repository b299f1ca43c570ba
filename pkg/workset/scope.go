// Package workset owns a tree of [txcache.Cache] scopes for one batch.
//
// The root scope reads from the backend. Each child scope reads through its
// parent, so every backend read is recorded once, in the root, in the order
// it happened. Committing a child merges its cache into the parent;
// reverting drops it. A failed merge aborts the parent: the parent's view
// is no longer trustworthy and it refuses further work.
//
// Scopes are not safe for concurrent use. Work that runs in parallel is
// executed on standalone caches and folded in with [Scope.Absorb].
package workset

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/calvinalkan/txcache/pkg/txcache"
)

// Option configures a root scope.
type Option func(*Scope)

// WithLogger sets the logger. Scopes log lifecycle events at trace level
// and aborts at warn level.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Scope) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithVersion pins the root and all its children to a state version.
func WithVersion(v uint64) Option {
	return func(s *Scope) {
		s.version = txcache.AtVersion(v)
	}
}

// Scope is one level of the scope tree.
type Scope struct {
	id      uuid.UUID
	parent  *Scope
	child   *Scope
	cache   *txcache.Cache
	backend txcache.Reader
	witness txcache.Witness
	version txcache.Version
	log     hclog.Logger

	closed  bool
	aborted error
}

// NewRoot returns the root scope of a batch reading from backend. The
// witness is handed to backend on every read.
func NewRoot(backend txcache.Reader, w txcache.Witness, opts ...Option) *Scope {
	s := &Scope{
		id:      newID(),
		backend: backend,
		witness: w,
		log:     hclog.NewNullLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.cache = txcache.NewWithVersion(s.version)
	s.log = s.log.Named("workset").With("scope_id", s.id.String())
	s.log.Trace("root opened", "version", s.version.String())

	return s
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}

	return id
}

// ID returns the scope's unique id.
func (s *Scope) ID() uuid.UUID {
	return s.id
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsRoot reports whether s has no parent.
func (s *Scope) IsRoot() bool {
	return s.parent == nil
}

// Version returns the state version the scope reads at.
func (s *Scope) Version() txcache.Version {
	return s.version
}

// Begin opens a child scope. Only one child may be open at a time.
func (s *Scope) Begin() (*Scope, error) {
	err := s.usable()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	child := &Scope{
		id:      newID(),
		parent:  s,
		cache:   txcache.NewWithVersion(s.version),
		witness: s.witness,
		version: s.version,
	}
	child.backend = txcache.ReaderFunc(s.readThrough)
	child.log = s.log.With("scope_id", child.id.String(), "parent_id", s.id.String())

	s.child = child
	child.log.Trace("child opened")

	return child, nil
}

// readThrough serves a child's miss from s's own view. The child is open,
// so s itself is not usable from outside; bypass that check.
func (s *Scope) readThrough(key txcache.Key, _ txcache.Version, _ txcache.Witness) (txcache.Value, error) {
	if s.aborted != nil {
		return txcache.Value{}, fmt.Errorf("%w: %w", ErrAborted, s.aborted)
	}

	return s.cache.GetOrFetch(key, s.backend, s.witness)
}

// Get returns the value of key as this scope sees it.
func (s *Scope) Get(key txcache.Key) (txcache.Value, error) {
	err := s.usable()
	if err != nil {
		return txcache.Value{}, fmt.Errorf("get %s: %w", key, err)
	}

	v, err := s.cache.GetOrFetch(key, s.backend, s.witness)
	if err != nil {
		return txcache.Value{}, fmt.Errorf("get %s: %w", key, err)
	}

	return v, nil
}

// Set writes value to key.
func (s *Scope) Set(key txcache.Key, value txcache.Value) error {
	err := s.usable()
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	s.cache.Set(key, value)

	return nil
}

// Delete removes key.
func (s *Scope) Delete(key txcache.Key) error {
	err := s.usable()
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	s.cache.Delete(key)

	return nil
}

// Commit merges the child scope s into its parent and closes s.
//
// If the merge conflicts the parent is aborted and the returned error wraps
// both [ErrAborted] and the [*txcache.MergeError].
func (s *Scope) Commit() error {
	if s.parent == nil {
		return fmt.Errorf("commit: %w", ErrChildOnly)
	}

	err := s.usable()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	parent := s.parent
	s.closed = true
	parent.child = nil

	err = parent.mergeFrom(s.cache, parent.cache.MergeLeft)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.log.Trace("child committed")

	return nil
}

// Revert discards the child scope s and its writes.
//
// The parent is not left exactly as it was: s read through it, so every
// backend read s caused is already recorded in the ancestors and stays
// there. This keeps the root's ordered reads in step with the witness,
// which also saw those reads.
func (s *Scope) Revert() error {
	if s.parent == nil {
		return fmt.Errorf("revert: %w", ErrChildOnly)
	}

	if s.closed {
		return fmt.Errorf("revert: %w", ErrClosed)
	}

	if s.child != nil {
		return fmt.Errorf("revert: %w", ErrChildActive)
	}

	s.closed = true
	s.parent.child = nil
	s.cache = nil

	s.log.Trace("child reverted")

	return nil
}

// Absorb merges a cache that was executed outside the tree, typically in
// parallel, as if it ran after everything s has seen so far. c read the
// backend directly, so its backend reads of keys s has not seen join the
// ordered reads. Only the root may absorb: a child's reads must be served
// through its parent. c is consumed on success. A conflict aborts s.
func (s *Scope) Absorb(c *txcache.Cache) error {
	if s.parent != nil {
		return fmt.Errorf("absorb: %w", ErrRootOnly)
	}

	err := s.usable()
	if err != nil {
		return fmt.Errorf("absorb: %w", err)
	}

	err = s.mergeFrom(c, s.cache.MergeLeftWithReads)
	if err != nil {
		return fmt.Errorf("absorb: %w", err)
	}

	return nil
}

func (s *Scope) mergeFrom(c *txcache.Cache, merge func(*txcache.Cache) error) error {
	err := merge(c)
	if err != nil {
		s.aborted = err
		s.log.Warn("scope aborted", "error", err)

		return fmt.Errorf("%w: %w", ErrAborted, err)
	}

	return nil
}

// Freeze closes the root scope and returns the batch's ordered reads and
// writes.
func (s *Scope) Freeze() (txcache.OrderedReadsAndWrites, error) {
	if s.parent != nil {
		return txcache.OrderedReadsAndWrites{}, fmt.Errorf("freeze: %w", ErrRootOnly)
	}

	err := s.usable()
	if err != nil {
		return txcache.OrderedReadsAndWrites{}, fmt.Errorf("freeze: %w", err)
	}

	s.closed = true
	out := s.cache.Freeze()
	s.cache = nil

	s.log.Trace("root frozen", "reads", len(out.Reads), "writes", len(out.Writes))

	return out, nil
}

// Err returns the merge error that aborted s, or nil.
func (s *Scope) Err() error {
	return s.aborted
}

func (s *Scope) usable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.aborted != nil:
		return fmt.Errorf("%w: %w", ErrAborted, s.aborted)
	case s.child != nil:
		return ErrChildActive
	}

	return nil
}

// Record is one key of a scope's access log.
type Record struct {
	Key    txcache.CacheKey
	Access txcache.Access
}

// Records returns the scope's access log sorted by key. It is a read-only
// view and may be taken while a child is open.
func (s *Scope) Records() ([]Record, error) {
	if s.closed {
		return nil, fmt.Errorf("records: %w", ErrClosed)
	}

	log := s.cache.Log()
	keys := log.Keys()
	out := make([]Record, 0, len(keys))

	for _, k := range keys {
		a, _ := log.Access(k)
		out = append(out, Record{Key: k, Access: a})
	}

	return out, nil
}

// Depth returns the number of ancestors of s; 0 for the root.
func (s *Scope) Depth() int {
	d := 0
	for p := s.parent; p != nil; p = p.parent {
		d++
	}

	return d
}
