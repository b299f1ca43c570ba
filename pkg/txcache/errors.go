package txcache

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use [errors.Is] to classify failures and [errors.As] to
// get at [*ReadError] or [*MergeError] for the values involved.
var (
	// ErrInconsistentRead indicates a key was read twice in one scope and the
	// second observation disagrees with what the scope already recorded.
	//
	// Given a deterministic backend this is a bug in the caller; the scope
	// must be abandoned.
	ErrInconsistentRead = errors.New("txcache: inconsistent read")

	// ErrReadThenRead indicates a merge where the later scope first read a key
	// with a different value than the earlier scope read.
	ErrReadThenRead = errors.New("txcache: read-then-read conflict")

	// ErrWriteThenRead indicates a merge where the later scope first read a
	// key with a different value than the earlier scope last wrote.
	ErrWriteThenRead = errors.New("txcache: write-then-read conflict")
)

// ReadError is returned when a read contradicts a prior read or write of the
// same key within one scope.
type ReadError struct {
	Key      CacheKey
	Expected Value
	Found    Value
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: key %s: expected %s, found %s", ErrInconsistentRead, e.Key, e.Expected, e.Found)
}

// Unwrap returns [ErrInconsistentRead].
func (e *ReadError) Unwrap() error {
	return ErrInconsistentRead
}

// MergeConflict tells which ordering a [MergeError] violated.
type MergeConflict uint8

const (
	// ReadThenRead: the earlier scope read Left, the later scope read Right.
	ReadThenRead MergeConflict = iota + 1
	// WriteThenRead: the earlier scope wrote Left, the later scope read Right.
	WriteThenRead
)

func (c MergeConflict) String() string {
	switch c {
	case ReadThenRead:
		return "read-then-read"
	case WriteThenRead:
		return "write-then-read"
	default:
		return fmt.Sprintf("MergeConflict(%d)", uint8(c))
	}
}

// MergeError is returned when two scopes observed a key in a way that could
// not come from running them one after the other.
//
// For [ReadThenRead], Left is the earlier read and Right the later read.
// For [WriteThenRead], Left is the earlier write and Right the later read.
type MergeError struct {
	Conflict MergeConflict
	Key      CacheKey
	Left     Value
	Right    Value
}

func (e *MergeError) Error() string {
	switch e.Conflict {
	case WriteThenRead:
		return fmt.Sprintf("%s: key %s: write=%s read=%s", ErrWriteThenRead, e.Key, e.Left, e.Right)
	default:
		return fmt.Sprintf("%s: key %s: left=%s right=%s", ErrReadThenRead, e.Key, e.Left, e.Right)
	}
}

// Unwrap returns [ErrReadThenRead] or [ErrWriteThenRead].
func (e *MergeError) Unwrap() error {
	if e.Conflict == WriteThenRead {
		return ErrWriteThenRead
	}

	return ErrReadThenRead
}

// Write returns the earlier written value of a [WriteThenRead] conflict.
func (e *MergeError) Write() Value {
	return e.Left
}

// Read returns the later observed value of the conflict.
func (e *MergeError) Read() Value {
	return e.Right
}
