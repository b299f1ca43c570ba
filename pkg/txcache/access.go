package txcache

import "fmt"

// AccessKind is the tag of an [Access].
type AccessKind uint8

const (
	// KindRead: the key was observed and never written in this scope.
	KindRead AccessKind = iota + 1
	// KindReadThenWrite: the key was observed, then written.
	KindReadThenWrite
	// KindWrite: the key was written without being observed first.
	KindWrite
)

func (k AccessKind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindReadThenWrite:
		return "read-then-write"
	case KindWrite:
		return "write"
	default:
		return fmt.Sprintf("AccessKind(%d)", uint8(k))
	}
}

// Access is everything one scope knows about one key.
//
// The rules:
//  1. A read preceded by a read must match it; one copy is kept.
//  2. A read preceded by a write must match the written value; the read is
//     dropped.
//  3. Otherwise the read is kept as the key's original value.
//  4. A write is kept unless a later write replaces it. Writing back the
//     original value erases the write.
//
// Access is a value type. The zero Access is invalid; build one with
// [ReadAccess], [WriteAccess] or [ReadThenWriteAccess].
type Access struct {
	kind     AccessKind
	original Value // Read, ReadThenWrite
	modified Value // ReadThenWrite, Write
}

// ReadAccess returns Read(v).
func ReadAccess(v Value) Access {
	return Access{kind: KindRead, original: v}
}

// WriteAccess returns Write(v).
func WriteAccess(v Value) Access {
	return Access{kind: KindWrite, modified: v}
}

// ReadThenWriteAccess returns ReadThenWrite(original, modified).
//
// It does not collapse original == modified; use [Access.WriteValue] for
// that.
func ReadThenWriteAccess(original, modified Value) Access {
	return Access{kind: KindReadThenWrite, original: original, modified: modified}
}

// Kind returns the tag.
func (a Access) Kind() AccessKind {
	return a.kind
}

// Original returns the first observed value. ok is false for [KindWrite].
func (a Access) Original() (Value, bool) {
	switch a.kind {
	case KindRead, KindReadThenWrite:
		return a.original, true
	case KindWrite:
		return Value{}, false
	default:
		panic(invalidKind(a.kind))
	}
}

// Written returns the last written value. ok is false for [KindRead].
func (a Access) Written() (Value, bool) {
	switch a.kind {
	case KindRead:
		return Value{}, false
	case KindReadThenWrite, KindWrite:
		return a.modified, true
	default:
		panic(invalidKind(a.kind))
	}
}

// LastValue is what a fresh read of the key in this scope must observe.
func (a Access) LastValue() Value {
	switch a.kind {
	case KindRead:
		return a.original
	case KindReadThenWrite, KindWrite:
		return a.modified
	default:
		panic(invalidKind(a.kind))
	}
}

// WriteValue returns the access after writing v.
//
// Writing back the originally observed value is a no-op from the backend's
// point of view, so Read and ReadThenWrite collapse to Read(original) when
// v equals the original.
func (a Access) WriteValue(v Value) Access {
	switch a.kind {
	case KindRead:
		if a.original == v {
			return a
		}

		return ReadThenWriteAccess(a.original, v)
	case KindReadThenWrite:
		if a.original == v {
			return ReadAccess(a.original)
		}

		return ReadThenWriteAccess(a.original, v)
	case KindWrite:
		return WriteAccess(v)
	default:
		panic(invalidKind(a.kind))
	}
}

// Merge combines a with later, the same key's access in a scope that ran
// after a's scope. The later scope's first observation must agree with a's
// last observation.
//
// The returned *MergeError has no Key; [Log] fills it in.
func (a Access) Merge(later Access) (Access, error) {
	switch a.kind {
	case KindRead:
		return a.mergeAfterRead(later)
	case KindReadThenWrite:
		return a.mergeAfterReadThenWrite(later)
	case KindWrite:
		return a.mergeAfterWrite(later)
	default:
		panic(invalidKind(a.kind))
	}
}

func (a Access) mergeAfterRead(later Access) (Access, error) {
	switch later.kind {
	case KindRead:
		if a.original != later.original {
			return a, &MergeError{Conflict: ReadThenRead, Left: a.original, Right: later.original}
		}

		return a, nil
	case KindReadThenWrite:
		if a.original != later.original {
			return a, &MergeError{Conflict: ReadThenRead, Left: a.original, Right: later.original}
		}

		return ReadThenWriteAccess(a.original, later.modified), nil
	case KindWrite:
		return ReadThenWriteAccess(a.original, later.modified), nil
	default:
		panic(invalidKind(later.kind))
	}
}

func (a Access) mergeAfterReadThenWrite(later Access) (Access, error) {
	switch later.kind {
	case KindRead:
		if a.modified != later.original {
			return a, &MergeError{Conflict: WriteThenRead, Left: a.modified, Right: later.original}
		}

		return a, nil
	case KindReadThenWrite:
		if a.modified != later.original {
			return a, &MergeError{Conflict: WriteThenRead, Left: a.modified, Right: later.original}
		}

		return ReadThenWriteAccess(a.original, later.modified), nil
	case KindWrite:
		// A blind write has no read side to check.
		return ReadThenWriteAccess(a.original, later.modified), nil
	default:
		panic(invalidKind(later.kind))
	}
}

func (a Access) mergeAfterWrite(later Access) (Access, error) {
	switch later.kind {
	case KindRead:
		if a.modified != later.original {
			return a, &MergeError{Conflict: WriteThenRead, Left: a.modified, Right: later.original}
		}

		// The read only re-confirms the pending write, which must survive.
		return a, nil
	case KindReadThenWrite:
		if a.modified != later.original {
			return a, &MergeError{Conflict: WriteThenRead, Left: a.modified, Right: later.original}
		}

		return WriteAccess(later.modified), nil
	case KindWrite:
		return later, nil
	default:
		panic(invalidKind(later.kind))
	}
}

// readHalf keeps only what a observed before writing.
func (a Access) readHalf() (Access, bool) {
	switch a.kind {
	case KindRead:
		return a, true
	case KindReadThenWrite:
		return ReadAccess(a.original), true
	case KindWrite:
		return Access{}, false
	default:
		panic(invalidKind(a.kind))
	}
}

// writeHalf keeps only what a wrote last.
func (a Access) writeHalf() (Access, bool) {
	switch a.kind {
	case KindRead:
		return Access{}, false
	case KindReadThenWrite, KindWrite:
		return WriteAccess(a.modified), true
	default:
		panic(invalidKind(a.kind))
	}
}

func (a Access) String() string {
	switch a.kind {
	case KindRead:
		return fmt.Sprintf("Read(%s)", a.original)
	case KindReadThenWrite:
		return fmt.Sprintf("ReadThenWrite(%s -> %s)", a.original, a.modified)
	case KindWrite:
		return fmt.Sprintf("Write(%s)", a.modified)
	default:
		return invalidKind(a.kind)
	}
}

func invalidKind(k AccessKind) string {
	return fmt.Sprintf("txcache: invalid access kind %d", uint8(k))
}
