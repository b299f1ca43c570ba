package txcache

import (
	"errors"
	"slices"
)

// Entry is a key paired with a value: a backend read or a final write.
type Entry struct {
	Key   CacheKey
	Value Value
}

// Log maps each key touched by one scope to its [Access].
//
// By remembering the original value next to the current one, a Log can tell
// when a key was changed temporarily and then reset, and drop the write.
//
// The zero Log is empty and ready to use.
type Log struct {
	entries map[CacheKey]Access
}

// NewLog returns an empty log sized for capacity keys.
func NewLog(capacity int) *Log {
	return &Log{entries: make(map[CacheKey]Access, capacity)}
}

// Len returns the number of keys in the log.
func (l *Log) Len() int {
	return len(l.entries)
}

// IsEmpty reports whether no key was touched.
func (l *Log) IsEmpty() bool {
	return len(l.entries) == 0
}

// Get returns the value a read of key must observe in this scope. known is
// false when the scope never saw the key; the caller has to fetch it.
func (l *Log) Get(key CacheKey) (value Value, known bool) {
	access, ok := l.entries[key]
	if !ok {
		return Value{}, false
	}

	return access.LastValue(), true
}

// Access returns the recorded access for key.
func (l *Log) Access(key CacheKey) (Access, bool) {
	access, ok := l.entries[key]

	return access, ok
}

// Keys returns the touched keys in [CacheKey.Compare] order.
func (l *Log) Keys() []CacheKey {
	keys := make([]CacheKey, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, CacheKey.Compare)

	return keys
}

// RecordRead records that key was observed holding value.
//
// The first read of a key is stored. Later reads must agree with the last
// value the scope read or wrote; they are then discarded. A disagreeing read
// returns a [*ReadError] and leaves the log unchanged.
func (l *Log) RecordRead(key CacheKey, value Value) error {
	if existing, ok := l.entries[key]; ok {
		if last := existing.LastValue(); last != value {
			return &ReadError{Key: key, Expected: last, Found: value}
		}

		return nil
	}

	l.init()
	l.entries[key] = ReadAccess(value)

	return nil
}

// RecordWrite records that key was set to value (absent for a delete).
func (l *Log) RecordWrite(key CacheKey, value Value) {
	if existing, ok := l.entries[key]; ok {
		l.entries[key] = existing.WriteValue(value)

		return
	}

	l.init()
	l.entries[key] = WriteAccess(value)
}

// TakeWrites empties the log and returns every key whose access ends in a
// write, paired with the final value. Pure reads are dropped. The order is
// unspecified.
func (l *Log) TakeWrites() []Entry {
	writes := make([]Entry, 0, len(l.entries))

	for key, access := range l.entries {
		if v, ok := access.Written(); ok {
			writes = append(writes, Entry{Key: key, Value: v})
		}
	}

	l.entries = nil

	return writes
}

// MergeLeft folds later, the log of a scope that ran after l's, into l.
//
// Keys only in later are copied over. Keys in both are combined with
// [Access.Merge], which keeps l's first read and later's last write. The
// merge is atomic: every key is checked before l is touched, so on error l
// and later are both unchanged.
//
// On success later is emptied.
//
// Example:
//
//	l:      k1 => v1      later: k1 => v1'
//	        k2 => v2             k3 => v3
//
//	result: k1 => v1.Merge(v1')
//	        k2 => v2
//	        k3 => v3
func (l *Log) MergeLeft(later *Log) error {
	return l.mergeLeftWith(later, func(a Access) (Access, bool) { return a, true })
}

// MergeReadsLeft is [Log.MergeLeft] restricted to what later observed:
// ReadThenWrite(o, _) becomes Read(o), blind writes are dropped.
func (l *Log) MergeReadsLeft(later *Log) error {
	return l.mergeLeftWith(later, Access.readHalf)
}

// MergeWritesLeft is [Log.MergeLeft] restricted to what later wrote:
// ReadThenWrite(_, m) becomes Write(m), pure reads are dropped.
func (l *Log) MergeWritesLeft(later *Log) error {
	return l.mergeLeftWith(later, Access.writeHalf)
}

func (l *Log) mergeLeftWith(later *Log, filter func(Access) (Access, bool)) error {
	if later == nil || len(later.entries) == 0 {
		return nil
	}

	if l == later {
		return errors.New("txcache: cannot merge a log into itself")
	}

	staged := make(map[CacheKey]Access, len(later.entries))

	var conflict *MergeError

	for key, access := range later.entries {
		access, keep := filter(access)
		if !keep {
			continue
		}

		existing, ok := l.entries[key]
		if !ok {
			staged[key] = access

			continue
		}

		merged, err := existing.Merge(access)
		if err != nil {
			var mergeErr *MergeError
			if !errors.As(err, &mergeErr) {
				return err
			}

			// Report the smallest conflicting key so the error does not
			// depend on map iteration order.
			mergeErr.Key = key
			if conflict == nil || key.Compare(conflict.Key) < 0 {
				conflict = mergeErr
			}

			continue
		}

		staged[key] = merged
	}

	if conflict != nil {
		return conflict
	}

	l.init()

	for key, access := range staged {
		l.entries[key] = access
	}

	later.entries = nil

	return nil
}

func (l *Log) init() {
	if l.entries == nil {
		l.entries = make(map[CacheKey]Access)
	}
}
