package txcache

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a storage slot.
//
// Key is immutable and cheap to copy: the bytes live in a Go string, so
// every copy shares the same backing buffer.
type Key struct {
	s string
}

// NewKey returns a key holding a copy of b.
func NewKey(b []byte) Key {
	return Key{s: string(b)}
}

// KeyFromString returns a key holding the bytes of s.
func KeyFromString(s string) Key {
	return Key{s: s}
}

// Bytes returns a copy of the key bytes.
func (k Key) Bytes() []byte {
	return []byte(k.s)
}

// Len returns the number of key bytes.
func (k Key) Len() int {
	return len(k.s)
}

// String renders the key for humans: printable keys are quoted, anything
// else is shown as 0x-prefixed hex.
func (k Key) String() string {
	return renderBytes(k.s)
}

// Compare orders keys by byte content.
func (k Key) Compare(other Key) int {
	return strings.Compare(k.s, other.s)
}

// WithVersion scopes k by v. Identical keys under different versions never
// alias the same cache slot.
func (k Key) WithVersion(v Version) CacheKey {
	return CacheKey{key: k, version: v}
}

// Version optionally pins a cache to a state version (e.g. a block height).
//
// The zero value means "unversioned".
type Version struct {
	height uint64
	set    bool
}

// NoVersion is the unversioned [Version].
var NoVersion = Version{}

// AtVersion returns a version pinned to height.
func AtVersion(height uint64) Version {
	return Version{height: height, set: true}
}

// Get returns the height and whether the version is set.
func (v Version) Get() (uint64, bool) {
	return v.height, v.set
}

// IsSet reports whether v pins a height.
func (v Version) IsSet() bool {
	return v.set
}

func (v Version) String() string {
	if !v.set {
		return "unversioned"
	}

	return "v" + strconv.FormatUint(v.height, 10)
}

// CacheKey is the map key used inside a [Log]: a [Key] plus the [Version]
// of the cache that recorded it.
//
// CacheKey is comparable with == and can be used as a Go map key.
type CacheKey struct {
	key     Key
	version Version
}

// NewCacheKey is shorthand for KeyFromString(s).WithVersion(NoVersion).
func NewCacheKey(s string) CacheKey {
	return CacheKey{key: KeyFromString(s)}
}

// StorageKey returns the unversioned key, as understood by the backend.
func (ck CacheKey) StorageKey() Key {
	return ck.key
}

// Version returns the version ck was salted with.
func (ck CacheKey) Version() Version {
	return ck.version
}

// Bytes returns the salted byte form: the 8-byte big-endian version followed
// by the key bytes when versioned, the plain key bytes otherwise.
func (ck CacheKey) Bytes() []byte {
	h, ok := ck.version.Get()
	if !ok {
		return ck.key.Bytes()
	}

	out := make([]byte, 8, 8+ck.key.Len())
	binary.BigEndian.PutUint64(out, h)

	return append(out, ck.key.s...)
}

// Compare orders cache keys by their salted byte form.
//
// Unversioned keys sort before versioned ones; versioned keys sort by
// version first, then by key bytes, which matches comparing [CacheKey.Bytes].
// Mixing versioned and unversioned keys in one cache is a caller error, so
// the cross-kind order only has to be deterministic.
func (ck CacheKey) Compare(other CacheKey) int {
	switch {
	case !ck.version.set && other.version.set:
		return -1
	case ck.version.set && !other.version.set:
		return 1
	case ck.version.set && ck.version.height != other.version.height:
		if ck.version.height < other.version.height {
			return -1
		}

		return 1
	}

	return ck.key.Compare(other.key)
}

func (ck CacheKey) String() string {
	if !ck.version.set {
		return ck.key.String()
	}

	return fmt.Sprintf("%s@%s", ck.key, ck.version)
}

func renderBytes(s string) string {
	for i := range len(s) {
		c := s[i]
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%x", s)
		}
	}

	return strconv.Quote(s)
}
