package txcache

// Value is the content of a storage slot, or its absence.
//
// The zero Value is absent (a tombstone). An empty but present value is a
// different thing: SomeValue(nil) exists and has length zero.
//
// Value is immutable and comparable with ==; copies share the same bytes.
type Value struct {
	s       string
	present bool
}

// Absent is the tombstone value.
var Absent = Value{}

// SomeValue returns a present value holding a copy of b.
func SomeValue(b []byte) Value {
	return Value{s: string(b), present: true}
}

// ValueFromString returns a present value holding the bytes of s.
func ValueFromString(s string) Value {
	return Value{s: s, present: true}
}

// Exists reports whether v holds bytes (possibly zero of them).
func (v Value) Exists() bool {
	return v.present
}

// Bytes returns a copy of the value bytes, or nil when absent.
func (v Value) Bytes() []byte {
	if !v.present {
		return nil
	}

	return []byte(v.s)
}

// Len returns the number of bytes held; zero when absent.
func (v Value) Len() int {
	return len(v.s)
}

// Equal reports whether both values are absent, or both present with the
// same bytes.
func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}

	return renderBytes(v.s)
}
