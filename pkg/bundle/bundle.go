// Package bundle stores everything needed to verify a batch offline: the
// batch's ordered reads and writes and the witness collected while proving
// it.
//
// Bundles are deterministic CBOR. Saving the same bundle twice produces
// identical files.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/natefinch/atomic"

	"github.com/calvinalkan/txcache/pkg/txcache"
	"github.com/calvinalkan/txcache/pkg/witness"
)

// formatVersion is bumped on incompatible encoding changes.
const formatVersion = 1

var (
	// ErrFormat is returned when decoding data that is not a bundle this
	// package understands.
	ErrFormat = errors.New("bundle: unsupported format")

	// ErrMismatch is returned by [Bundle.Check] when a re-execution did not
	// reproduce the bundle.
	ErrMismatch = errors.New("bundle: mismatch")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bundle: building cbor enc mode: %v", err))
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("bundle: building cbor dec mode: %v", err))
	}
}

// Bundle is a frozen batch plus its witness.
type Bundle struct {
	Version txcache.Version
	Reads   []txcache.Entry
	Writes  []txcache.Entry
	Witness *witness.ArrayWitness
}

// FromFrozen builds a bundle from a frozen root scope.
func FromFrozen(version txcache.Version, orw txcache.OrderedReadsAndWrites, w *witness.ArrayWitness) *Bundle {
	if w == nil {
		w = witness.New()
	}

	return &Bundle{
		Version: version,
		Reads:   orw.Reads,
		Writes:  orw.Writes,
		Witness: w,
	}
}

// Frozen returns the bundle's reads and writes.
func (b *Bundle) Frozen() txcache.OrderedReadsAndWrites {
	return txcache.OrderedReadsAndWrites{Reads: b.Reads, Writes: b.Writes}
}

type wireEntry struct {
	Key     []byte `cbor:"1,keyasint"`
	Present bool   `cbor:"2,keyasint"`
	Value   []byte `cbor:"3,keyasint,omitempty"`
}

type wireBundle struct {
	Format    int         `cbor:"1,keyasint"`
	Versioned bool        `cbor:"2,keyasint"`
	Height    uint64      `cbor:"3,keyasint"`
	Reads     []wireEntry `cbor:"4,keyasint"`
	Writes    []wireEntry `cbor:"5,keyasint"`
	Witness   []byte      `cbor:"6,keyasint"`
}

// MarshalBinary encodes b.
func (b *Bundle) MarshalBinary() ([]byte, error) {
	w := b.Witness
	if w == nil {
		w = witness.New()
	}

	hints, err := w.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}

	height, versioned := b.Version.Get()

	data, err := encMode.Marshal(wireBundle{
		Format:    formatVersion,
		Versioned: versioned,
		Height:    height,
		Reads:     toWire(b.Reads),
		Writes:    toWire(b.Writes),
		Witness:   hints,
	})
	if err != nil {
		return nil, fmt.Errorf("bundle: encoding: %w", err)
	}

	return data, nil
}

// UnmarshalBinary replaces b with the bundle encoded in data.
func (b *Bundle) UnmarshalBinary(data []byte) error {
	var wb wireBundle

	err := decMode.Unmarshal(data, &wb)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}

	if wb.Format != formatVersion {
		return fmt.Errorf("%w: format %d", ErrFormat, wb.Format)
	}

	version := txcache.NoVersion
	if wb.Versioned {
		version = txcache.AtVersion(wb.Height)
	}

	w := witness.New()

	err = w.UnmarshalBinary(wb.Witness)
	if err != nil {
		return fmt.Errorf("bundle: %w", err)
	}

	*b = Bundle{
		Version: version,
		Reads:   fromWire(wb.Reads, version),
		Writes:  fromWire(wb.Writes, version),
		Witness: w,
	}

	return nil
}

func toWire(entries []txcache.Entry) []wireEntry {
	out := make([]wireEntry, len(entries))

	for i, e := range entries {
		out[i] = wireEntry{
			Key:     e.Key.StorageKey().Bytes(),
			Present: e.Value.Exists(),
			Value:   e.Value.Bytes(),
		}
	}

	return out
}

func fromWire(entries []wireEntry, version txcache.Version) []txcache.Entry {
	out := make([]txcache.Entry, len(entries))

	for i, e := range entries {
		v := txcache.Absent
		if e.Present {
			v = txcache.SomeValue(e.Value)
		}

		out[i] = txcache.Entry{Key: txcache.NewKey(e.Key).WithVersion(version), Value: v}
	}

	return out
}

// Save writes b to path atomically.
func Save(path string, b *Bundle) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return err
	}

	err = atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("bundle: writing %s: %w", path, err)
	}

	return nil
}

// Load reads the bundle at path.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: reading %s: %w", path, err)
	}

	var b Bundle

	err = b.UnmarshalBinary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &b, nil
}

// Equal reports whether orw has the same reads and writes as b.
func (b *Bundle) Equal(orw txcache.OrderedReadsAndWrites) bool {
	return b.Check(orw) == nil
}

// Check is like [Bundle.Equal] but describes the first difference in an
// error wrapping [ErrMismatch].
func (b *Bundle) Check(orw txcache.OrderedReadsAndWrites) error {
	err := compareEntries("read", b.Reads, orw.Reads)
	if err != nil {
		return err
	}

	return compareEntries("write", b.Writes, orw.Writes)
}

func compareEntries(what string, want, got []txcache.Entry) error {
	for i := range min(len(want), len(got)) {
		if want[i] != got[i] {
			return fmt.Errorf("%w: %s %d: want %s=%s, got %s=%s",
				ErrMismatch, what, i, want[i].Key, want[i].Value, got[i].Key, got[i].Value)
		}
	}

	if len(want) != len(got) {
		return fmt.Errorf("%w: want %d %ss, got %d", ErrMismatch, len(want), what, len(got))
	}

	return nil
}
