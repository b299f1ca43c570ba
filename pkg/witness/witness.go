// Package witness provides ArrayWitness, an ordered list of hints collected
// by a backend while executing a batch and replayed, in the same order,
// when the batch is verified without access to storage.
//
// Hints are CBOR encoded with the core deterministic profile, so two runs
// that record the same values produce byte-identical witnesses.
package witness

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrExhausted is returned by [ArrayWitness.GetHint] when every hint has
	// been consumed.
	ErrExhausted = errors.New("witness: no hints left")

	// ErrCorrupt is returned when a hint or an encoded witness cannot be
	// decoded.
	ErrCorrupt = errors.New("witness: corrupt")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("witness: building cbor enc mode: %v", err))
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("witness: building cbor dec mode: %v", err))
	}
}

// ArrayWitness is an append-only list of hints with a read cursor.
//
// The zero value is empty and ready to use. An ArrayWitness is shared by
// every scope of a run and is safe for concurrent use.
type ArrayWitness struct {
	mu     sync.Mutex
	hints  []cbor.RawMessage
	cursor int
}

// New returns an empty witness.
func New() *ArrayWitness {
	return &ArrayWitness{}
}

// AddHint encodes v and appends it.
func (w *ArrayWitness) AddHint(v any) error {
	b, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("witness: encoding hint: %w", err)
	}

	w.mu.Lock()
	w.hints = append(w.hints, b)
	w.mu.Unlock()

	return nil
}

// GetHint decodes the next unread hint into out and advances the cursor.
//
// The cursor does not move when decoding fails.
func (w *ArrayWitness) GetHint(out any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cursor >= len(w.hints) {
		return ErrExhausted
	}

	err := decMode.Unmarshal(w.hints[w.cursor], out)
	if err != nil {
		return fmt.Errorf("%w: hint %d: %w", ErrCorrupt, w.cursor, err)
	}

	w.cursor++

	return nil
}

// Len returns the number of hints, read or not.
func (w *ArrayWitness) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.hints)
}

// Remaining returns the number of hints not yet read.
func (w *ArrayWitness) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.hints) - w.cursor
}

// Rewind moves the read cursor back to the first hint.
func (w *ArrayWitness) Rewind() {
	w.mu.Lock()
	w.cursor = 0
	w.mu.Unlock()
}

// MarshalBinary encodes all hints as a CBOR array. The read cursor is not
// part of the encoding.
func (w *ArrayWitness) MarshalBinary() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hints := w.hints
	if hints == nil {
		hints = []cbor.RawMessage{}
	}

	b, err := encMode.Marshal(hints)
	if err != nil {
		return nil, fmt.Errorf("witness: encoding: %w", err)
	}

	return b, nil
}

// UnmarshalBinary replaces the hints with those encoded in data and rewinds
// the cursor.
func (w *ArrayWitness) UnmarshalBinary(data []byte) error {
	var hints []cbor.RawMessage

	err := decMode.Unmarshal(data, &hints)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	w.mu.Lock()
	w.hints = hints
	w.cursor = 0
	w.mu.Unlock()

	return nil
}
