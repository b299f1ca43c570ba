package kvstore

import (
	"fmt"

	"github.com/calvinalkan/txcache/pkg/txcache"
	"github.com/calvinalkan/txcache/pkg/witness"
)

// readHint is what a prover-mode backend appends to the witness for every
// value it serves.
type readHint struct {
	Key     []byte `cbor:"1,keyasint"`
	Present bool   `cbor:"2,keyasint"`
	Value   []byte `cbor:"3,keyasint,omitempty"`
}

func (h readHint) value() txcache.Value {
	if !h.Present {
		return txcache.Absent
	}

	return txcache.SomeValue(h.Value)
}

// recordHint appends v to w when w collects hints. Any other witness,
// including nil, is ignored.
func recordHint(w txcache.Witness, key txcache.Key, v txcache.Value) error {
	aw, ok := w.(*witness.ArrayWitness)
	if !ok || aw == nil {
		return nil
	}

	err := aw.AddHint(readHint{Key: key.Bytes(), Present: v.Exists(), Value: v.Bytes()})
	if err != nil {
		return fmt.Errorf("recording hint for %s: %w", key, err)
	}

	return nil
}
