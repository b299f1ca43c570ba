package kvstore

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/calvinalkan/txcache/pkg/txcache"
	"github.com/calvinalkan/txcache/pkg/witness"
)

// Replay is a verifier-mode reader. It never touches storage: each Get
// consumes the next hint of the *witness.ArrayWitness it is handed.
//
// Replay has no state of its own; the cursor lives in the witness.
type Replay struct {
	log hclog.Logger
}

var _ txcache.Reader = (*Replay)(nil)

// NewReplay returns a replay reader.
func NewReplay(opts ...Option) *Replay {
	o := buildOptions("replay", opts)

	return &Replay{log: o.logger}
}

// Get returns the value recorded for key by the proving run.
func (r *Replay) Get(key txcache.Key, _ txcache.Version, w txcache.Witness) (txcache.Value, error) {
	aw, ok := w.(*witness.ArrayWitness)
	if !ok || aw == nil {
		return txcache.Value{}, fmt.Errorf("%w: got %T", ErrWitnessRequired, w)
	}

	var h readHint

	err := aw.GetHint(&h)
	if err != nil {
		return txcache.Value{}, fmt.Errorf("replaying read of %s: %w", key, err)
	}

	if !bytes.Equal(h.Key, key.Bytes()) {
		r.log.Trace("hint mismatch", "want", key.String(), "got", txcache.NewKey(h.Key).String())

		return txcache.Value{}, fmt.Errorf("%w: read %s, hint for %s", ErrWitnessMismatch, key, txcache.NewKey(h.Key))
	}

	return h.value(), nil
}
