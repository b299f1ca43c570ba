package txcache_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/txcache/pkg/txcache"
)

var entryCmp = cmp.Options{
	cmp.Comparer(func(a, b txcache.CacheKey) bool { return a == b }),
	cmp.Comparer(func(a, b txcache.Value) bool { return a == b }),
	cmp.Comparer(func(a, b txcache.Access) bool { return a == b }),
}

// mapReader is a fake backend that counts calls and remembers the last
// version and witness it was handed.
type mapReader struct {
	values      map[string]string
	calls       int
	lastVersion txcache.Version
	lastWitness txcache.Witness
	err         error
}

func newMapReader(kv ...string) *mapReader {
	r := &mapReader{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		r.values[kv[i]] = kv[i+1]
	}

	return r
}

func (r *mapReader) Get(key txcache.Key, version txcache.Version, witness txcache.Witness) (txcache.Value, error) {
	r.calls++
	r.lastVersion = version
	r.lastWitness = witness

	if r.err != nil {
		return txcache.Value{}, r.err
	}

	v, ok := r.values[string(key.Bytes())]
	if !ok {
		return txcache.Absent, nil
	}

	return txcache.ValueFromString(v), nil
}

func key(s string) txcache.Key { return txcache.KeyFromString(s) }

func val(s string) txcache.Value { return txcache.ValueFromString(s) }

func mustOK(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func mustIs(t *testing.T, err, target error) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("err=%v, want %v", err, target)
	}
}

func panics(fn func()) (panicked bool) {
	defer func() {
		if recover() != nil {
			panicked = true
		}
	}()

	fn()

	return false
}

// snapshot flattens a log into a map keyed by the plain key string.
func snapshot(log *txcache.Log) map[string]txcache.Access {
	out := make(map[string]txcache.Access, log.Len())

	for _, key := range log.Keys() {
		access, _ := log.Access(key)
		out[string(key.StorageKey().Bytes())] = access
	}

	return out
}

func diffSnapshot(t *testing.T, want, got map[string]txcache.Access) {
	t.Helper()

	if diff := cmp.Diff(want, got, entryCmp); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}
