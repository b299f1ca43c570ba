package kvstore

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/calvinalkan/txcache/pkg/txcache"
)

// Memory is a versioned in-memory store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	history map[string][]versioned
	latest  uint64
	log     hclog.Logger
}

// versioned is one write of a key. A key's history is ordered by version.
type versioned struct {
	version uint64
	value   txcache.Value
}

var _ txcache.Reader = (*Memory)(nil)

// NewMemory returns an empty store at version 0.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions("memory", opts)

	return &Memory{
		history: make(map[string][]versioned),
		log:     o.logger,
	}
}

// Latest returns the height of the last commit.
func (m *Memory) Latest() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.latest
}

// Get returns key as of version. See the package doc for witness handling.
func (m *Memory) Get(key txcache.Key, version txcache.Version, w txcache.Witness) (txcache.Value, error) {
	m.mu.RLock()
	v := m.lookup(string(key.Bytes()), version)
	m.mu.RUnlock()

	err := recordHint(w, key, v)
	if err != nil {
		return txcache.Value{}, err
	}

	return v, nil
}

func (m *Memory) lookup(key string, version txcache.Version) txcache.Value {
	history := m.history[key]

	height, pinned := version.Get()
	if !pinned {
		height = m.latest
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].version <= height {
			return history[i].value
		}
	}

	return txcache.Absent
}

// Commit applies the writes of a frozen scope as the next version and
// returns it. Reads are ignored. Absent values delete.
func (m *Memory) Commit(orw txcache.OrderedReadsAndWrites) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest++

	for _, e := range orw.Writes {
		k := string(e.Key.StorageKey().Bytes())
		m.history[k] = append(m.history[k], versioned{version: m.latest, value: e.Value})
	}

	m.log.Debug("committed", "version", m.latest, "writes", len(orw.Writes))

	return m.latest, nil
}

// Snapshot returns every present key and its value as of version.
func (m *Memory) Snapshot(version txcache.Version) map[string]txcache.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]txcache.Value, len(m.history))

	for k := range m.history {
		v := m.lookup(k, version)
		if v.Exists() {
			out[k] = v
		}
	}

	return out
}
