package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/calvinalkan/txcache/internal/config"
	"github.com/calvinalkan/txcache/pkg/kvstore"
	"github.com/calvinalkan/txcache/pkg/txcache"
)

// backend is the storage a command executes against.
type backend interface {
	Reader(ctx context.Context) txcache.Reader
	Latest(ctx context.Context) (uint64, error)
	Commit(ctx context.Context, orw txcache.OrderedReadsAndWrites) (uint64, error)
	Close() error
}

func openBackend(ctx context.Context, cfg config.Config, logger hclog.Logger) (backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memoryBackend{store: kvstore.NewMemory(kvstore.WithLogger(logger))}, nil
	case config.BackendSQLite:
		err := os.MkdirAll(filepath.Dir(cfg.DBPathAbs), 0o750)
		if err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}

		return kvstore.OpenSQLite(ctx, cfg.DBPathAbs, kvstore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// memoryBackend adapts kvstore.Memory. Its state lives only as long as the
// process.
type memoryBackend struct {
	store *kvstore.Memory
}

func (m memoryBackend) Reader(context.Context) txcache.Reader {
	return m.store
}

func (m memoryBackend) Latest(context.Context) (uint64, error) {
	return m.store.Latest(), nil
}

func (m memoryBackend) Commit(_ context.Context, orw txcache.OrderedReadsAndWrites) (uint64, error) {
	return m.store.Commit(orw)
}

func (memoryBackend) Close() error {
	return nil
}
