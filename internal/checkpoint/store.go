package checkpoint

import (
	"context"
	"fmt"
)

// Store persists checkpoints by name and per-run metrics history.
type Store interface {
	Init(ctx context.Context) error
	SaveCheckpoint(ctx context.Context, name string, c *Checkpoint) error
	GetCheckpoint(ctx context.Context, name string) (*Checkpoint, bool, error)
	ListCheckpoints(ctx context.Context) ([]string, error)
	SaveMetrics(ctx context.Context, runID string, history []EpochMetrics) error
	GetMetrics(ctx context.Context, runID string) ([]EpochMetrics, bool, error)
}

// NewStore builds a store backend. path is the directory for "dir" and the
// database file for "sqlite".
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "dir":
		if path == "" {
			return nil, fmt.Errorf("dir store needs a path")
		}
		return NewDirStore(path), nil
	case "sqlite":
		return newSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported closes stores that hold resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// Load fetches a checkpoint that must exist.
func Load(ctx context.Context, store Store, name string) (*Checkpoint, error) {
	c, ok, err := store.GetCheckpoint(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("checkpoint %q not found", name)
	}
	return c, nil
}
