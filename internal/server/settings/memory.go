package settings

import (
	"context"
	"sync"

	"github.com/vttlabs/lorekeeper/internal/common"
)

// MemoryRepository keeps settings in a map. Used by tests and throwaway
// worlds; nothing survives a restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{values: make(map[string][]byte)}
}

func (r *MemoryRepository) Get(ctx context.Context, world, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.values[world+"\x00"+key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (r *MemoryRepository) Set(ctx context.Context, world, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	r.mu.Lock()
	r.values[world+"\x00"+key] = stored
	r.mu.Unlock()
	return nil
}
