package instance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tessera-io/tessera/model"
)

// MemoryStore is an in-memory instance Store for testing. Save uses
// optimistic locking on the instance Version.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]model.WorkflowInstance
}

// NewMemoryStore creates a new in-memory instance store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[string]model.WorkflowInstance)}
}

// GetByID retrieves an instance by ID.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*model.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.instances[id]
	if !exists {
		return nil, model.NewNotFoundError(fmt.Sprintf("instance %q not found", id))
	}
	out := inst.Clone()
	return &out, nil
}

// GetByEntityType returns all instances of the named entity type, newest
// first.
func (s *MemoryStore) GetByEntityType(_ context.Context, name string) ([]model.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.WorkflowInstance
	for _, inst := range s.instances {
		if inst.EntityType == name {
			result = append(result, inst.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Save upserts an instance. An existing instance is replaced only when the
// incoming Version matches the stored one.
func (s *MemoryStore) Save(_ context.Context, inst *model.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.instances[inst.ID]; exists {
		if existing.Version != inst.Version {
			return model.NewConflictError(
				fmt.Sprintf("instance %q version conflict (expected %d, got %d)", inst.ID, existing.Version, inst.Version))
		}
		inst.Version++
	}
	inst.UpdatedAt = time.Now().UTC()
	s.instances[inst.ID] = inst.Clone()
	return nil
}

// Delete removes an instance.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[id]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("instance %q not found", id))
	}
	delete(s.instances, id)
	return nil
}

// Len returns the total number of instances. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}
