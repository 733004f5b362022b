package stepver

import (
	"context"
	"sync"

	"github.com/tessera-io/tessera/model"
)

// MemoryVersionStore is an in-memory VersionStore for testing. Sequence
// numbers are assigned under the store mutex.
type MemoryVersionStore struct {
	mu       sync.RWMutex
	versions map[versionKey][]model.StepVersion
}

type versionKey struct {
	instanceID string
	stepName   string
}

// NewMemoryVersionStore creates a new in-memory step version store.
func NewMemoryVersionStore() *MemoryVersionStore {
	return &MemoryVersionStore{versions: make(map[versionKey][]model.StepVersion)}
}

// Append implements VersionStore.
func (s *MemoryVersionStore) Append(_ context.Context, v model.StepVersion) (model.StepVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := versionKey{instanceID: v.InstanceID, stepName: v.StepName}
	v.SequenceNumber = len(s.versions[key]) + 1
	s.versions[key] = append(s.versions[key], v)
	return v, nil
}

// List implements VersionStore. Versions are returned in sequence order.
func (s *MemoryVersionStore) List(_ context.Context, instanceID, stepName string) ([]model.StepVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.versions[versionKey{instanceID: instanceID, stepName: stepName}]
	result := make([]model.StepVersion, len(stored))
	copy(result, stored)
	return result, nil
}
