package definition

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tessera-io/tessera/model"
)

// DefaultVersion is the version key served when no explicit version is asked
// for.
const DefaultVersion = "default"

// versionTable is an immutable map of version key to snapshot plus the keys
// in publish order. Updates build a new table and swap the pointer.
type versionTable struct {
	snaps map[string]*Snapshot
	order []string
}

// Versions holds published model snapshots keyed by version string. Reads are
// lock-free; in-flight readers keep whatever snapshot they resolved even when
// a newer table is published underneath them.
type Versions struct {
	table atomic.Pointer[versionTable]

	mu sync.Mutex // serializes writers only
}

// NewVersions creates an empty version registry.
func NewVersions() *Versions {
	v := &Versions{}
	v.table.Store(&versionTable{snaps: map[string]*Snapshot{}})
	return v
}

// AddOrUpdate publishes a snapshot under the given version key. A new key is
// appended to the publish order; an existing key is replaced in place.
func (v *Versions) AddOrUpdate(key string, snap *Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	cur := v.table.Load()
	next := &versionTable{
		snaps: make(map[string]*Snapshot, len(cur.snaps)+1),
		order: make([]string, len(cur.order)),
	}
	for k, s := range cur.snaps {
		next.snaps[k] = s
	}
	copy(next.order, cur.order)

	if _, exists := next.snaps[key]; !exists {
		next.order = append(next.order, key)
	}
	next.snaps[key] = snap
	v.table.Store(next)
}

// Snapshot resolves the snapshot published under the given version key.
func (v *Versions) Snapshot(key string) (*Snapshot, error) {
	snap, ok := v.table.Load().snaps[key]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("model version %q not found", key))
	}
	return snap, nil
}

// Default resolves the snapshot published under DefaultVersion.
func (v *Versions) Default() (*Snapshot, error) {
	return v.Snapshot(DefaultVersion)
}

// ListVersions returns all published version keys in publish order.
func (v *Versions) ListVersions() []string {
	order := v.table.Load().order
	out := make([]string, len(order))
	copy(out, order)
	return out
}
