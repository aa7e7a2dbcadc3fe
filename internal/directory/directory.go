// Package directory holds the in-process registry of live queue consumers.
package directory

import (
	"sort"
	"sync"

	"github.com/notifyhub/delivery-dispatch/internal/backend"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// Entry records one consumed queue: which backend delivers it, who the
// recipient is, and the broker consumer handle. Entries are immutable for
// their lifetime; a binding change is modelled as delete + recreate.
type Entry struct {
	Queue    string
	Kind     domain.BackendKind
	Identity string
	Backend  backend.Backend
	Consumer string

	// Bindings is the compiled binding set attached to the queue, kept so
	// a refresh can unbind them before attaching the new set.
	Bindings []domain.Binding
}

// Directory maps queue identifiers to their entries. The dispatch service is
// the sole mutator; the mutex exists for the ops HTTP snapshot reader, not
// for concurrent writers.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Directory {
	return &Directory{entries: make(map[string]Entry)}
}

// Register adds the entry, replacing any prior entry for the same queue.
// Replacement rather than rejection keeps re-binds idempotent: control
// messages may arrive more than once or out of order.
func (d *Directory) Register(e Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[e.Queue] = e
}

// Unregister removes the queue's entry. Removing an absent queue is a
// no-op for the same reason Register replaces.
func (d *Directory) Unregister(queue string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, queue)
}

// Lookup returns the entry for a queue, if present.
func (d *Directory) Lookup(queue string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[queue]
	return e, ok
}

// Len reports the number of registered queues.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Snapshot returns all entries sorted by queue name. Used by the ops API
// and by shutdown to cancel every consumer.
func (d *Directory) Snapshot() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue < out[j].Queue })
	return out
}
