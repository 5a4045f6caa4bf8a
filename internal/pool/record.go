package pool

import (
	"sync"
	"time"

	"github.com/smazurov/rworker/internal/channel"
	"github.com/smazurov/rworker/internal/process"
)

// Record is the bookkeeping entry for one spawned worker and its channel.
type Record struct {
	ID        string
	Handle    *process.Handle
	Channel   channel.Channel
	Strategy  process.Strategy
	CreatedAt time.Time

	mu        sync.RWMutex
	prepared  bool
	dedicated bool
	owners    []*Client
}

// Prepared reports whether the record is idle in the prepared pool.
func (r *Record) Prepared() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prepared
}

// Dedicated reports whether the record belongs to a single client.
func (r *Record) Dedicated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dedicated
}

// Owner returns the first client assigned to the record, or nil.
func (r *Record) Owner() *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.owners) == 0 {
		return nil
	}
	return r.owners[0]
}

// Owners returns every client assigned to the record.
func (r *Record) Owners() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Client(nil), r.owners...)
}

// Exited reports whether the worker process has terminated.
func (r *Record) Exited() bool {
	return r.Handle.Exited()
}

func (r *Record) setPrepared(v bool) {
	r.mu.Lock()
	r.prepared = v
	r.mu.Unlock()
}

// assign makes c an owner. The first owner decides dedication.
func (r *Record) assign(c *Client, dedicated bool) {
	r.mu.Lock()
	if len(r.owners) == 0 {
		r.dedicated = dedicated
	}
	r.prepared = false
	r.owners = append(r.owners, c)
	r.mu.Unlock()
}

func (r *Record) release() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := r.owners
	r.owners = nil
	return owners
}

// Info returns a snapshot of the record.
func (r *Record) Info() RecordInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]ClientID, len(r.owners))
	for i, c := range r.owners {
		clients[i] = c.ID
	}
	return RecordInfo{
		ID:        r.ID,
		Strategy:  r.Strategy,
		Prepared:  r.prepared,
		Dedicated: r.dedicated,
		Clients:   clients,
		CreatedAt: r.CreatedAt,
		Process:   r.Handle.Info(),
	}
}

// RecordInfo is a point-in-time view of a Record.
type RecordInfo struct {
	ID        string
	Strategy  process.Strategy
	Prepared  bool
	Dedicated bool
	Clients   []ClientID
	CreatedAt time.Time
	Process   process.Info
}
