package pool

import "slices"

// Registry maps process ids and client ids to records. Every record has
// exactly one process key; non-dedicated records may have any number of
// client keys, dedicated ones at most one.
//
// Registry is not safe for concurrent use; Manager serializes access.
type Registry struct {
	byProcess map[string]*Record
	byClient  map[ClientID]*Record
	clients   map[ClientID]*Client
	byProxy   map[string]ClientID
	// order holds process ids by first registration.
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byProcess: make(map[string]*Record),
		byClient:  make(map[ClientID]*Record),
		clients:   make(map[ClientID]*Client),
		byProxy:   make(map[string]ClientID),
	}
}

// Len returns the number of registered records.
func (r *Registry) Len() int { return len(r.order) }

// ClientCount returns the number of registered clients.
func (r *Registry) ClientCount() int { return len(r.byClient) }

// Register keys rec by its process id (once) and by c.
func (r *Registry) Register(rec *Record, c *Client) {
	if _, ok := r.byProcess[rec.ID]; !ok {
		r.byProcess[rec.ID] = rec
		r.order = append(r.order, rec.ID)
	}
	r.byClient[c.ID] = rec
	r.clients[c.ID] = c
	if c.Proxy != "" {
		r.byProxy[c.Proxy] = c.ID
	}
}

// Get returns the record for a process id.
func (r *Registry) Get(processID string) (*Record, bool) {
	rec, ok := r.byProcess[processID]
	return rec, ok
}

// Lookup returns a client and its record.
func (r *Registry) Lookup(id ClientID) (*Client, *Record, bool) {
	rec, ok := r.byClient[id]
	if !ok {
		return nil, nil, false
	}
	return r.clients[id], rec, true
}

// Find resolves a share target. Dedicated records never match.
func (r *Registry) Find(target ShareTarget) (*Record, bool) {
	var rec *Record
	switch target.Kind {
	case ShareClient:
		rec = r.byClient[ClientID(target.ID)]
	case ShareClientProxy:
		if id, ok := r.byProxy[target.ID]; ok {
			rec = r.byClient[id]
		}
	case ShareProcess:
		rec = r.byProcess[target.ID]
	}
	if rec == nil || rec.Dedicated() {
		return nil, false
	}
	return rec, true
}

// FirstShared returns the earliest registered non-dedicated record.
func (r *Registry) FirstShared() (*Record, bool) {
	for _, id := range r.order {
		if rec := r.byProcess[id]; !rec.Dedicated() {
			return rec, true
		}
	}
	return nil, false
}

// Remove drops a record with its process key and every client key that
// references it, returning the detached clients.
func (r *Registry) Remove(processID string) (*Record, []*Client, bool) {
	rec, ok := r.byProcess[processID]
	if !ok {
		return nil, nil, false
	}
	delete(r.byProcess, processID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == processID })

	var removed []*Client
	for id, bound := range r.byClient {
		if bound != rec {
			continue
		}
		c := r.clients[id]
		delete(r.byClient, id)
		delete(r.clients, id)
		if c != nil {
			delete(r.byProxy, c.Proxy)
			removed = append(removed, c)
		}
	}
	return rec, removed, true
}

// Records returns all records in registration order.
func (r *Registry) Records() []*Record {
	out := make([]*Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byProcess[id])
	}
	return out
}
