package pool

import "slices"

// PreparedPool holds spawned records that no client owns yet, in insertion
// order. It is not safe for concurrent use; Manager serializes access.
type PreparedPool struct {
	records []*Record
}

// Add parks rec in the pool and marks it prepared.
func (p *PreparedPool) Add(rec *Record) {
	rec.setPrepared(true)
	p.records = append(p.records, rec)
}

// Size returns the number of prepared records.
func (p *PreparedPool) Size() int { return len(p.records) }

// Take removes and returns the oldest prepared record.
func (p *PreparedPool) Take() (*Record, bool) {
	for i, rec := range p.records {
		if !rec.Prepared() {
			continue
		}
		p.records = slices.Delete(p.records, i, i+1)
		return rec, true
	}
	return nil, false
}

// Remove drops the record with the given process id.
func (p *PreparedPool) Remove(processID string) (*Record, bool) {
	i := slices.IndexFunc(p.records, func(r *Record) bool { return r.ID == processID })
	if i < 0 {
		return nil, false
	}
	rec := p.records[i]
	p.records = slices.Delete(p.records, i, i+1)
	return rec, true
}

// Drain empties the pool and returns what it held.
func (p *PreparedPool) Drain() []*Record {
	out := p.records
	p.records = nil
	return out
}

// Records returns the pooled records in insertion order.
func (p *PreparedPool) Records() []*Record {
	return slices.Clone(p.records)
}
