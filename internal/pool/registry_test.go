package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/rworker/internal/process"
)

func newTestRecord(id string) *Record {
	return &Record{
		ID:     id,
		Handle: process.NewHandle(id, 1, &fakeSignaler{}, testLogger()),
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	rec := newTestRecord("p1")
	a := NewClient(ClientOptions{})
	b := NewClient(ClientOptions{})

	rec.assign(a, false)
	reg.Register(rec, a)
	rec.assign(b, false)
	reg.Register(rec, b)

	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 2, reg.ClientCount())

	got, ok := reg.Get("p1")
	require.True(t, ok)
	assert.Same(t, rec, got)

	c, gotRec, ok := reg.Lookup(b.ID)
	require.True(t, ok)
	assert.Same(t, b, c)
	assert.Same(t, rec, gotRec)
}

func TestRegistryFind(t *testing.T) {
	reg := NewRegistry()
	rec := newTestRecord("p1")
	a := NewClient(ClientOptions{})
	rec.assign(a, false)
	reg.Register(rec, a)

	tests := []struct {
		name   string
		target ShareTarget
		found  bool
	}{
		{"client", *ShareWithClient(a), true},
		{"proxy", *ShareWithProxy(a.Proxy), true},
		{"process", *ShareWithProcess("p1"), true},
		{"unknown client", ShareTarget{Kind: ShareClient, ID: "nope"}, false},
		{"proxy is not a client id", ShareTarget{Kind: ShareClient, ID: a.Proxy}, false},
		{"client id is not a process id", ShareTarget{Kind: ShareProcess, ID: string(a.ID)}, false},
		{"unknown kind", ShareTarget{Kind: ShareKind(99), ID: "p1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.Find(tt.target)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Same(t, rec, got)
			}
		})
	}
}

func TestRegistryFindSkipsDedicated(t *testing.T) {
	reg := NewRegistry()
	rec := newTestRecord("p1")
	a := NewClient(ClientOptions{OwnProcess: true})
	rec.assign(a, true)
	reg.Register(rec, a)

	_, ok := reg.Find(*ShareWithClient(a))
	assert.False(t, ok)
	_, ok = reg.Find(*ShareWithProcess("p1"))
	assert.False(t, ok)
}

func TestRegistryFirstSharedOrder(t *testing.T) {
	reg := NewRegistry()

	dedicated := newTestRecord("p1")
	owner := NewClient(ClientOptions{OwnProcess: true})
	dedicated.assign(owner, true)
	reg.Register(dedicated, owner)

	_, ok := reg.FirstShared()
	assert.False(t, ok)

	first := newTestRecord("p2")
	second := newTestRecord("p3")
	for _, rec := range []*Record{first, second} {
		c := NewClient(ClientOptions{})
		rec.assign(c, false)
		reg.Register(rec, c)
	}

	got, ok := reg.FirstShared()
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	rec := newTestRecord("p1")
	other := newTestRecord("p2")
	a := NewClient(ClientOptions{})
	b := NewClient(ClientOptions{})
	c := NewClient(ClientOptions{})
	reg.Register(rec, a)
	reg.Register(rec, b)
	reg.Register(other, c)

	removed, clients, ok := reg.Remove("p1")
	require.True(t, ok)
	assert.Same(t, rec, removed)
	assert.ElementsMatch(t, []*Client{a, b}, clients)

	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, reg.ClientCount())
	_, _, ok = reg.Lookup(a.ID)
	assert.False(t, ok)
	_, ok = reg.Find(*ShareWithProxy(b.Proxy))
	assert.False(t, ok)
	assert.Equal(t, []*Record{other}, reg.Records())

	_, _, ok = reg.Remove("p1")
	assert.False(t, ok)
}
