package pool

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/smazurov/rworker/internal/process"
)

// ClientID identifies a client.
type ClientID string

// ClientOptions configures the process a client is assigned.
type ClientOptions struct {
	// OwnProcess demands a dedicated process that is never shared.
	OwnProcess bool
	// ShareProcess names an existing assignment to join.
	ShareProcess *ShareTarget
	// ForkOptions is used when a new process has to be spawned.
	ForkOptions process.ForkOptions
}

// Client is a logical consumer of a worker process. Proxy is the public
// handle other clients may pass as a share target.
type Client struct {
	ID      ClientID
	Proxy   string
	Options ClientOptions

	mu        sync.RWMutex
	child     *process.Handle
	processID string
}

// NewClient creates a client with fresh identifiers.
func NewClient(opts ClientOptions) *Client {
	return &Client{
		ID:      ClientID(uuid.NewString()),
		Proxy:   uuid.NewString(),
		Options: opts,
	}
}

// Child returns the process handle of the client's assignment, or nil.
func (c *Client) Child() *process.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.child
}

// ProcessID returns the id of the assigned process, or "".
func (c *Client) ProcessID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.processID
}

func (c *Client) attach(rec *Record) {
	c.mu.Lock()
	c.child = rec.Handle
	c.processID = rec.ID
	c.mu.Unlock()
}

func (c *Client) detach() {
	c.mu.Lock()
	c.child = nil
	c.processID = ""
	c.mu.Unlock()
}

// ShareKind tells how a ShareTarget identifies an assignment.
type ShareKind int

// Share target kinds.
const (
	ShareClient ShareKind = iota + 1
	ShareClientProxy
	ShareProcess
)

func (k ShareKind) String() string {
	switch k {
	case ShareClient:
		return "client"
	case ShareClientProxy:
		return "proxy"
	case ShareProcess:
		return "process"
	default:
		return fmt.Sprintf("ShareKind(%d)", int(k))
	}
}

// ParseShareKind parses the String form of a ShareKind.
func ParseShareKind(s string) (ShareKind, error) {
	switch s {
	case "client":
		return ShareClient, nil
	case "proxy":
		return ShareClientProxy, nil
	case "process":
		return ShareProcess, nil
	}
	return 0, fmt.Errorf("unknown share kind %q", s)
}

// ShareTarget references an existing assignment by client, client proxy or
// process id.
type ShareTarget struct {
	Kind ShareKind
	ID   string
}

// ShareWithClient targets the assignment of c.
func ShareWithClient(c *Client) *ShareTarget {
	return &ShareTarget{Kind: ShareClient, ID: string(c.ID)}
}

// ShareWithProxy targets the assignment of the client whose proxy is proxy.
func ShareWithProxy(proxy string) *ShareTarget {
	return &ShareTarget{Kind: ShareClientProxy, ID: proxy}
}

// ShareWithProcess targets a process directly.
func ShareWithProcess(processID string) *ShareTarget {
	return &ShareTarget{Kind: ShareProcess, ID: processID}
}
