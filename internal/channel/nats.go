package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/rworker/internal/logging"
)

// Subject prefix of every worker channel.
const subjectPrefix = "rworker.process."

// InboxSubject is the subject a worker receives on.
func InboxSubject(id string) string { return subjectPrefix + id + ".in" }

// OutboxSubject is the subject a worker publishes on.
func OutboxSubject(id string) string { return subjectPrefix + id + ".out" }

// NATSTransport creates channels over a shared NATS connection.
type NATSTransport struct {
	conn   *nats.Conn
	url    string
	owned  bool
	logger logging.Logger
}

// NewNATSTransport connects to url. Workers are told to connect to the same url.
func NewNATSTransport(url string, logger logging.Logger) (*NATSTransport, error) {
	conn, err := nats.Connect(url, nats.Name("rworker"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	t := NewNATSTransportWithConn(conn, url, logger)
	t.owned = true
	return t, nil
}

// NewNATSTransportWithConn uses an existing connection. Close leaves it open.
func NewNATSTransportWithConn(conn *nats.Conn, url string, logger logging.Logger) *NATSTransport {
	return &NATSTransport{conn: conn, url: url, logger: logger}
}

// Name implements Transport.
func (t *NATSTransport) Name() string { return "nats" }

// URL returns the server url handed to workers.
func (t *NATSTransport) URL() string { return t.url }

// Create implements Transport. The outbox subscription is set up immediately
// so nothing the worker sends right after start is lost.
func (t *NATSTransport) Create(id string) (Channel, error) {
	c := &natsChannel{
		conn:    t.conn,
		url:     t.url,
		inbox:   InboxSubject(id),
		outbox:  OutboxSubject(id),
		logger:  t.logger,
		publish: true,
	}
	c.endpoint = newEndpoint(id, c.write, t.logger)

	sub, err := t.conn.Subscribe(c.outbox, func(msg *nats.Msg) {
		c.endpoint.dispatch(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", c.outbox, err)
	}
	c.sub = sub
	return c, nil
}

// Close drains the connection when the transport opened it.
func (t *NATSTransport) Close() error {
	if t.owned {
		return t.conn.Drain()
	}
	return nil
}

type natsChannel struct {
	*endpoint
	conn   *nats.Conn
	url    string
	inbox  string
	outbox string
	sub    *nats.Subscription
	logger logging.Logger

	// publish is true on the parent side, which sends to the inbox.
	publish bool
	// ownsConn is true on the worker side, which dialed its own connection.
	ownsConn bool

	bound  atomic.Bool
	bindMu sync.Mutex
}

func (c *natsChannel) Attachment() Attachment {
	return Attachment{Env: []string{EnvTransport + "=nats", EnvNATSURL + "=" + c.url}}
}

func (c *natsChannel) Bind(p Process) error {
	c.bindMu.Lock()
	if c.closed.Load() {
		c.bindMu.Unlock()
		return ErrClosed
	}
	if c.bound.Load() {
		c.bindMu.Unlock()
		return ErrAlreadyBound
	}
	c.mu.Lock()
	c.exitWatch = func(fail func()) func() {
		return p.OnExit(func(error) { fail() })
	}
	c.mu.Unlock()
	c.bound.Store(true)
	c.bindMu.Unlock()

	p.OnExit(func(err error) {
		c.logger.Debug("Worker exited, closing channel", "channel", c.id, "pid", p.Pid(), "error", err)
		c.closeWith(ErrProcessExited)
	})
	return nil
}

func (c *natsChannel) Bound() bool { return c.bound.Load() }

func (c *natsChannel) Call(ctx context.Context, method string, params, result any) error {
	if !c.bound.Load() {
		return ErrNotBound
	}
	return c.call(ctx, method, params, result)
}

func (c *natsChannel) Notify(_ context.Context, method string, params any) error {
	if !c.bound.Load() {
		return ErrNotBound
	}
	return c.notify(method, params)
}

func (c *natsChannel) write(data []byte) error {
	subject := c.outbox
	if c.publish {
		subject = c.inbox
	}
	return c.conn.Publish(subject, data)
}

func (c *natsChannel) Close() error {
	return c.closeWith(ErrClosed)
}

func (c *natsChannel) closeWith(reason error) error {
	if !c.shutdown(reason) {
		return nil
	}
	var errs []error
	if c.sub != nil {
		errs = append(errs, c.sub.Unsubscribe())
	}
	if c.ownsConn {
		c.conn.Close()
	}
	err := errors.Join(errs...)
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}
	return err
}

// OpenNATS opens the worker side of channel id on the server at url.
func OpenNATS(id, url string, logger logging.Logger) (Channel, error) {
	conn, err := nats.Connect(url, nats.Name("rworker-worker-"+id))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	c := &natsChannel{
		conn:     conn,
		url:      url,
		inbox:    InboxSubject(id),
		outbox:   OutboxSubject(id),
		logger:   logger,
		ownsConn: true,
	}
	c.endpoint = newEndpoint(id, c.write, logger)
	c.bound.Store(true)

	sub, err := conn.Subscribe(c.inbox, func(msg *nats.Msg) {
		c.endpoint.dispatch(msg.Data)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.inbox, err)
	}
	c.sub = sub

	// Make sure the subscription reached the server before the parent talks.
	if err := conn.Flush(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("flush: %w", err)
	}
	return c, nil
}
