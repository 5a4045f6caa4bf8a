package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smazurov/rworker/internal/logging"
)

// message is a request, response or notification.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// endpoint holds the request/response bookkeeping shared by all transports.
// Transports supply send and feed incoming frames to dispatch.
type endpoint struct {
	id     string
	send   func(data []byte) error
	logger logging.Logger

	mu       sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan *message
	handlers map[string]Handler

	// exitWatch returns an unsubscribe for a listener that fails one pending
	// call when the worker exits. Nil until bound, and always nil on the
	// worker side.
	exitWatch func(fail func()) func()

	closed    atomic.Bool
	closeErr  error
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

func newEndpoint(id string, send func([]byte) error, logger logging.Logger) *endpoint {
	ctx, cancel := context.WithCancel(context.Background())
	return &endpoint{
		id:       id,
		send:     send,
		logger:   logger,
		pending:  make(map[int64]chan *message),
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (e *endpoint) ID() string { return e.id }

func (e *endpoint) Done() <-chan struct{} { return e.done }

// Handle registers h for method. "*" matches any method without its own handler.
func (e *endpoint) Handle(method string, h Handler) {
	e.mu.Lock()
	e.handlers[method] = h
	e.mu.Unlock()
}

// shutdown marks the endpoint closed and releases waiting callers, which
// then fail with reason. It reports whether this call did the closing.
func (e *endpoint) shutdown(reason error) bool {
	first := false
	e.closeOnce.Do(func() {
		first = true
		e.closeErr = reason
		e.closed.Store(true)
		e.cancel()
		close(e.done)
		// Pending channels are not closed; waiters select on done.
		e.mu.Lock()
		e.pending = make(map[int64]chan *message)
		e.mu.Unlock()
	})
	return first
}

// closeReason is only valid once done is closed.
func (e *endpoint) closeReason() error {
	<-e.done
	return e.closeErr
}

func (e *endpoint) call(ctx context.Context, method string, params, result any) error {
	if e.closed.Load() {
		return e.closeReason()
	}

	raw, err := marshalParams(params)
	if err != nil {
		return err
	}

	id := e.nextID.Add(1)
	ch := make(chan *message, 1)

	e.mu.Lock()
	e.pending[id] = ch
	watch := e.exitWatch
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
	}()

	exited := make(chan struct{})
	if watch != nil {
		var once sync.Once
		unsubscribe := watch(func() { once.Do(func() { close(exited) }) })
		defer unsubscribe()
	}

	data, err := json.Marshal(&message{JSONRPC: "2.0", ID: &id, Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := e.send(data); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-exited:
		return ErrProcessExited
	case <-e.done:
		return e.closeReason()
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}
}

func (e *endpoint) notify(method string, params any) error {
	if e.closed.Load() {
		return e.closeReason()
	}
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(&message{JSONRPC: "2.0", Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return e.send(data)
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return raw, nil
}

// dispatch routes one incoming frame.
func (e *endpoint) dispatch(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		e.logger.Warn("Dropping malformed frame", "channel", e.id, "error", err)
		return
	}

	switch {
	case msg.Method == "" && msg.ID != nil:
		e.handleResponse(&msg)
	case msg.Method != "":
		go e.handleRequest(&msg)
	}
}

func (e *endpoint) handleResponse(msg *message) {
	if e.closed.Load() {
		return
	}

	e.mu.Lock()
	ch, ok := e.pending[*msg.ID]
	if ok {
		delete(e.pending, *msg.ID)
	}
	e.mu.Unlock()

	if ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (e *endpoint) handleRequest(msg *message) {
	e.mu.Lock()
	handler, ok := e.handlers[msg.Method]
	if !ok {
		handler, ok = e.handlers["*"]
	}
	e.mu.Unlock()

	if msg.ID == nil {
		if ok {
			if _, err := handler(e.ctx, msg.Params); err != nil {
				e.logger.Debug("Notification handler failed", "channel", e.id, "method", msg.Method, "error", err)
			}
		}
		return
	}

	resp := &message{JSONRPC: "2.0", ID: msg.ID}
	if !ok {
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method}
	} else if result, err := handler(e.ctx, msg.Params); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			resp.Error = rpcErr
		} else {
			resp.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
		}
	} else if resp.Result, err = json.Marshal(result); err != nil {
		resp.Result = nil
		resp.Error = &RPCError{Code: CodeInternalError, Message: "marshal result: " + err.Error()}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		e.logger.Warn("Failed to marshal response", "channel", e.id, "error", err)
		return
	}
	if err := e.send(data); err != nil && !e.closed.Load() {
		e.logger.Warn("Failed to send response", "channel", e.id, "method", msg.Method, "error", err)
	}
}
