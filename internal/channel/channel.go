package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Environment variables read by the worker side.
const (
	EnvTransport = "RWORKER_CHANNEL"
	EnvNATSURL   = "RWORKER_NATS_URL"
)

var (
	// ErrClosed is returned for operations on a closed channel.
	ErrClosed = errors.New("channel closed")
	// ErrNotBound is returned when a parent-side channel is used before Bind.
	ErrNotBound = errors.New("channel not bound to a process")
	// ErrAlreadyBound is returned by a second Bind.
	ErrAlreadyBound = errors.New("channel already bound")
	// ErrProcessExited fails calls pending when the worker exits.
	ErrProcessExited = errors.New("worker process exited")
)

// Process is the live worker a channel binds to.
type Process interface {
	Pid() int
	OnExit(fn func(err error)) func()
}

// Attachment is what the worker must inherit for the channel to reach it.
type Attachment struct {
	Env        []string
	ExtraFiles []*os.File
}

// Handler serves one method. The result is marshalled into the response.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Channel is one end of a worker's message channel.
type Channel interface {
	ID() string
	Attachment() Attachment
	// Bind attaches the channel to the spawned process. The channel closes
	// itself when the process exits.
	Bind(p Process) error
	Bound() bool
	Call(ctx context.Context, method string, params, result any) error
	Notify(ctx context.Context, method string, params any) error
	Handle(method string, h Handler)
	Close() error
	Done() <-chan struct{}
}

// Transport creates parent-side channels.
type Transport interface {
	Name() string
	Create(id string) (Channel, error)
}

// RPCError is an error returned by the remote handler.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Methods every worker runtime serves or sends.
const (
	// MethodReady is notified by the worker once its handlers are installed.
	MethodReady = "ready"
	MethodPing  = "ping"
	MethodEnv   = "env"
)

// JSON-RPC error codes used on the wire.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)
