package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/smazurov/rworker/internal/logging"
)

// Worker-side descriptors of a pipe channel.
const (
	pipeReadFD  = 3
	pipeWriteFD = 4
)

// PipeTransport creates channels over inherited OS pipes.
type PipeTransport struct {
	logger logging.Logger
}

// NewPipeTransport creates a pipe transport.
func NewPipeTransport(logger logging.Logger) *PipeTransport {
	return &PipeTransport{logger: logger}
}

// Name implements Transport.
func (t *PipeTransport) Name() string { return "pipe" }

// Create implements Transport. It opens both pipes; the worker ends travel
// in the Attachment.
func (t *PipeTransport) Create(id string) (Channel, error) {
	toWorkerR, toWorkerW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}
	fromWorkerR, fromWorkerW, err := os.Pipe()
	if err != nil {
		toWorkerR.Close()
		toWorkerW.Close()
		return nil, fmt.Errorf("create pipe: %w", err)
	}

	c := &pipeChannel{
		reader:    fromWorkerR,
		writer:    toWorkerW,
		workerIn:  toWorkerR,
		workerOut: fromWorkerW,
		logger:    t.logger,
	}
	c.endpoint = newEndpoint(id, c.write, t.logger)
	return c, nil
}

type pipeChannel struct {
	*endpoint
	logger logging.Logger

	reader    *os.File
	writer    *os.File
	workerIn  *os.File
	workerOut *os.File

	writeMu sync.Mutex
	bound   atomic.Bool
	bindMu  sync.Mutex
}

func (c *pipeChannel) Attachment() Attachment {
	return Attachment{
		Env:        []string{EnvTransport + "=pipe"},
		ExtraFiles: []*os.File{c.workerIn, c.workerOut},
	}
}

func (c *pipeChannel) Bind(p Process) error {
	c.bindMu.Lock()
	if c.closed.Load() {
		c.bindMu.Unlock()
		return ErrClosed
	}
	if c.bound.Load() {
		c.bindMu.Unlock()
		return ErrAlreadyBound
	}

	// The worker holds its own copies now.
	c.closeWorkerEnds()

	c.mu.Lock()
	c.exitWatch = func(fail func()) func() {
		return p.OnExit(func(error) { fail() })
	}
	c.mu.Unlock()
	c.bound.Store(true)
	c.bindMu.Unlock()

	go c.readLoop()
	p.OnExit(func(err error) {
		c.logger.Debug("Worker exited, closing channel", "channel", c.id, "pid", p.Pid(), "error", err)
		c.closeWith(ErrProcessExited)
	})
	return nil
}

func (c *pipeChannel) Bound() bool { return c.bound.Load() }

func (c *pipeChannel) Call(ctx context.Context, method string, params, result any) error {
	if !c.bound.Load() {
		return ErrNotBound
	}
	return c.call(ctx, method, params, result)
}

func (c *pipeChannel) Notify(_ context.Context, method string, params any) error {
	if !c.bound.Load() {
		return ErrNotBound
	}
	return c.notify(method, params)
}

func (c *pipeChannel) Close() error {
	return c.closeWith(ErrClosed)
}

func (c *pipeChannel) closeWith(reason error) error {
	if !c.shutdown(reason) {
		return nil
	}
	c.bindMu.Lock()
	c.closeWorkerEnds()
	c.bindMu.Unlock()
	return errors.Join(c.writer.Close(), c.reader.Close())
}

// closeWorkerEnds must be called with bindMu held.
func (c *pipeChannel) closeWorkerEnds() {
	if c.workerIn != nil {
		c.workerIn.Close()
		c.workerIn = nil
	}
	if c.workerOut != nil {
		c.workerOut.Close()
		c.workerOut = nil
	}
}

func (c *pipeChannel) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.writer, data)
}

func (c *pipeChannel) readLoop() {
	readFrames(c.endpoint, bufio.NewReaderSize(c.reader, 64*1024))
	c.Close()
}

// readFrames feeds frames to the endpoint until the stream ends.
func readFrames(e *endpoint, r *bufio.Reader) {
	for {
		data, err := readFrame(r)
		if err != nil {
			if e.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
				return
			}
			e.logger.Warn("Channel read failed", "channel", e.id, "error", err)
			return
		}
		e.dispatch(data)
	}
}

// streamChannel is the worker side of a pipe channel.
type streamChannel struct {
	*endpoint
	reader  io.ReadCloser
	writer  io.WriteCloser
	writeMu sync.Mutex
}

// OpenPipe opens the worker side over r and w and starts reading.
func OpenPipe(id string, r io.ReadCloser, w io.WriteCloser, logger logging.Logger) Channel {
	c := &streamChannel{reader: r, writer: w}
	c.endpoint = newEndpoint(id, c.write, logger)
	go func() {
		readFrames(c.endpoint, bufio.NewReaderSize(r, 64*1024))
		c.Close()
	}()
	return c
}

func (c *streamChannel) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.writer, data)
}

func (c *streamChannel) Attachment() Attachment { return Attachment{} }

func (c *streamChannel) Bind(Process) error { return ErrAlreadyBound }

func (c *streamChannel) Bound() bool { return true }

func (c *streamChannel) Call(ctx context.Context, method string, params, result any) error {
	return c.call(ctx, method, params, result)
}

func (c *streamChannel) Notify(_ context.Context, method string, params any) error {
	return c.notify(method, params)
}

func (c *streamChannel) Close() error {
	if !c.shutdown(ErrClosed) {
		return nil
	}
	return errors.Join(c.writer.Close(), c.reader.Close())
}
