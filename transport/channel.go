// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/netutil"
	"github.com/sarvex/yabridge/lib/protocol"
)

// Handler serves requests initiated by the other end. Handle runs on
// its own goroutine and may itself call back across the channel.
//
// The response must be of request.Kind().ResponseKind(). Returning an
// error is a protocol violation: the channel is closed and the error
// reported by Run. Plugin-level failures are result codes inside the
// response, not errors.
type Handler interface {
	Handle(request protocol.Request) (protocol.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(request protocol.Request) (protocol.Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(request protocol.Request) (protocol.Response, error) {
	return f(request)
}

// Options configures a Channel.
type Options struct {
	// Direction is the direction of requests this end sends. It labels
	// diagnostic events; requests are logged only by their sender.
	Direction diagnostics.Direction

	// Logger receives channel lifecycle messages. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Diagnostics records every call this end sends. Nil disables
	// call logging.
	Diagnostics *diagnostics.Logger

	// MaxPayload bounds the payload of a received frame. Zero means
	// DefaultMaxPayload.
	MaxPayload uint64
}

// Channel is one end of a bidirectional request/response connection.
// Call is safe for concurrent use.
type Channel struct {
	conn        io.ReadWriteCloser
	handler     Handler
	direction   diagnostics.Direction
	logger      *slog.Logger
	diagnostics *diagnostics.Logger
	maxPayload  uint64

	nextCallID atomic.Uint64
	writeMu    sync.Mutex

	mu      sync.Mutex
	pending map[uint64]*pendingCall
	cause   error

	closeOnce sync.Once
	done      chan struct{}
	handlers  sync.WaitGroup
}

type pendingCall struct {
	responseKind protocol.Kind
	response     protocol.Response
	done         chan error
}

// pendingCalls recycles call records together with their completion
// channels. A record goes back only after its one completion has been
// received.
var pendingCalls = sync.Pool{
	New: func() any { return &pendingCall{done: make(chan error, 1)} },
}

// New returns a channel over conn. Inbound requests go to handler,
// which may be nil for an end that never serves requests. Call Run to
// start reading.
func New(conn io.ReadWriteCloser, handler Handler, options Options) *Channel {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPayload := options.MaxPayload
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Channel{
		conn:        conn,
		handler:     handler,
		direction:   options.Direction,
		logger:      logger,
		diagnostics: options.Diagnostics,
		maxPayload:  maxPayload,
		pending:     make(map[uint64]*pendingCall),
		done:        make(chan struct{}),
	}
}

// Run reads frames until the connection ends, ctx is cancelled, Close
// is called, or a protocol violation occurs. It waits for in-flight
// handlers before returning. The result is nil after an orderly
// shutdown, a *ProtocolError after a violation, and the I/O error
// otherwise.
func (c *Channel) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.shutdown(ErrClosed)
		case <-c.done:
		}
	}()

	reader := newFrameReader(c.conn, c.maxPayload)
	for {
		f, err := reader.read()
		if err != nil {
			c.shutdown(err)
			break
		}
		switch f.typ {
		case frameResponse:
			err = c.deliver(f)
		case frameRequest:
			err = c.dispatch(f)
		}
		if err != nil {
			c.shutdown(err)
			break
		}
	}

	c.handlers.Wait()
	return c.runResult()
}

// Call sends request and blocks until the matching response has been
// decoded into response. response must be a pointer of the kind
// request.Kind().ResponseKind().
//
// Inbound requests that arrive while Call blocks are served
// concurrently, so a handler invoked by the other end during this call
// may itself use Call.
func (c *Channel) Call(request protocol.Request, response protocol.Response) error {
	kind := request.Kind()
	if want := kind.ResponseKind(); response.Kind() != want {
		return fmt.Errorf("calling %s: response must be %s, got %s", kind, want, response.Kind())
	}

	callID := c.nextCallID.Add(1)
	buffer := getFrameBuffer()
	if err := encodeFrame(buffer, frame{typ: frameRequest, kind: kind, callID: callID}, request); err != nil {
		putFrameBuffer(buffer)
		return fmt.Errorf("encoding %s: %w", kind, err)
	}

	call := pendingCalls.Get().(*pendingCall)
	call.responseKind = response.Kind()
	call.response = response

	c.mu.Lock()
	if c.cause != nil {
		cause := c.cause
		c.mu.Unlock()
		putFrameBuffer(buffer)
		releaseCall(call)
		return closedError(cause)
	}
	c.pending[callID] = call
	c.mu.Unlock()

	logged := false
	if c.diagnostics.Enabled(kind.Verbosity()) {
		logged = c.diagnostics.LogRequest(c.direction, callID, protocol.Describe(request))
	}

	c.writeMu.Lock()
	_, err := c.conn.Write(buffer.Bytes())
	c.writeMu.Unlock()
	putFrameBuffer(buffer)
	if err != nil {
		// shutdown fails the pending call, including this one.
		c.shutdown(fmt.Errorf("write frame: %w", err))
	}

	err = <-call.done
	releaseCall(call)
	if err != nil {
		return fmt.Errorf("calling %s: %w", kind, err)
	}
	if logged {
		c.diagnostics.LogResponse(c.direction, callID, protocol.Describe(request), response)
	}
	return nil
}

func releaseCall(call *pendingCall) {
	call.response = nil
	pendingCalls.Put(call)
}

// Close shuts the channel down. Pending and future calls fail with
// ErrClosed.
func (c *Channel) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

// Done is closed once the channel has shut down.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Err returns the reason the channel shut down, or nil while it is
// open.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// deliver hands a response frame to its waiting caller.
func (c *Channel) deliver(f frame) error {
	c.mu.Lock()
	call, ok := c.pending[f.callID]
	if ok {
		delete(c.pending, f.callID)
	}
	c.mu.Unlock()

	if !ok {
		return &ProtocolError{Reason: "response for unknown call id", Kind: f.kind, CallID: f.callID}
	}
	if f.kind != call.responseKind {
		violation := &ProtocolError{
			Reason: fmt.Sprintf("expected %s response", call.responseKind),
			Kind:   f.kind,
			CallID: f.callID,
		}
		call.done <- violation
		return violation
	}
	if err := codec.Unmarshal(f.payload, call.response); err != nil {
		violation := &ProtocolError{Reason: "malformed payload", Kind: f.kind, CallID: f.callID, Err: err}
		call.done <- violation
		return violation
	}
	call.done <- nil
	return nil
}

// dispatch decodes a request frame and serves it on a new goroutine.
func (c *Channel) dispatch(f frame) error {
	if c.handler == nil {
		return &ProtocolError{Reason: "no handler for inbound requests", Kind: f.kind, CallID: f.callID}
	}
	request, err := protocol.AcquireRequest(f.kind)
	if err != nil {
		return &ProtocolError{Reason: "unknown request kind", Kind: f.kind, CallID: f.callID, Err: err}
	}
	if err := codec.Unmarshal(f.payload, request); err != nil {
		protocol.ReleaseRequest(request)
		return &ProtocolError{Reason: "malformed payload", Kind: f.kind, CallID: f.callID, Err: err}
	}

	c.handlers.Add(1)
	go c.handle(f.callID, request)
	return nil
}

func (c *Channel) handle(callID uint64, request protocol.Request) {
	defer c.handlers.Done()
	err := c.serve(callID, request)
	protocol.ReleaseRequest(request)
	if err != nil {
		c.shutdown(err)
	}
}

func (c *Channel) serve(callID uint64, request protocol.Request) error {
	kind := request.Kind()
	response, err := c.handler.Handle(request)
	if err != nil {
		return &ProtocolError{Reason: "handler failed", Kind: kind, CallID: callID, Err: err}
	}
	if response == nil || response.Kind() != kind.ResponseKind() {
		return &ProtocolError{Reason: fmt.Sprintf("handler returned the wrong response for %s", kind), Kind: kind, CallID: callID}
	}

	buffer := getFrameBuffer()
	defer putFrameBuffer(buffer)
	if err := encodeFrame(buffer, frame{typ: frameResponse, kind: response.Kind(), callID: callID}, response); err != nil {
		return &ProtocolError{Reason: "encoding response", Kind: response.Kind(), CallID: callID, Err: err}
	}

	c.writeMu.Lock()
	_, err = c.conn.Write(buffer.Bytes())
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// shutdown records cause, closes the connection and fails every
// pending call. Only the first cause is kept.
func (c *Channel) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.cause = cause
		pending := c.pending
		c.pending = make(map[uint64]*pendingCall)
		c.mu.Unlock()

		c.conn.Close()
		close(c.done)

		for _, call := range pending {
			call.done <- closedError(cause)
		}

		switch {
		case IsProtocolError(cause):
			c.logger.Error("bridge channel closed after protocol error", "error", cause)
		case isOrderly(cause):
			c.logger.Debug("bridge channel closed")
		default:
			c.logger.Warn("bridge channel failed", "error", cause)
		}
	})
}

func (c *Channel) runResult() error {
	cause := c.Err()
	if isOrderly(cause) {
		return nil
	}
	return cause
}

func isOrderly(err error) bool {
	return errors.Is(err, ErrClosed) || netutil.IsExpectedCloseError(err)
}

func closedError(cause error) error {
	if errors.Is(cause, ErrClosed) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrClosed, cause)
}
