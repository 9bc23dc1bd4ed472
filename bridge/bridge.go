// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sarvex/yabridge/lib/clock"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/loader"
	"github.com/sarvex/yabridge/lib/vst3"
	"github.com/sarvex/yabridge/proxy"
	"github.com/sarvex/yabridge/lib/watchdog"
	"github.com/sarvex/yabridge/transport"
)

// InheritedFD is the descriptor number of the channel socket in a
// launched plugin host process.
const InheritedFD = 3

// Host serves bridge connections in the plugin host process.
type Host struct {
	// Loader and Plugin identify the plugin to serve. The plugin is
	// loaded once, on the first connection.
	Loader loader.Loader
	Plugin string

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-connection events are logged at Debug level; errors and
	// lifecycle events at Info/Error.
	Logger *slog.Logger

	// Sink receives call diagnostics. Each connection gets its own
	// threshold, chosen by the native side during the handshake.
	Sink diagnostics.Sink

	// MaxPayload bounds received frames. Zero means
	// transport.DefaultMaxPayload.
	MaxPayload uint64

	// IdleTimeout stops a listening host that has had no session for
	// this long. Zero keeps it running until Stop.
	IdleTimeout time.Duration

	// Clock drives the idle countdown. Nil means clock.Real().
	Clock clock.Clock

	loadOnce   sync.Once
	factory    vst3.PluginFactory
	loadErr    error
	listener   net.Listener
	cancel     context.CancelFunc
	done       chan struct{}
	sessions   sync.WaitGroup
	idle       *watchdog.Idle
	socketPath string
}

// logger returns the configured logger or the default.
func (h *Host) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Load loads the plugin if that has not happened yet and returns its
// factory.
func (h *Host) Load() (vst3.PluginFactory, error) {
	h.loadOnce.Do(func() {
		if h.Loader == nil {
			h.loadErr = errors.New("bridge: Loader is required")
			return
		}
		h.factory, h.loadErr = h.Loader.Load(h.Plugin)
		if h.loadErr != nil {
			h.loadErr = fmt.Errorf("bridge: loading %s: %w", h.Plugin, h.loadErr)
			return
		}
		h.logger().Info("plugin loaded", "plugin", h.Plugin)
	})
	return h.factory, h.loadErr
}

// Serve runs one bridge session over conn: it asks the native side for
// its configuration and then serves requests until the connection
// closes or ctx is cancelled. Objects the session created are released
// before Serve returns. A clean disconnect returns nil.
func (h *Host) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	factory, err := h.Load()
	if err != nil {
		conn.Close()
		return err
	}
	server, err := proxy.NewServer(conn, proxy.ServerConfig{
		Factory:     factory,
		Logger:      h.logger(),
		Diagnostics: diagnostics.NewLogger(h.Sink, diagnostics.Basic),
		MaxPayload:  h.MaxPayload,
	})
	if err != nil {
		conn.Close()
		return err
	}

	result := make(chan error, 1)
	go func() { result <- server.Run(ctx) }()

	configuration, err := server.Handshake()
	if err != nil {
		server.Close()
		<-result
		return fmt.Errorf("bridge: %w", err)
	}
	h.logger().Info("native side connected",
		"plugin", h.Plugin,
		"native_version", configuration.Version,
		"verbosity", configuration.Verbosity.String(),
	)
	return <-result
}

// ServeInherited serves the channel socket passed as descriptor fd by
// the launching native side.
func (h *Host) ServeInherited(ctx context.Context, fd uintptr) error {
	conn, err := transport.FileConn(fd)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return h.Serve(ctx, conn)
}

// Start begins listening on socketPath and serving every accepted
// connection as its own session. It returns once the listener is bound
// and the plugin is loaded. The host runs in the background until Stop
// is called or ctx is cancelled.
func (h *Host) Start(ctx context.Context, socketPath string) error {
	if socketPath == "" {
		return fmt.Errorf("bridge: socket path is required")
	}
	if _, err := h.Load(); err != nil {
		return err
	}
	listener, err := transport.Listen(socketPath)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	h.listener = listener
	h.socketPath = socketPath

	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	if h.IdleTimeout > 0 {
		h.idle = watchdog.NewIdle(h.Clock, h.IdleTimeout, func() {
			h.logger().Info("no sessions left, stopping", "idle_timeout", h.IdleTimeout)
			h.cancel()
		})
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	go func() {
		defer close(h.done)
		h.acceptLoop(ctx)
	}()

	h.logger().Info("plugin host listening",
		"socket_path", socketPath,
		"plugin", h.Plugin,
	)
	return nil
}

// Addr returns the listener's address, or nil before Start.
func (h *Host) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop closes the listener, ends every session and waits for them to
// release their objects.
func (h *Host) Stop() {
	if h.idle != nil {
		h.idle.Stop()
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.listener != nil {
		h.listener.Close()
	}
	h.Wait()
}

// Wait blocks until the host has stopped.
func (h *Host) Wait() {
	if h.done != nil {
		<-h.done
	}
}

// acceptLoop accepts connections and serves each one. It waits for
// every session to finish before returning, so that closing the done
// channel signals full quiescence.
func (h *Host) acceptLoop(ctx context.Context) {
	var sessionCount int64
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				h.sessions.Wait()
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				h.sessions.Wait()
				return
			}
			h.logger().Error("accept failed", "error", err)
			continue
		}

		sessionCount++
		sessionID := sessionCount
		h.sessions.Add(1)
		if h.idle != nil {
			h.idle.Acquire()
		}
		go func() {
			defer h.sessions.Done()
			if h.idle != nil {
				defer h.idle.Release()
			}
			h.handleSession(ctx, conn, sessionID)
		}()
	}
}

func (h *Host) handleSession(ctx context.Context, conn net.Conn, sessionID int64) {
	logger := h.logger().With("session_id", sessionID)
	logger.Debug("session accepted")
	if err := h.Serve(ctx, conn); err != nil {
		logger.Error("session ended", "error", err)
		return
	}
	logger.Debug("session closed")
}
