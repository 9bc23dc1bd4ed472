// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/proxy"
	"github.com/sarvex/yabridge/transport"
)

// PluginConfig configures the native end of a bridge.
type PluginConfig struct {
	Logger *slog.Logger

	// Diagnostics records the calls the native side sends. Its
	// threshold is also sent to the plugin host process.
	Diagnostics *diagnostics.Logger

	// StatePolicy controls how state blobs are packed in both
	// directions. Zero means codec.DefaultBlobPolicy.
	StatePolicy codec.BlobPolicy

	// MaxPayload bounds received frames. Zero means
	// transport.DefaultMaxPayload.
	MaxPayload uint64
}

// Plugin is a connected native end. The host application uses the
// factory returned by Factory as if it were the plugin's own.
type Plugin struct {
	client *proxy.Client
	result chan error
	cmd    *exec.Cmd

	closeOnce sync.Once
	closeErr  error
}

// Connect runs a client over conn and waits until the plugin host
// process has received its configuration.
func Connect(ctx context.Context, conn io.ReadWriteCloser, config PluginConfig) (*Plugin, error) {
	client := proxy.NewClient(conn, proxy.ClientConfig{
		Logger:      config.Logger,
		Diagnostics: config.Diagnostics,
		Verbosity:   config.Diagnostics.Threshold(),
		StatePolicy: config.StatePolicy,
		MaxPayload:  config.MaxPayload,
	})
	plugin := &Plugin{client: client, result: make(chan error, 1)}
	go func() { plugin.result <- client.Run(context.WithoutCancel(ctx)) }()

	select {
	case <-client.Configured():
		return plugin, nil
	case <-client.Done():
		err := <-plugin.result
		if err == nil {
			err = errors.New("connection closed")
		}
		return nil, fmt.Errorf("bridge: waiting for the plugin host: %w", err)
	case <-ctx.Done():
		client.Close()
		<-plugin.result
		return nil, fmt.Errorf("bridge: waiting for the plugin host: %w", ctx.Err())
	}
}

// Dial connects to a plugin host listening on socketPath.
func Dial(ctx context.Context, socketPath string, config PluginConfig) (*Plugin, error) {
	conn, err := transport.Dial(ctx, socketPath)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return Connect(ctx, conn, config)
}

// Factory returns the plugin's factory.
func (p *Plugin) Factory() (*proxy.FactoryProxy, error) { return p.client.Factory() }

// Client returns the underlying client.
func (p *Plugin) Client() *proxy.Client { return p.client }

// Done is closed when the connection ends.
func (p *Plugin) Done() <-chan struct{} { return p.client.Done() }

// Close destroys every object the host application still holds,
// closes the connection and, for a launched host, waits for the process
// to exit.
func (p *Plugin) Close() error {
	p.closeOnce.Do(func() {
		err := p.client.Close()
		if runErr := <-p.result; runErr != nil && err == nil {
			err = runErr
		}
		if p.cmd != nil {
			if waitErr := p.cmd.Wait(); waitErr != nil && err == nil {
				err = fmt.Errorf("plugin host exited: %w", waitErr)
			}
		}
		p.closeErr = err
	})
	return p.closeErr
}
