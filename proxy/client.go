// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/protocol"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/version"
	"github.com/sarvex/yabridge/lib/vst3"
	"github.com/sarvex/yabridge/transport"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	Logger *slog.Logger

	// Diagnostics records every call the native side sends. Nil
	// disables call logging.
	Diagnostics *diagnostics.Logger

	// Verbosity and StatePolicy are sent to the plugin host process
	// when it asks for its configuration.
	Verbosity   diagnostics.Verbosity
	StatePolicy codec.BlobPolicy

	// MaxPayload bounds received frames. Zero means
	// transport.DefaultMaxPayload.
	MaxPayload uint64
}

// Client is the native end of a bridge connection.
type Client struct {
	channel     *transport.Channel
	logger      *slog.Logger
	diagnostics *diagnostics.Logger
	statePolicy codec.BlobPolicy
	verbosity   diagnostics.Verbosity

	proxies   *registry.Registry[*PluginProxy]
	callbacks *CallbackRegistry

	factoryOnce sync.Once
	factory     *FactoryProxy
	factoryErr  error

	configuredOnce sync.Once
	configured     chan struct{}
	remoteVersion  string
}

// NewClient returns a client speaking over conn. Call Run to start
// serving callbacks and receiving responses.
func NewClient(conn io.ReadWriteCloser, config ClientConfig) *Client {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	statePolicy := config.StatePolicy
	if statePolicy == (codec.BlobPolicy{}) {
		statePolicy = codec.DefaultBlobPolicy
	}
	client := &Client{
		logger:      logger,
		diagnostics: config.Diagnostics,
		statePolicy: statePolicy,
		verbosity:   config.Verbosity,
		proxies:     registry.New[*PluginProxy](),
		callbacks:   NewCallbackRegistry(),
		configured:  make(chan struct{}),
	}
	client.channel = transport.New(conn, client, transport.Options{
		Direction:   diagnostics.HostToPlugin,
		Logger:      logger,
		Diagnostics: config.Diagnostics,
		MaxPayload:  config.MaxPayload,
	})
	return client
}

// Run serves the connection until it closes. Proxies still alive when
// it returns stay registered but every call on them fails.
func (c *Client) Run(ctx context.Context) error {
	return c.channel.Run(ctx)
}

// Configured is closed once the plugin host process has asked for and
// received its configuration.
func (c *Client) Configured() <-chan struct{} { return c.configured }

// RemoteVersion returns the version the plugin host process reported,
// or "" before the handshake.
func (c *Client) RemoteVersion() string {
	select {
	case <-c.configured:
		return c.remoteVersion
	default:
		return ""
	}
}

// Done is closed once the connection has shut down.
func (c *Client) Done() <-chan struct{} { return c.channel.Done() }

// Callbacks returns the registry routing plugin callbacks to host
// objects.
func (c *Client) Callbacks() *CallbackRegistry { return c.callbacks }

// Factory returns the plugin's factory. The first call fetches the
// factory description and class list; later calls return the cached
// proxy.
func (c *Client) Factory() (*FactoryProxy, error) {
	c.factoryOnce.Do(func() {
		var response protocol.FactoryResponse
		if err := c.channel.Call(&protocol.GetPluginFactory{}, &response); err != nil {
			c.factoryErr = fmt.Errorf("fetching plugin factory: %w", err)
			return
		}
		if !response.Result.OK() {
			c.factoryErr = fmt.Errorf("fetching plugin factory: %s", response.Result)
			return
		}
		c.factory = &FactoryProxy{client: c, info: response.Info, classes: response.Classes}
	})
	return c.factory, c.factoryErr
}

// Close releases every live proxy, in creation order, and closes the
// connection. The plugin host process destroys the real objects as
// their Destruct requests arrive.
func (c *Client) Close() error {
	var errs []error
	for _, entry := range c.proxies.Drain() {
		c.callbacks.Forget(entry.ID)
		if err := c.channel.Call(&protocol.Destruct{Target: protocol.To(entry.ID)}, &protocol.Ack{}); err != nil {
			errs = append(errs, err)
			if errors.Is(err, transport.ErrClosed) {
				break
			}
		}
	}
	c.callbacks.Forget(registry.FactoryID)
	c.channel.Close()
	if len(errs) > 0 && !errors.Is(errs[0], transport.ErrClosed) {
		return fmt.Errorf("releasing instances: %w", errors.Join(errs...))
	}
	return nil
}

// Handle serves callbacks from the plugin host process.
func (c *Client) Handle(request protocol.Request) (protocol.Response, error) {
	switch request := request.(type) {
	case *protocol.WantsConfiguration:
		return c.configuration(request), nil

	case *protocol.BeginEdit:
		return c.withHandler(request, func(handler vst3.ComponentHandler) vst3.Result {
			return handler.BeginEdit(request.ID)
		}), nil
	case *protocol.PerformEdit:
		return c.withHandler(request, func(handler vst3.ComponentHandler) vst3.Result {
			return handler.PerformEdit(request.ID, request.Value)
		}), nil
	case *protocol.EndEdit:
		return c.withHandler(request, func(handler vst3.ComponentHandler) vst3.Result {
			return handler.EndEdit(request.ID)
		}), nil
	case *protocol.RestartComponent:
		return c.withHandler(request, func(handler vst3.ComponentHandler) vst3.Result {
			return handler.RestartComponent(request.Flags)
		}), nil

	case *protocol.HostGetName:
		host, ok := c.callbacks.HostContext(request.Instance())
		if !ok {
			c.diagnostics.LogUnknownInterface(diagnostics.PluginToHost, request.Kind().Label(), request.Instance(), "IHostApplication")
			return &protocol.TextResponse{Result: vst3.ResultNoInterface}, nil
		}
		var name vst3.String128
		result := host.GetName(&name)
		return &protocol.TextResponse{Result: result, Text: name.String()}, nil

	default:
		return nil, fmt.Errorf("request %s cannot be served by the native side", request.Kind())
	}
}

func (c *Client) withHandler(request protocol.Request, call func(vst3.ComponentHandler) vst3.Result) protocol.Response {
	handler, ok := c.callbacks.ComponentHandler(request.Instance())
	if !ok {
		c.diagnostics.LogUnknownInterface(diagnostics.PluginToHost, request.Kind().Label(), request.Instance(), "IComponentHandler")
		return &protocol.ResultResponse{Result: vst3.ResultNoInterface}
	}
	return &protocol.ResultResponse{Result: call(handler)}
}

func (c *Client) configuration(request *protocol.WantsConfiguration) *protocol.Configuration {
	if !version.Matches(request.Version) {
		c.logger.Warn("plugin host version differs from the native side; rebuild both from the same release",
			"native", version.Short(),
			"plugin_host", request.Version,
		)
	}
	c.configuredOnce.Do(func() {
		c.remoteVersion = request.Version
		close(c.configured)
	})
	return &protocol.Configuration{
		Version:     version.Short(),
		Verbosity:   c.verbosity,
		StatePolicy: c.statePolicy,
	}
}

// call sends request and reports whether response was filled in.
// Failures are logged; the caller turns them into a result code.
func (c *Client) call(request protocol.Request, response protocol.Response) bool {
	if err := c.channel.Call(request, response); err != nil {
		c.logger.Error("bridged call failed",
			"call", request.Kind().Label(),
			"instance", uint64(request.Instance()),
			"error", err,
		)
		return false
	}
	return true
}

// adopt registers a proxy for an instance the plugin host process has
// created.
func (c *Client) adopt(id registry.ID, interfaces vst3.InterfaceSet) (*PluginProxy, error) {
	proxy := &PluginProxy{client: c, id: id, interfaces: interfaces}
	if err := c.proxies.Insert(id, proxy); err != nil {
		return nil, fmt.Errorf("adopting instance %d: %w", id, err)
	}
	return proxy, nil
}
