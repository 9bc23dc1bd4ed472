// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sarvex/yabridge/bridge"
	"github.com/sarvex/yabridge/internal/testplugin"
	"github.com/sarvex/yabridge/lib/config"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/loader"
	"github.com/sarvex/yabridge/lib/process"
	"github.com/sarvex/yabridge/lib/version"
	"github.com/sarvex/yabridge/lib/watchdog"
)

// builtins are the plugins --builtin can serve.
var builtins = loader.StaticLoader{
	"gain": testplugin.GetPluginFactory,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	fd         int
	socketPath string
	pluginPath string
	builtin    string
	configPath string
	logFormat  string
	debug      bool

	watchPID    int
	idleTimeout time.Duration
}

func run(args []string) error {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("yabridge-host", pflag.ContinueOnError)
	flagSet.IntVar(&opts.fd, "fd", -1, "serve the inherited socket with this descriptor number")
	flagSet.StringVar(&opts.socketPath, "socket", "", "listen on this unix socket; a bare name is created in socket_directory")
	flagSet.StringVar(&opts.pluginPath, "plugin", "", "path of the plugin shared object to load")
	flagSet.StringVar(&opts.builtin, "builtin", "", "serve a plugin compiled into this binary ("+strings.Join(builtins.Names(), ", ")+")")
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file (default: $YABRIDGE_CONFIG)")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "override the configured log format: auto, text or json")
	flagSet.BoolVarP(&opts.debug, "debug", "d", false, "log session lifecycle events")
	flagSet.IntVar(&opts.watchPID, "watch-pid", 0, "exit when the process with this pid exits")
	flagSet.DurationVar(&opts.idleTimeout, "idle-timeout", 0, "with --socket, exit after serving no session for this long")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion {
		fmt.Printf("yabridge-host %s\n", version.Info())
		return nil
	}
	if err := opts.validate(); err != nil {
		return &process.ExitError{Code: 2, Err: err}
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := cfg.NewLogger(os.Stderr, level).With("pid", os.Getpid())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.watchPID > 0 {
		go func() {
			err := watchdog.Watch(ctx, opts.watchPID, watchdog.Config{})
			if errors.Is(err, watchdog.ErrProcessExited) {
				logger.Info("native side exited, stopping", "pid", opts.watchPID)
				stop()
			}
		}()
	}

	// The sink outlives the sessions so their last events are written.
	sinkContext, stopSink := context.WithCancel(context.WithoutCancel(ctx))
	sink := diagnostics.NewSlogSink(logger.With("component", "diagnostics"), 0)
	go sink.Run(sinkContext)
	defer func() {
		stopSink()
		<-sink.Done()
	}()

	host := &bridge.Host{
		Loader:      loader.GoPluginLoader{},
		Plugin:      opts.pluginPath,
		Logger:      logger,
		Sink:        sink,
		MaxPayload:  cfg.MaxFrameSize,
		IdleTimeout: opts.idleTimeout,
	}
	if opts.builtin != "" {
		host.Loader = builtins
		host.Plugin = opts.builtin
	}

	if opts.fd >= 0 {
		err := host.ServeInherited(ctx, uintptr(opts.fd))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if err := host.Start(ctx, opts.listenPath(cfg)); err != nil {
		return err
	}
	host.Wait()
	logger.Info("plugin host stopped")
	return nil
}

func (o *options) validate() error {
	if (o.pluginPath == "") == (o.builtin == "") {
		return errors.New("exactly one of --plugin and --builtin is required")
	}
	if (o.fd < 0) == (o.socketPath == "") {
		return errors.New("exactly one of --fd and --socket is required")
	}
	if o.idleTimeout < 0 || (o.idleTimeout > 0 && o.socketPath == "") {
		return errors.New("--idle-timeout needs --socket and a positive duration")
	}
	if o.watchPID < 0 {
		return fmt.Errorf("--watch-pid must not be negative, got %d", o.watchPID)
	}
	switch config.LogFormat(o.logFormat) {
	case "", config.LogFormatAuto, config.LogFormatText, config.LogFormatJSON:
	default:
		return fmt.Errorf("--log-format must be auto, text or json, got %q", o.logFormat)
	}
	return nil
}

// config resolves the configuration file and applies the plugin's
// yabridge.toml overrides and the command line.
func (o *options) config() (*config.Config, error) {
	cfg, err := config.Resolve(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.pluginPath != "" {
		cfg, _, err = cfg.ForPlugin(o.pluginPath)
		if err != nil {
			return nil, err
		}
	}
	if o.logFormat != "" {
		cfg.LogFormat = config.LogFormat(o.logFormat)
	}
	return cfg, nil
}

// listenPath places a bare socket name in the configured directory.
func (o *options) listenPath(cfg *config.Config) string {
	if strings.ContainsRune(o.socketPath, filepath.Separator) {
		return o.socketPath
	}
	return filepath.Join(cfg.SocketDirectory, o.socketPath)
}
