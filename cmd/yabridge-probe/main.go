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
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sarvex/yabridge/bridge"
	"github.com/sarvex/yabridge/lib/config"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/process"
	"github.com/sarvex/yabridge/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	pluginPath string
	builtin    string
	socketPath string
	configPath string
	verbosity  string
	format     string
	settings   settings
}

func run(args []string) error {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("yabridge-probe", pflag.ContinueOnError)
	flagSet.StringVar(&opts.builtin, "builtin", "", "probe a plugin compiled into the host binary")
	flagSet.StringVar(&opts.socketPath, "socket", "", "connect to a listening plugin host instead of launching one")
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file (default: $YABRIDGE_CONFIG)")
	flagSet.StringVar(&opts.verbosity, "verbosity", "", "override the diagnostics verbosity: basic, most_events or all_events")
	flagSet.StringVar(&opts.format, "format", "text", "report format: text or json")
	flagSet.IntVar(&opts.settings.blocks, "blocks", 8, "processing cycles to run per component (0 to skip)")
	flagSet.Int32Var(&opts.settings.blockSize, "block-size", 512, "samples per processing cycle")
	flagSet.Float64Var(&opts.settings.sampleRate, "sample-rate", 48000, "sample rate in Hz")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: yabridge-probe [flags] [plugin]\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion {
		fmt.Printf("yabridge-probe %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 1 {
		return &process.ExitError{Code: 2, Err: fmt.Errorf("expected at most one plugin path, got %d arguments", flagSet.NArg())}
	}
	opts.pluginPath = flagSet.Arg(0)
	if err := opts.validate(); err != nil {
		return &process.ExitError{Code: 2, Err: err}
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	verbosity, err := cfg.DiagnosticsVerbosity()
	if err != nil {
		return err
	}
	policy, err := cfg.BlobPolicy()
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr, slog.LevelInfo)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinkContext, stopSink := context.WithCancel(context.WithoutCancel(ctx))
	sink := diagnostics.NewSlogSink(logger.With("component", "diagnostics"), 0)
	go sink.Run(sinkContext)
	defer func() {
		stopSink()
		<-sink.Done()
	}()

	pluginConfig := bridge.PluginConfig{
		Logger:      logger,
		Diagnostics: diagnostics.NewLogger(sink, verbosity),
		StatePolicy: policy,
		MaxPayload:  cfg.MaxFrameSize,
	}
	plugin, err := opts.connect(ctx, cfg, pluginConfig)
	if err != nil {
		return err
	}
	defer plugin.Close()

	factory, err := plugin.Factory()
	if err != nil {
		return err
	}
	report, err := probe(factory, opts.settings)
	if err != nil {
		return err
	}
	report.HostVersion = plugin.Client().RemoteVersion()

	if err := plugin.Close(); err != nil {
		return fmt.Errorf("closing the bridge: %w", err)
	}
	return writeReport(os.Stdout, report, opts.format)
}

func (o *options) validate() error {
	sources := 0
	for _, source := range []string{o.pluginPath, o.builtin, o.socketPath} {
		if source != "" {
			sources++
		}
	}
	if sources != 1 {
		return errors.New("give exactly one of a plugin path, --builtin or --socket")
	}
	if o.format != "text" && o.format != "json" {
		return fmt.Errorf("--format must be text or json, got %q", o.format)
	}
	if o.settings.blocks < 0 {
		return fmt.Errorf("--blocks must not be negative, got %d", o.settings.blocks)
	}
	if o.settings.blockSize <= 0 {
		return fmt.Errorf("--block-size must be positive, got %d", o.settings.blockSize)
	}
	if o.settings.sampleRate <= 0 {
		return fmt.Errorf("--sample-rate must be positive, got %g", o.settings.sampleRate)
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
		var match *config.Match
		cfg, match, err = cfg.ForPlugin(o.pluginPath)
		if err != nil {
			return nil, err
		}
		if match != nil {
			slog.Debug("applied plugin overrides", "file", match.File, "pattern", match.Pattern)
		}
	}
	if o.verbosity != "" {
		cfg.Verbosity = o.verbosity
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// connect dials a listening host or launches one.
func (o *options) connect(ctx context.Context, cfg *config.Config, pluginConfig bridge.PluginConfig) (*bridge.Plugin, error) {
	if o.socketPath != "" {
		socketPath := o.socketPath
		if !strings.ContainsRune(socketPath, filepath.Separator) {
			socketPath = filepath.Join(cfg.SocketDirectory, socketPath)
		}
		return bridge.Dial(ctx, socketPath, pluginConfig)
	}

	hostBinary, err := cfg.HostBinaryPath()
	if err != nil {
		return nil, err
	}
	args := []string{"--builtin", o.builtin}
	if o.pluginPath != "" {
		absolute, err := filepath.Abs(o.pluginPath)
		if err != nil {
			return nil, err
		}
		args = []string{"--plugin", absolute}
	}
	if o.configPath != "" {
		args = append(args, "--config", o.configPath)
	}
	args = append(args, "--log-format", string(cfg.LogFormat), "--watch-pid", strconv.Itoa(os.Getpid()))
	return bridge.Launch(ctx, bridge.LaunchConfig{
		HostBinary:   hostBinary,
		Args:         args,
		PluginConfig: pluginConfig,
	})
}
