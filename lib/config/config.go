// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/diagnostics"
)

// LogFormat selects the slog handler of the bridge binaries.
type LogFormat string

const (
	// LogFormatAuto uses text on a terminal and JSON otherwise.
	LogFormatAuto LogFormat = "auto"
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Config is the bridge configuration shared by the native side and the
// plugin host process.
type Config struct {
	// Verbosity is the diagnostics threshold: basic, most_events or
	// all_events. The native side sends it to the plugin host process
	// during the handshake.
	Verbosity string `yaml:"verbosity"`

	// LogFormat selects text or JSON log output.
	LogFormat LogFormat `yaml:"log_format"`

	// SocketDirectory is where listening sockets are created.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}
	SocketDirectory string `yaml:"socket_directory"`

	// HostBinary is the plugin host executable the native side
	// launches. A bare name is looked up in PATH.
	HostBinary string `yaml:"host_binary"`

	// Compression controls how plugin state is packed on the wire.
	Compression CompressionConfig `yaml:"compression"`

	// MaxFrameSize bounds the payload of one received message, in bytes.
	// Zero means the transport default.
	MaxFrameSize uint64 `yaml:"max_frame_size"`
}

// CompressionConfig controls state blob compression.
type CompressionConfig struct {
	// Algorithm is none, lz4, zstd or auto.
	Algorithm string `yaml:"algorithm" toml:"algorithm"`

	// Threshold is the smallest state, in bytes, that is compressed.
	Threshold int `yaml:"threshold" toml:"threshold"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Verbosity:       diagnostics.Basic.String(),
		LogFormat:       LogFormatAuto,
		SocketDirectory: "${XDG_RUNTIME_DIR:-/tmp}",
		HostBinary:      "yabridge-host",
		Compression: CompressionConfig{
			Algorithm: codec.DefaultBlobPolicy.Compression.String(),
			Threshold: codec.DefaultBlobPolicy.Threshold,
		},
	}
}

// Load loads configuration from the file named by YABRIDGE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("YABRIDGE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("YABRIDGE_CONFIG environment variable not set; " +
			"set it to the path of your yabridge.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path. The result is validated.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

// loadFile merges a single file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}
	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.SocketDirectory = expandVars(c.SocketDirectory)
	c.HostBinary = expandVars(c.HostBinary)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.DiagnosticsVerbosity(); err != nil {
		errs = append(errs, fmt.Errorf("verbosity: %w", err))
	}
	switch c.LogFormat {
	case LogFormatAuto, LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log_format must be one of auto, text, json; got %q", c.LogFormat))
	}
	if c.SocketDirectory == "" {
		errs = append(errs, errors.New("socket_directory is required"))
	}
	if c.HostBinary == "" {
		errs = append(errs, errors.New("host_binary is required"))
	}
	if _, err := c.BlobPolicy(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DiagnosticsVerbosity parses Verbosity.
func (c *Config) DiagnosticsVerbosity() (diagnostics.Verbosity, error) {
	return diagnostics.ParseVerbosity(c.Verbosity)
}

// BlobPolicy returns the state packing policy described by Compression.
func (c *Config) BlobPolicy() (codec.BlobPolicy, error) {
	algorithm, err := codec.ParseCompression(c.Compression.Algorithm)
	if err != nil {
		return codec.BlobPolicy{}, fmt.Errorf("compression.algorithm: %w", err)
	}
	if c.Compression.Threshold < 0 {
		return codec.BlobPolicy{}, fmt.Errorf("compression.threshold must not be negative, got %d", c.Compression.Threshold)
	}
	return codec.BlobPolicy{Compression: algorithm, Threshold: c.Compression.Threshold}, nil
}

// HostBinaryPath resolves HostBinary. A name without a slash is looked
// up next to the running executable first, then in PATH.
func (c *Config) HostBinaryPath() (string, error) {
	if strings.ContainsRune(c.HostBinary, filepath.Separator) {
		return c.HostBinary, nil
	}
	if executable, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(executable), c.HostBinary)
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(c.HostBinary)
	if err != nil {
		return "", fmt.Errorf("%s not found next to this binary or in PATH", c.HostBinary)
	}
	return path, nil
}
