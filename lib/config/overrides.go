// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
)

// OverridesFile is the name of the per-plugin override file.
const OverridesFile = "yabridge.toml"

// Overrides holds the fields a yabridge.toml table may set. Unset
// fields leave the bridge-wide value alone.
type Overrides struct {
	Verbosity    *string            `toml:"verbosity"`
	HostBinary   *string            `toml:"host_binary"`
	Compression  *CompressionConfig `toml:"compression"`
	MaxFrameSize *uint64            `toml:"max_frame_size"`
}

// Match is the result of FindOverrides.
type Match struct {
	// File is the yabridge.toml that was consulted.
	File string
	// Pattern is the table key that matched.
	Pattern string
	Overrides
}

// FindOverrides looks for yabridge.toml in the directory of pluginPath
// and its parents, and returns the first table whose pattern matches.
// It returns nil without error when no file exists or no pattern
// matches. Only the nearest file is consulted.
func FindOverrides(pluginPath string) (*Match, error) {
	absolute, err := filepath.Abs(pluginPath)
	if err != nil {
		return nil, err
	}
	for directory := filepath.Dir(absolute); ; directory = filepath.Dir(directory) {
		file := filepath.Join(directory, OverridesFile)
		data, err := os.ReadFile(file)
		if err == nil {
			relative, err := filepath.Rel(directory, absolute)
			if err != nil {
				return nil, err
			}
			return matchOverrides(file, data, filepath.ToSlash(relative))
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		if parent := filepath.Dir(directory); parent == directory {
			return nil, nil
		}
	}
}

func matchOverrides(file string, data []byte, relative string) (*Match, error) {
	var tables map[string]Overrides
	if err := toml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	patterns, err := tableOrder(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, relative)
		if err != nil {
			return nil, fmt.Errorf("%s: pattern %q: %w", file, pattern, err)
		}
		if !matched {
			// A pattern naming a directory covers everything inside it.
			matched, _ = filepath.Match(pattern+"/*", relative)
		}
		if matched {
			return &Match{File: file, Pattern: pattern, Overrides: tables[pattern]}, nil
		}
	}
	return nil, nil
}

// tableOrder returns the top-level table keys in file order. Decoding
// into a map loses the order the first-match rule depends on.
func tableOrder(data []byte) ([]string, error) {
	var parser unstable.Parser
	parser.Reset(data)
	var keys []string
	seen := make(map[string]bool)
	for parser.NextExpression() {
		expression := parser.Expression()
		if expression.Kind != unstable.Table {
			continue
		}
		iterator := expression.Key()
		if !iterator.Next() {
			continue
		}
		key := string(iterator.Node().Data)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, parser.Error()
}

// ForPlugin returns the configuration for the plugin at pluginPath:
// a copy of c with the matching yabridge.toml table applied. The match
// is nil when no table applies.
func (c *Config) ForPlugin(pluginPath string) (*Config, *Match, error) {
	match, err := FindOverrides(pluginPath)
	if err != nil {
		return nil, nil, err
	}
	effective := *c
	if match == nil {
		return &effective, nil, nil
	}
	if match.Verbosity != nil {
		effective.Verbosity = *match.Verbosity
	}
	if match.HostBinary != nil {
		effective.HostBinary = expandVars(*match.HostBinary)
	}
	if match.Compression != nil {
		if match.Compression.Algorithm != "" {
			effective.Compression.Algorithm = match.Compression.Algorithm
		}
		if match.Compression.Threshold != 0 {
			effective.Compression.Threshold = match.Compression.Threshold
		}
	}
	if match.MaxFrameSize != nil {
		effective.MaxFrameSize = *match.MaxFrameSize
	}
	if err := effective.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s [%s]: %w", match.File, match.Pattern, err)
	}
	return &effective, match, nil
}
