// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads bridge configuration.
//
// The bridge-wide file is YAML, named by the YABRIDGE_CONFIG environment
// variable (via [Load]) or a --config flag (via [LoadFile]). Files with a
// .json or .jsonc extension are accepted too; comments and trailing
// commas are stripped before decoding. There is no automatic file
// search. Values missing from the file keep their [Default].
//
// Per-plugin overrides live in a yabridge.toml found in the plugin's
// directory or the nearest parent directory that has one. Each table in
// that file is keyed by a glob pattern matched against the plugin's path
// relative to the toml file; the first matching table in file order
// applies. [Config.ForPlugin] returns the effective configuration for
// one plugin.
//
// Variable expansion (${HOME}, ${XDG_RUNTIME_DIR:-/tmp} and similar) is
// applied to path fields after loading.
//
// Key exports:
//
//   - [Config] and [Default]
//   - [Load], [LoadFile] and [Resolve], which falls back to Default
//     when no file is named
//   - [Config.NewLogger], the slog handler choice of the binaries
//   - [Overrides] and [FindOverrides]
package config
