// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the yabridge
// binaries and the version check of the configuration handshake.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// These default to "unknown" / "0.1.0-dev" when not injected, which
// occurs during development builds and test runs.
//
// Both processes of a bridge exchange [Short] when they connect.
// [Matches] decides whether the other side was built from the same
// release; a mismatch is reported to the user but never refused.
package version
