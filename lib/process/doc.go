// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handler shared by the
// yabridge binaries. It is the one place that writes to stderr
// directly, for errors that occur before the structured logger exists.
package process
