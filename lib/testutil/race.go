// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

//go:build race

package testutil

// RaceEnabled reports whether the race detector is compiled in. It
// makes sync.Pool drop items at random, so allocation bounds do not
// hold under it.
const RaceEnabled = true
