// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !race

package testutil

// RaceEnabled reports whether the race detector is compiled in.
const RaceEnabled = false
