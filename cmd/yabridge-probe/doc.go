// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// yabridge-probe loads a plugin through the bridge and reports what the
// host application would see: the factory's classes, each component's
// buses and parameters, the size of its state, and the result of a few
// processing cycles on a test signal.
//
// By default the probe launches yabridge-host for the plugin path given
// as its argument, applying the configuration file and any yabridge.toml
// overrides next to the plugin. --builtin probes a plugin compiled into
// the host binary, and --socket connects to a host that is already
// listening instead of launching one.
//
//	yabridge-probe ~/.vst3/Gain.so
//	yabridge-probe --builtin gain --blocks 16 --format json
//	yabridge-probe --socket gain.sock --verbosity all_events
package main
