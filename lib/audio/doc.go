// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package audio converts one processing cycle to and from its wire
// form.
//
// The host side calls [Request.Encode] with the host's
// [vst3.ProcessData], sends the request, and copies the reply back with
// [Response.Apply]. The plugin side owns one [Buffers] per plugin
// instance: [Buffers.Configure] sizes it when processing is set up,
// [Buffers.Load] turns each incoming request into a ProcessData backed
// by that storage, and [Buffers.Store] captures the outputs after the
// plugin ran. Nothing is allocated per cycle once the first block has
// passed through.
//
// Samples travel as little-endian IEEE floats, one contiguous run per
// channel, channels of a bus back to back. A request whose bus count,
// channel counts, sample size or block length disagree with the
// configured layout is rejected with [ErrLayoutMismatch].
package audio
