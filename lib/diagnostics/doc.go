// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package diagnostics records the calls that cross the bridge.
//
// Every request is described by an [Event]: which way it travels, the
// interface method it invokes ("IComponent::setActive"), the instance
// it targets and its arguments as slog attributes. A [Logger] filters
// events by [Verbosity] before any attribute is built, so the audio
// thread pays nothing for per-block calls at the default level. Events
// that pass the threshold go to a [Sink].
//
// [SlogSink] is the production sink. It queues events into a bounded
// buffer drained by [SlogSink.Run] into a log/slog logger; when the
// buffer is full the event is dropped and counted instead of blocking
// the caller. The drop count is reported with the next event that gets
// through.
//
// Only the side that sends a request logs it, and the response is
// logged only when its request was, so every call appears once.
package diagnostics
