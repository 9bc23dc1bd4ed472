// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package diagnostics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the SlogSink queue length used when the caller
// passes zero.
const DefaultBufferSize = 4096

// SlogSink writes events to a slog.Logger from a background goroutine.
//
// Emit never blocks: when the queue is full the event is dropped and
// counted. Emit is a no-op on a nil receiver.
//
// Lifecycle: call [SlogSink.Run] in a goroutine, cancel its context to
// stop it. Run writes whatever is still queued before closing the Done
// channel.
type SlogSink struct {
	logger  *slog.Logger
	events  chan Event
	dropped atomic.Uint64
	done    chan struct{}
}

// NewSlogSink returns a sink writing to logger with room for
// bufferSize queued events.
func NewSlogSink(logger *slog.Logger, bufferSize int) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &SlogSink{
		logger: logger,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// Emit queues event.
func (s *SlogSink) Emit(event Event) {
	if s == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of events dropped since the last report.
func (s *SlogSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run drains the queue until ctx is cancelled. Must be called exactly
// once.
func (s *SlogSink) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case event := <-s.events:
			s.write(ctx, event)
		case <-ctx.Done():
			for {
				select {
				case event := <-s.events:
					s.write(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Done is closed after Run has returned.
func (s *SlogSink) Done() <-chan struct{} {
	return s.done
}

func (s *SlogSink) write(ctx context.Context, event Event) {
	if dropped := s.dropped.Swap(0); dropped > 0 {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "diagnostic events dropped",
			slog.Uint64("count", dropped))
	}

	attrs := make([]slog.Attr, 0, 5)
	attrs = append(attrs,
		slog.String("direction", event.Direction.String()),
		slog.String("phase", event.Phase.String()),
		slog.Uint64("instance", uint64(event.Instance)),
	)
	if event.CallID != 0 {
		attrs = append(attrs, slog.Uint64("call_id", event.CallID))
	}
	if len(event.Attrs) > 0 {
		key := "args"
		if event.Phase == PhaseResponse {
			key = "result"
		}
		attrs = append(attrs, slog.Attr{Key: key, Value: slog.GroupValue(event.Attrs...)})
	}

	level := slog.LevelInfo
	if event.Phase == PhaseUnknownInterface {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, event.Label, attrs...)
}

// MemorySink keeps every event in memory. Tests use it to assert what
// was logged.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends event.
func (m *MemorySink) Emit(event Event) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
