// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package diagnostics

import (
	"log/slog"
	"sync/atomic"

	"github.com/sarvex/yabridge/lib/registry"
)

// Call is what the logger needs from a request.
type Call interface {
	Label() string
	Verbosity() Verbosity
	Instance() registry.ID
	LogAttrs() []slog.Attr
}

// Result is what the logger needs from a response.
type Result interface {
	LogAttrs() []slog.Attr
}

// Logger applies the verbosity threshold and forwards events to a
// sink. A nil *Logger logs nothing.
type Logger struct {
	sink      Sink
	threshold atomic.Int64
}

// NewLogger returns a logger writing to sink. A nil sink is replaced
// with Nop.
func NewLogger(sink Sink, threshold Verbosity) *Logger {
	if sink == nil {
		sink = Nop{}
	}
	logger := &Logger{sink: sink}
	logger.threshold.Store(int64(threshold))
	return logger
}

// Threshold returns the configured verbosity.
func (l *Logger) Threshold() Verbosity {
	if l == nil {
		return Basic
	}
	return Verbosity(l.threshold.Load())
}

// SetThreshold changes the verbosity. The plugin host process calls it
// once the native side has sent its configuration.
func (l *Logger) SetThreshold(threshold Verbosity) {
	if l != nil {
		l.threshold.Store(int64(threshold))
	}
}

// Enabled reports whether a call at verbosity would be logged.
func (l *Logger) Enabled(verbosity Verbosity) bool {
	return l != nil && int64(verbosity) <= l.threshold.Load()
}

// LogRequest records an outgoing request and reports whether it was
// logged. Pass the result to LogResponse.
func (l *Logger) LogRequest(direction Direction, callID uint64, call Call) bool {
	verbosity := call.Verbosity()
	if !l.Enabled(verbosity) {
		return false
	}
	l.sink.Emit(Event{
		Direction: direction,
		Phase:     PhaseRequest,
		Label:     call.Label(),
		Instance:  call.Instance(),
		CallID:    callID,
		Verbosity: verbosity,
		Attrs:     call.LogAttrs(),
	})
	return true
}

// LogResponse records the response to a request that LogRequest
// logged.
func (l *Logger) LogResponse(direction Direction, callID uint64, call Call, result Result) {
	if l == nil {
		return
	}
	event := Event{
		Direction: direction,
		Phase:     PhaseResponse,
		Label:     call.Label(),
		Instance:  call.Instance(),
		CallID:    callID,
		Verbosity: call.Verbosity(),
	}
	if result != nil {
		event.Attrs = result.LogAttrs()
	}
	l.sink.Emit(event)
}

// LogUnknownInterface records a request for an interface the target
// object does not implement. Always logged.
func (l *Logger) LogUnknownInterface(direction Direction, label string, instance registry.ID, iface string) {
	if l == nil {
		return
	}
	l.sink.Emit(Event{
		Direction: direction,
		Phase:     PhaseUnknownInterface,
		Label:     label,
		Instance:  instance,
		Verbosity: Basic,
		Attrs:     []slog.Attr{slog.String("interface", iface)},
	})
}
