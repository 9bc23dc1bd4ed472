// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package diagnostics

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sarvex/yabridge/lib/registry"
)

// Verbosity is the threshold a call must meet to be logged. Higher
// values include everything below them.
type Verbosity int

const (
	// Basic logs lifecycle events and failures only.
	Basic Verbosity = 0
	// MostEvents logs every call except those made once per audio
	// block.
	MostEvents Verbosity = 1
	// AllEvents also logs the per-block calls (process, latency and
	// tail queries, bus counts).
	AllEvents Verbosity = 2
)

// String returns the configuration name.
func (v Verbosity) String() string {
	switch v {
	case Basic:
		return "basic"
	case MostEvents:
		return "most_events"
	case AllEvents:
		return "all_events"
	default:
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
}

// ParseVerbosity accepts a configuration name or its number.
func ParseVerbosity(text string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "basic", "0":
		return Basic, nil
	case "most_events", "most", "1":
		return MostEvents, nil
	case "all_events", "all", "2":
		return AllEvents, nil
	}
	if number, err := strconv.Atoi(text); err == nil && number > int(AllEvents) {
		return AllEvents, nil
	}
	return Basic, fmt.Errorf("unknown verbosity %q", text)
}

// Direction says which process initiated a call.
type Direction uint8

const (
	HostToPlugin Direction = iota
	PluginToHost
)

// String returns the arrow notation used in log lines.
func (d Direction) String() string {
	if d == PluginToHost {
		return "plugin -> host"
	}
	return "host -> plugin"
}

// Phase distinguishes the events emitted for one call.
type Phase uint8

const (
	PhaseRequest Phase = iota
	PhaseResponse
	PhaseUnknownInterface
)

func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "request"
	case PhaseResponse:
		return "response"
	case PhaseUnknownInterface:
		return "unknown_interface"
	default:
		return "unknown"
	}
}

// Event is one diagnostic record.
type Event struct {
	Direction Direction
	Phase     Phase
	Label     string
	Instance  registry.ID
	CallID    uint64
	Verbosity Verbosity
	Attrs     []slog.Attr
}

// Sink receives events that passed the verbosity threshold.
// Implementations must be safe for concurrent use and must not block.
type Sink interface {
	Emit(event Event)
}

// Nop discards every event.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(Event) {}
