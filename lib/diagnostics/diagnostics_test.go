// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package diagnostics

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/testutil"
)

type fakeCall struct {
	label     string
	verbosity Verbosity
	instance  registry.ID
	built     *int
}

func (c fakeCall) Label() string         { return c.label }
func (c fakeCall) Verbosity() Verbosity  { return c.verbosity }
func (c fakeCall) Instance() registry.ID { return c.instance }
func (c fakeCall) LogAttrs() []slog.Attr {
	if c.built != nil {
		*c.built++
	}
	return []slog.Attr{slog.Bool("state", true)}
}

type fakeResult struct{}

func (fakeResult) LogAttrs() []slog.Attr { return []slog.Attr{slog.String("result", "kResultOk")} }

func TestLoggerThreshold(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		threshold Verbosity
		call      Verbosity
		want      bool
	}{
		{"basic drops most", Basic, MostEvents, false},
		{"basic keeps basic", Basic, Basic, true},
		{"most keeps most", MostEvents, MostEvents, true},
		{"most drops per-block", MostEvents, AllEvents, false},
		{"all keeps per-block", AllEvents, AllEvents, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			sink := &MemorySink{}
			logger := NewLogger(sink, test.threshold)
			built := 0
			call := fakeCall{label: "IComponent::setActive", verbosity: test.call, instance: 1, built: &built}

			logged := logger.LogRequest(HostToPlugin, 9, call)
			if logged != test.want {
				t.Fatalf("LogRequest = %v, want %v", logged, test.want)
			}
			if logged {
				logger.LogResponse(HostToPlugin, 9, call, fakeResult{})
			}

			events := sink.Events()
			if !test.want {
				if len(events) != 0 || built != 0 {
					t.Errorf("filtered call produced %d events and built attributes %d times", len(events), built)
				}
				return
			}
			if len(events) != 2 {
				t.Fatalf("got %d events, want 2", len(events))
			}
			if events[0].Phase != PhaseRequest || events[1].Phase != PhaseResponse {
				t.Errorf("phases = %s, %s", events[0].Phase, events[1].Phase)
			}
			if events[0].CallID != 9 || events[0].Instance != 1 {
				t.Errorf("request event = %+v", events[0])
			}
		})
	}
}

func TestNilLogger(t *testing.T) {
	t.Parallel()
	var logger *Logger
	if logger.Enabled(Basic) {
		t.Error("nil logger reports enabled")
	}
	if logger.LogRequest(HostToPlugin, 1, fakeCall{}) {
		t.Error("nil logger logged a request")
	}
	logger.LogResponse(HostToPlugin, 1, fakeCall{}, nil)
	logger.LogUnknownInterface(PluginToHost, "IComponent::getBusCount", 3, "IComponent")
}

func TestUnknownInterfaceAlwaysLogged(t *testing.T) {
	t.Parallel()
	sink := &MemorySink{}
	NewLogger(sink, Basic).LogUnknownInterface(HostToPlugin, "IAudioProcessor::process", 4, "IAudioProcessor")
	events := sink.Events()
	if len(events) != 1 || events[0].Phase != PhaseUnknownInterface {
		t.Fatalf("events = %+v", events)
	}
}

func TestParseVerbosity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want Verbosity
	}{
		{"", Basic},
		{"basic", Basic},
		{"1", MostEvents},
		{"most_events", MostEvents},
		{"ALL_EVENTS", AllEvents},
		{"5", AllEvents},
	}
	for _, test := range tests {
		got, err := ParseVerbosity(test.text)
		if err != nil {
			t.Errorf("ParseVerbosity(%q): %v", test.text, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseVerbosity(%q) = %s, want %s", test.text, got, test.want)
		}
	}
	if _, err := ParseVerbosity("chatty"); err == nil {
		t.Error("ParseVerbosity accepted an unknown name")
	}
}

// lockedBuffer lets the test read log output while Run writes it.
type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func TestSlogSinkWritesEvents(t *testing.T) {
	t.Parallel()

	var output lockedBuffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&output, nil)), 16)
	ctx, cancel := context.WithCancel(context.Background())
	go sink.Run(ctx)

	logger := NewLogger(sink, MostEvents)
	call := fakeCall{label: "IEditController::setParamNormalized", verbosity: MostEvents, instance: 2}
	logger.LogRequest(PluginToHost, 5, call)
	logger.LogResponse(PluginToHost, 5, call, fakeResult{})

	cancel()
	testutil.RequireClosed(t, sink.Done(), 5*time.Second, "sink drain")

	text := output.String()
	for _, want := range []string{
		"IEditController::setParamNormalized",
		`direction="plugin -> host"`,
		"instance=2",
		"call_id=5",
		"args.state=true",
		"result.result=kResultOk",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("log output missing %q:\n%s", want, text)
		}
	}
}

func TestSlogSinkDropsWhenFull(t *testing.T) {
	t.Parallel()

	var output lockedBuffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&output, nil)), 2)
	// Run is not started yet, so the queue fills up.
	for range 5 {
		sink.Emit(Event{Label: "IAudioProcessor::process"})
	}
	if got := sink.Dropped(); got != 3 {
		t.Fatalf("Dropped() = %d, want 3", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)

	if !strings.Contains(output.String(), "diagnostic events dropped") {
		t.Errorf("drop count not reported:\n%s", output.String())
	}
	if sink.Dropped() != 0 {
		t.Errorf("Dropped() after report = %d", sink.Dropped())
	}
}

func TestSlogSinkNilReceiver(t *testing.T) {
	t.Parallel()
	var sink *SlogSink
	sink.Emit(Event{Label: "ignored"})
}

func TestLoggerSetThreshold(t *testing.T) {
	t.Parallel()
	logger := NewLogger(nil, Basic)
	if logger.Enabled(AllEvents) {
		t.Fatal("basic logger enabled per-block calls")
	}
	logger.SetThreshold(AllEvents)
	if !logger.Enabled(AllEvents) || logger.Threshold() != AllEvents {
		t.Errorf("threshold after SetThreshold = %s", logger.Threshold())
	}

	var disabled *Logger
	disabled.SetThreshold(AllEvents)
	if disabled.Enabled(Basic) {
		t.Error("nil logger reports enabled")
	}
}
