// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sarvex/yabridge/bridge"
	"github.com/sarvex/yabridge/internal/testplugin"
	"github.com/sarvex/yabridge/lib/loader"
	"github.com/sarvex/yabridge/lib/process"
	"github.com/sarvex/yabridge/lib/testutil"
	"github.com/sarvex/yabridge/lib/vst3"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var testSettings = settings{blocks: 4, blockSize: 256, sampleRate: 48000}

// checkGainReport asserts what every probe of the gain plugin finds.
func checkGainReport(t *testing.T, report *Report) {
	t.Helper()
	if report.Vendor != "yabridge" {
		t.Errorf("Vendor = %q", report.Vendor)
	}
	if len(report.Classes) != 2 {
		t.Fatalf("%d classes, want 2", len(report.Classes))
	}

	gain := report.Classes[0]
	if gain.Error != "" {
		t.Fatalf("component error: %s", gain.Error)
	}
	if gain.CID != testplugin.ProcessorCID.String() || gain.Category != vst3.CategoryAudioEffect {
		t.Errorf("class 0 = %s %q", gain.CID, gain.Category)
	}
	if len(gain.Buses) != 2 || gain.Buses[0].Direction != "input" || gain.Buses[1].Channels != 2 {
		t.Errorf("buses = %+v", gain.Buses)
	}
	if len(gain.Parameters) != 3 {
		t.Fatalf("parameters = %+v", gain.Parameters)
	}
	if got := gain.Parameters[0]; got.ID != testplugin.ParamGain || got.Value != "0.0 dB" {
		t.Errorf("gain parameter = %+v", got)
	}
	if got := gain.Parameters[1].Value; got != "Off" {
		t.Errorf("bypass value = %q", got)
	}
	if gain.StateBytes == 0 {
		t.Error("state size not reported")
	}

	processing := gain.Processing
	if processing == nil {
		t.Fatal("no processing report")
	}
	if processing.Blocks != testSettings.blocks || len(processing.OutputPeaks) != 2 {
		t.Fatalf("processing = %+v", processing)
	}
	if processing.InputPeak < 0.49 || processing.InputPeak > testToneAmplitude {
		t.Errorf("input peak = %v", processing.InputPeak)
	}
	// Unity gain passes the tone through unchanged.
	for channel, level := range processing.OutputPeaks {
		if math.Abs(level-processing.InputPeak) > 1e-6 {
			t.Errorf("output %d peak = %v, want %v", channel, level, processing.InputPeak)
		}
	}

	controller := report.Classes[1]
	if controller.Category != vst3.CategoryComponentController || controller.Processing != nil || len(controller.Parameters) != 0 {
		t.Errorf("controller class = %+v", controller)
	}
}

func TestProbeInProcess(t *testing.T) {
	t.Parallel()
	factory := testplugin.NewFactory(testplugin.Options{})
	report, err := probe(factory, testSettings)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	checkGainReport(t, report)

	for _, processor := range factory.Processors() {
		if !processor.Closed() {
			t.Error("probe left a processor open")
		}
	}
	if factory.HostContext() == nil {
		t.Error("probe did not set a host context")
	}
}

func TestProbeThroughBridge(t *testing.T) {
	t.Parallel()
	nativeConn, hostConn := net.Pipe()
	host := &bridge.Host{
		Loader: loader.StaticLoader{"gain": testplugin.GetPluginFactory},
		Plugin: "gain",
		Logger: quiet,
	}
	served := make(chan error, 1)
	go func() { served <- host.Serve(context.Background(), hostConn) }()

	plugin, err := bridge.Connect(context.Background(), nativeConn, bridge.PluginConfig{Logger: quiet})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	factory, err := plugin.Factory()
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	report, err := probe(factory, testSettings)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	checkGainReport(t, report)

	if err := plugin.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := testutil.RequireReceive(t, served, 5*time.Second, "waiting for Serve"); err != nil {
		t.Errorf("Serve: %v", err)
	}
}

func TestProbeSkipsProcessing(t *testing.T) {
	t.Parallel()
	report, err := probe(testplugin.NewFactory(testplugin.Options{}), settings{blockSize: 64, sampleRate: 44100})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if report.Classes[0].Processing != nil {
		t.Error("processing ran with zero blocks")
	}
}

func TestWriteReport(t *testing.T) {
	t.Parallel()
	report, err := probe(testplugin.NewFactory(testplugin.Options{}), testSettings)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	report.HostVersion = "1.2.3"

	var text bytes.Buffer
	if err := writeReport(&text, report, "text"); err != nil {
		t.Fatalf("text: %v", err)
	}
	for _, want := range []string{
		"vendor: yabridge",
		"host:   yabridge-host 1.2.3",
		"Gain (Audio Module Class)",
		"0.0 dB",
		"-6.0 dBFS",
	} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text report lacks %q:\n%s", want, text.String())
		}
	}

	var encoded bytes.Buffer
	if err := writeReport(&encoded, report, "json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(encoded.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(decoded.Classes) != 2 || decoded.Classes[0].Processing == nil {
		t.Errorf("decoded report = %+v", decoded)
	}
}

func TestDecibels(t *testing.T) {
	t.Parallel()
	tests := map[float64]string{0: "-inf dBFS", 1: "0.0 dBFS", 0.5: "-6.0 dBFS", 0.1: "-20.0 dBFS"}
	for level, want := range tests {
		if got := decibels(level); got != want {
			t.Errorf("decibels(%v) = %q, want %q", level, got, want)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()
	valid := settings{blocks: 1, blockSize: 64, sampleRate: 48000}
	tests := []struct {
		name    string
		options options
		wantErr bool
	}{
		{"plugin", options{pluginPath: "/p.so", format: "text", settings: valid}, false},
		{"builtin json", options{builtin: "gain", format: "json", settings: valid}, false},
		{"nothing", options{format: "text", settings: valid}, true},
		{"two sources", options{builtin: "gain", socketPath: "s", format: "text", settings: valid}, true},
		{"bad format", options{builtin: "gain", format: "yaml", settings: valid}, true},
		{"negative blocks", options{builtin: "gain", format: "text", settings: settings{blocks: -1, blockSize: 64, sampleRate: 1}}, true},
		{"zero block size", options{builtin: "gain", format: "text", settings: settings{sampleRate: 1}}, true},
	}
	for _, test := range tests {
		if err := test.options.validate(); (err != nil) != test.wantErr {
			t.Errorf("%s: validate() = %v, wantErr %v", test.name, err, test.wantErr)
		}
	}
}

func TestRunRejectsUsage(t *testing.T) {
	t.Parallel()
	if err := run([]string{"a.so", "b.so"}); process.ExitCode(err) != 2 {
		t.Errorf("two plugins: %v", err)
	}
	if err := run([]string{"--builtin", "gain", "--format", "xml"}); process.ExitCode(err) != 2 {
		t.Errorf("bad format: %v", err)
	}
}
