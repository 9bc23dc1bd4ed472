// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/sarvex/yabridge/lib/audio"
	"github.com/sarvex/yabridge/lib/vst3"
)

type SetBusArrangements struct {
	Target
	Inputs  []vst3.SpeakerArrangement `cbor:"inputs"`
	Outputs []vst3.SpeakerArrangement `cbor:"outputs"`
}

func (*SetBusArrangements) Kind() Kind { return KindSetBusArrangements }
func (r *SetBusArrangements) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("inputs", formatArrangements(r.Inputs)),
		slog.String("outputs", formatArrangements(r.Outputs)),
	}
}

type GetBusArrangement struct {
	Target
	Direction vst3.BusDirection `cbor:"direction"`
	Index     int32             `cbor:"index"`
}

func (*GetBusArrangement) Kind() Kind { return KindGetBusArrangement }
func (r *GetBusArrangement) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("direction", int(r.Direction)),
		slog.Int("index", int(r.Index)),
	}
}

type CanProcessSampleSize struct {
	Target
	SymbolicSampleSize int32 `cbor:"symbolic_sample_size"`
}

func (*CanProcessSampleSize) Kind() Kind { return KindCanProcessSampleSize }
func (r *CanProcessSampleSize) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("sample_size", int(r.SymbolicSampleSize))}
}

type GetLatencySamples struct {
	Target
}

func (*GetLatencySamples) Kind() Kind            { return KindGetLatencySamples }
func (*GetLatencySamples) LogAttrs() []slog.Attr { return nil }

type SetupProcessing struct {
	Target
	Setup vst3.ProcessSetup `cbor:"setup"`
}

func (*SetupProcessing) Kind() Kind { return KindSetupProcessing }
func (r *SetupProcessing) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("mode", int(r.Setup.ProcessMode)),
		slog.Int("sample_size", int(r.Setup.SymbolicSampleSize)),
		slog.Int("max_block", int(r.Setup.MaxSamplesPerBlock)),
		slog.Float64("sample_rate", r.Setup.SampleRate),
	}
}

type SetProcessing struct {
	Target
	State bool `cbor:"state"`
}

func (*SetProcessing) Kind() Kind { return KindSetProcessing }
func (r *SetProcessing) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Bool("state", r.State)}
}

// Process carries one audio block.
type Process struct {
	Target
	Data audio.Request `cbor:"data"`
}

func (*Process) Kind() Kind { return KindProcess }

// processRequests recycles inbound Process requests so their sample
// storage carries over from one block to the next.
var processRequests = sync.Pool{
	New: func() any { return new(Process) },
}

// AcquireRequest is NewRequest, except that a Process request may come
// from a pool and hold storage from an earlier block. Hand it back
// with ReleaseRequest once nothing refers to it.
func AcquireRequest(kind Kind) (Request, error) {
	if kind == KindProcess {
		return processRequests.Get().(*Process), nil
	}
	return NewRequest(kind)
}

// ReleaseRequest returns a request obtained from AcquireRequest.
// Decoding leaves fields absent from the payload untouched, so
// everything but the reusable slices is cleared here.
func ReleaseRequest(request Request) {
	process, ok := request.(*Process)
	if !ok {
		return
	}
	*process = Process{Data: audio.Request{
		Inputs:         process.Data.Inputs,
		OutputChannels: process.Data.OutputChannels,
	}}
	processRequests.Put(process)
}
func (r *Process) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("samples", int(r.Data.NumSamples)),
		slog.Int("inputs", len(r.Data.Inputs)),
		slog.Int("outputs", len(r.Data.OutputChannels)),
		slog.Int("parameter_changes", int(r.Data.InputParameterChanges.ParameterCount())),
		slog.Int("events", int(r.Data.InputEvents.EventCount())),
	}
}

type GetTailSamples struct {
	Target
}

func (*GetTailSamples) Kind() Kind            { return KindGetTailSamples }
func (*GetTailSamples) LogAttrs() []slog.Attr { return nil }

func formatArrangements(arrangements []vst3.SpeakerArrangement) string {
	parts := make([]string, len(arrangements))
	for index, arrangement := range arrangements {
		parts[index] = fmtHex(uint64(arrangement))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
