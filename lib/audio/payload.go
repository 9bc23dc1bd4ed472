// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package audio

import (
	"errors"
	"fmt"

	"github.com/sarvex/yabridge/lib/vst3"
)

// ErrLayoutMismatch is returned when a block does not match the
// negotiated bus layout.
var ErrLayoutMismatch = errors.New("audio block does not match the negotiated layout")

// Bus is the wire form of one audio bus.
type Bus struct {
	SilenceFlags uint64  `cbor:"silence_flags"`
	Channels     int32   `cbor:"channels"`
	Samples      Samples `cbor:"samples"`
}

// Request is the wire form of the arguments of one process call.
type Request struct {
	ProcessMode        int32 `cbor:"process_mode"`
	SymbolicSampleSize int32 `cbor:"symbolic_sample_size"`
	NumSamples         int32 `cbor:"num_samples"`

	Inputs []Bus `cbor:"inputs"`
	// OutputChannels lists the channel count of every output bus. The
	// plugin side allocates the output storage.
	OutputChannels []int32 `cbor:"output_channels"`

	InputParameterChanges           *vst3.ParameterChanges `cbor:"input_parameter_changes,omitempty"`
	OutputParameterChangesSupported bool                   `cbor:"output_parameter_changes_supported"`
	InputEvents                     *vst3.EventList        `cbor:"input_events,omitempty"`
	OutputEventsSupported           bool                   `cbor:"output_events_supported"`
	ProcessContext                  *vst3.ProcessContext   `cbor:"process_context,omitempty"`
}

// Response is the wire form of the outputs of one process call.
type Response struct {
	Outputs                []Bus                  `cbor:"outputs"`
	OutputParameterChanges *vst3.ParameterChanges `cbor:"output_parameter_changes,omitempty"`
	OutputEvents           *vst3.EventList        `cbor:"output_events,omitempty"`
}

// SampleBytes returns the width of one sample for a symbolic sample
// size.
func SampleBytes(symbolicSampleSize int32) (int, error) {
	switch symbolicSampleSize {
	case vst3.SampleSize32:
		return 4, nil
	case vst3.SampleSize64:
		return 8, nil
	default:
		return 0, fmt.Errorf("unknown symbolic sample size %d", symbolicSampleSize)
	}
}

// Encode fills r from data. Sample storage already held by r is reused.
// The parameter changes, events and process context are referenced, not
// copied, so r must be sent before data changes.
func (r *Request) Encode(data *vst3.ProcessData) error {
	width, err := SampleBytes(data.SymbolicSampleSize)
	if err != nil {
		return err
	}
	if data.NumSamples < 0 {
		return fmt.Errorf("negative block length %d", data.NumSamples)
	}

	r.ProcessMode = data.ProcessMode
	r.SymbolicSampleSize = data.SymbolicSampleSize
	r.NumSamples = data.NumSamples

	r.Inputs = resize(r.Inputs, len(data.Inputs))
	for index := range data.Inputs {
		if err := encodeBus(&r.Inputs[index], &data.Inputs[index], int(data.NumSamples), width); err != nil {
			return fmt.Errorf("input bus %d: %w", index, err)
		}
	}

	r.OutputChannels = r.OutputChannels[:0]
	for _, bus := range data.Outputs {
		r.OutputChannels = append(r.OutputChannels, bus.NumChannels)
	}

	r.InputParameterChanges = data.InputParameterChanges
	r.OutputParameterChangesSupported = data.OutputParameterChanges != nil
	r.InputEvents = data.InputEvents
	r.OutputEventsSupported = data.OutputEvents != nil
	r.ProcessContext = data.ProcessContext
	return nil
}

// Apply copies the outputs in r into the host's buffers in data. The
// output bus and channel counts must match.
func (r *Response) Apply(data *vst3.ProcessData) error {
	width, err := SampleBytes(data.SymbolicSampleSize)
	if err != nil {
		return err
	}
	if len(r.Outputs) != len(data.Outputs) {
		return fmt.Errorf("%w: %d output buses returned, host has %d",
			ErrLayoutMismatch, len(r.Outputs), len(data.Outputs))
	}
	for index := range r.Outputs {
		if err := decodeBus(&data.Outputs[index], &r.Outputs[index], int(data.NumSamples), width); err != nil {
			return fmt.Errorf("output bus %d: %w", index, err)
		}
	}

	// The host's output containers hold this block's outputs only.
	if data.OutputParameterChanges != nil {
		data.OutputParameterChanges.Reset()
		if r.OutputParameterChanges != nil {
			for _, queue := range r.OutputParameterChanges.Queues {
				target, _ := data.OutputParameterChanges.AddParameterData(queue.ID)
				for _, point := range queue.Points {
					target.AddPoint(point.SampleOffset, point.Value)
				}
			}
		}
	}
	if data.OutputEvents != nil {
		data.OutputEvents.Reset()
		if r.OutputEvents != nil {
			for _, event := range r.OutputEvents.Events {
				data.OutputEvents.AddEvent(event)
			}
		}
	}
	return nil
}

// encodeBus serializes the first samples frames of every channel of src.
func encodeBus(dst *Bus, src *vst3.AudioBusBuffers, samples, width int) error {
	channels := int(src.NumChannels)
	if channels < 0 {
		return fmt.Errorf("negative channel count %d", channels)
	}

	dst.SilenceFlags = src.SilenceFlags
	dst.Channels = src.NumChannels
	dst.Samples = dst.Samples[:0]
	dst.Samples = grow(dst.Samples, channels*samples*width)

	for channel := range channels {
		if width == 4 {
			if channel >= len(src.Channels32) || len(src.Channels32[channel]) < samples {
				return fmt.Errorf("channel %d holds fewer than %d samples", channel, samples)
			}
			dst.Samples = appendFloat32(dst.Samples, src.Channels32[channel][:samples])
		} else {
			if channel >= len(src.Channels64) || len(src.Channels64[channel]) < samples {
				return fmt.Errorf("channel %d holds fewer than %d samples", channel, samples)
			}
			dst.Samples = appendFloat64(dst.Samples, src.Channels64[channel][:samples])
		}
	}
	return nil
}

// decodeBus writes the samples of src into the channels of dst.
func decodeBus(dst *vst3.AudioBusBuffers, src *Bus, samples, width int) error {
	if src.Channels != dst.NumChannels {
		return fmt.Errorf("%w: %d channels on the wire, %d in the buffer",
			ErrLayoutMismatch, src.Channels, dst.NumChannels)
	}
	channelBytes := samples * width
	if len(src.Samples) != int(src.Channels)*channelBytes {
		return fmt.Errorf("%w: %d sample bytes for %d channels of %d frames",
			ErrLayoutMismatch, len(src.Samples), src.Channels, samples)
	}

	dst.SilenceFlags = src.SilenceFlags
	for channel := range int(src.Channels) {
		raw := src.Samples[channel*channelBytes : (channel+1)*channelBytes]
		if width == 4 {
			if channel >= len(dst.Channels32) || len(dst.Channels32[channel]) < samples {
				return fmt.Errorf("channel %d holds fewer than %d samples", channel, samples)
			}
			decodeFloat32(dst.Channels32[channel][:samples], raw)
		} else {
			if channel >= len(dst.Channels64) || len(dst.Channels64[channel]) < samples {
				return fmt.Errorf("channel %d holds fewer than %d samples", channel, samples)
			}
			decodeFloat64(dst.Channels64[channel][:samples], raw)
		}
	}
	return nil
}

// resize returns s with length n, keeping existing elements and their
// storage where possible.
func resize[T any](s []T, n int) []T {
	if cap(s) >= n {
		return s[:n]
	}
	return append(s[:cap(s)], make([]T, n-cap(s))...)
}

func grow(s []byte, n int) []byte {
	if cap(s)-len(s) >= n {
		return s
	}
	grown := make([]byte, len(s), len(s)+n)
	copy(grown, s)
	return grown
}
