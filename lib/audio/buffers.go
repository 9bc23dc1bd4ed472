// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package audio

import (
	"fmt"

	"github.com/sarvex/yabridge/lib/vst3"
)

// Layout is the channel count of every audio bus, in bus order.
type Layout struct {
	Inputs  []int32
	Outputs []int32
}

// Buffers is the plugin-side storage for one instance's processing
// cycles. It is not safe for concurrent use; the host never calls
// process concurrently on one instance.
type Buffers struct {
	setup  vst3.ProcessSetup
	layout Layout
	width  int

	// Full-length channel storage, bus then channel.
	inputs32, outputs32 [][][]float32
	inputs64, outputs64 [][][]float64

	data         vst3.ProcessData
	outputParams vst3.ParameterChanges
	outputEvents vst3.EventList
	response     Response
}

// Configure allocates storage for blocks of up to
// setup.MaxSamplesPerBlock frames in the given layout. It replaces any
// earlier configuration.
func (b *Buffers) Configure(setup vst3.ProcessSetup, layout Layout) error {
	width, err := SampleBytes(setup.SymbolicSampleSize)
	if err != nil {
		return err
	}
	if setup.MaxSamplesPerBlock < 0 {
		return fmt.Errorf("negative maximum block size %d", setup.MaxSamplesPerBlock)
	}

	b.setup = setup
	b.layout = Layout{
		Inputs:  append([]int32(nil), layout.Inputs...),
		Outputs: append([]int32(nil), layout.Outputs...),
	}
	b.width = width

	frames := int(setup.MaxSamplesPerBlock)
	b.inputs32, b.outputs32, b.inputs64, b.outputs64 = nil, nil, nil, nil
	if width == 4 {
		b.inputs32 = allocate[float32](b.layout.Inputs, frames)
		b.outputs32 = allocate[float32](b.layout.Outputs, frames)
	} else {
		b.inputs64 = allocate[float64](b.layout.Inputs, frames)
		b.outputs64 = allocate[float64](b.layout.Outputs, frames)
	}

	b.data = vst3.ProcessData{
		Inputs:  busBuffers(b.layout.Inputs, width),
		Outputs: busBuffers(b.layout.Outputs, width),
	}
	b.response.Outputs = resize(b.response.Outputs, len(b.layout.Outputs))
	return nil
}

// Configured reports whether Configure has succeeded since the last
// Reset.
func (b *Buffers) Configured() bool { return b.width != 0 }

// Reset forgets the configuration. Load fails until Configure is
// called again.
func (b *Buffers) Reset() {
	*b = Buffers{}
}

// Layout returns the configured layout.
func (b *Buffers) Layout() Layout { return b.layout }

// Load validates request against the configured layout and returns a
// ProcessData view of it. The returned value and every buffer it
// references stay owned by b and are overwritten by the next Load.
// Output channels are zeroed.
func (b *Buffers) Load(request *Request) (*vst3.ProcessData, error) {
	if !b.Configured() {
		return nil, fmt.Errorf("%w: processing has not been set up", ErrLayoutMismatch)
	}
	if request.SymbolicSampleSize != b.setup.SymbolicSampleSize {
		return nil, fmt.Errorf("%w: sample size %d, set up for %d",
			ErrLayoutMismatch, request.SymbolicSampleSize, b.setup.SymbolicSampleSize)
	}
	if request.NumSamples < 0 || request.NumSamples > b.setup.MaxSamplesPerBlock {
		return nil, fmt.Errorf("%w: block of %d frames, maximum is %d",
			ErrLayoutMismatch, request.NumSamples, b.setup.MaxSamplesPerBlock)
	}
	if len(request.Inputs) != len(b.layout.Inputs) {
		return nil, fmt.Errorf("%w: %d input buses, expected %d",
			ErrLayoutMismatch, len(request.Inputs), len(b.layout.Inputs))
	}
	if len(request.OutputChannels) != len(b.layout.Outputs) {
		return nil, fmt.Errorf("%w: %d output buses, expected %d",
			ErrLayoutMismatch, len(request.OutputChannels), len(b.layout.Outputs))
	}
	for index, channels := range request.OutputChannels {
		if channels != b.layout.Outputs[index] {
			return nil, fmt.Errorf("%w: output bus %d has %d channels, expected %d",
				ErrLayoutMismatch, index, channels, b.layout.Outputs[index])
		}
	}

	frames := int(request.NumSamples)
	data := &b.data
	data.ProcessMode = request.ProcessMode
	data.SymbolicSampleSize = request.SymbolicSampleSize
	data.NumSamples = request.NumSamples

	for index := range request.Inputs {
		bus := &data.Inputs[index]
		bus.NumChannels = request.Inputs[index].Channels
		if bus.NumChannels != b.layout.Inputs[index] {
			return nil, fmt.Errorf("%w: input bus %d has %d channels, expected %d",
				ErrLayoutMismatch, index, bus.NumChannels, b.layout.Inputs[index])
		}
		b.sliceChannels(bus, index, frames, true)
		if err := decodeBus(bus, &request.Inputs[index], frames, b.width); err != nil {
			return nil, fmt.Errorf("input bus %d: %w", index, err)
		}
	}
	for index := range data.Outputs {
		bus := &data.Outputs[index]
		bus.SilenceFlags = 0
		b.sliceChannels(bus, index, frames, false)
		for _, channel := range bus.Channels32 {
			clear(channel)
		}
		for _, channel := range bus.Channels64 {
			clear(channel)
		}
	}

	data.InputParameterChanges = request.InputParameterChanges
	data.InputEvents = request.InputEvents
	data.ProcessContext = request.ProcessContext

	data.OutputParameterChanges = nil
	if request.OutputParameterChangesSupported {
		b.outputParams.Reset()
		data.OutputParameterChanges = &b.outputParams
	}
	data.OutputEvents = nil
	if request.OutputEventsSupported {
		b.outputEvents.Reset()
		data.OutputEvents = &b.outputEvents
	}
	return data, nil
}

// Store captures the outputs of the last loaded block. The returned
// response is owned by b and overwritten by the next Store.
func (b *Buffers) Store() (*Response, error) {
	response := &b.response
	frames := int(b.data.NumSamples)
	for index := range b.data.Outputs {
		if err := encodeBus(&response.Outputs[index], &b.data.Outputs[index], frames, b.width); err != nil {
			return nil, fmt.Errorf("output bus %d: %w", index, err)
		}
	}
	response.OutputParameterChanges = b.data.OutputParameterChanges
	response.OutputEvents = b.data.OutputEvents
	return response, nil
}

// sliceChannels points the channel slices of bus at the first frames
// samples of the preallocated storage.
func (b *Buffers) sliceChannels(bus *vst3.AudioBusBuffers, index, frames int, input bool) {
	if b.width == 4 {
		storage := b.outputs32
		if input {
			storage = b.inputs32
		}
		for channel := range bus.Channels32 {
			bus.Channels32[channel] = storage[index][channel][:frames]
		}
		return
	}
	storage := b.outputs64
	if input {
		storage = b.inputs64
	}
	for channel := range bus.Channels64 {
		bus.Channels64[channel] = storage[index][channel][:frames]
	}
}

func allocate[F float32 | float64](channels []int32, frames int) [][][]F {
	buses := make([][][]F, len(channels))
	for index, count := range channels {
		backing := make([]F, int(count)*frames)
		buses[index] = make([][]F, count)
		for channel := range buses[index] {
			buses[index][channel] = backing[channel*frames : (channel+1)*frames : (channel+1)*frames]
		}
	}
	return buses
}

func busBuffers(channels []int32, width int) []vst3.AudioBusBuffers {
	buses := make([]vst3.AudioBusBuffers, len(channels))
	for index, count := range channels {
		buses[index].NumChannels = count
		if width == 4 {
			buses[index].Channels32 = make([][]float32, count)
		} else {
			buses[index].Channels64 = make([][]float64, count)
		}
	}
	return buses
}
