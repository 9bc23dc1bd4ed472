// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package testplugin

import (
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sarvex/yabridge/lib/vst3"
)

// Processor is the audio half of the plugin.
type Processor struct {
	options Options

	gain   atomic.Uint64 // float64 bits, linear
	bypass atomic.Bool

	mu          sync.Mutex
	hostContext vst3.HostApplication
	active      bool
	processing  bool
	setup       vst3.ProcessSetup
	channels    int32
	busActive   [2]bool
	peer        vst3.ConnectionPoint
	padding     []byte
	closed      bool
}

var (
	_ vst3.Component       = (*Processor)(nil)
	_ vst3.AudioProcessor  = (*Processor)(nil)
	_ vst3.ConnectionPoint = (*Processor)(nil)
	_ io.Closer            = (*Processor)(nil)
)

func newProcessor(options Options) *Processor {
	p := &Processor{options: options, channels: 2, busActive: [2]bool{true, true}}
	p.gain.Store(math.Float64bits(1))
	if options.StatePadding > 0 {
		p.padding = filler(options.StatePadding)
	}
	return p
}

// Gain returns the linear gain currently applied.
func (p *Processor) Gain() float64 { return math.Float64frombits(p.gain.Load()) }

// Closed reports whether Close has been called.
func (p *Processor) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close releases the processor. The plugin host calls it when the
// instance is destroyed.
func (p *Processor) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *Processor) Initialize(context vst3.HostApplication) vst3.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hostContext = context
	return vst3.ResultOK
}

func (p *Processor) Terminate() vst3.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hostContext = nil
	return vst3.ResultOK
}

// HostName asks the host context passed to Initialize for its name.
func (p *Processor) HostName() (string, vst3.Result) {
	p.mu.Lock()
	host := p.hostContext
	p.mu.Unlock()
	if host == nil {
		return "", vst3.ResultNotInitialized
	}
	var name vst3.String128
	result := host.GetName(&name)
	return name.String(), result
}

func (p *Processor) GetControllerClassID() (vst3.TUID, vst3.Result) {
	return ControllerCID, vst3.ResultOK
}

func (p *Processor) SetIoMode(vst3.IoMode) vst3.Result { return vst3.ResultNotImplemented }

func (p *Processor) GetBusCount(mediaType vst3.MediaType, direction vst3.BusDirection) int32 {
	switch {
	case mediaType == vst3.MediaTypeAudio:
		return 1
	case mediaType == vst3.MediaTypeEvent && direction == vst3.BusDirectionInput:
		return 1
	default:
		return 0
	}
}

func (p *Processor) GetBusInfo(mediaType vst3.MediaType, direction vst3.BusDirection, index int32) (vst3.BusInfo, vst3.Result) {
	if index != 0 || p.GetBusCount(mediaType, direction) == 0 {
		return vst3.BusInfo{}, vst3.ResultInvalidArgument
	}
	info := vst3.BusInfo{
		MediaType: mediaType,
		Direction: direction,
		BusType:   vst3.BusTypeMain,
		Flags:     vst3.BusFlagDefaultActive,
	}
	switch {
	case mediaType == vst3.MediaTypeEvent:
		info.ChannelCount = 16
		info.Name = vst3.NewString128("MIDI In")
	case direction == vst3.BusDirectionInput:
		info.ChannelCount = p.channelCount()
		info.Name = vst3.NewString128("Input")
	default:
		info.ChannelCount = p.channelCount()
		info.Name = vst3.NewString128("Output")
	}
	return info, vst3.ResultOK
}

func (p *Processor) GetRoutingInfo(in vst3.RoutingInfo) (vst3.RoutingInfo, vst3.Result) {
	if in.MediaType != vst3.MediaTypeAudio || in.BusIndex != 0 || in.Channel < -1 || in.Channel >= p.channelCount() {
		return vst3.RoutingInfo{}, vst3.ResultFalse
	}
	return in, vst3.ResultOK
}

func (p *Processor) ActivateBus(mediaType vst3.MediaType, direction vst3.BusDirection, index int32, state bool) vst3.Result {
	if mediaType != vst3.MediaTypeAudio || index != 0 {
		return vst3.ResultInvalidArgument
	}
	p.mu.Lock()
	p.busActive[direction&1] = state
	p.mu.Unlock()
	return vst3.ResultOK
}

func (p *Processor) SetActive(state bool) vst3.Result {
	p.mu.Lock()
	p.active = state
	p.mu.Unlock()
	return vst3.ResultOK
}

// Active reports the last SetActive state.
func (p *Processor) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Processor) SetState(state io.Reader) vst3.Result {
	decoded, err := readProcessorState(state)
	if err != nil {
		return vst3.ResultInvalidArgument
	}
	p.gain.Store(math.Float64bits(decoded.gain))
	p.bypass.Store(decoded.bypass)
	p.mu.Lock()
	p.padding = decoded.padding
	p.mu.Unlock()
	return vst3.ResultOK
}

func (p *Processor) GetState(state io.Writer) vst3.Result {
	p.mu.Lock()
	padding := p.padding
	p.mu.Unlock()
	current := processorState{gain: p.Gain(), bypass: p.bypass.Load(), padding: padding}
	if err := current.write(state); err != nil {
		return vst3.ResultInternalError
	}
	return vst3.ResultOK
}

func (p *Processor) SetBusArrangements(inputs, outputs []vst3.SpeakerArrangement) vst3.Result {
	if len(inputs) != 1 || len(outputs) != 1 || inputs[0] != outputs[0] {
		return vst3.ResultFalse
	}
	channels := inputs[0].ChannelCount()
	if channels < 1 || channels > 2 {
		return vst3.ResultFalse
	}
	p.mu.Lock()
	p.channels = channels
	p.mu.Unlock()
	return vst3.ResultTrue
}

func (p *Processor) GetBusArrangement(direction vst3.BusDirection, index int32) (vst3.SpeakerArrangement, vst3.Result) {
	if index != 0 {
		return vst3.SpeakerArrangementEmpty, vst3.ResultInvalidArgument
	}
	if p.channelCount() == 1 {
		return vst3.SpeakerArrangementMono, vst3.ResultOK
	}
	return vst3.SpeakerArrangementStereo, vst3.ResultOK
}

func (p *Processor) CanProcessSampleSize(symbolicSampleSize int32) vst3.Result {
	return vst3.ResultFromBool(symbolicSampleSize == vst3.SampleSize32 || symbolicSampleSize == vst3.SampleSize64)
}

func (p *Processor) GetLatencySamples() uint32 { return p.options.LatencySamples }

func (p *Processor) SetupProcessing(setup vst3.ProcessSetup) vst3.Result {
	if p.CanProcessSampleSize(setup.SymbolicSampleSize) != vst3.ResultTrue || setup.MaxSamplesPerBlock <= 0 || setup.SampleRate <= 0 {
		return vst3.ResultInvalidArgument
	}
	p.mu.Lock()
	p.setup = setup
	p.mu.Unlock()
	return vst3.ResultOK
}

func (p *Processor) SetProcessing(state bool) vst3.Result {
	p.mu.Lock()
	p.processing = state
	p.mu.Unlock()
	return vst3.ResultOK
}

// Process applies the gain to every channel of the main bus. Parameter
// changes are applied at block granularity: the last point of each
// queue wins. The block's output peak is reported on ParamPeak and
// input events are passed through.
func (p *Processor) Process(data *vst3.ProcessData) vst3.Result {
	if changes := data.InputParameterChanges; changes != nil {
		for _, queue := range changes.Queues {
			if len(queue.Points) == 0 {
				continue
			}
			last := queue.Points[len(queue.Points)-1].Value
			switch queue.ID {
			case ParamGain:
				p.gain.Store(math.Float64bits(gainPlain(last)))
			case ParamBypass:
				p.bypass.Store(last >= 0.5)
			}
		}
	}

	gain := p.Gain()
	if p.bypass.Load() {
		gain = 1
	}
	var peak float64
	for busIndex := range data.Outputs {
		out := &data.Outputs[busIndex]
		var in *vst3.AudioBusBuffers
		if busIndex < len(data.Inputs) {
			in = &data.Inputs[busIndex]
			out.SilenceFlags = in.SilenceFlags
		}
		for channel := range out.Channels32 {
			for frame := range out.Channels32[channel] {
				var sample float32
				if in != nil && channel < len(in.Channels32) {
					sample = in.Channels32[channel][frame]
				}
				sample *= float32(gain)
				out.Channels32[channel][frame] = sample
				peak = max(peak, math.Abs(float64(sample)))
			}
		}
		for channel := range out.Channels64 {
			for frame := range out.Channels64[channel] {
				var sample float64
				if in != nil && channel < len(in.Channels64) {
					sample = in.Channels64[channel][frame]
				}
				sample *= gain
				out.Channels64[channel][frame] = sample
				peak = max(peak, math.Abs(sample))
			}
		}
	}

	if data.OutputParameterChanges != nil {
		queue, _ := data.OutputParameterChanges.AddParameterData(ParamPeak)
		queue.AddPoint(0, vst3.ParamValue(min(peak, 1)))
	}
	if data.OutputEvents != nil && data.InputEvents != nil {
		for _, event := range data.InputEvents.Events {
			data.OutputEvents.AddEvent(event)
		}
	}
	return vst3.ResultOK
}

func (p *Processor) GetTailSamples() uint32 { return 0 }

func (p *Processor) Connect(other vst3.ConnectionPoint) vst3.Result {
	if other == nil {
		return vst3.ResultInvalidArgument
	}
	p.mu.Lock()
	p.peer = other
	p.mu.Unlock()
	return vst3.ResultOK
}

func (p *Processor) Disconnect(other vst3.ConnectionPoint) vst3.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer == nil || p.peer != other {
		return vst3.ResultInvalidArgument
	}
	p.peer = nil
	return vst3.ResultOK
}

// Peer returns the connection point passed to Connect.
func (p *Processor) Peer() vst3.ConnectionPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer
}

func (p *Processor) channelCount() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels
}
