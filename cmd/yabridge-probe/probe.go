// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/sarvex/yabridge/lib/vst3"
)

// settings controls the processing part of a probe.
type settings struct {
	blocks     int
	blockSize  int32
	sampleRate float64
}

// Report is everything the probe learned about a plugin.
type Report struct {
	HostVersion string        `json:"host_version,omitempty"`
	Vendor      string        `json:"vendor"`
	URL         string        `json:"url,omitempty"`
	Email       string        `json:"email,omitempty"`
	Classes     []ClassReport `json:"classes"`
}

// ClassReport describes one exported class. The component fields are
// only filled for audio module classes.
type ClassReport struct {
	CID           string `json:"cid"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	SubCategories string `json:"sub_categories,omitempty"`
	Version       string `json:"version,omitempty"`

	Buses      []BusReport       `json:"buses,omitempty"`
	Parameters []ParameterReport `json:"parameters,omitempty"`
	StateBytes int               `json:"state_bytes,omitempty"`
	Processing *ProcessReport    `json:"processing,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// BusReport describes one audio bus.
type BusReport struct {
	Direction string `json:"direction"`
	Name      string `json:"name"`
	Channels  int32  `json:"channels"`
}

// ParameterReport describes one parameter and its current value.
type ParameterReport struct {
	ID      vst3.ParamID `json:"id"`
	Title   string       `json:"title"`
	Units   string       `json:"units,omitempty"`
	Value   string       `json:"value"`
	Default float64      `json:"default"`
	Flags   int32        `json:"flags"`
}

// ProcessReport summarizes the processing cycles.
type ProcessReport struct {
	Blocks         int       `json:"blocks"`
	BlockSize      int32     `json:"block_size"`
	LatencySamples uint32    `json:"latency_samples"`
	TailSamples    uint32    `json:"tail_samples"`
	InputPeak      float64   `json:"input_peak"`
	OutputPeaks    []float64 `json:"output_peaks"`
}

// probeName is the host name reported to the plugin.
const probeName = "yabridge-probe"

// testTone is the input signal: a 440 Hz sine at half scale.
const (
	testToneFrequency = 440
	testToneAmplitude = 0.5
)

type hostApplication struct{}

func (hostApplication) GetName(name *vst3.String128) vst3.Result {
	*name = vst3.NewString128(probeName)
	return vst3.ResultOK
}

// componentHandler logs what the controller reports back to the host.
type componentHandler struct{}

func (componentHandler) BeginEdit(id vst3.ParamID) vst3.Result {
	slog.Debug("begin edit", "param", id)
	return vst3.ResultOK
}

func (componentHandler) PerformEdit(id vst3.ParamID, value vst3.ParamValue) vst3.Result {
	slog.Debug("perform edit", "param", id, "value", value)
	return vst3.ResultOK
}

func (componentHandler) EndEdit(id vst3.ParamID) vst3.Result {
	slog.Debug("end edit", "param", id)
	return vst3.ResultOK
}

func (componentHandler) RestartComponent(flags vst3.RestartFlags) vst3.Result {
	slog.Info("plugin requested a restart", "flags", int32(flags))
	return vst3.ResultOK
}

// probe walks factory the way a host application scans a plugin. A
// class that fails to load is reported with its error; only a factory
// that cannot describe itself fails the probe.
func probe(factory vst3.PluginFactory, settings settings) (*Report, error) {
	info, result := factory.GetFactoryInfo()
	if !result.OK() {
		return nil, fmt.Errorf("GetFactoryInfo: %s", result)
	}
	report := &Report{Vendor: info.Vendor, URL: info.URL, Email: info.Email}

	if result := factory.SetHostContext(hostApplication{}); !result.OK() && result != vst3.ResultNotImplemented {
		slog.Warn("plugin rejected the host context", "result", result.String())
	}

	for index := range factory.CountClasses() {
		classInfo, result := factory.GetClassInfo(index)
		if !result.OK() {
			return nil, fmt.Errorf("GetClassInfo(%d): %s", index, result)
		}
		class := ClassReport{
			CID:           classInfo.CID.String(),
			Name:          classInfo.Name,
			Category:      classInfo.Category,
			SubCategories: classInfo.SubCategories,
			Version:       classInfo.Version,
		}
		if classInfo.Category == vst3.CategoryAudioEffect {
			if err := probeComponent(factory, classInfo.CID, settings, &class); err != nil {
				class.Error = err.Error()
			}
		}
		report.Classes = append(report.Classes, class)
	}
	return report, nil
}

// probeComponent fills the component fields of class.
func probeComponent(factory vst3.PluginFactory, cid vst3.TUID, settings settings, class *ClassReport) error {
	object, result := factory.CreateInstance(cid, vst3.InterfaceComponent)
	if !result.OK() {
		return fmt.Errorf("CreateInstance: %s", result)
	}
	defer release(object)
	component := object.(vst3.Component)

	if result := component.Initialize(hostApplication{}); !result.OK() {
		return fmt.Errorf("Initialize: %s", result)
	}
	defer component.Terminate()

	for _, direction := range []vst3.BusDirection{vst3.BusDirectionInput, vst3.BusDirectionOutput} {
		for index := range component.GetBusCount(vst3.MediaTypeAudio, direction) {
			bus, result := component.GetBusInfo(vst3.MediaTypeAudio, direction, index)
			if !result.OK() {
				return fmt.Errorf("GetBusInfo(%s, %d): %s", directionName(direction), index, result)
			}
			class.Buses = append(class.Buses, BusReport{
				Direction: directionName(direction),
				Name:      bus.Name.String(),
				Channels:  bus.ChannelCount,
			})
		}
	}

	var state bytes.Buffer
	if result := component.GetState(&state); !result.OK() {
		return fmt.Errorf("GetState: %s", result)
	}
	class.StateBytes = state.Len()

	if err := probeController(factory, component, state.Bytes(), class); err != nil {
		return err
	}

	processor, ok := vst3.Query[vst3.AudioProcessor](object, vst3.InterfaceAudioProcessor)
	if !ok || settings.blocks == 0 {
		return nil
	}
	processing, err := runBlocks(component, processor, settings)
	if err != nil {
		return err
	}
	class.Processing = processing
	return nil
}

// probeController lists the parameters of the component's edit
// controller, which is either a separate class or the component itself.
func probeController(factory vst3.PluginFactory, component vst3.Component, state []byte, class *ClassReport) error {
	controller, separate := vst3.Query[vst3.EditController](component, vst3.InterfaceEditController)
	if !separate {
		controllerCID, result := component.GetControllerClassID()
		if !result.OK() {
			return nil
		}
		object, result := factory.CreateInstance(controllerCID, vst3.InterfaceEditController)
		if !result.OK() {
			return fmt.Errorf("creating the edit controller: %s", result)
		}
		defer release(object)
		controller = object.(vst3.EditController)

		if result := controller.Initialize(hostApplication{}); !result.OK() {
			return fmt.Errorf("initializing the edit controller: %s", result)
		}
		defer controller.Terminate()

		if connected := connect(component, object); connected != nil {
			defer connected()
		}
	}

	if result := controller.SetComponentHandler(componentHandler{}); !result.OK() {
		slog.Warn("edit controller rejected the component handler", "result", result.String())
	}
	defer controller.SetComponentHandler(nil)

	if result := controller.SetComponentState(bytes.NewReader(state)); !result.OK() && result != vst3.ResultNotImplemented {
		return fmt.Errorf("SetComponentState: %s", result)
	}

	for index := range controller.GetParameterCount() {
		info, result := controller.GetParameterInfo(index)
		if !result.OK() {
			return fmt.Errorf("GetParameterInfo(%d): %s", index, result)
		}
		var text vst3.String128
		value := controller.GetParamNormalized(info.ID)
		if result := controller.GetParamStringByValue(info.ID, value, &text); !result.OK() {
			text = vst3.NewString128(fmt.Sprintf("%.3f", value))
		}
		class.Parameters = append(class.Parameters, ParameterReport{
			ID:      info.ID,
			Title:   info.Title.String(),
			Units:   info.Units.String(),
			Value:   text.String(),
			Default: info.DefaultNormalizedValue,
			Flags:   info.Flags,
		})
	}
	return nil
}

// connect joins the connection points of a component and its separate
// controller and returns the function undoing it, or nil when either
// side has no connection point.
func connect(component, controller any) func() {
	componentPoint, ok := vst3.Query[vst3.ConnectionPoint](component, vst3.InterfaceConnectionPoint)
	if !ok {
		return nil
	}
	controllerPoint, ok := vst3.Query[vst3.ConnectionPoint](controller, vst3.InterfaceConnectionPoint)
	if !ok {
		return nil
	}
	if !componentPoint.Connect(controllerPoint).OK() || !controllerPoint.Connect(componentPoint).OK() {
		slog.Warn("connecting the component to its controller failed")
		return nil
	}
	return func() {
		componentPoint.Disconnect(controllerPoint)
		controllerPoint.Disconnect(componentPoint)
	}
}

// runBlocks feeds the test tone through the processor's main buses.
func runBlocks(component vst3.Component, processor vst3.AudioProcessor, settings settings) (*ProcessReport, error) {
	if !processor.CanProcessSampleSize(vst3.SampleSize32).OK() {
		return nil, fmt.Errorf("32-bit processing is not supported")
	}
	inputChannels := mainBusChannels(component, processor, vst3.BusDirectionInput)
	outputChannels := mainBusChannels(component, processor, vst3.BusDirectionOutput)
	if outputChannels == 0 {
		return nil, nil
	}

	setup := vst3.ProcessSetup{
		ProcessMode:        vst3.ProcessModeRealtime,
		SymbolicSampleSize: vst3.SampleSize32,
		MaxSamplesPerBlock: settings.blockSize,
		SampleRate:         settings.sampleRate,
	}
	if result := processor.SetupProcessing(setup); !result.OK() {
		return nil, fmt.Errorf("SetupProcessing: %s", result)
	}
	if result := component.SetActive(true); !result.OK() {
		return nil, fmt.Errorf("SetActive: %s", result)
	}
	defer component.SetActive(false)
	processor.SetProcessing(true)
	defer processor.SetProcessing(false)

	data := &vst3.ProcessData{
		ProcessMode:            vst3.ProcessModeRealtime,
		SymbolicSampleSize:     vst3.SampleSize32,
		NumSamples:             settings.blockSize,
		OutputParameterChanges: &vst3.ParameterChanges{},
		OutputEvents:           &vst3.EventList{},
		ProcessContext: &vst3.ProcessContext{
			State:      vst3.ProcessContextPlaying | vst3.ProcessContextTempoValid,
			SampleRate: settings.sampleRate,
			Tempo:      120,
		},
	}
	if inputChannels > 0 {
		data.Inputs = []vst3.AudioBusBuffers{newBus(inputChannels, settings.blockSize)}
	}
	data.Outputs = []vst3.AudioBusBuffers{newBus(outputChannels, settings.blockSize)}

	report := &ProcessReport{
		Blocks:      settings.blocks,
		BlockSize:   settings.blockSize,
		OutputPeaks: make([]float64, outputChannels),
	}
	var position int64
	for block := range settings.blocks {
		for _, channel := range inputBuffers(data) {
			fillTone(channel, position, settings.sampleRate)
			report.InputPeak = math.Max(report.InputPeak, peak(channel))
		}
		data.ProcessContext.ProjectTimeSamples = position
		data.OutputParameterChanges.Reset()
		data.OutputEvents.Reset()

		if result := processor.Process(data); !result.OK() {
			return nil, fmt.Errorf("Process (block %d): %s", block, result)
		}
		for channel, samples := range data.Outputs[0].Channels32 {
			report.OutputPeaks[channel] = math.Max(report.OutputPeaks[channel], peak(samples))
		}
		position += int64(settings.blockSize)
	}
	report.LatencySamples = processor.GetLatencySamples()
	report.TailSamples = processor.GetTailSamples()
	return report, nil
}

// mainBusChannels returns the channel count of the first audio bus in
// direction, or zero when there is none.
func mainBusChannels(component vst3.Component, processor vst3.AudioProcessor, direction vst3.BusDirection) int32 {
	if component.GetBusCount(vst3.MediaTypeAudio, direction) == 0 {
		return 0
	}
	arrangement, result := processor.GetBusArrangement(direction, 0)
	if !result.OK() {
		return 0
	}
	return arrangement.ChannelCount()
}

func newBus(channels, frames int32) vst3.AudioBusBuffers {
	bus := vst3.AudioBusBuffers{NumChannels: channels, Channels32: make([][]float32, channels)}
	for index := range bus.Channels32 {
		bus.Channels32[index] = make([]float32, frames)
	}
	return bus
}

func inputBuffers(data *vst3.ProcessData) [][]float32 {
	if len(data.Inputs) == 0 {
		return nil
	}
	return data.Inputs[0].Channels32
}

// fillTone writes the test tone starting at sample position.
func fillTone(samples []float32, position int64, sampleRate float64) {
	step := 2 * math.Pi * testToneFrequency / sampleRate
	for index := range samples {
		samples[index] = float32(testToneAmplitude * math.Sin(step*float64(position+int64(index))))
	}
}

func peak(samples []float32) float64 {
	var highest float64
	for _, sample := range samples {
		highest = math.Max(highest, math.Abs(float64(sample)))
	}
	return highest
}

func directionName(direction vst3.BusDirection) string {
	if direction == vst3.BusDirectionInput {
		return "input"
	}
	return "output"
}

// release destroys an object created through a factory. Bridged objects
// are released explicitly; in-process ones may be io.Closers.
func release(object any) {
	switch object := object.(type) {
	case interface{ Release() vst3.Result }:
		object.Release()
	case io.Closer:
		object.Close()
	}
}
