// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package testplugin

import (
	"sync"

	"github.com/sarvex/yabridge/lib/vst3"
)

// Class ids of the exported classes.
var (
	ProcessorCID  = vst3.TUID{0x59, 0x42, 0x47, 0x61, 0x69, 0x6e, 0x50, 0x72, 0x6f, 0x63, 0x65, 0x73, 0x73, 0x6f, 0x72, 0x01}
	ControllerCID = vst3.TUID{0x59, 0x42, 0x47, 0x61, 0x69, 0x6e, 0x43, 0x74, 0x72, 0x6c, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// Options tunes the plugin for tests.
type Options struct {
	// StatePadding appends this many bytes of deterministic filler to
	// every state blob, standing in for an embedded sample library.
	StatePadding int

	// LatencySamples is reported by GetLatencySamples.
	LatencySamples uint32
}

// Factory is the plugin factory.
type Factory struct {
	options Options

	mu          sync.Mutex
	hostContext vst3.HostApplication
	processors  []*Processor
	controllers []*Controller
}

var _ vst3.PluginFactory = (*Factory)(nil)

// NewFactory returns a factory configured by options.
func NewFactory(options Options) *Factory {
	return &Factory{options: options}
}

// GetPluginFactory is the entry point the Go plugin loader resolves.
func GetPluginFactory() vst3.PluginFactory {
	return NewFactory(Options{})
}

func (f *Factory) GetFactoryInfo() (vst3.FactoryInfo, vst3.Result) {
	return vst3.FactoryInfo{
		Vendor: "yabridge",
		URL:    "https://github.com/sarvex/yabridge",
		Email:  "noreply@example.com",
	}, vst3.ResultOK
}

func (f *Factory) CountClasses() int32 { return 2 }

func (f *Factory) GetClassInfo(index int32) (vst3.ClassInfo, vst3.Result) {
	switch index {
	case 0:
		return vst3.ClassInfo{
			CID:           ProcessorCID,
			Cardinality:   0x7fffffff,
			Category:      vst3.CategoryAudioEffect,
			Name:          "Gain",
			SubCategories: "Fx|Tools",
			Vendor:        "yabridge",
			Version:       "1.0.0",
			SDKVersion:    "VST 3.7",
		}, vst3.ResultOK
	case 1:
		return vst3.ClassInfo{
			CID:         ControllerCID,
			Cardinality: 0x7fffffff,
			Category:    vst3.CategoryComponentController,
			Name:        "Gain Controller",
			Vendor:      "yabridge",
			Version:     "1.0.0",
			SDKVersion:  "VST 3.7",
		}, vst3.ResultOK
	default:
		return vst3.ClassInfo{}, vst3.ResultInvalidArgument
	}
}

func (f *Factory) CreateInstance(cid vst3.TUID, iface vst3.Interface) (any, vst3.Result) {
	var object any
	switch cid {
	case ProcessorCID:
		processor := newProcessor(f.options)
		f.mu.Lock()
		f.processors = append(f.processors, processor)
		f.mu.Unlock()
		object = processor
	case ControllerCID:
		controller := newController(f.options)
		f.mu.Lock()
		f.controllers = append(f.controllers, controller)
		f.mu.Unlock()
		object = controller
	default:
		return nil, vst3.ResultNoInterface
	}
	if !vst3.InterfacesOf(object).Has(iface) {
		return nil, vst3.ResultNoInterface
	}
	return object, vst3.ResultOK
}

func (f *Factory) SetHostContext(context vst3.HostApplication) vst3.Result {
	f.mu.Lock()
	f.hostContext = context
	f.mu.Unlock()
	return vst3.ResultOK
}

// HostContext returns the context passed to SetHostContext.
func (f *Factory) HostContext() vst3.HostApplication {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hostContext
}

// Processors returns every processor created so far.
func (f *Factory) Processors() []*Processor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Processor(nil), f.processors...)
}

// Controllers returns every controller created so far.
func (f *Factory) Controllers() []*Controller {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Controller(nil), f.controllers...)
}
