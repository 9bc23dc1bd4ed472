// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package vst3

import (
	"io"
	"strings"
)

// Interface names one capability group a plugin object may implement.
type Interface uint8

const (
	InterfacePluginBase Interface = iota
	InterfaceComponent
	InterfaceAudioProcessor
	InterfaceEditController
	InterfaceConnectionPoint
)

// String returns the SDK interface name.
func (i Interface) String() string {
	switch i {
	case InterfacePluginBase:
		return "IPluginBase"
	case InterfaceComponent:
		return "IComponent"
	case InterfaceAudioProcessor:
		return "IAudioProcessor"
	case InterfaceEditController:
		return "IEditController"
	case InterfaceConnectionPoint:
		return "IConnectionPoint"
	default:
		return "IUnknown"
	}
}

// InterfaceSet is a bitmask of Interface values.
type InterfaceSet uint8

// NewInterfaceSet builds a set from the given interfaces.
func NewInterfaceSet(interfaces ...Interface) InterfaceSet {
	var set InterfaceSet
	for _, iface := range interfaces {
		set |= 1 << iface
	}
	return set
}

// Has reports whether iface is in the set.
func (s InterfaceSet) Has(iface Interface) bool {
	return s&(1<<iface) != 0
}

// String lists the member interface names, e.g. "IComponent|IAudioProcessor".
func (s InterfaceSet) String() string {
	var names []string
	for iface := InterfacePluginBase; iface <= InterfaceConnectionPoint; iface++ {
		if s.Has(iface) {
			names = append(names, iface.String())
		}
	}
	if len(names) == 0 {
		return "<none>"
	}
	return strings.Join(names, "|")
}

// Unknown is implemented by objects that report their capability set
// themselves instead of relying on Go type assertions. Bridge proxies
// implement it.
type Unknown interface {
	Interfaces() InterfaceSet
}

// InterfacesOf returns the capability set of object.
func InterfacesOf(object any) InterfaceSet {
	if unknown, ok := object.(Unknown); ok {
		return unknown.Interfaces()
	}
	var set InterfaceSet
	if _, ok := object.(PluginBase); ok {
		set |= NewInterfaceSet(InterfacePluginBase)
	}
	if _, ok := object.(Component); ok {
		set |= NewInterfaceSet(InterfaceComponent)
	}
	if _, ok := object.(AudioProcessor); ok {
		set |= NewInterfaceSet(InterfaceAudioProcessor)
	}
	if _, ok := object.(EditController); ok {
		set |= NewInterfaceSet(InterfaceEditController)
	}
	if _, ok := object.(ConnectionPoint); ok {
		set |= NewInterfaceSet(InterfaceConnectionPoint)
	}
	return set
}

// Query is the queryInterface equivalent: it returns object as T when
// object supports iface.
//
//	processor, ok := vst3.Query[vst3.AudioProcessor](object, vst3.InterfaceAudioProcessor)
func Query[T any](object any, iface Interface) (T, bool) {
	var zero T
	if !InterfacesOf(object).Has(iface) {
		return zero, false
	}
	typed, ok := object.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// PluginBase is IPluginBase.
type PluginBase interface {
	// Initialize is called once after construction. context is the host
	// application or nil.
	Initialize(context HostApplication) Result
	Terminate() Result
}

// Component is IComponent.
type Component interface {
	PluginBase

	GetControllerClassID() (TUID, Result)
	SetIoMode(mode IoMode) Result
	GetBusCount(mediaType MediaType, direction BusDirection) int32
	GetBusInfo(mediaType MediaType, direction BusDirection, index int32) (BusInfo, Result)
	GetRoutingInfo(in RoutingInfo) (RoutingInfo, Result)
	ActivateBus(mediaType MediaType, direction BusDirection, index int32, state bool) Result
	SetActive(state bool) Result

	// SetState reads a state blob previously produced by GetState.
	SetState(state io.Reader) Result
	// GetState writes the complete component state.
	GetState(state io.Writer) Result
}

// AudioProcessor is IAudioProcessor.
type AudioProcessor interface {
	SetBusArrangements(inputs, outputs []SpeakerArrangement) Result
	GetBusArrangement(direction BusDirection, index int32) (SpeakerArrangement, Result)
	CanProcessSampleSize(symbolicSampleSize int32) Result
	GetLatencySamples() uint32
	SetupProcessing(setup ProcessSetup) Result
	SetProcessing(state bool) Result
	Process(data *ProcessData) Result
	GetTailSamples() uint32
}

// EditController is IEditController.
type EditController interface {
	PluginBase

	SetComponentState(state io.Reader) Result
	SetState(state io.Reader) Result
	GetState(state io.Writer) Result
	GetParameterCount() int32
	GetParameterInfo(index int32) (ParameterInfo, Result)
	GetParamStringByValue(id ParamID, valueNormalized ParamValue, text *String128) Result
	GetParamValueByString(id ParamID, text *String128) (ParamValue, Result)
	NormalizedParamToPlain(id ParamID, valueNormalized ParamValue) ParamValue
	PlainParamToNormalized(id ParamID, plainValue ParamValue) ParamValue
	GetParamNormalized(id ParamID) ParamValue
	SetParamNormalized(id ParamID, value ParamValue) Result

	// SetComponentHandler installs the host's handler, or removes it
	// when handler is nil.
	SetComponentHandler(handler ComponentHandler) Result
}

// ConnectionPoint is IConnectionPoint, used to connect a component to
// its separate edit controller.
type ConnectionPoint interface {
	Connect(other ConnectionPoint) Result
	Disconnect(other ConnectionPoint) Result
}

// PluginFactory is IPluginFactory3 minus the Unicode class info getter,
// which ClassInfo already covers.
type PluginFactory interface {
	GetFactoryInfo() (FactoryInfo, Result)
	CountClasses() int32
	GetClassInfo(index int32) (ClassInfo, Result)

	// CreateInstance constructs an object of class cid and returns it
	// when it supports iface. Unsupported classes or interfaces return
	// ResultNoInterface.
	CreateInstance(cid TUID, iface Interface) (any, Result)
	SetHostContext(context HostApplication) Result
}

// ComponentHandler is IComponentHandler, implemented by the host and
// called by the edit controller.
type ComponentHandler interface {
	BeginEdit(id ParamID) Result
	PerformEdit(id ParamID, valueNormalized ParamValue) Result
	EndEdit(id ParamID) Result
	RestartComponent(flags RestartFlags) Result
}

// HostApplication is IHostApplication, the host context passed to
// Initialize and SetHostContext.
type HostApplication interface {
	GetName(name *String128) Result
}
