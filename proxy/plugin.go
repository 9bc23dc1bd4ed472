// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"io"
	"sync"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/protocol"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// PluginProxy is the native stand-in for one object in the plugin host
// process. It has every vst3 method, but Interfaces reports only what
// the real object supports, and only those methods reach the plugin
// with a meaningful answer.
type PluginProxy struct {
	client     *Client
	id         registry.ID
	interfaces vst3.InterfaceSet

	// Audio blocks reuse one request and one response.
	processMu    sync.Mutex
	process      protocol.Process
	processed    protocol.ProcessResponse
	outputParams vst3.ParameterChanges
}

var (
	_ vst3.Unknown         = (*PluginProxy)(nil)
	_ vst3.Component       = (*PluginProxy)(nil)
	_ vst3.AudioProcessor  = (*PluginProxy)(nil)
	_ vst3.EditController  = (*PluginProxy)(nil)
	_ vst3.ConnectionPoint = (*PluginProxy)(nil)
)

// ID returns the instance id issued by the plugin host process.
func (p *PluginProxy) ID() registry.ID { return p.id }

// Interfaces returns the capability set of the real object.
func (p *PluginProxy) Interfaces() vst3.InterfaceSet { return p.interfaces }

// Release destroys the real object and forgets the proxy. Calls made
// afterwards fail locally with kInvalidArgument.
func (p *PluginProxy) Release() vst3.Result {
	if _, err := p.client.proxies.Release(p.id); err != nil {
		return vst3.ResultInvalidArgument
	}
	p.client.callbacks.Forget(p.id)
	if !p.client.call(&protocol.Destruct{Target: p.target()}, &protocol.Ack{}) {
		return vst3.ResultInternalError
	}
	return vst3.ResultOK
}

func (p *PluginProxy) target() protocol.Target { return protocol.To(p.id) }

// released reports whether p has been released, logging the call that
// found out. The plugin host process no longer knows the id, and a
// request naming it would be a protocol violation that ends the
// session. A Release racing another call on the same proxy is the
// caller's error.
func (p *PluginProxy) released(kind protocol.Kind) bool {
	current, err := p.client.proxies.Resolve(p.id)
	if err == nil && current == p {
		return false
	}
	p.client.logger.Warn("call on a released plugin object", "call", kind.Label(), "instance", uint64(p.id))
	return true
}

// call sends request on behalf of p. A released proxy fails locally
// with kInvalidArgument and a failed call with kInternalError.
func (p *PluginProxy) call(request protocol.Request, response protocol.Response) vst3.Result {
	if p.released(request.Kind()) {
		return vst3.ResultInvalidArgument
	}
	if !p.client.call(request, response) {
		return vst3.ResultInternalError
	}
	return vst3.ResultOK
}

// result sends a request answered by a bare result code.
func (p *PluginProxy) result(request protocol.Request) vst3.Result {
	var response protocol.ResultResponse
	if result := p.call(request, &response); !result.OK() {
		return result
	}
	return response.Result
}

// value sends a request answered by a parameter value.
func (p *PluginProxy) value(request protocol.Request) vst3.ParamValue {
	var response protocol.ValueResponse
	if result := p.call(request, &response); !result.OK() {
		return 0
	}
	return response.Value
}

// state sends a request answered by a state blob and writes the blob
// to w.
func (p *PluginProxy) state(request protocol.Request, w io.Writer) vst3.Result {
	var response protocol.StateResponse
	if result := p.call(request, &response); !result.OK() {
		return result
	}
	if !response.Result.OK() {
		return response.Result
	}
	data, err := response.State.Unpack()
	if err != nil {
		p.client.logger.Error("plugin state damaged in transit", "instance", uint64(p.id), "error", err)
		return vst3.ResultInternalError
	}
	if _, err := w.Write(data); err != nil {
		return vst3.ResultInternalError
	}
	return vst3.ResultOK
}

// pack reads a state stream to its end and packs it for the wire.
func (p *PluginProxy) pack(r io.Reader) (codec.Blob, bool) {
	data, err := io.ReadAll(r)
	if err != nil {
		p.client.logger.Error("reading plugin state from host stream", "instance", uint64(p.id), "error", err)
		return codec.Blob{}, false
	}
	blob, err := codec.PackBlob(data, p.client.statePolicy)
	if err != nil {
		p.client.logger.Error("packing plugin state", "instance", uint64(p.id), "error", err)
		return codec.Blob{}, false
	}
	return blob, true
}

// IPluginBase

func (p *PluginProxy) Initialize(context vst3.HostApplication) vst3.Result {
	if p.released(protocol.KindInitialize) {
		return vst3.ResultInvalidArgument
	}
	p.client.callbacks.SetHostContext(p.id, context)
	return p.result(&protocol.Initialize{Target: p.target(), HasHostContext: context != nil})
}

func (p *PluginProxy) Terminate() vst3.Result {
	result := p.result(&protocol.Terminate{Target: p.target()})
	p.client.callbacks.SetHostContext(p.id, nil)
	return result
}

// IComponent

func (p *PluginProxy) GetControllerClassID() (vst3.TUID, vst3.Result) {
	var response protocol.ClassIDResponse
	if result := p.call(&protocol.GetControllerClassID{Target: p.target()}, &response); !result.OK() {
		return vst3.TUID{}, result
	}
	return response.CID, response.Result
}

func (p *PluginProxy) SetIoMode(mode vst3.IoMode) vst3.Result {
	return p.result(&protocol.SetIoMode{Target: p.target(), Mode: mode})
}

func (p *PluginProxy) GetBusCount(mediaType vst3.MediaType, direction vst3.BusDirection) int32 {
	var response protocol.CountResponse
	if result := p.call(&protocol.GetBusCount{Target: p.target(), MediaType: mediaType, Direction: direction}, &response); !result.OK() {
		return 0
	}
	return response.Count
}

func (p *PluginProxy) GetBusInfo(mediaType vst3.MediaType, direction vst3.BusDirection, index int32) (vst3.BusInfo, vst3.Result) {
	var response protocol.BusInfoResponse
	request := &protocol.GetBusInfo{Target: p.target(), MediaType: mediaType, Direction: direction, Index: index}
	if result := p.call(request, &response); !result.OK() {
		return vst3.BusInfo{}, result
	}
	return response.Info, response.Result
}

func (p *PluginProxy) GetRoutingInfo(in vst3.RoutingInfo) (vst3.RoutingInfo, vst3.Result) {
	var response protocol.RoutingInfoResponse
	if result := p.call(&protocol.GetRoutingInfo{Target: p.target(), In: in}, &response); !result.OK() {
		return vst3.RoutingInfo{}, result
	}
	return response.Out, response.Result
}

func (p *PluginProxy) ActivateBus(mediaType vst3.MediaType, direction vst3.BusDirection, index int32, state bool) vst3.Result {
	return p.result(&protocol.ActivateBus{Target: p.target(), MediaType: mediaType, Direction: direction, Index: index, State: state})
}

func (p *PluginProxy) SetActive(state bool) vst3.Result {
	return p.result(&protocol.SetActive{Target: p.target(), State: state})
}

// SetState restores the object's state. On an object that is both a
// component and an edit controller it goes to the component.
func (p *PluginProxy) SetState(state io.Reader) vst3.Result {
	blob, ok := p.pack(state)
	if !ok {
		return vst3.ResultInternalError
	}
	if !p.interfaces.Has(vst3.InterfaceComponent) && p.interfaces.Has(vst3.InterfaceEditController) {
		return p.result(&protocol.SetControllerState{Target: p.target(), State: blob})
	}
	return p.result(&protocol.SetState{Target: p.target(), State: blob})
}

// GetState writes the object's state, routed like SetState.
func (p *PluginProxy) GetState(state io.Writer) vst3.Result {
	if !p.interfaces.Has(vst3.InterfaceComponent) && p.interfaces.Has(vst3.InterfaceEditController) {
		return p.state(&protocol.GetControllerState{Target: p.target()}, state)
	}
	return p.state(&protocol.GetState{Target: p.target()}, state)
}

// IAudioProcessor

func (p *PluginProxy) SetBusArrangements(inputs, outputs []vst3.SpeakerArrangement) vst3.Result {
	return p.result(&protocol.SetBusArrangements{Target: p.target(), Inputs: inputs, Outputs: outputs})
}

func (p *PluginProxy) GetBusArrangement(direction vst3.BusDirection, index int32) (vst3.SpeakerArrangement, vst3.Result) {
	var response protocol.ArrangementResponse
	if result := p.call(&protocol.GetBusArrangement{Target: p.target(), Direction: direction, Index: index}, &response); !result.OK() {
		return vst3.SpeakerArrangementEmpty, result
	}
	return response.Arrangement, response.Result
}

func (p *PluginProxy) CanProcessSampleSize(symbolicSampleSize int32) vst3.Result {
	return p.result(&protocol.CanProcessSampleSize{Target: p.target(), SymbolicSampleSize: symbolicSampleSize})
}

func (p *PluginProxy) GetLatencySamples() uint32 {
	var response protocol.SamplesResponse
	if result := p.call(&protocol.GetLatencySamples{Target: p.target()}, &response); !result.OK() {
		return 0
	}
	return response.Samples
}

func (p *PluginProxy) SetupProcessing(setup vst3.ProcessSetup) vst3.Result {
	return p.result(&protocol.SetupProcessing{Target: p.target(), Setup: setup})
}

func (p *PluginProxy) SetProcessing(state bool) vst3.Result {
	return p.result(&protocol.SetProcessing{Target: p.target(), State: state})
}

// Process sends one audio block and copies the plugin's outputs into
// data's output buffers.
func (p *PluginProxy) Process(data *vst3.ProcessData) vst3.Result {
	p.processMu.Lock()
	defer p.processMu.Unlock()

	p.process.Target = p.target()
	if err := p.process.Data.Encode(data); err != nil {
		p.client.logger.Error("encoding audio block", "instance", uint64(p.id), "error", err)
		return vst3.ResultInvalidArgument
	}

	// Optional outputs absent from the response must not survive from
	// the previous block. Parameter queues are decoded into reused
	// storage. Events carry payload pointers, so they start afresh.
	p.outputParams.Reset()
	p.processed.Data.OutputParameterChanges = &p.outputParams
	p.processed.Data.OutputEvents = nil
	if result := p.call(&p.process, &p.processed); !result.OK() {
		return result
	}
	if !p.processed.Result.OK() {
		return p.processed.Result
	}
	if err := p.processed.Data.Apply(data); err != nil {
		p.client.logger.Error("applying audio block outputs", "instance", uint64(p.id), "error", err)
		return vst3.ResultInternalError
	}
	return vst3.ResultOK
}

func (p *PluginProxy) GetTailSamples() uint32 {
	var response protocol.SamplesResponse
	if result := p.call(&protocol.GetTailSamples{Target: p.target()}, &response); !result.OK() {
		return 0
	}
	return response.Samples
}

// IEditController

func (p *PluginProxy) SetComponentState(state io.Reader) vst3.Result {
	blob, ok := p.pack(state)
	if !ok {
		return vst3.ResultInternalError
	}
	return p.result(&protocol.SetComponentState{Target: p.target(), State: blob})
}

func (p *PluginProxy) GetParameterCount() int32 {
	var response protocol.CountResponse
	if result := p.call(&protocol.GetParameterCount{Target: p.target()}, &response); !result.OK() {
		return 0
	}
	return response.Count
}

func (p *PluginProxy) GetParameterInfo(index int32) (vst3.ParameterInfo, vst3.Result) {
	var response protocol.ParameterInfoResponse
	if result := p.call(&protocol.GetParameterInfo{Target: p.target(), Index: index}, &response); !result.OK() {
		return vst3.ParameterInfo{}, result
	}
	return response.Info, response.Result
}

func (p *PluginProxy) GetParamStringByValue(id vst3.ParamID, valueNormalized vst3.ParamValue, text *vst3.String128) vst3.Result {
	var response protocol.TextResponse
	if result := p.call(&protocol.GetParamStringByValue{Target: p.target(), ID: id, Value: valueNormalized}, &response); !result.OK() {
		return result
	}
	if response.Result.OK() {
		text.Set(response.Text)
	}
	return response.Result
}

func (p *PluginProxy) GetParamValueByString(id vst3.ParamID, text *vst3.String128) (vst3.ParamValue, vst3.Result) {
	var response protocol.ValueResponse
	if result := p.call(&protocol.GetParamValueByString{Target: p.target(), ID: id, Text: text.String()}, &response); !result.OK() {
		return 0, result
	}
	return response.Value, response.Result
}

func (p *PluginProxy) NormalizedParamToPlain(id vst3.ParamID, valueNormalized vst3.ParamValue) vst3.ParamValue {
	return p.value(&protocol.NormalizedParamToPlain{Target: p.target(), ID: id, Value: valueNormalized})
}

func (p *PluginProxy) PlainParamToNormalized(id vst3.ParamID, plainValue vst3.ParamValue) vst3.ParamValue {
	return p.value(&protocol.PlainParamToNormalized{Target: p.target(), ID: id, Value: plainValue})
}

func (p *PluginProxy) GetParamNormalized(id vst3.ParamID) vst3.ParamValue {
	return p.value(&protocol.GetParamNormalized{Target: p.target(), ID: id})
}

func (p *PluginProxy) SetParamNormalized(id vst3.ParamID, value vst3.ParamValue) vst3.Result {
	return p.result(&protocol.SetParamNormalized{Target: p.target(), ID: id, Value: value})
}

// SetComponentHandler installs handler for callbacks from this
// object. A nil handler removes the current one; later callbacks are
// answered with kNoInterface.
func (p *PluginProxy) SetComponentHandler(handler vst3.ComponentHandler) vst3.Result {
	if p.released(protocol.KindSetComponentHandler) {
		return vst3.ResultInvalidArgument
	}
	p.client.callbacks.SetComponentHandler(p.id, handler)
	return p.result(&protocol.SetComponentHandler{Target: p.target(), HasHandler: handler != nil})
}

// IConnectionPoint

// Connect links this object to other, which must be a live proxy from
// the same client. Message passing between connected objects stays
// inside the plugin host process.
func (p *PluginProxy) Connect(other vst3.ConnectionPoint) vst3.Result {
	peer, ok := p.peer(other)
	if !ok {
		return vst3.ResultNotImplemented
	}
	if peer.released(protocol.KindConnect) {
		return vst3.ResultInvalidArgument
	}
	return p.result(&protocol.Connect{Target: p.target(), OtherInstanceID: peer.id})
}

func (p *PluginProxy) Disconnect(other vst3.ConnectionPoint) vst3.Result {
	peer, ok := p.peer(other)
	if !ok {
		return vst3.ResultNotImplemented
	}
	if peer.released(protocol.KindDisconnect) {
		return vst3.ResultInvalidArgument
	}
	return p.result(&protocol.Disconnect{Target: p.target(), OtherInstanceID: peer.id})
}

func (p *PluginProxy) peer(other vst3.ConnectionPoint) (*PluginProxy, bool) {
	peer, ok := other.(*PluginProxy)
	if !ok || peer == nil || peer.client != p.client {
		return nil, false
	}
	return peer, true
}
