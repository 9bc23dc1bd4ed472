// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sarvex/yabridge/lib/audio"
	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/protocol"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/version"
	"github.com/sarvex/yabridge/lib/vst3"
	"github.com/sarvex/yabridge/transport"
)

// ServerConfig holds configuration for creating a Server.
type ServerConfig struct {
	// Factory is the loaded plugin's factory. Required.
	Factory vst3.PluginFactory

	Logger *slog.Logger

	// Diagnostics records every callback the plugin host side sends
	// and every request for a missing interface. Its threshold is
	// replaced by the native side's verbosity during Handshake.
	Diagnostics *diagnostics.Logger

	// MaxPayload bounds received frames. Zero means
	// transport.DefaultMaxPayload.
	MaxPayload uint64
}

// Server is the plugin host end of a bridge connection. It owns the
// real plugin objects.
type Server struct {
	factory     vst3.PluginFactory
	channel     *transport.Channel
	logger      *slog.Logger
	diagnostics *diagnostics.Logger
	instances   *registry.Registry[*instance]

	policyMu    sync.RWMutex
	statePolicy codec.BlobPolicy
}

// instance is one object created through the factory.
type instance struct {
	id         registry.ID
	object     any
	interfaces vst3.InterfaceSet

	// mu serializes setupProcessing, setBusArrangements and process,
	// which share buffers. The host never overlaps two process calls
	// on one instance, so processed outlives mu until it is encoded.
	mu        sync.Mutex
	buffers   audio.Buffers
	processed protocol.ProcessResponse
}

// NewServer returns a server speaking over conn.
func NewServer(conn io.ReadWriteCloser, config ServerConfig) (*Server, error) {
	if config.Factory == nil {
		return nil, errors.New("plugin factory is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	server := &Server{
		factory:     config.Factory,
		logger:      logger,
		diagnostics: config.Diagnostics,
		instances:   registry.New[*instance](),
		statePolicy: codec.DefaultBlobPolicy,
	}
	server.channel = transport.New(conn, server, transport.Options{
		Direction:   diagnostics.PluginToHost,
		Logger:      logger,
		Diagnostics: config.Diagnostics,
		MaxPayload:  config.MaxPayload,
	})
	return server, nil
}

// Run serves the connection until it closes. Every object still alive
// at that point is released; objects implementing io.Closer are
// closed, in creation order.
func (s *Server) Run(ctx context.Context) error {
	err := s.channel.Run(ctx)
	s.releaseAll()
	return err
}

// Handshake asks the native side for its configuration and applies it.
// Run must already be serving the connection. A version mismatch is
// logged and otherwise ignored.
func (s *Server) Handshake() (*protocol.Configuration, error) {
	var configuration protocol.Configuration
	if err := s.channel.Call(&protocol.WantsConfiguration{Version: version.Short()}, &configuration); err != nil {
		return nil, fmt.Errorf("requesting configuration: %w", err)
	}
	if !version.Matches(configuration.Version) {
		s.logger.Warn("native side version differs from the plugin host; rebuild both from the same release",
			"native", configuration.Version,
			"plugin_host", version.Short(),
		)
	}
	s.diagnostics.SetThreshold(configuration.Verbosity)
	if configuration.StatePolicy != (codec.BlobPolicy{}) {
		s.policyMu.Lock()
		s.statePolicy = configuration.StatePolicy
		s.policyMu.Unlock()
	}
	return &configuration, nil
}

// Close shuts the connection down. Run releases the objects.
func (s *Server) Close() error {
	return s.channel.Close()
}

// Instances returns the number of live objects.
func (s *Server) Instances() int { return s.instances.Len() }

func (s *Server) releaseAll() {
	for _, entry := range s.instances.Drain() {
		s.close(entry.Object)
	}
}

func (s *Server) close(inst *instance) {
	closer, ok := inst.object.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		s.logger.Warn("closing plugin object", "instance", uint64(inst.id), "error", err)
	}
}

func (s *Server) pack(data []byte) (codec.Blob, error) {
	s.policyMu.RLock()
	policy := s.statePolicy
	s.policyMu.RUnlock()
	return codec.PackBlob(data, policy)
}

// Handle serves one request from the native side. An error means the
// request cannot be answered consistently and closes the connection.
func (s *Server) Handle(request protocol.Request) (protocol.Response, error) {
	switch request := request.(type) {
	case *protocol.GetPluginFactory:
		return s.getPluginFactory(), nil
	case *protocol.SetHostContext:
		var host vst3.HostApplication
		if request.HasContext {
			host = s.hostContext(registry.FactoryID)
		}
		return &protocol.ResultResponse{Result: s.factory.SetHostContext(host)}, nil
	case *protocol.Construct:
		return s.construct(request), nil
	}

	inst, err := s.instances.Resolve(request.Instance())
	if err != nil {
		return nil, fmt.Errorf("serving %s: %w", request.Kind(), err)
	}

	switch request := request.(type) {
	case *protocol.Destruct:
		if _, err := s.instances.Release(inst.id); err != nil {
			return nil, fmt.Errorf("serving %s: %w", request.Kind(), err)
		}
		s.close(inst)
		return &protocol.Ack{}, nil

	case *protocol.Initialize:
		base, ok := query[vst3.PluginBase](s, inst, request, vst3.InterfacePluginBase)
		if !ok {
			return noInterface(request)
		}
		var host vst3.HostApplication
		if request.HasHostContext {
			host = s.hostContext(inst.id)
		}
		return &protocol.ResultResponse{Result: base.Initialize(host)}, nil
	case *protocol.Terminate:
		base, ok := query[vst3.PluginBase](s, inst, request, vst3.InterfacePluginBase)
		if !ok {
			return noInterface(request)
		}
		return &protocol.ResultResponse{Result: base.Terminate()}, nil

	case *protocol.Connect, *protocol.Disconnect:
		return s.connect(inst, request)
	}

	switch request.Kind() {
	case protocol.KindGetControllerClassID, protocol.KindSetIoMode, protocol.KindGetBusCount,
		protocol.KindGetBusInfo, protocol.KindGetRoutingInfo, protocol.KindActivateBus,
		protocol.KindSetActive, protocol.KindSetState, protocol.KindGetState:
		component, ok := query[vst3.Component](s, inst, request, vst3.InterfaceComponent)
		if !ok {
			return noInterface(request)
		}
		return s.serveComponent(component, request)

	case protocol.KindSetBusArrangements, protocol.KindGetBusArrangement, protocol.KindCanProcessSampleSize,
		protocol.KindGetLatencySamples, protocol.KindSetupProcessing, protocol.KindSetProcessing,
		protocol.KindProcess, protocol.KindGetTailSamples:
		processor, ok := query[vst3.AudioProcessor](s, inst, request, vst3.InterfaceAudioProcessor)
		if !ok {
			return noInterface(request)
		}
		return s.serveProcessor(inst, processor, request)

	case protocol.KindSetComponentState, protocol.KindSetControllerState, protocol.KindGetControllerState,
		protocol.KindGetParameterCount, protocol.KindGetParameterInfo, protocol.KindGetParamStringByValue,
		protocol.KindGetParamValueByString, protocol.KindNormalizedParamToPlain, protocol.KindPlainParamToNormalized,
		protocol.KindGetParamNormalized, protocol.KindSetParamNormalized, protocol.KindSetComponentHandler:
		controller, ok := query[vst3.EditController](s, inst, request, vst3.InterfaceEditController)
		if !ok {
			return noInterface(request)
		}
		return s.serveController(inst, controller, request)

	default:
		return nil, fmt.Errorf("request %s cannot be served by the plugin host", request.Kind())
	}
}

func (s *Server) getPluginFactory() *protocol.FactoryResponse {
	info, result := s.factory.GetFactoryInfo()
	response := &protocol.FactoryResponse{Result: result, Info: info}
	count := s.factory.CountClasses()
	for index := int32(0); index < count; index++ {
		class, result := s.factory.GetClassInfo(index)
		if !result.OK() {
			s.logger.Warn("plugin factory skipped a class", "index", index, "result", result.String())
			continue
		}
		response.Classes = append(response.Classes, class)
	}
	return response
}

func (s *Server) construct(request *protocol.Construct) *protocol.ConstructResponse {
	object, result := s.factory.CreateInstance(request.CID, request.Interface)
	if !result.OK() || object == nil {
		if result.OK() {
			result = vst3.ResultNoInterface
		}
		s.logger.Info("plugin declined to create an instance",
			"cid", request.CID.String(),
			"interface", request.Interface.String(),
			"result", result.String(),
		)
		return &protocol.ConstructResponse{Result: result}
	}
	inst := &instance{object: object, interfaces: vst3.InterfacesOf(object)}
	inst.id = s.instances.Register(inst)
	return &protocol.ConstructResponse{Result: vst3.ResultOK, InstanceID: inst.id, Interfaces: inst.interfaces}
}

func (s *Server) connect(inst *instance, request protocol.Request) (protocol.Response, error) {
	var otherID registry.ID
	switch request := request.(type) {
	case *protocol.Connect:
		otherID = request.OtherInstanceID
	case *protocol.Disconnect:
		otherID = request.OtherInstanceID
	}
	other, err := s.instances.Resolve(otherID)
	if err != nil {
		return nil, fmt.Errorf("serving %s: peer: %w", request.Kind(), err)
	}
	point, ok := query[vst3.ConnectionPoint](s, inst, request, vst3.InterfaceConnectionPoint)
	if !ok {
		return noInterface(request)
	}
	peer, ok := query[vst3.ConnectionPoint](s, other, request, vst3.InterfaceConnectionPoint)
	if !ok {
		return noInterface(request)
	}
	if request.Kind() == protocol.KindConnect {
		return &protocol.ResultResponse{Result: point.Connect(peer)}, nil
	}
	return &protocol.ResultResponse{Result: point.Disconnect(peer)}, nil
}

func (s *Server) serveComponent(component vst3.Component, request protocol.Request) (protocol.Response, error) {
	switch request := request.(type) {
	case *protocol.GetControllerClassID:
		cid, result := component.GetControllerClassID()
		return &protocol.ClassIDResponse{Result: result, CID: cid}, nil
	case *protocol.SetIoMode:
		return &protocol.ResultResponse{Result: component.SetIoMode(request.Mode)}, nil
	case *protocol.GetBusCount:
		return &protocol.CountResponse{Count: component.GetBusCount(request.MediaType, request.Direction)}, nil
	case *protocol.GetBusInfo:
		info, result := component.GetBusInfo(request.MediaType, request.Direction, request.Index)
		return &protocol.BusInfoResponse{Result: result, Info: info}, nil
	case *protocol.GetRoutingInfo:
		out, result := component.GetRoutingInfo(request.In)
		return &protocol.RoutingInfoResponse{Result: result, Out: out}, nil
	case *protocol.ActivateBus:
		return &protocol.ResultResponse{Result: component.ActivateBus(request.MediaType, request.Direction, request.Index, request.State)}, nil
	case *protocol.SetActive:
		return &protocol.ResultResponse{Result: component.SetActive(request.State)}, nil
	case *protocol.SetState:
		return s.setState(request, request.State, component.SetState)
	case *protocol.GetState:
		return s.getState(component.GetState)
	default:
		return nil, fmt.Errorf("request %s is not an IComponent call", request.Kind())
	}
}

func (s *Server) serveProcessor(inst *instance, processor vst3.AudioProcessor, request protocol.Request) (protocol.Response, error) {
	switch request := request.(type) {
	case *protocol.SetBusArrangements:
		inst.mu.Lock()
		defer inst.mu.Unlock()
		result := processor.SetBusArrangements(request.Inputs, request.Outputs)
		if result.OK() {
			inst.buffers.Reset()
		}
		return &protocol.ResultResponse{Result: result}, nil
	case *protocol.GetBusArrangement:
		arrangement, result := processor.GetBusArrangement(request.Direction, request.Index)
		return &protocol.ArrangementResponse{Result: result, Arrangement: arrangement}, nil
	case *protocol.CanProcessSampleSize:
		return &protocol.ResultResponse{Result: processor.CanProcessSampleSize(request.SymbolicSampleSize)}, nil
	case *protocol.GetLatencySamples:
		return &protocol.SamplesResponse{Samples: processor.GetLatencySamples()}, nil
	case *protocol.SetupProcessing:
		return &protocol.ResultResponse{Result: s.setupProcessing(inst, processor, request.Setup)}, nil
	case *protocol.SetProcessing:
		return &protocol.ResultResponse{Result: processor.SetProcessing(request.State)}, nil
	case *protocol.Process:
		return s.process(inst, processor, request), nil
	case *protocol.GetTailSamples:
		return &protocol.SamplesResponse{Samples: processor.GetTailSamples()}, nil
	default:
		return nil, fmt.Errorf("request %s is not an IAudioProcessor call", request.Kind())
	}
}

func (s *Server) serveController(inst *instance, controller vst3.EditController, request protocol.Request) (protocol.Response, error) {
	switch request := request.(type) {
	case *protocol.SetComponentState:
		return s.setState(request, request.State, controller.SetComponentState)
	case *protocol.SetControllerState:
		return s.setState(request, request.State, controller.SetState)
	case *protocol.GetControllerState:
		return s.getState(controller.GetState)
	case *protocol.GetParameterCount:
		return &protocol.CountResponse{Count: controller.GetParameterCount()}, nil
	case *protocol.GetParameterInfo:
		info, result := controller.GetParameterInfo(request.Index)
		return &protocol.ParameterInfoResponse{Result: result, Info: info}, nil
	case *protocol.GetParamStringByValue:
		var text vst3.String128
		result := controller.GetParamStringByValue(request.ID, request.Value, &text)
		return &protocol.TextResponse{Result: result, Text: text.String()}, nil
	case *protocol.GetParamValueByString:
		text := vst3.NewString128(request.Text)
		value, result := controller.GetParamValueByString(request.ID, &text)
		return &protocol.ValueResponse{Result: result, Value: value}, nil
	case *protocol.NormalizedParamToPlain:
		return &protocol.ValueResponse{Value: controller.NormalizedParamToPlain(request.ID, request.Value)}, nil
	case *protocol.PlainParamToNormalized:
		return &protocol.ValueResponse{Value: controller.PlainParamToNormalized(request.ID, request.Value)}, nil
	case *protocol.GetParamNormalized:
		return &protocol.ValueResponse{Value: controller.GetParamNormalized(request.ID)}, nil
	case *protocol.SetParamNormalized:
		return &protocol.ResultResponse{Result: controller.SetParamNormalized(request.ID, request.Value)}, nil
	case *protocol.SetComponentHandler:
		var handler vst3.ComponentHandler
		if request.HasHandler {
			handler = &ComponentHandlerProxy{channel: s.channel, owner: inst.id, logger: s.logger}
		}
		return &protocol.ResultResponse{Result: controller.SetComponentHandler(handler)}, nil
	default:
		return nil, fmt.Errorf("request %s is not an IEditController call", request.Kind())
	}
}

// setupProcessing passes setup to the plugin and, when it accepts,
// sizes the instance's buffers for the plugin's current bus layout.
func (s *Server) setupProcessing(inst *instance, processor vst3.AudioProcessor, setup vst3.ProcessSetup) vst3.Result {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	result := processor.SetupProcessing(setup)
	if !result.OK() {
		return result
	}
	layout := busLayout(inst, processor)
	if err := inst.buffers.Configure(setup, layout); err != nil {
		s.logger.Warn("rejecting process setup", "instance", uint64(inst.id), "error", err)
		inst.buffers.Reset()
		return vst3.ResultInvalidArgument
	}
	return vst3.ResultOK
}

// busLayout reads the channel count of every audio bus from the
// plugin's current arrangements.
func busLayout(inst *instance, processor vst3.AudioProcessor) audio.Layout {
	component, ok := vst3.Query[vst3.Component](inst.object, vst3.InterfaceComponent)
	if !ok {
		return audio.Layout{}
	}
	channels := func(direction vst3.BusDirection) []int32 {
		count := component.GetBusCount(vst3.MediaTypeAudio, direction)
		counts := make([]int32, 0, max(count, 0))
		for index := int32(0); index < count; index++ {
			arrangement, result := processor.GetBusArrangement(direction, index)
			if !result.OK() {
				info, _ := component.GetBusInfo(vst3.MediaTypeAudio, direction, index)
				counts = append(counts, info.ChannelCount)
				continue
			}
			counts = append(counts, arrangement.ChannelCount())
		}
		return counts
	}
	return audio.Layout{
		Inputs:  channels(vst3.BusDirectionInput),
		Outputs: channels(vst3.BusDirectionOutput),
	}
}

func (s *Server) process(inst *instance, processor vst3.AudioProcessor, request *protocol.Process) *protocol.ProcessResponse {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if !inst.buffers.Configured() {
		return &protocol.ProcessResponse{Result: vst3.ResultNotInitialized}
	}
	data, err := inst.buffers.Load(&request.Data)
	if err != nil {
		s.logger.Warn("rejecting audio block", "instance", uint64(inst.id), "error", err)
		return &protocol.ProcessResponse{Result: vst3.ResultInvalidArgument}
	}
	result := processor.Process(data)
	outputs, err := inst.buffers.Store()
	if err != nil {
		s.logger.Error("capturing audio block outputs", "instance", uint64(inst.id), "error", err)
		return &protocol.ProcessResponse{Result: vst3.ResultInternalError}
	}
	inst.processed = protocol.ProcessResponse{Result: result, Data: *outputs}
	return &inst.processed
}

func (s *Server) setState(request protocol.Request, blob codec.Blob, set func(io.Reader) vst3.Result) (protocol.Response, error) {
	data, err := blob.Unpack()
	if err != nil {
		return nil, fmt.Errorf("serving %s: %w", request.Kind(), err)
	}
	return &protocol.ResultResponse{Result: set(bytes.NewReader(data))}, nil
}

func (s *Server) getState(get func(io.Writer) vst3.Result) (protocol.Response, error) {
	var buffer bytes.Buffer
	result := get(&buffer)
	if !result.OK() {
		return &protocol.StateResponse{Result: result}, nil
	}
	blob, err := s.pack(buffer.Bytes())
	if err != nil {
		return nil, fmt.Errorf("packing plugin state: %w", err)
	}
	return &protocol.StateResponse{Result: result, State: blob}, nil
}

func (s *Server) hostContext(owner registry.ID) vst3.HostApplication {
	return &HostApplicationProxy{channel: s.channel, owner: owner, logger: s.logger}
}

// query returns inst's object as T, logging an unknown-interface event
// when the object lacks iface.
func query[T any](s *Server, inst *instance, request protocol.Request, iface vst3.Interface) (T, bool) {
	typed, ok := vst3.Query[T](inst.object, iface)
	if !ok {
		s.diagnostics.LogUnknownInterface(diagnostics.HostToPlugin, request.Kind().Label(), inst.id, iface.String())
	}
	return typed, ok
}

func noInterface(request protocol.Request) (protocol.Response, error) {
	return protocol.Failure(request.Kind(), vst3.ResultNoInterface)
}
