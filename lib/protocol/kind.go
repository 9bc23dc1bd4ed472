// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"log/slog"

	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/registry"
)

// Kind identifies a message type on the wire. Values are protocol
// constants: request kinds are below 0x8000, response kinds at or
// above.
type Kind uint16

// Plugin factory and plugin base.
const (
	KindGetPluginFactory Kind = 1
	KindSetHostContext   Kind = 2
	KindConstruct        Kind = 3
	KindDestruct         Kind = 4
	KindInitialize       Kind = 5
	KindTerminate        Kind = 6
)

// IComponent.
const (
	KindGetControllerClassID Kind = 10
	KindSetIoMode            Kind = 11
	KindGetBusCount          Kind = 12
	KindGetBusInfo           Kind = 13
	KindGetRoutingInfo       Kind = 14
	KindActivateBus          Kind = 15
	KindSetActive            Kind = 16
	KindSetState             Kind = 17
	KindGetState             Kind = 18
)

// IAudioProcessor.
const (
	KindSetBusArrangements   Kind = 30
	KindGetBusArrangement    Kind = 31
	KindCanProcessSampleSize Kind = 32
	KindGetLatencySamples    Kind = 33
	KindSetupProcessing      Kind = 34
	KindSetProcessing        Kind = 35
	KindProcess              Kind = 36
	KindGetTailSamples       Kind = 37
)

// IEditController.
const (
	KindSetComponentState      Kind = 50
	KindSetControllerState     Kind = 51
	KindGetControllerState     Kind = 52
	KindGetParameterCount      Kind = 53
	KindGetParameterInfo       Kind = 54
	KindGetParamStringByValue  Kind = 55
	KindGetParamValueByString  Kind = 56
	KindNormalizedParamToPlain Kind = 57
	KindPlainParamToNormalized Kind = 58
	KindGetParamNormalized     Kind = 59
	KindSetParamNormalized     Kind = 60
	KindSetComponentHandler    Kind = 61
)

// IConnectionPoint.
const (
	KindConnect    Kind = 70
	KindDisconnect Kind = 71
)

// Callbacks from the plugin side.
const (
	KindBeginEdit          Kind = 100
	KindPerformEdit        Kind = 101
	KindEndEdit            Kind = 102
	KindRestartComponent   Kind = 103
	KindHostGetName        Kind = 110
	KindWantsConfiguration Kind = 120
)

// Responses.
const (
	KindAck                   Kind = 0x8000
	KindResultResponse        Kind = 0x8001
	KindFactoryResponse       Kind = 0x8002
	KindConstructResponse     Kind = 0x8003
	KindClassIDResponse       Kind = 0x8004
	KindCountResponse         Kind = 0x8005
	KindBusInfoResponse       Kind = 0x8006
	KindRoutingInfoResponse   Kind = 0x8007
	KindStateResponse         Kind = 0x8008
	KindArrangementResponse   Kind = 0x8009
	KindSamplesResponse       Kind = 0x800a
	KindProcessResponse       Kind = 0x800b
	KindParameterInfoResponse Kind = 0x800c
	KindTextResponse          Kind = 0x800d
	KindValueResponse         Kind = 0x800e
	KindConfiguration         Kind = 0x800f
)

// Message is implemented by every request and response type.
type Message interface {
	Kind() Kind
	LogAttrs() []slog.Attr
}

// Request is a message that expects a response.
type Request interface {
	Message
	// Instance is the registry id the request is addressed to: the
	// target plugin object, the callback owner, or zero for the
	// factory.
	Instance() registry.ID
}

// Response is the reply to a Request.
type Response interface {
	Message
}

type kindInfo struct {
	name      string
	label     string
	response  Kind
	verbosity diagnostics.Verbosity
	zero      func() Message
}

func request[T any, P interface {
	*T
	Message
}](name, label string, response Kind, verbosity diagnostics.Verbosity) kindInfo {
	return kindInfo{
		name:      name,
		label:     label,
		response:  response,
		verbosity: verbosity,
		zero:      func() Message { return P(new(T)) },
	}
}

func response[T any, P interface {
	*T
	Message
}](name string) kindInfo {
	return kindInfo{
		name:  name,
		label: name,
		zero:  func() Message { return P(new(T)) },
	}
}

const (
	most = diagnostics.MostEvents
	all  = diagnostics.AllEvents
)

var kinds = map[Kind]kindInfo{
	KindGetPluginFactory: request[GetPluginFactory](
		"GetPluginFactory", "IPluginFactory::getFactoryInfo", KindFactoryResponse, most),
	KindSetHostContext: request[SetHostContext](
		"SetHostContext", "IPluginFactory3::setHostContext", KindResultResponse, most),
	KindConstruct: request[Construct](
		"Construct", "IPluginFactory::createInstance", KindConstructResponse, most),
	KindDestruct: request[Destruct](
		"Destruct", "FUnknown::release", KindAck, most),
	KindInitialize: request[Initialize](
		"Initialize", "IPluginBase::initialize", KindResultResponse, most),
	KindTerminate: request[Terminate](
		"Terminate", "IPluginBase::terminate", KindResultResponse, most),

	KindGetControllerClassID: request[GetControllerClassID](
		"GetControllerClassID", "IComponent::getControllerClassId", KindClassIDResponse, most),
	KindSetIoMode: request[SetIoMode](
		"SetIoMode", "IComponent::setIoMode", KindResultResponse, most),
	KindGetBusCount: request[GetBusCount](
		"GetBusCount", "IComponent::getBusCount", KindCountResponse, all),
	KindGetBusInfo: request[GetBusInfo](
		"GetBusInfo", "IComponent::getBusInfo", KindBusInfoResponse, most),
	KindGetRoutingInfo: request[GetRoutingInfo](
		"GetRoutingInfo", "IComponent::getRoutingInfo", KindRoutingInfoResponse, most),
	KindActivateBus: request[ActivateBus](
		"ActivateBus", "IComponent::activateBus", KindResultResponse, most),
	KindSetActive: request[SetActive](
		"SetActive", "IComponent::setActive", KindResultResponse, most),
	KindSetState: request[SetState](
		"SetState", "IComponent::setState", KindResultResponse, most),
	KindGetState: request[GetState](
		"GetState", "IComponent::getState", KindStateResponse, most),

	KindSetBusArrangements: request[SetBusArrangements](
		"SetBusArrangements", "IAudioProcessor::setBusArrangements", KindResultResponse, most),
	KindGetBusArrangement: request[GetBusArrangement](
		"GetBusArrangement", "IAudioProcessor::getBusArrangement", KindArrangementResponse, most),
	KindCanProcessSampleSize: request[CanProcessSampleSize](
		"CanProcessSampleSize", "IAudioProcessor::canProcessSampleSize", KindResultResponse, all),
	KindGetLatencySamples: request[GetLatencySamples](
		"GetLatencySamples", "IAudioProcessor::getLatencySamples", KindSamplesResponse, all),
	KindSetupProcessing: request[SetupProcessing](
		"SetupProcessing", "IAudioProcessor::setupProcessing", KindResultResponse, most),
	KindSetProcessing: request[SetProcessing](
		"SetProcessing", "IAudioProcessor::setProcessing", KindResultResponse, most),
	KindProcess: request[Process](
		"Process", "IAudioProcessor::process", KindProcessResponse, all),
	KindGetTailSamples: request[GetTailSamples](
		"GetTailSamples", "IAudioProcessor::getTailSamples", KindSamplesResponse, all),

	KindSetComponentState: request[SetComponentState](
		"SetComponentState", "IEditController::setComponentState", KindResultResponse, most),
	KindSetControllerState: request[SetControllerState](
		"SetControllerState", "IEditController::setState", KindResultResponse, most),
	KindGetControllerState: request[GetControllerState](
		"GetControllerState", "IEditController::getState", KindStateResponse, most),
	KindGetParameterCount: request[GetParameterCount](
		"GetParameterCount", "IEditController::getParameterCount", KindCountResponse, most),
	KindGetParameterInfo: request[GetParameterInfo](
		"GetParameterInfo", "IEditController::getParameterInfo", KindParameterInfoResponse, most),
	KindGetParamStringByValue: request[GetParamStringByValue](
		"GetParamStringByValue", "IEditController::getParamStringByValue", KindTextResponse, most),
	KindGetParamValueByString: request[GetParamValueByString](
		"GetParamValueByString", "IEditController::getParamValueByString", KindValueResponse, most),
	KindNormalizedParamToPlain: request[NormalizedParamToPlain](
		"NormalizedParamToPlain", "IEditController::normalizedParamToPlain", KindValueResponse, most),
	KindPlainParamToNormalized: request[PlainParamToNormalized](
		"PlainParamToNormalized", "IEditController::plainParamToNormalized", KindValueResponse, most),
	KindGetParamNormalized: request[GetParamNormalized](
		"GetParamNormalized", "IEditController::getParamNormalized", KindValueResponse, most),
	KindSetParamNormalized: request[SetParamNormalized](
		"SetParamNormalized", "IEditController::setParamNormalized", KindResultResponse, most),
	KindSetComponentHandler: request[SetComponentHandler](
		"SetComponentHandler", "IEditController::setComponentHandler", KindResultResponse, most),

	KindConnect: request[Connect](
		"Connect", "IConnectionPoint::connect", KindResultResponse, most),
	KindDisconnect: request[Disconnect](
		"Disconnect", "IConnectionPoint::disconnect", KindResultResponse, most),

	KindBeginEdit: request[BeginEdit](
		"BeginEdit", "IComponentHandler::beginEdit", KindResultResponse, most),
	KindPerformEdit: request[PerformEdit](
		"PerformEdit", "IComponentHandler::performEdit", KindResultResponse, most),
	KindEndEdit: request[EndEdit](
		"EndEdit", "IComponentHandler::endEdit", KindResultResponse, most),
	KindRestartComponent: request[RestartComponent](
		"RestartComponent", "IComponentHandler::restartComponent", KindResultResponse, most),
	KindHostGetName: request[HostGetName](
		"HostGetName", "IHostApplication::getName", KindTextResponse, most),
	KindWantsConfiguration: request[WantsConfiguration](
		"WantsConfiguration", "WantsConfiguration", KindConfiguration, most),

	KindAck:                   response[Ack]("Ack"),
	KindResultResponse:        response[ResultResponse]("ResultResponse"),
	KindFactoryResponse:       response[FactoryResponse]("FactoryResponse"),
	KindConstructResponse:     response[ConstructResponse]("ConstructResponse"),
	KindClassIDResponse:       response[ClassIDResponse]("ClassIDResponse"),
	KindCountResponse:         response[CountResponse]("CountResponse"),
	KindBusInfoResponse:       response[BusInfoResponse]("BusInfoResponse"),
	KindRoutingInfoResponse:   response[RoutingInfoResponse]("RoutingInfoResponse"),
	KindStateResponse:         response[StateResponse]("StateResponse"),
	KindArrangementResponse:   response[ArrangementResponse]("ArrangementResponse"),
	KindSamplesResponse:       response[SamplesResponse]("SamplesResponse"),
	KindProcessResponse:       response[ProcessResponse]("ProcessResponse"),
	KindParameterInfoResponse: response[ParameterInfoResponse]("ParameterInfoResponse"),
	KindTextResponse:          response[TextResponse]("TextResponse"),
	KindValueResponse:         response[ValueResponse]("ValueResponse"),
	KindConfiguration:         response[Configuration]("Configuration"),
}

// IsRequest reports whether k is a request kind.
func (k Kind) IsRequest() bool { return k < 0x8000 }

// Known reports whether k is defined.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// String returns the message type name.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%#x)", uint16(k))
}

// Label returns the interface method a request kind invokes, e.g.
// "IComponent::setActive".
func (k Kind) Label() string {
	if info, ok := kinds[k]; ok {
		return info.label
	}
	return k.String()
}

// ResponseKind returns the only response kind accepted for request
// kind k, or zero for response kinds.
func (k Kind) ResponseKind() Kind {
	return kinds[k].response
}

// Verbosity returns the diagnostic tier of request kind k.
func (k Kind) Verbosity() diagnostics.Verbosity {
	if info, ok := kinds[k]; ok && k.IsRequest() {
		return info.verbosity
	}
	return diagnostics.MostEvents
}

// New returns a pointer to a zero message of kind k, ready to decode
// into.
func New(kind Kind) (Message, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown message kind %#x", uint16(kind))
	}
	return info.zero(), nil
}

// NewRequest is New restricted to request kinds.
func NewRequest(kind Kind) (Request, error) {
	if !kind.IsRequest() {
		return nil, fmt.Errorf("kind %s is not a request", kind)
	}
	message, err := New(kind)
	if err != nil {
		return nil, err
	}
	return message.(Request), nil
}

// NewResponse is New restricted to response kinds.
func NewResponse(kind Kind) (Response, error) {
	if kind.IsRequest() {
		return nil, fmt.Errorf("kind %s is not a response", kind)
	}
	return New(kind)
}

// Describe adapts a request to the diagnostics logger.
func Describe(request Request) diagnostics.Call {
	return described{request}
}

type described struct{ Request }

func (d described) Label() string                    { return d.Kind().Label() }
func (d described) Verbosity() diagnostics.Verbosity { return d.Kind().Verbosity() }
