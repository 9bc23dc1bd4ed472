// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"log/slog"

	"github.com/sarvex/yabridge/lib/audio"
	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// Ack acknowledges a request that has no result.
type Ack struct{}

func (*Ack) Kind() Kind            { return KindAck }
func (*Ack) LogAttrs() []slog.Attr { return nil }

// ResultResponse carries a bare result code.
type ResultResponse struct {
	Result vst3.Result `cbor:"result"`
}

func (*ResultResponse) Kind() Kind { return KindResultResponse }
func (r *ResultResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{resultAttr(r.Result)}
}

// FactoryResponse describes the factory and all its classes.
type FactoryResponse struct {
	Result  vst3.Result      `cbor:"result"`
	Info    vst3.FactoryInfo `cbor:"info"`
	Classes []vst3.ClassInfo `cbor:"classes"`
}

func (*FactoryResponse) Kind() Kind { return KindFactoryResponse }
func (r *FactoryResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		resultAttr(r.Result),
		slog.String("vendor", r.Info.Vendor),
		slog.Int("classes", len(r.Classes)),
	}
}

// ConstructResponse returns the id and capability set of a new
// instance. InstanceID is zero unless Result is OK.
type ConstructResponse struct {
	Result     vst3.Result       `cbor:"result"`
	InstanceID registry.ID       `cbor:"instance_id"`
	Interfaces vst3.InterfaceSet `cbor:"interfaces"`
}

func (*ConstructResponse) Kind() Kind { return KindConstructResponse }
func (r *ConstructResponse) LogAttrs() []slog.Attr {
	if !r.Result.OK() {
		return []slog.Attr{resultAttr(r.Result)}
	}
	return []slog.Attr{
		resultAttr(r.Result),
		slog.Uint64("instance", uint64(r.InstanceID)),
		slog.String("interfaces", r.Interfaces.String()),
	}
}

type ClassIDResponse struct {
	Result vst3.Result `cbor:"result"`
	CID    vst3.TUID   `cbor:"cid"`
}

func (*ClassIDResponse) Kind() Kind { return KindClassIDResponse }
func (r *ClassIDResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{resultAttr(r.Result), slog.String("cid", r.CID.String())}
}

// CountResponse carries a count for methods without a result code.
type CountResponse struct {
	Count int32 `cbor:"count"`
}

func (*CountResponse) Kind() Kind { return KindCountResponse }
func (r *CountResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("count", int(r.Count))}
}

type BusInfoResponse struct {
	Result vst3.Result  `cbor:"result"`
	Info   vst3.BusInfo `cbor:"info"`
}

func (*BusInfoResponse) Kind() Kind { return KindBusInfoResponse }
func (r *BusInfoResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		resultAttr(r.Result),
		slog.String("name", r.Info.Name.String()),
		slog.Int("channels", int(r.Info.ChannelCount)),
	}
}

type RoutingInfoResponse struct {
	Result vst3.Result      `cbor:"result"`
	Out    vst3.RoutingInfo `cbor:"out"`
}

func (*RoutingInfoResponse) Kind() Kind { return KindRoutingInfoResponse }
func (r *RoutingInfoResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		resultAttr(r.Result),
		slog.Int("bus", int(r.Out.BusIndex)),
		slog.Int("channel", int(r.Out.Channel)),
	}
}

// StateResponse carries the state written by a getState call.
type StateResponse struct {
	Result vst3.Result `cbor:"result"`
	State  codec.Blob  `cbor:"state"`
}

func (*StateResponse) Kind() Kind { return KindStateResponse }
func (r *StateResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{resultAttr(r.Result), slog.Any("state", r.State)}
}

type ArrangementResponse struct {
	Result      vst3.Result             `cbor:"result"`
	Arrangement vst3.SpeakerArrangement `cbor:"arrangement"`
}

func (*ArrangementResponse) Kind() Kind { return KindArrangementResponse }
func (r *ArrangementResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{resultAttr(r.Result), slog.String("arrangement", fmtHex(uint64(r.Arrangement)))}
}

// SamplesResponse carries a latency or tail length in samples.
type SamplesResponse struct {
	Samples uint32 `cbor:"samples"`
}

func (*SamplesResponse) Kind() Kind { return KindSamplesResponse }
func (r *SamplesResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Uint64("samples", uint64(r.Samples))}
}

// ProcessResponse carries the outputs of one audio block.
type ProcessResponse struct {
	Result vst3.Result    `cbor:"result"`
	Data   audio.Response `cbor:"data"`
}

func (*ProcessResponse) Kind() Kind { return KindProcessResponse }
func (r *ProcessResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		resultAttr(r.Result),
		slog.Int("outputs", len(r.Data.Outputs)),
		slog.Int("parameter_changes", int(r.Data.OutputParameterChanges.ParameterCount())),
		slog.Int("events", int(r.Data.OutputEvents.EventCount())),
	}
}

type ParameterInfoResponse struct {
	Result vst3.Result        `cbor:"result"`
	Info   vst3.ParameterInfo `cbor:"info"`
}

func (*ParameterInfoResponse) Kind() Kind { return KindParameterInfoResponse }
func (r *ParameterInfoResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{
		resultAttr(r.Result),
		slog.Uint64("id", uint64(r.Info.ID)),
		slog.String("title", r.Info.Title.String()),
	}
}

// TextResponse carries a UTF-8 string destined for a String128.
type TextResponse struct {
	Result vst3.Result `cbor:"result"`
	Text   string      `cbor:"text"`
}

func (*TextResponse) Kind() Kind { return KindTextResponse }
func (r *TextResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{resultAttr(r.Result), slog.String("text", r.Text)}
}

// ValueResponse carries a parameter value. Methods without a result
// code report ResultOK.
type ValueResponse struct {
	Result vst3.Result     `cbor:"result"`
	Value  vst3.ParamValue `cbor:"value"`
}

func (*ValueResponse) Kind() Kind { return KindValueResponse }
func (r *ValueResponse) LogAttrs() []slog.Attr {
	return []slog.Attr{resultAttr(r.Result), slog.Float64("value", float64(r.Value))}
}

func resultAttr(result vst3.Result) slog.Attr {
	return slog.String("result", result.String())
}

func fmtHex(value uint64) string {
	return fmt.Sprintf("%#x", value)
}

// Failure returns the response to a request of kind reporting result.
// Responses without a result code are returned zeroed.
func Failure(kind Kind, result vst3.Result) (Response, error) {
	response, err := NewResponse(kind.ResponseKind())
	if err != nil {
		return nil, err
	}
	switch response := response.(type) {
	case *ResultResponse:
		response.Result = result
	case *FactoryResponse:
		response.Result = result
	case *ConstructResponse:
		response.Result = result
	case *ClassIDResponse:
		response.Result = result
	case *BusInfoResponse:
		response.Result = result
	case *RoutingInfoResponse:
		response.Result = result
	case *StateResponse:
		response.Result = result
	case *ArrangementResponse:
		response.Result = result
	case *ProcessResponse:
		response.Result = result
	case *ParameterInfoResponse:
		response.Result = result
	case *TextResponse:
		response.Result = result
	case *ValueResponse:
		response.Result = result
	}
	return response, nil
}
