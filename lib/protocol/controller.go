// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"log/slog"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// SetComponentState passes the component's state to its edit
// controller.
type SetComponentState struct {
	Target
	State codec.Blob `cbor:"state"`
}

func (*SetComponentState) Kind() Kind { return KindSetComponentState }
func (r *SetComponentState) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Any("state", r.State)}
}

// SetControllerState is IEditController::setState.
type SetControllerState struct {
	Target
	State codec.Blob `cbor:"state"`
}

func (*SetControllerState) Kind() Kind { return KindSetControllerState }
func (r *SetControllerState) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Any("state", r.State)}
}

// GetControllerState is IEditController::getState.
type GetControllerState struct {
	Target
}

func (*GetControllerState) Kind() Kind            { return KindGetControllerState }
func (*GetControllerState) LogAttrs() []slog.Attr { return nil }

type GetParameterCount struct {
	Target
}

func (*GetParameterCount) Kind() Kind            { return KindGetParameterCount }
func (*GetParameterCount) LogAttrs() []slog.Attr { return nil }

type GetParameterInfo struct {
	Target
	Index int32 `cbor:"index"`
}

func (*GetParameterInfo) Kind() Kind { return KindGetParameterInfo }
func (r *GetParameterInfo) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("index", int(r.Index))}
}

type GetParamStringByValue struct {
	Target
	ID    vst3.ParamID    `cbor:"id"`
	Value vst3.ParamValue `cbor:"value"`
}

func (*GetParamStringByValue) Kind() Kind { return KindGetParamStringByValue }
func (r *GetParamStringByValue) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("id", uint64(r.ID)),
		slog.Float64("value", float64(r.Value)),
	}
}

// GetParamValueByString carries the host's UTF-16 text as UTF-8.
type GetParamValueByString struct {
	Target
	ID   vst3.ParamID `cbor:"id"`
	Text string       `cbor:"text"`
}

func (*GetParamValueByString) Kind() Kind { return KindGetParamValueByString }
func (r *GetParamValueByString) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("id", uint64(r.ID)),
		slog.String("text", r.Text),
	}
}

type NormalizedParamToPlain struct {
	Target
	ID    vst3.ParamID    `cbor:"id"`
	Value vst3.ParamValue `cbor:"value"`
}

func (*NormalizedParamToPlain) Kind() Kind { return KindNormalizedParamToPlain }
func (r *NormalizedParamToPlain) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("id", uint64(r.ID)),
		slog.Float64("value", float64(r.Value)),
	}
}

type PlainParamToNormalized struct {
	Target
	ID    vst3.ParamID    `cbor:"id"`
	Value vst3.ParamValue `cbor:"value"`
}

func (*PlainParamToNormalized) Kind() Kind { return KindPlainParamToNormalized }
func (r *PlainParamToNormalized) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("id", uint64(r.ID)),
		slog.Float64("value", float64(r.Value)),
	}
}

type GetParamNormalized struct {
	Target
	ID vst3.ParamID `cbor:"id"`
}

func (*GetParamNormalized) Kind() Kind { return KindGetParamNormalized }
func (r *GetParamNormalized) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Uint64("id", uint64(r.ID))}
}

type SetParamNormalized struct {
	Target
	ID    vst3.ParamID    `cbor:"id"`
	Value vst3.ParamValue `cbor:"value"`
}

func (*SetParamNormalized) Kind() Kind { return KindSetParamNormalized }
func (r *SetParamNormalized) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("id", uint64(r.ID)),
		slog.Float64("value", float64(r.Value)),
	}
}

// SetComponentHandler installs (HasHandler true) or removes the host's
// component handler. The handler stays on the host side; the plugin
// side calls it back through the instance id.
type SetComponentHandler struct {
	Target
	HasHandler bool `cbor:"has_handler"`
}

func (*SetComponentHandler) Kind() Kind { return KindSetComponentHandler }
func (r *SetComponentHandler) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Bool("handler", r.HasHandler)}
}

// Connect links two bridged objects that live in the same plugin
// process.
type Connect struct {
	Target
	OtherInstanceID registry.ID `cbor:"other_instance_id"`
}

func (*Connect) Kind() Kind { return KindConnect }
func (r *Connect) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Uint64("other", uint64(r.OtherInstanceID))}
}

type Disconnect struct {
	Target
	OtherInstanceID registry.ID `cbor:"other_instance_id"`
}

func (*Disconnect) Kind() Kind { return KindDisconnect }
func (r *Disconnect) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Uint64("other", uint64(r.OtherInstanceID))}
}
