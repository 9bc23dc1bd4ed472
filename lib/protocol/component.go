// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"log/slog"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/vst3"
)

// GetControllerClassID asks for the class id of the component's
// separate edit controller.
type GetControllerClassID struct {
	Target
}

func (*GetControllerClassID) Kind() Kind            { return KindGetControllerClassID }
func (*GetControllerClassID) LogAttrs() []slog.Attr { return nil }

type SetIoMode struct {
	Target
	Mode vst3.IoMode `cbor:"mode"`
}

func (*SetIoMode) Kind() Kind { return KindSetIoMode }
func (r *SetIoMode) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Int("mode", int(r.Mode))}
}

type GetBusCount struct {
	Target
	MediaType vst3.MediaType    `cbor:"media_type"`
	Direction vst3.BusDirection `cbor:"direction"`
}

func (*GetBusCount) Kind() Kind { return KindGetBusCount }
func (r *GetBusCount) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("media_type", int(r.MediaType)),
		slog.Int("direction", int(r.Direction)),
	}
}

type GetBusInfo struct {
	Target
	MediaType vst3.MediaType    `cbor:"media_type"`
	Direction vst3.BusDirection `cbor:"direction"`
	Index     int32             `cbor:"index"`
}

func (*GetBusInfo) Kind() Kind { return KindGetBusInfo }
func (r *GetBusInfo) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("media_type", int(r.MediaType)),
		slog.Int("direction", int(r.Direction)),
		slog.Int("index", int(r.Index)),
	}
}

type GetRoutingInfo struct {
	Target
	In vst3.RoutingInfo `cbor:"in"`
}

func (*GetRoutingInfo) Kind() Kind { return KindGetRoutingInfo }
func (r *GetRoutingInfo) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("bus", int(r.In.BusIndex)),
		slog.Int("channel", int(r.In.Channel)),
	}
}

type ActivateBus struct {
	Target
	MediaType vst3.MediaType    `cbor:"media_type"`
	Direction vst3.BusDirection `cbor:"direction"`
	Index     int32             `cbor:"index"`
	State     bool              `cbor:"state"`
}

func (*ActivateBus) Kind() Kind { return KindActivateBus }
func (r *ActivateBus) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("media_type", int(r.MediaType)),
		slog.Int("direction", int(r.Direction)),
		slog.Int("index", int(r.Index)),
		slog.Bool("state", r.State),
	}
}

type SetActive struct {
	Target
	State bool `cbor:"state"`
}

func (*SetActive) Kind() Kind { return KindSetActive }
func (r *SetActive) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Bool("state", r.State)}
}

// SetState restores component state from a blob produced by GetState.
type SetState struct {
	Target
	State codec.Blob `cbor:"state"`
}

func (*SetState) Kind() Kind { return KindSetState }
func (r *SetState) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Any("state", r.State)}
}

type GetState struct {
	Target
}

func (*GetState) Kind() Kind            { return KindGetState }
func (*GetState) LogAttrs() []slog.Attr { return nil }
