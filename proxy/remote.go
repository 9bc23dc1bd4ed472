// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"log/slog"

	"github.com/sarvex/yabridge/lib/protocol"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// caller is the part of transport.Channel the callback proxies use.
type caller interface {
	Call(request protocol.Request, response protocol.Response) error
}

// ComponentHandlerProxy is handed to the plugin in place of the host's
// component handler. Its calls travel back to the native side, which
// routes them by owner to the handler the host installed.
type ComponentHandlerProxy struct {
	channel caller
	owner   registry.ID
	logger  *slog.Logger
}

var _ vst3.ComponentHandler = (*ComponentHandlerProxy)(nil)

func (h *ComponentHandlerProxy) BeginEdit(id vst3.ParamID) vst3.Result {
	return h.result(&protocol.BeginEdit{Owner: protocol.OwnedBy(h.owner), ID: id})
}

func (h *ComponentHandlerProxy) PerformEdit(id vst3.ParamID, valueNormalized vst3.ParamValue) vst3.Result {
	return h.result(&protocol.PerformEdit{Owner: protocol.OwnedBy(h.owner), ID: id, Value: valueNormalized})
}

func (h *ComponentHandlerProxy) EndEdit(id vst3.ParamID) vst3.Result {
	return h.result(&protocol.EndEdit{Owner: protocol.OwnedBy(h.owner), ID: id})
}

func (h *ComponentHandlerProxy) RestartComponent(flags vst3.RestartFlags) vst3.Result {
	return h.result(&protocol.RestartComponent{Owner: protocol.OwnedBy(h.owner), Flags: flags})
}

func (h *ComponentHandlerProxy) result(request protocol.Request) vst3.Result {
	var response protocol.ResultResponse
	if err := h.channel.Call(request, &response); err != nil {
		h.logger.Error("callback to host failed", "call", request.Kind().Label(), "owner", uint64(h.owner), "error", err)
		return vst3.ResultInternalError
	}
	return response.Result
}

// HostApplicationProxy is handed to the plugin in place of the host
// context passed to initialize or setHostContext.
type HostApplicationProxy struct {
	channel caller
	owner   registry.ID
	logger  *slog.Logger
}

var _ vst3.HostApplication = (*HostApplicationProxy)(nil)

func (h *HostApplicationProxy) GetName(name *vst3.String128) vst3.Result {
	var response protocol.TextResponse
	if err := h.channel.Call(&protocol.HostGetName{Owner: protocol.OwnedBy(h.owner)}, &response); err != nil {
		h.logger.Error("callback to host failed", "call", "IHostApplication::getName", "owner", uint64(h.owner), "error", err)
		return vst3.ResultInternalError
	}
	if response.Result.OK() {
		name.Set(response.Text)
	}
	return response.Result
}
