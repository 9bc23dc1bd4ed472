// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"github.com/sarvex/yabridge/lib/protocol"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// FactoryProxy is the native stand-in for the plugin's factory. Class
// information is fetched once and answered locally.
type FactoryProxy struct {
	client  *Client
	info    vst3.FactoryInfo
	classes []vst3.ClassInfo
}

var _ vst3.PluginFactory = (*FactoryProxy)(nil)

func (f *FactoryProxy) GetFactoryInfo() (vst3.FactoryInfo, vst3.Result) {
	return f.info, vst3.ResultOK
}

func (f *FactoryProxy) CountClasses() int32 { return int32(len(f.classes)) }

func (f *FactoryProxy) GetClassInfo(index int32) (vst3.ClassInfo, vst3.Result) {
	if index < 0 || int(index) >= len(f.classes) {
		return vst3.ClassInfo{}, vst3.ResultInvalidArgument
	}
	return f.classes[index], vst3.ResultOK
}

// CreateInstance asks the plugin host process to construct class cid.
// The returned value is a *PluginProxy.
func (f *FactoryProxy) CreateInstance(cid vst3.TUID, iface vst3.Interface) (any, vst3.Result) {
	var response protocol.ConstructResponse
	if !f.client.call(&protocol.Construct{CID: cid, Interface: iface}, &response) {
		return nil, vst3.ResultInternalError
	}
	if !response.Result.OK() {
		return nil, response.Result
	}
	proxy, err := f.client.adopt(response.InstanceID, response.Interfaces)
	if err != nil {
		f.client.logger.Error("plugin host reused a live instance id", "error", err)
		return nil, vst3.ResultInternalError
	}
	return proxy, vst3.ResultOK
}

// SetHostContext passes context to the factory. A nil context clears
// it.
func (f *FactoryProxy) SetHostContext(context vst3.HostApplication) vst3.Result {
	f.client.callbacks.SetHostContext(registry.FactoryID, context)
	var response protocol.ResultResponse
	if !f.client.call(&protocol.SetHostContext{HasContext: context != nil}, &response) {
		return vst3.ResultInternalError
	}
	return response.Result
}
