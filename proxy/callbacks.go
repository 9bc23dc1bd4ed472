// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"sync"

	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// CallbackRegistry holds the host-side objects the plugin may call
// back into, keyed by the instance id of the proxy they were handed
// to. registry.FactoryID keys the context passed to the factory.
type CallbackRegistry struct {
	handlers *registry.Registry[vst3.ComponentHandler]
	contexts *registry.Registry[vst3.HostApplication]

	// The factory's context lives outside contexts, which never hands
	// out or accepts FactoryID.
	mu             sync.RWMutex
	factoryContext vst3.HostApplication
}

// NewCallbackRegistry returns an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{
		handlers: registry.New[vst3.ComponentHandler](),
		contexts: registry.New[vst3.HostApplication](),
	}
}

// SetComponentHandler replaces the handler of owner. A nil handler
// removes it.
func (r *CallbackRegistry) SetComponentHandler(owner registry.ID, handler vst3.ComponentHandler) {
	if handler == nil {
		r.handlers.Release(owner)
		return
	}
	// A concurrent callback sees the old handler or the new one, never
	// neither. Store only fails for FactoryID, which owns no handler.
	_ = r.handlers.Store(owner, handler)
}

// ComponentHandler returns the handler of owner.
func (r *CallbackRegistry) ComponentHandler(owner registry.ID) (vst3.ComponentHandler, bool) {
	handler, err := r.handlers.Resolve(owner)
	return handler, err == nil
}

// SetHostContext replaces the host context of owner. A nil context
// removes it.
func (r *CallbackRegistry) SetHostContext(owner registry.ID, context vst3.HostApplication) {
	if owner == registry.FactoryID {
		r.mu.Lock()
		r.factoryContext = context
		r.mu.Unlock()
		return
	}
	if context == nil {
		r.contexts.Release(owner)
		return
	}
	_ = r.contexts.Store(owner, context)
}

// HostContext returns the host context of owner.
func (r *CallbackRegistry) HostContext(owner registry.ID) (vst3.HostApplication, bool) {
	if owner == registry.FactoryID {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.factoryContext, r.factoryContext != nil
	}
	context, err := r.contexts.Resolve(owner)
	return context, err == nil
}

// Forget drops everything registered for owner.
func (r *CallbackRegistry) Forget(owner registry.ID) {
	if owner == registry.FactoryID {
		r.SetHostContext(owner, nil)
		return
	}
	r.handlers.Release(owner)
	r.contexts.Release(owner)
}
