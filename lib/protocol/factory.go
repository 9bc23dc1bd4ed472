// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"log/slog"

	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// Target addresses a request to a plugin object.
type Target struct {
	InstanceID registry.ID `cbor:"instance_id"`
}

// To returns the Target for id.
func To(id registry.ID) Target { return Target{InstanceID: id} }

// Instance returns the target id.
func (t Target) Instance() registry.ID { return t.InstanceID }

// factoryCall is embedded by requests addressed to the factory.
type factoryCall struct{}

func (factoryCall) Instance() registry.ID { return registry.FactoryID }

// GetPluginFactory asks for the factory description and every class it
// exports. The host side caches the answer.
type GetPluginFactory struct {
	factoryCall
}

func (*GetPluginFactory) Kind() Kind            { return KindGetPluginFactory }
func (*GetPluginFactory) LogAttrs() []slog.Attr { return nil }

// SetHostContext passes the host application to the factory.
// HasContext false means the host passed null.
type SetHostContext struct {
	factoryCall
	HasContext bool `cbor:"has_context"`
}

func (*SetHostContext) Kind() Kind { return KindSetHostContext }
func (r *SetHostContext) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Bool("context", r.HasContext)}
}

// Construct creates an instance of class CID and requests Interface
// from it.
type Construct struct {
	factoryCall
	CID       vst3.TUID      `cbor:"cid"`
	Interface vst3.Interface `cbor:"interface"`
}

func (*Construct) Kind() Kind { return KindConstruct }
func (r *Construct) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("cid", r.CID.String()),
		slog.String("interface", r.Interface.String()),
	}
}

// Destruct releases the last reference to an instance.
type Destruct struct {
	Target
}

func (*Destruct) Kind() Kind            { return KindDestruct }
func (*Destruct) LogAttrs() []slog.Attr { return nil }

// Initialize calls IPluginBase::initialize. HasHostContext false means
// the host passed null.
type Initialize struct {
	Target
	HasHostContext bool `cbor:"has_host_context"`
}

func (*Initialize) Kind() Kind { return KindInitialize }
func (r *Initialize) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Bool("context", r.HasHostContext)}
}

// Terminate calls IPluginBase::terminate.
type Terminate struct {
	Target
}

func (*Terminate) Kind() Kind            { return KindTerminate }
func (*Terminate) LogAttrs() []slog.Attr { return nil }
