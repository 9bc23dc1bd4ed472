// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"log/slog"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/vst3"
)

// Owner addresses a callback to the host-side object registered for an
// instance: its component handler or its host context. Zero addresses
// the factory's host context.
type Owner struct {
	OwnerID registry.ID `cbor:"owner_id"`
}

// OwnedBy returns the Owner for id.
func OwnedBy(id registry.ID) Owner { return Owner{OwnerID: id} }

// Instance returns the owner id.
func (o Owner) Instance() registry.ID { return o.OwnerID }

type BeginEdit struct {
	Owner
	ID vst3.ParamID `cbor:"id"`
}

func (*BeginEdit) Kind() Kind { return KindBeginEdit }
func (r *BeginEdit) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Uint64("id", uint64(r.ID))}
}

type PerformEdit struct {
	Owner
	ID    vst3.ParamID    `cbor:"id"`
	Value vst3.ParamValue `cbor:"value"`
}

func (*PerformEdit) Kind() Kind { return KindPerformEdit }
func (r *PerformEdit) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("id", uint64(r.ID)),
		slog.Float64("value", float64(r.Value)),
	}
}

type EndEdit struct {
	Owner
	ID vst3.ParamID `cbor:"id"`
}

func (*EndEdit) Kind() Kind { return KindEndEdit }
func (r *EndEdit) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.Uint64("id", uint64(r.ID))}
}

type RestartComponent struct {
	Owner
	Flags vst3.RestartFlags `cbor:"flags"`
}

func (*RestartComponent) Kind() Kind { return KindRestartComponent }
func (r *RestartComponent) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("flags", fmtHex(uint64(r.Flags)))}
}

// HostGetName asks the owner's host context for the host's name.
type HostGetName struct {
	Owner
}

func (*HostGetName) Kind() Kind            { return KindHostGetName }
func (*HostGetName) LogAttrs() []slog.Attr { return nil }

// WantsConfiguration is the first message the plugin host process
// sends. The native side answers with a Configuration.
type WantsConfiguration struct {
	factoryCall
	Version string `cbor:"version"`
}

func (*WantsConfiguration) Kind() Kind { return KindWantsConfiguration }
func (r *WantsConfiguration) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("version", r.Version)}
}

// Configuration is the native side's answer to WantsConfiguration.
type Configuration struct {
	Version   string                `cbor:"version"`
	Verbosity diagnostics.Verbosity `cbor:"verbosity"`
	// StatePolicy controls how both sides pack state blobs.
	StatePolicy codec.BlobPolicy `cbor:"state_policy"`
}

func (*Configuration) Kind() Kind { return KindConfiguration }
func (r *Configuration) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("version", r.Version),
		slog.String("verbosity", r.Verbosity.String()),
		slog.String("compression", r.StatePolicy.Compression.String()),
		slog.Int("threshold", r.StatePolicy.Threshold),
	}
}
