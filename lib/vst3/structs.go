// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package vst3

import "math/bits"

// ProcessSetup is the argument of AudioProcessor.SetupProcessing.
type ProcessSetup struct {
	ProcessMode        int32   `cbor:"process_mode"`
	SymbolicSampleSize int32   `cbor:"symbolic_sample_size"`
	MaxSamplesPerBlock int32   `cbor:"max_samples_per_block"`
	SampleRate         float64 `cbor:"sample_rate"`
}

// BusInfo describes one bus of a component.
type BusInfo struct {
	MediaType    MediaType    `cbor:"media_type"`
	Direction    BusDirection `cbor:"direction"`
	ChannelCount int32        `cbor:"channel_count"`
	Name         String128    `cbor:"name"`
	BusType      BusType      `cbor:"bus_type"`
	Flags        uint32       `cbor:"flags"`
}

// RoutingInfo identifies a bus channel for Component.GetRoutingInfo.
type RoutingInfo struct {
	MediaType MediaType `cbor:"media_type"`
	BusIndex  int32     `cbor:"bus_index"`
	Channel   int32     `cbor:"channel"`
}

// Parameter flags.
const (
	ParameterCanAutomate  int32 = 1 << 0
	ParameterIsReadOnly   int32 = 1 << 1
	ParameterIsWrapAround int32 = 1 << 2
	ParameterIsList       int32 = 1 << 3
	ParameterIsHidden     int32 = 1 << 4
	ParameterIsBypass     int32 = 1 << 16
)

// ParameterInfo describes one parameter of an edit controller.
type ParameterInfo struct {
	ID                     ParamID    `cbor:"id"`
	Title                  String128  `cbor:"title"`
	ShortTitle             String128  `cbor:"short_title"`
	Units                  String128  `cbor:"units"`
	StepCount              int32      `cbor:"step_count"`
	DefaultNormalizedValue ParamValue `cbor:"default_normalized_value"`
	UnitID                 int32      `cbor:"unit_id"`
	Flags                  int32      `cbor:"flags"`
}

// Class categories used in ClassInfo.Category.
const (
	CategoryAudioEffect         = "Audio Module Class"
	CategoryComponentController = "Component Controller Class"
)

// ClassInfo describes one class exported by a plugin factory. It merges
// the fields of PClassInfo, PClassInfo2 and PClassInfoW.
type ClassInfo struct {
	CID           TUID   `cbor:"cid"`
	Cardinality   int32  `cbor:"cardinality"`
	Category      string `cbor:"category"`
	Name          string `cbor:"name"`
	ClassFlags    uint32 `cbor:"class_flags,omitempty"`
	SubCategories string `cbor:"sub_categories,omitempty"`
	Vendor        string `cbor:"vendor,omitempty"`
	Version       string `cbor:"version,omitempty"`
	SDKVersion    string `cbor:"sdk_version,omitempty"`
}

// FactoryInfo describes the plugin factory itself.
type FactoryInfo struct {
	Vendor string `cbor:"vendor"`
	URL    string `cbor:"url"`
	Email  string `cbor:"email"`
	Flags  int32  `cbor:"flags"`
}

// ChannelCount returns the number of channels in an arrangement.
func (arrangement SpeakerArrangement) ChannelCount() int32 {
	return int32(bits.OnesCount64(uint64(arrangement)))
}
