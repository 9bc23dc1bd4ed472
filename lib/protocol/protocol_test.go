// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sarvex/yabridge/lib/audio"
	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/vst3"
)

var gainCID = vst3.TUID{0x56, 0x53, 0x54, 0x47, 0x61, 0x69, 0x6e, 0x00, 1, 2, 3, 4, 5, 6, 7, 8}

func sampleBlob(t *testing.T) codec.Blob {
	t.Helper()
	blob, err := codec.PackBlob([]byte("preset: warm tape"), codec.DefaultBlobPolicy)
	if err != nil {
		t.Fatalf("PackBlob: %v", err)
	}
	return blob
}

// sampleMessages returns one populated value of every message kind.
func sampleMessages(t *testing.T) []Message {
	blob := sampleBlob(t)
	return []Message{
		&GetPluginFactory{},
		&SetHostContext{HasContext: true},
		&Construct{CID: gainCID, Interface: vst3.InterfaceComponent},
		&Destruct{Target: To(3)},
		&Initialize{Target: To(1), HasHostContext: true},
		&Terminate{Target: To(1)},

		&GetControllerClassID{Target: To(1)},
		&SetIoMode{Target: To(1), Mode: vst3.IoModeAdvanced},
		&GetBusCount{Target: To(1), MediaType: vst3.MediaTypeAudio, Direction: vst3.BusDirectionOutput},
		&GetBusInfo{Target: To(1), MediaType: vst3.MediaTypeEvent, Direction: vst3.BusDirectionInput, Index: 2},
		&GetRoutingInfo{Target: To(1), In: vst3.RoutingInfo{MediaType: vst3.MediaTypeAudio, BusIndex: 1, Channel: -1}},
		&ActivateBus{Target: To(1), MediaType: vst3.MediaTypeAudio, Direction: vst3.BusDirectionInput, Index: 1, State: true},
		&SetActive{Target: To(1), State: true},
		&SetState{Target: To(1), State: blob},
		&GetState{Target: To(1)},

		&SetBusArrangements{
			Target:  To(1),
			Inputs:  []vst3.SpeakerArrangement{vst3.SpeakerArrangementStereo},
			Outputs: []vst3.SpeakerArrangement{vst3.SpeakerArrangementStereo, vst3.SpeakerArrangementMono},
		},
		&GetBusArrangement{Target: To(1), Direction: vst3.BusDirectionOutput, Index: 1},
		&CanProcessSampleSize{Target: To(1), SymbolicSampleSize: vst3.SampleSize64},
		&GetLatencySamples{Target: To(1)},
		&SetupProcessing{Target: To(1), Setup: vst3.ProcessSetup{
			ProcessMode:        vst3.ProcessModeOffline,
			SymbolicSampleSize: vst3.SampleSize32,
			MaxSamplesPerBlock: 512,
			SampleRate:         48000,
		}},
		&SetProcessing{Target: To(1), State: true},
		&Process{Target: To(1), Data: audio.Request{
			ProcessMode:        vst3.ProcessModeRealtime,
			SymbolicSampleSize: vst3.SampleSize32,
			NumSamples:         2,
			Inputs:             []audio.Bus{{SilenceFlags: 2, Channels: 2, Samples: make([]byte, 16)}},
			OutputChannels:     []int32{2},
			InputParameterChanges: &vst3.ParameterChanges{Queues: []vst3.ParamValueQueue{
				{ID: 4, Points: []vst3.ParamPoint{{SampleOffset: 0, Value: 0.25}, {SampleOffset: 1, Value: 0.5}}},
			}},
			OutputParameterChangesSupported: true,
			InputEvents: &vst3.EventList{Events: []vst3.Event{{
				SampleOffset: 1,
				Type:         vst3.EventTypeNoteOn,
				NoteOn:       &vst3.NoteOnEvent{Channel: 0, Pitch: 60, Velocity: 0.75, NoteID: -1},
			}}},
			ProcessContext: &vst3.ProcessContext{
				State:      vst3.ProcessContextPlaying | vst3.ProcessContextTempoValid,
				SampleRate: 48000,
				Tempo:      120,
			},
		}},
		&GetTailSamples{Target: To(1)},

		&SetComponentState{Target: To(2), State: blob},
		&SetControllerState{Target: To(2), State: blob},
		&GetControllerState{Target: To(2)},
		&GetParameterCount{Target: To(2)},
		&GetParameterInfo{Target: To(2), Index: 0},
		&GetParamStringByValue{Target: To(2), ID: 7, Value: 0.5},
		&GetParamValueByString{Target: To(2), ID: 7, Text: "-6.0 dB"},
		&NormalizedParamToPlain{Target: To(2), ID: 7, Value: 0.5},
		&PlainParamToNormalized{Target: To(2), ID: 7, Value: -6},
		&GetParamNormalized{Target: To(2), ID: 7},
		&SetParamNormalized{Target: To(2), ID: 7, Value: 0.125},
		&SetComponentHandler{Target: To(2), HasHandler: true},
		&Connect{Target: To(1), OtherInstanceID: 2},
		&Disconnect{Target: To(1), OtherInstanceID: 2},

		&BeginEdit{Owner: OwnedBy(2), ID: 7},
		&PerformEdit{Owner: OwnedBy(2), ID: 7, Value: 0.3},
		&EndEdit{Owner: OwnedBy(2), ID: 7},
		&RestartComponent{Owner: OwnedBy(2), Flags: vst3.RestartLatencyChanged},
		&HostGetName{Owner: OwnedBy(0)},
		&WantsConfiguration{Version: "1.0.0"},

		&Ack{},
		&ResultResponse{Result: vst3.ResultFalse},
		&FactoryResponse{
			Info: vst3.FactoryInfo{Vendor: "Example Audio", URL: "https://example.org", Email: "dsp@example.org"},
			Classes: []vst3.ClassInfo{{
				CID:         gainCID,
				Cardinality: 0x7fffffff,
				Category:    vst3.CategoryAudioEffect,
				Name:        "Gain",
				Vendor:      "Example Audio",
			}},
		},
		&ConstructResponse{InstanceID: 1, Interfaces: vst3.NewInterfaceSet(vst3.InterfaceComponent, vst3.InterfaceAudioProcessor)},
		&ClassIDResponse{CID: gainCID},
		&CountResponse{Count: 3},
		&BusInfoResponse{Info: vst3.BusInfo{
			MediaType:    vst3.MediaTypeAudio,
			Direction:    vst3.BusDirectionOutput,
			ChannelCount: 2,
			Name:         vst3.NewString128("Sortie stéréo"),
			Flags:        vst3.BusFlagDefaultActive,
		}},
		&RoutingInfoResponse{Out: vst3.RoutingInfo{BusIndex: 0, Channel: 1}},
		&StateResponse{State: blob},
		&ArrangementResponse{Arrangement: vst3.SpeakerArrangementStereo},
		&SamplesResponse{Samples: 128},
		&ProcessResponse{Data: audio.Response{
			Outputs: []audio.Bus{{Channels: 2, Samples: make([]byte, 16)}},
			OutputParameterChanges: &vst3.ParameterChanges{Queues: []vst3.ParamValueQueue{
				{ID: 9, Points: []vst3.ParamPoint{{SampleOffset: 0, Value: 1}}},
			}},
		}},
		&ParameterInfoResponse{Info: vst3.ParameterInfo{
			ID:                     7,
			Title:                  vst3.NewString128("Gain"),
			Units:                  vst3.NewString128("dB"),
			DefaultNormalizedValue: 0.5,
			Flags:                  vst3.ParameterCanAutomate,
		}},
		&TextResponse{Text: "-6.0 dB"},
		&ValueResponse{Result: vst3.ResultInvalidArgument, Value: 0.5},
		&Configuration{
			Version:     "1.0.0",
			Verbosity:   diagnostics.AllEvents,
			StatePolicy: codec.BlobPolicy{Compression: codec.CompressionZstd, Threshold: 1024},
		},
	}
}

func TestEveryMessageRoundTrips(t *testing.T) {
	t.Parallel()

	seen := make(map[Kind]bool)
	for _, message := range sampleMessages(t) {
		kind := message.Kind()
		seen[kind] = true
		t.Run(kind.String(), func(t *testing.T) {
			encoded, err := codec.Marshal(message)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			decoded, err := New(kind)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := codec.Unmarshal(encoded, decoded); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !reflect.DeepEqual(decoded, message) {
				t.Errorf("round trip changed the message:\n got %#v\nwant %#v", decoded, message)
			}
		})
	}

	for kind := range kinds {
		if !seen[kind] {
			t.Errorf("no round-trip sample for %s", kind)
		}
	}
}

func TestKindTable(t *testing.T) {
	t.Parallel()

	for kind, info := range kinds {
		message := info.zero()
		if message.Kind() != kind {
			t.Errorf("%s constructs a message of kind %s", kind, message.Kind())
		}
		if !kind.IsRequest() {
			if _, ok := message.(Request); ok {
				t.Errorf("response kind %s implements Request", kind)
			}
			continue
		}
		if _, ok := message.(Request); !ok {
			t.Errorf("request kind %s does not implement Request", kind)
		}
		response := kind.ResponseKind()
		if response.IsRequest() || !response.Known() {
			t.Errorf("%s answers with %s, which is not a known response kind", kind, response)
		}
		if !strings.Contains(kind.Label(), "::") && kind != KindWantsConfiguration {
			t.Errorf("%s label %q is not Interface::method", kind, kind.Label())
		}
	}
}

func TestPerBlockCallsLogAtAllEvents(t *testing.T) {
	t.Parallel()

	perBlock := map[Kind]bool{
		KindProcess:              true,
		KindGetTailSamples:       true,
		KindGetLatencySamples:    true,
		KindGetBusCount:          true,
		KindCanProcessSampleSize: true,
	}
	for kind := range kinds {
		if !kind.IsRequest() {
			continue
		}
		want := diagnostics.MostEvents
		if perBlock[kind] {
			want = diagnostics.AllEvents
		}
		if got := kind.Verbosity(); got != want {
			t.Errorf("%s verbosity = %s, want %s", kind, got, want)
		}
	}
}

func TestNewRejectsUnknownKinds(t *testing.T) {
	t.Parallel()

	if _, err := New(Kind(0x7777)); err == nil {
		t.Error("New accepted an unknown kind")
	}
	if _, err := NewRequest(KindAck); err == nil {
		t.Error("NewRequest accepted a response kind")
	}
	if _, err := NewResponse(KindProcess); err == nil {
		t.Error("NewResponse accepted a request kind")
	}
	if Kind(0x7777).Known() {
		t.Error("Known() true for an undefined kind")
	}
	if got := Kind(0x7777).String(); got != "Kind(0x7777)" {
		t.Errorf("String() = %q", got)
	}
}

func TestReleaseRequestClearsOptionalFields(t *testing.T) {
	encoded, err := codec.Marshal(&Process{
		Target: To(4),
		Data: audio.Request{
			NumSamples:  2,
			Inputs:      []audio.Bus{{Channels: 1, Samples: make([]byte, 8)}},
			InputEvents: &vst3.EventList{Events: []vst3.Event{{Type: vst3.EventTypeNoteOn, NoteOn: &vst3.NoteOnEvent{Pitch: 60}}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	request, err := AcquireRequest(KindProcess)
	if err != nil {
		t.Fatalf("AcquireRequest: %v", err)
	}
	if err := codec.Unmarshal(encoded, request); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	process := request.(*Process)
	samples := &process.Data.Inputs[0].Samples[0]

	ReleaseRequest(request)
	if process.Data.InputEvents != nil || process.InstanceID != 0 || process.Data.NumSamples != 0 {
		t.Errorf("released request kept %+v", process)
	}
	if len(process.Data.Inputs) != 1 || &process.Data.Inputs[0].Samples[0] != samples {
		t.Error("released request dropped its sample storage")
	}

	if request, err := AcquireRequest(KindSetActive); err != nil || request.Kind() != KindSetActive {
		t.Errorf("AcquireRequest(KindSetActive) = %v, %v", request, err)
	}
	if _, err := AcquireRequest(KindAck); err == nil {
		t.Error("AcquireRequest accepted a response kind")
	}
}

func TestInstanceAddressing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		request Request
		want    uint64
	}{
		{&SetActive{Target: To(5)}, 5},
		{&Construct{}, 0},
		{&BeginEdit{Owner: OwnedBy(9)}, 9},
		{&WantsConfiguration{}, 0},
	}
	for _, test := range tests {
		if got := uint64(test.request.Instance()); got != test.want {
			t.Errorf("%s Instance() = %d, want %d", test.request.Kind(), got, test.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	call := Describe(&SetActive{Target: To(4), State: true})
	if call.Label() != "IComponent::setActive" {
		t.Errorf("Label() = %q", call.Label())
	}
	if call.Verbosity() != diagnostics.MostEvents || call.Instance() != 4 {
		t.Errorf("Verbosity() = %s, Instance() = %d", call.Verbosity(), call.Instance())
	}
	if attrs := call.LogAttrs(); len(attrs) != 1 || attrs[0].Key != "state" {
		t.Errorf("LogAttrs() = %v", attrs)
	}
}

func TestStateIsLoggedByDigest(t *testing.T) {
	t.Parallel()

	blob, err := codec.PackBlob(make([]byte, 1<<20), codec.DefaultBlobPolicy)
	if err != nil {
		t.Fatalf("PackBlob: %v", err)
	}
	attrs := (&SetState{Target: To(1), State: blob}).LogAttrs()
	rendered := attrs[0].Value.Resolve().String()
	if len(rendered) > 200 || !strings.Contains(rendered, blob.ShortDigest()) {
		t.Errorf("state rendered as %q", rendered)
	}
}

func TestFailureCarriesResult(t *testing.T) {
	t.Parallel()
	for kind := range kinds {
		if !kind.IsRequest() {
			continue
		}
		response, err := Failure(kind, vst3.ResultNoInterface)
		if err != nil {
			t.Errorf("Failure(%s): %v", kind, err)
			continue
		}
		if response.Kind() != kind.ResponseKind() {
			t.Errorf("Failure(%s) returned %s", kind, response.Kind())
		}
		field := reflect.ValueOf(response).Elem().FieldByName("Result")
		if field.IsValid() && vst3.Result(field.Int()) != vst3.ResultNoInterface {
			t.Errorf("Failure(%s) result = %v", kind, field.Int())
		}
	}
	if _, err := Failure(KindAck, vst3.ResultOK); err == nil {
		t.Error("Failure accepted a response kind")
	}
}
