// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sarvex/yabridge/internal/testplugin"
	"github.com/sarvex/yabridge/lib/diagnostics"
	"github.com/sarvex/yabridge/lib/protocol"
	"github.com/sarvex/yabridge/lib/registry"
	"github.com/sarvex/yabridge/lib/testutil"
	"github.com/sarvex/yabridge/lib/version"
	"github.com/sarvex/yabridge/lib/vst3"
	"github.com/sarvex/yabridge/transport"
)

const timeout = 5 * time.Second

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// bridge is a connected client and server with the gain plugin loaded
// on the server side.
type bridge struct {
	client *Client
	server *Server
	plugin *testplugin.Factory

	clientEvents *diagnostics.MemorySink
	serverEvents *diagnostics.MemorySink
	serverLog    *diagnostics.Logger

	serverDone chan error
}

func connect(t *testing.T, options testplugin.Options, verbosity diagnostics.Verbosity) *bridge {
	t.Helper()
	b := &bridge{
		plugin:       testplugin.NewFactory(options),
		clientEvents: &diagnostics.MemorySink{},
		serverEvents: &diagnostics.MemorySink{},
		serverDone:   make(chan error, 1),
	}
	b.serverLog = diagnostics.NewLogger(b.serverEvents, diagnostics.Basic)

	nativeConn, pluginConn := net.Pipe()
	b.client = NewClient(nativeConn, ClientConfig{
		Logger:      quiet,
		Diagnostics: diagnostics.NewLogger(b.clientEvents, verbosity),
		Verbosity:   verbosity,
	})
	server, err := NewServer(pluginConn, ServerConfig{
		Factory:     b.plugin,
		Logger:      quiet,
		Diagnostics: b.serverLog,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	b.server = server

	go b.client.Run(context.Background())
	go func() { b.serverDone <- b.server.Run(context.Background()) }()
	t.Cleanup(func() {
		b.client.Close()
		testutil.RequireReceive(t, b.serverDone, timeout, "waiting for server shutdown")
	})

	if _, err := b.server.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	return b
}

func (b *bridge) create(t *testing.T, cid vst3.TUID, iface vst3.Interface) *PluginProxy {
	t.Helper()
	factory, err := b.client.Factory()
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	object, result := factory.CreateInstance(cid, iface)
	if !result.OK() {
		t.Fatalf("CreateInstance(%s, %s) = %s", cid, iface, result)
	}
	return object.(*PluginProxy)
}

func stereoBlock(frames int, input float32) *vst3.ProcessData {
	in := [][]float32{make([]float32, frames), make([]float32, frames)}
	for channel := range in {
		for frame := range in[channel] {
			in[channel][frame] = input
		}
	}
	return &vst3.ProcessData{
		ProcessMode:            vst3.ProcessModeRealtime,
		SymbolicSampleSize:     vst3.SampleSize32,
		NumSamples:             int32(frames),
		Inputs:                 []vst3.AudioBusBuffers{{NumChannels: 2, Channels32: in}},
		Outputs:                []vst3.AudioBusBuffers{{NumChannels: 2, Channels32: [][]float32{make([]float32, frames), make([]float32, frames)}}},
		OutputParameterChanges: &vst3.ParameterChanges{},
	}
}

var realtime = vst3.ProcessSetup{
	ProcessMode:        vst3.ProcessModeRealtime,
	SymbolicSampleSize: vst3.SampleSize32,
	MaxSamplesPerBlock: 512,
	SampleRate:         44100,
}

func TestHandshake(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.AllEvents)

	testutil.RequireClosed(t, b.client.Configured(), timeout, "waiting for configuration")
	if got := b.client.RemoteVersion(); got != version.Short() {
		t.Errorf("RemoteVersion() = %q, want %q", got, version.Short())
	}
	if got := b.serverLog.Threshold(); got != diagnostics.AllEvents {
		t.Errorf("server verbosity = %s, want %s", got, diagnostics.AllEvents)
	}
}

func TestFactoryClassesAreCached(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)

	factory, err := b.client.Factory()
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	again, _ := b.client.Factory()
	if again != factory {
		t.Error("second Factory call returned a different proxy")
	}
	if factory.CountClasses() != 2 {
		t.Fatalf("CountClasses() = %d", factory.CountClasses())
	}
	info, result := factory.GetClassInfo(0)
	if !result.OK() || info.CID != testplugin.ProcessorCID || info.Name != "Gain" {
		t.Errorf("GetClassInfo(0) = %+v (%s)", info, result)
	}
	if _, result := factory.GetClassInfo(5); result != vst3.ResultInvalidArgument {
		t.Errorf("GetClassInfo(5) = %s", result)
	}

	// Class queries are answered locally.
	before := len(b.clientEvents.Events())
	factory.GetClassInfo(1)
	factory.GetFactoryInfo()
	if after := len(b.clientEvents.Events()); after != before {
		t.Errorf("class queries sent %d messages", after-before)
	}
}

func TestConstructIssuesInstanceIDs(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)

	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)
	controller := b.create(t, testplugin.ControllerCID, vst3.InterfaceEditController)
	if processor.ID() != 1 || controller.ID() != 2 {
		t.Errorf("instance ids = %d, %d; want 1, 2", processor.ID(), controller.ID())
	}
	if !processor.Interfaces().Has(vst3.InterfaceAudioProcessor) || processor.Interfaces().Has(vst3.InterfaceEditController) {
		t.Errorf("processor interfaces = %s", processor.Interfaces())
	}
	if _, ok := vst3.Query[vst3.Component](controller, vst3.InterfaceComponent); ok {
		t.Error("controller proxy answered a query for IComponent")
	}
	if b.server.Instances() != 2 {
		t.Errorf("server holds %d instances", b.server.Instances())
	}

	factory, _ := b.client.Factory()
	if _, result := factory.CreateInstance(testplugin.ControllerCID, vst3.InterfaceAudioProcessor); result != vst3.ResultNoInterface {
		t.Errorf("unsupported interface = %s, want kNoInterface", result)
	}
}

func TestProcessRoundTrip(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceAudioProcessor)

	if result := processor.SetupProcessing(realtime); !result.OK() {
		t.Fatalf("SetupProcessing = %s", result)
	}
	if result := processor.SetParamNormalized(testplugin.ParamGain, 0.25); result != vst3.ResultNoInterface {
		t.Errorf("SetParamNormalized on a processor = %s, want kNoInterface", result)
	}

	changes := &vst3.ParameterChanges{}
	queue, _ := changes.AddParameterData(testplugin.ParamGain)
	queue.AddPoint(0, 0.25)

	for block := range 3 {
		data := stereoBlock(256, 0.5)
		if block == 0 {
			data.InputParameterChanges = changes
		}
		if result := processor.Process(data); !result.OK() {
			t.Fatalf("block %d: Process = %s", block, result)
		}
		if len(data.Outputs[0].Channels32) != 2 {
			t.Fatalf("block %d: %d output channels", block, len(data.Outputs[0].Channels32))
		}
		for channel, samples := range data.Outputs[0].Channels32 {
			if samples[0] != 0.25 || samples[255] != 0.25 {
				t.Errorf("block %d channel %d: got %v..%v, want 0.25", block, channel, samples[0], samples[255])
			}
		}
		peak := data.OutputParameterChanges.Queues
		if len(peak) != 1 || peak[0].ID != testplugin.ParamPeak || peak[0].Points[0].Value != 0.25 {
			t.Errorf("block %d: output parameter changes = %+v", block, peak)
		}
	}
	if gain := b.plugin.Processors()[0].Gain(); gain != 0.5 {
		t.Errorf("plugin gain = %v, want 0.5", gain)
	}
}

func TestProcessRequiresSetup(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceAudioProcessor)

	if result := processor.Process(stereoBlock(64, 1)); result != vst3.ResultNotInitialized {
		t.Fatalf("Process before setup = %s, want kNotInitialized", result)
	}

	if result := processor.SetupProcessing(realtime); !result.OK() {
		t.Fatalf("SetupProcessing = %s", result)
	}
	mono := []vst3.SpeakerArrangement{vst3.SpeakerArrangementMono}
	if result := processor.SetBusArrangements(mono, mono); result != vst3.ResultTrue {
		t.Fatalf("SetBusArrangements = %s", result)
	}
	if result := processor.Process(stereoBlock(64, 1)); result != vst3.ResultNotInitialized {
		t.Errorf("Process after a layout change = %s, want kNotInitialized", result)
	}

	if result := processor.SetupProcessing(realtime); !result.OK() {
		t.Fatalf("SetupProcessing = %s", result)
	}
	if result := processor.Process(stereoBlock(64, 1)); result != vst3.ResultInvalidArgument {
		t.Errorf("stereo block on a mono layout = %s, want kInvalidArgument", result)
	}

	tooLong := stereoBlock(1024, 1)
	tooLong.Inputs[0] = vst3.AudioBusBuffers{NumChannels: 1, Channels32: tooLong.Inputs[0].Channels32[:1]}
	tooLong.Outputs[0] = vst3.AudioBusBuffers{NumChannels: 1, Channels32: tooLong.Outputs[0].Channels32[:1]}
	if result := processor.Process(tooLong); result != vst3.ResultInvalidArgument {
		t.Errorf("block longer than the maximum = %s, want kInvalidArgument", result)
	}

	// The connection survives rejected blocks.
	if latency := processor.GetLatencySamples(); latency != 0 {
		t.Errorf("GetLatencySamples() = %d", latency)
	}
}

func TestConcurrentInstancesProcess(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)

	const instances = 4
	var wg sync.WaitGroup
	failures := make(chan string, instances)
	for range instances {
		processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceAudioProcessor)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if result := processor.SetupProcessing(realtime); !result.OK() {
				failures <- "SetupProcessing: " + result.String()
				return
			}
			for range 50 {
				data := stereoBlock(128, 0.5)
				if result := processor.Process(data); !result.OK() {
					failures <- "Process: " + result.String()
					return
				}
				if data.Outputs[0].Channels32[1][127] != 0.5 {
					failures <- "unexpected output sample"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(failures)
	for failure := range failures {
		t.Error(failure)
	}
}

func TestLargeStateSurvivesTransfer(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{StatePadding: 10 << 20}, diagnostics.Basic)
	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)

	var direct bytes.Buffer
	b.plugin.Processors()[0].GetState(&direct)

	var bridged bytes.Buffer
	if result := processor.GetState(&bridged); !result.OK() {
		t.Fatalf("GetState = %s", result)
	}
	if bridged.Len() < 10<<20 || !bytes.Equal(bridged.Bytes(), direct.Bytes()) {
		t.Fatalf("bridged state differs: %d bytes, want %d", bridged.Len(), direct.Len())
	}

	other := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)
	if result := other.SetState(bytes.NewReader(bridged.Bytes())); !result.OK() {
		t.Fatalf("SetState = %s", result)
	}
	var restored bytes.Buffer
	b.plugin.Processors()[1].GetState(&restored)
	if !bytes.Equal(restored.Bytes(), direct.Bytes()) {
		t.Error("restored state differs from the original")
	}

	if result := other.SetState(bytes.NewReader([]byte("not a state"))); result != vst3.ResultInvalidArgument {
		t.Errorf("SetState(garbage) = %s, want kInvalidArgument", result)
	}
}

func TestControllerStateRouting(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	controller := b.create(t, testplugin.ControllerCID, vst3.InterfaceEditController)

	if result := controller.SetState(bytes.NewReader([]byte("editor layout"))); !result.OK() {
		t.Fatalf("SetState = %s", result)
	}
	var state bytes.Buffer
	if result := controller.GetState(&state); !result.OK() {
		t.Fatalf("GetState = %s", result)
	}
	if state.String() != "editor layout" {
		t.Errorf("controller state = %q", state.String())
	}
}

// recordingHandler is a native component handler.
type recordingHandler struct {
	mu    sync.Mutex
	calls []string
}

func (h *recordingHandler) record(call string) vst3.Result {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
	return vst3.ResultOK
}

func (h *recordingHandler) BeginEdit(vst3.ParamID) vst3.Result { return h.record("begin") }
func (h *recordingHandler) PerformEdit(vst3.ParamID, vst3.ParamValue) vst3.Result {
	return h.record("perform")
}
func (h *recordingHandler) EndEdit(vst3.ParamID) vst3.Result { return h.record("end") }
func (h *recordingHandler) RestartComponent(vst3.RestartFlags) vst3.Result {
	return h.record("restart")
}

func (h *recordingHandler) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func TestCallbacksReachNativeHandler(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)
	controller := b.create(t, testplugin.ControllerCID, vst3.InterfaceEditController)

	handler := &recordingHandler{}
	if result := controller.SetComponentHandler(handler); !result.OK() {
		t.Fatalf("SetComponentHandler = %s", result)
	}

	// The plugin calls back into the host while the host is still
	// waiting for setComponentState to return.
	var state bytes.Buffer
	processor.GetState(&state)
	if result := controller.SetComponentState(&state); !result.OK() {
		t.Fatalf("SetComponentState = %s", result)
	}
	if calls := handler.Calls(); len(calls) != 1 || calls[0] != "restart" {
		t.Fatalf("handler calls after SetComponentState = %v", calls)
	}

	// An edit gesture started by the plugin's editor.
	if result := b.plugin.Controllers()[0].Edit(testplugin.ParamGain, 0.75); !result.OK() {
		t.Fatalf("Edit = %s", result)
	}
	want := []string{"restart", "begin", "perform", "end"}
	calls := handler.Calls()
	if len(calls) != len(want) {
		t.Fatalf("handler calls = %v, want %v", calls, want)
	}
	for index := range want {
		if calls[index] != want[index] {
			t.Errorf("call %d = %q, want %q", index, calls[index], want[index])
		}
	}
	if value := controller.GetParamNormalized(testplugin.ParamGain); value != 0.75 {
		t.Errorf("GetParamNormalized = %v, want 0.75", value)
	}
}

func TestRemovedHandlerAnswersNoInterface(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	controller := b.create(t, testplugin.ControllerCID, vst3.InterfaceEditController)

	controller.SetComponentHandler(&recordingHandler{})
	if result := controller.SetComponentHandler(nil); !result.OK() {
		t.Fatalf("SetComponentHandler(nil) = %s", result)
	}

	stale := &ComponentHandlerProxy{channel: b.server.channel, owner: controller.ID(), logger: quiet}
	if result := stale.BeginEdit(7); result != vst3.ResultNoInterface {
		t.Fatalf("BeginEdit after removal = %s, want kNoInterface", result)
	}

	var logged bool
	for _, event := range b.clientEvents.Events() {
		if event.Phase == diagnostics.PhaseUnknownInterface && event.Instance == controller.ID() {
			logged = true
		}
	}
	if !logged {
		t.Error("missing handler was not logged")
	}

	// The connection stays usable.
	var text vst3.String128
	if result := controller.GetParamStringByValue(testplugin.ParamBypass, 1, &text); !result.OK() || text.String() != "On" {
		t.Errorf("GetParamStringByValue = %q (%s)", text.String(), result)
	}
}

type hostApplication string

func (h hostApplication) GetName(name *vst3.String128) vst3.Result {
	name.Set(string(h))
	return vst3.ResultOK
}

func TestHostContextCallbacks(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)

	factory, _ := b.client.Factory()
	if result := factory.SetHostContext(hostApplication("Bitwig Studio")); !result.OK() {
		t.Fatalf("SetHostContext = %s", result)
	}
	var name vst3.String128
	if result := b.plugin.HostContext().GetName(&name); !result.OK() || name.String() != "Bitwig Studio" {
		t.Errorf("factory context name = %q (%s)", name.String(), result)
	}

	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)
	if result := processor.Initialize(hostApplication("Ardour")); !result.OK() {
		t.Fatalf("Initialize = %s", result)
	}
	if got, result := b.plugin.Processors()[0].HostName(); !result.OK() || got != "Ardour" {
		t.Errorf("instance context name = %q (%s)", got, result)
	}

	processor.Terminate()
	if _, result := b.plugin.Processors()[0].HostName(); result != vst3.ResultNotInitialized {
		t.Errorf("context survived Terminate: %s", result)
	}
}

func TestConnectPeers(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)
	controller := b.create(t, testplugin.ControllerCID, vst3.InterfaceEditController)

	if result := processor.Connect(controller); !result.OK() {
		t.Fatalf("Connect = %s", result)
	}
	realController := b.plugin.Controllers()[0]
	if peer := b.plugin.Processors()[0].Peer(); peer != vst3.ConnectionPoint(realController) {
		t.Errorf("processor peer = %v, want the real controller", peer)
	}
	if result := processor.Disconnect(controller); !result.OK() {
		t.Errorf("Disconnect = %s", result)
	}
	if result := processor.Connect(foreignPoint{}); result != vst3.ResultNotImplemented {
		t.Errorf("Connect to a non-proxy = %s, want kNotImplemented", result)
	}
}

type foreignPoint struct{}

func (foreignPoint) Connect(vst3.ConnectionPoint) vst3.Result    { return vst3.ResultOK }
func (foreignPoint) Disconnect(vst3.ConnectionPoint) vst3.Result { return vst3.ResultOK }

func TestReleasedProxyFailsLocally(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	released := b.create(t, testplugin.ProcessorCID, vst3.InterfaceAudioProcessor)
	live := b.create(t, testplugin.ProcessorCID, vst3.InterfaceAudioProcessor)
	controller := b.create(t, testplugin.ControllerCID, vst3.InterfaceEditController)

	if result := released.Release(); !result.OK() {
		t.Fatalf("Release = %s", result)
	}
	calls := []struct {
		name string
		call func() vst3.Result
	}{
		{"SetActive", func() vst3.Result { return released.SetActive(true) }},
		{"SetupProcessing", func() vst3.Result { return released.SetupProcessing(realtime) }},
		{"Process", func() vst3.Result { return released.Process(stereoBlock(64, 1)) }},
		{"Initialize", func() vst3.Result { return released.Initialize(hostApplication("host")) }},
		{"SetComponentHandler", func() vst3.Result { return released.SetComponentHandler(&recordingHandler{}) }},
		{"GetState", func() vst3.Result { return released.GetState(io.Discard) }},
		{"Connect from released", func() vst3.Result { return released.Connect(controller) }},
		{"Connect to released", func() vst3.Result { return controller.Connect(released) }},
		{"Disconnect from released", func() vst3.Result { return controller.Disconnect(released) }},
	}
	for _, test := range calls {
		if result := test.call(); result != vst3.ResultInvalidArgument {
			t.Errorf("%s = %s, want kInvalidArgument", test.name, result)
		}
	}
	if count := released.GetBusCount(vst3.MediaTypeAudio, vst3.BusDirectionInput); count != 0 {
		t.Errorf("GetBusCount on a released proxy = %d", count)
	}
	if _, ok := b.client.callbacks.ComponentHandler(released.ID()); ok {
		t.Error("a released proxy installed a component handler")
	}
	if _, ok := b.client.callbacks.HostContext(released.ID()); ok {
		t.Error("a released proxy installed a host context")
	}

	select {
	case <-b.client.Done():
		t.Fatalf("a call on a released proxy closed the connection: %v", b.client.channel.Err())
	default:
	}
	if result := live.SetupProcessing(realtime); !result.OK() {
		t.Fatalf("SetupProcessing on a live proxy = %s", result)
	}
	if result := live.Process(stereoBlock(64, 1)); !result.OK() {
		t.Errorf("Process on a live proxy = %s", result)
	}
	if b.server.Instances() != 2 {
		t.Errorf("server holds %d instances, want 2", b.server.Instances())
	}
}

func TestProcessSteadyStateAllocations(t *testing.T) {
	if testutil.RaceEnabled {
		t.Skip("the race detector defeats buffer pooling")
	}
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceAudioProcessor)
	if result := processor.SetupProcessing(realtime); !result.OK() {
		t.Fatalf("SetupProcessing = %s", result)
	}

	data := stereoBlock(512, 0.5)
	cycle := func() {
		if result := processor.Process(data); !result.OK() {
			t.Fatalf("Process = %s", result)
		}
	}
	for range 10 {
		cycle()
	}

	// What remains is the goroutine serving each request and small
	// per-call decoder state. Buffers, frames and the request itself
	// are reused.
	const bound = 10
	if allocations := testing.AllocsPerRun(50, cycle); allocations > bound {
		t.Errorf("Process round trip allocates %.0f times, want at most %d", allocations, bound)
	}
	peak := data.OutputParameterChanges.Queues
	if len(peak) != 1 || peak[0].ID != testplugin.ParamPeak {
		t.Errorf("output parameter changes = %+v", peak)
	}
}

func TestUnsupportedInterfaceIsLogged(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	controller := b.create(t, testplugin.ControllerCID, vst3.InterfaceEditController)

	if result := controller.SetActive(true); result != vst3.ResultNoInterface {
		t.Errorf("SetActive on a controller = %s, want kNoInterface", result)
	}
	if count := controller.GetBusCount(vst3.MediaTypeAudio, vst3.BusDirectionInput); count != 0 {
		t.Errorf("GetBusCount on a controller = %d", count)
	}

	var interfaces []string
	for _, event := range b.serverEvents.Events() {
		if event.Phase != diagnostics.PhaseUnknownInterface {
			continue
		}
		for _, attr := range event.Attrs {
			if attr.Key == "interface" {
				interfaces = append(interfaces, attr.Value.String())
			}
		}
	}
	if len(interfaces) != 2 || interfaces[0] != "IComponent" {
		t.Errorf("unknown interface events = %v", interfaces)
	}
}

func TestUnknownInstanceClosesConnection(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	processor := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)

	err := b.client.channel.Call(&protocol.GetParamNormalized{Target: protocol.To(99)}, &protocol.ValueResponse{})
	if err == nil {
		t.Fatal("call for an unknown instance succeeded")
	}
	testutil.RequireClosed(t, b.client.Done(), timeout, "waiting for the connection to close")

	var protocolErr *transport.ProtocolError
	serverErr := testutil.RequireReceive(t, b.serverDone, timeout, "waiting for server shutdown")
	if !errors.As(serverErr, &protocolErr) {
		t.Errorf("server Run = %v, want a protocol error", serverErr)
	}
	b.serverDone <- serverErr

	if result := processor.SetActive(true); result != vst3.ResultInternalError {
		t.Errorf("call after shutdown = %s, want kInternalError", result)
	}
	if !b.plugin.Processors()[0].Closed() {
		t.Error("server did not release its objects")
	}
}

func TestCloseReleasesInstances(t *testing.T) {
	t.Parallel()
	b := connect(t, testplugin.Options{}, diagnostics.Basic)
	first := b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)
	b.create(t, testplugin.ProcessorCID, vst3.InterfaceComponent)

	if result := first.Release(); !result.OK() {
		t.Fatalf("Release = %s", result)
	}
	if !b.plugin.Processors()[0].Closed() || b.plugin.Processors()[1].Closed() {
		t.Fatal("Release closed the wrong object")
	}
	if result := first.Release(); result != vst3.ResultInvalidArgument {
		t.Errorf("second Release = %s", result)
	}
	if b.server.Instances() != 1 {
		t.Errorf("server holds %d instances after Release", b.server.Instances())
	}

	if err := b.client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	serverErr := testutil.RequireReceive(t, b.serverDone, timeout, "waiting for server shutdown")
	if serverErr != nil {
		t.Errorf("server Run = %v after an orderly close", serverErr)
	}
	b.serverDone <- serverErr
	if !b.plugin.Processors()[1].Closed() {
		t.Error("Close did not destroy the remaining instance")
	}
	if b.server.Instances() != 0 {
		t.Errorf("server holds %d instances after Close", b.server.Instances())
	}
}

func TestCallbackRegistry(t *testing.T) {
	t.Parallel()
	callbacks := NewCallbackRegistry()

	if _, ok := callbacks.ComponentHandler(3); ok {
		t.Fatal("empty registry returned a handler")
	}
	callbacks.SetComponentHandler(3, &recordingHandler{})
	second := &recordingHandler{}
	callbacks.SetComponentHandler(3, second)
	if handler, ok := callbacks.ComponentHandler(3); !ok || handler != vst3.ComponentHandler(second) {
		t.Error("replacing a handler did not take effect")
	}

	callbacks.SetHostContext(registry.FactoryID, hostApplication("factory"))
	callbacks.SetHostContext(3, hostApplication("instance"))
	if host, ok := callbacks.HostContext(registry.FactoryID); !ok || host != vst3.HostApplication(hostApplication("factory")) {
		t.Error("factory context lost")
	}

	callbacks.Forget(3)
	if _, ok := callbacks.ComponentHandler(3); ok {
		t.Error("Forget left the handler")
	}
	if _, ok := callbacks.HostContext(3); ok {
		t.Error("Forget left the context")
	}
	if _, ok := callbacks.HostContext(registry.FactoryID); !ok {
		t.Error("forgetting an instance dropped the factory context")
	}
	callbacks.Forget(registry.FactoryID)
	if _, ok := callbacks.HostContext(registry.FactoryID); ok {
		t.Error("Forget(FactoryID) left the factory context")
	}
}

func TestReplacingHandlerIsAtomic(t *testing.T) {
	t.Parallel()
	callbacks := NewCallbackRegistry()
	callbacks.SetComponentHandler(3, &recordingHandler{})
	callbacks.SetHostContext(3, hostApplication("first"))

	var group sync.WaitGroup
	group.Go(func() {
		for range 2000 {
			callbacks.SetComponentHandler(3, &recordingHandler{})
			callbacks.SetHostContext(3, hostApplication("next"))
		}
	})
	for range 2000 {
		if _, ok := callbacks.ComponentHandler(3); !ok {
			t.Fatal("handler missing while being replaced")
		}
		if _, ok := callbacks.HostContext(3); !ok {
			t.Fatal("host context missing while being replaced")
		}
	}
	group.Wait()
}
