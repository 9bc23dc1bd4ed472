// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package testplugin

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/sarvex/yabridge/lib/vst3"
)

// Parameter ids.
const (
	ParamGain   vst3.ParamID = 0
	ParamBypass vst3.ParamID = 1
	ParamPeak   vst3.ParamID = 2
)

// maxGain is the linear gain at normalized 1.0.
const maxGain = 2.0

func gainPlain(normalized vst3.ParamValue) float64 {
	return float64(min(max(normalized, 0), 1)) * maxGain
}

func gainNormalized(plain float64) vst3.ParamValue {
	return vst3.ParamValue(min(max(plain/maxGain, 0), 1))
}

var parameters = []vst3.ParameterInfo{
	{
		ID:                     ParamGain,
		Title:                  vst3.NewString128("Gain"),
		ShortTitle:             vst3.NewString128("Gain"),
		Units:                  vst3.NewString128("dB"),
		DefaultNormalizedValue: 0.5,
		Flags:                  vst3.ParameterCanAutomate,
	},
	{
		ID:                     ParamBypass,
		Title:                  vst3.NewString128("Bypass"),
		ShortTitle:             vst3.NewString128("Byp"),
		StepCount:              1,
		DefaultNormalizedValue: 0,
		Flags:                  vst3.ParameterCanAutomate | vst3.ParameterIsBypass | vst3.ParameterIsList,
	},
	{
		ID:         ParamPeak,
		Title:      vst3.NewString128("Output Peak"),
		ShortTitle: vst3.NewString128("Peak"),
		Units:      vst3.NewString128("%"),
		Flags:      vst3.ParameterIsReadOnly,
	},
}

// Controller is the edit controller half of the plugin.
type Controller struct {
	mu          sync.Mutex
	values      map[vst3.ParamID]vst3.ParamValue
	handler     vst3.ComponentHandler
	hostContext vst3.HostApplication
	peer        vst3.ConnectionPoint
	state       []byte
}

var (
	_ vst3.EditController  = (*Controller)(nil)
	_ vst3.ConnectionPoint = (*Controller)(nil)
)

func newController(Options) *Controller {
	values := make(map[vst3.ParamID]vst3.ParamValue, len(parameters))
	for _, info := range parameters {
		values[info.ID] = info.DefaultNormalizedValue
	}
	return &Controller{values: values}
}

func (c *Controller) Initialize(context vst3.HostApplication) vst3.Result {
	c.mu.Lock()
	c.hostContext = context
	c.mu.Unlock()
	return vst3.ResultOK
}

func (c *Controller) Terminate() vst3.Result {
	c.mu.Lock()
	c.hostContext = nil
	c.handler = nil
	c.mu.Unlock()
	return vst3.ResultOK
}

// SetComponentState adopts the processor's gain and bypass and asks
// the host to re-read parameter values.
func (c *Controller) SetComponentState(state io.Reader) vst3.Result {
	decoded, err := readProcessorState(state)
	if err != nil {
		return vst3.ResultInvalidArgument
	}
	bypass := vst3.ParamValue(0)
	if decoded.bypass {
		bypass = 1
	}
	c.mu.Lock()
	c.values[ParamGain] = gainNormalized(decoded.gain)
	c.values[ParamBypass] = bypass
	handler := c.handler
	c.mu.Unlock()

	if handler != nil {
		return handler.RestartComponent(vst3.RestartParamValuesChanged)
	}
	return vst3.ResultOK
}

// SetState stores controller-only state verbatim.
func (c *Controller) SetState(state io.Reader) vst3.Result {
	data, err := io.ReadAll(state)
	if err != nil {
		return vst3.ResultInternalError
	}
	c.mu.Lock()
	c.state = data
	c.mu.Unlock()
	return vst3.ResultOK
}

func (c *Controller) GetState(state io.Writer) vst3.Result {
	c.mu.Lock()
	data := c.state
	c.mu.Unlock()
	if _, err := state.Write(data); err != nil {
		return vst3.ResultInternalError
	}
	return vst3.ResultOK
}

func (c *Controller) GetParameterCount() int32 { return int32(len(parameters)) }

func (c *Controller) GetParameterInfo(index int32) (vst3.ParameterInfo, vst3.Result) {
	if index < 0 || int(index) >= len(parameters) {
		return vst3.ParameterInfo{}, vst3.ResultInvalidArgument
	}
	return parameters[index], vst3.ResultOK
}

func (c *Controller) GetParamStringByValue(id vst3.ParamID, valueNormalized vst3.ParamValue, text *vst3.String128) vst3.Result {
	switch id {
	case ParamGain:
		plain := gainPlain(valueNormalized)
		if plain == 0 {
			text.Set("-inf dB")
		} else {
			text.Set(fmt.Sprintf("%.1f dB", 20*math.Log10(plain)))
		}
	case ParamBypass:
		if valueNormalized >= 0.5 {
			text.Set("On")
		} else {
			text.Set("Off")
		}
	case ParamPeak:
		text.Set(fmt.Sprintf("%.0f%%", float64(valueNormalized)*100))
	default:
		return vst3.ResultInvalidArgument
	}
	return vst3.ResultOK
}

func (c *Controller) GetParamValueByString(id vst3.ParamID, text *vst3.String128) (vst3.ParamValue, vst3.Result) {
	input := strings.TrimSpace(text.String())
	switch id {
	case ParamGain:
		input = strings.TrimSpace(strings.TrimSuffix(input, "dB"))
		if input == "-inf" {
			return 0, vst3.ResultOK
		}
		decibels, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return 0, vst3.ResultFalse
		}
		return gainNormalized(math.Pow(10, decibels/20)), vst3.ResultOK
	case ParamBypass:
		switch strings.ToLower(input) {
		case "on":
			return 1, vst3.ResultOK
		case "off":
			return 0, vst3.ResultOK
		}
		return 0, vst3.ResultFalse
	default:
		return 0, vst3.ResultInvalidArgument
	}
}

func (c *Controller) NormalizedParamToPlain(id vst3.ParamID, valueNormalized vst3.ParamValue) vst3.ParamValue {
	if id == ParamGain {
		return vst3.ParamValue(gainPlain(valueNormalized))
	}
	return valueNormalized
}

func (c *Controller) PlainParamToNormalized(id vst3.ParamID, plainValue vst3.ParamValue) vst3.ParamValue {
	if id == ParamGain {
		return gainNormalized(float64(plainValue))
	}
	return plainValue
}

func (c *Controller) GetParamNormalized(id vst3.ParamID) vst3.ParamValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[id]
}

func (c *Controller) SetParamNormalized(id vst3.ParamID, value vst3.ParamValue) vst3.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[id]; !ok {
		return vst3.ResultInvalidArgument
	}
	c.values[id] = min(max(value, 0), 1)
	return vst3.ResultOK
}

func (c *Controller) SetComponentHandler(handler vst3.ComponentHandler) vst3.Result {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	return vst3.ResultOK
}

// Edit performs a complete edit gesture the way a knob in the editor
// would: beginEdit, performEdit, endEdit on the component handler.
func (c *Controller) Edit(id vst3.ParamID, value vst3.ParamValue) vst3.Result {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return vst3.ResultNotInitialized
	}
	if result := handler.BeginEdit(id); !result.OK() {
		return result
	}
	if result := c.SetParamNormalized(id, value); !result.OK() {
		handler.EndEdit(id)
		return result
	}
	if result := handler.PerformEdit(id, c.GetParamNormalized(id)); !result.OK() {
		handler.EndEdit(id)
		return result
	}
	return handler.EndEdit(id)
}

// HostName asks the host context passed to Initialize for its name.
func (c *Controller) HostName() (string, vst3.Result) {
	c.mu.Lock()
	host := c.hostContext
	c.mu.Unlock()
	if host == nil {
		return "", vst3.ResultNotInitialized
	}
	var name vst3.String128
	result := host.GetName(&name)
	return name.String(), result
}

func (c *Controller) Connect(other vst3.ConnectionPoint) vst3.Result {
	if other == nil {
		return vst3.ResultInvalidArgument
	}
	c.mu.Lock()
	c.peer = other
	c.mu.Unlock()
	return vst3.ResultOK
}

func (c *Controller) Disconnect(other vst3.ConnectionPoint) vst3.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer == nil || c.peer != other {
		return vst3.ResultInvalidArgument
	}
	c.peer = nil
	return vst3.ResultOK
}

// Peer returns the connection point passed to Connect.
func (c *Controller) Peer() vst3.ConnectionPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}
