// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package vst3

// ProcessData is the argument of AudioProcessor.Process. Buffers are
// owned by the caller; the processor reads Inputs and writes Outputs in
// place. The optional fields are nil when the host does not provide
// them.
type ProcessData struct {
	ProcessMode        int32
	SymbolicSampleSize int32
	NumSamples         int32

	Inputs  []AudioBusBuffers
	Outputs []AudioBusBuffers

	InputParameterChanges  *ParameterChanges
	OutputParameterChanges *ParameterChanges
	InputEvents            *EventList
	OutputEvents           *EventList
	ProcessContext         *ProcessContext
}

// AudioBusBuffers holds the channels of one bus. Exactly one of
// Channels32 and Channels64 is used, selected by the symbolic sample
// size of the surrounding ProcessData.
type AudioBusBuffers struct {
	NumChannels  int32
	SilenceFlags uint64
	Channels32   [][]float32
	Channels64   [][]float64
}

// ParamPoint is one automation point within a processing block.
type ParamPoint struct {
	SampleOffset int32      `cbor:"offset"`
	Value        ParamValue `cbor:"value"`
}

// ParamValueQueue holds the automation points of one parameter for one
// block, ordered by sample offset.
type ParamValueQueue struct {
	ID     ParamID      `cbor:"id"`
	Points []ParamPoint `cbor:"points"`
}

// AddPoint appends a point and returns its index.
func (q *ParamValueQueue) AddPoint(sampleOffset int32, value ParamValue) int32 {
	q.Points = append(q.Points, ParamPoint{SampleOffset: sampleOffset, Value: value})
	return int32(len(q.Points) - 1)
}

// PointCount returns the number of points in the queue.
func (q *ParamValueQueue) PointCount() int32 { return int32(len(q.Points)) }

// ParameterChanges is IParameterChanges: one queue per changed
// parameter.
type ParameterChanges struct {
	Queues []ParamValueQueue `cbor:"queues"`
}

// ParameterCount returns the number of parameters with changes.
func (c *ParameterChanges) ParameterCount() int32 {
	if c == nil {
		return 0
	}
	return int32(len(c.Queues))
}

// AddParameterData returns the queue for id, creating it when absent.
// The returned pointer is valid until the next AddParameterData call.
func (c *ParameterChanges) AddParameterData(id ParamID) (*ParamValueQueue, int32) {
	for index := range c.Queues {
		if c.Queues[index].ID == id {
			return &c.Queues[index], int32(index)
		}
	}
	// Reuse a queue's point storage left behind by Reset.
	if len(c.Queues) < cap(c.Queues) {
		c.Queues = c.Queues[:len(c.Queues)+1]
		queue := &c.Queues[len(c.Queues)-1]
		queue.ID = id
		queue.Points = queue.Points[:0]
		return queue, int32(len(c.Queues) - 1)
	}
	c.Queues = append(c.Queues, ParamValueQueue{ID: id})
	return &c.Queues[len(c.Queues)-1], int32(len(c.Queues) - 1)
}

// Reset empties the changes while keeping allocated storage.
func (c *ParameterChanges) Reset() {
	c.Queues = c.Queues[:0]
}

// EventType selects the payload of an Event.
type EventType uint16

const (
	EventTypeNoteOn       EventType = 0
	EventTypeNoteOff      EventType = 1
	EventTypeData         EventType = 2
	EventTypePolyPressure EventType = 3
	EventTypeLegacyMIDICC EventType = 65535
)

// Event flags.
const (
	EventFlagIsLive       uint16 = 1 << 0
	EventFlagUserReserved uint16 = 1 << 14
)

// NoteOnEvent is the payload of EventTypeNoteOn.
type NoteOnEvent struct {
	Channel  int16   `cbor:"channel"`
	Pitch    int16   `cbor:"pitch"`
	Tuning   float32 `cbor:"tuning"`
	Velocity float32 `cbor:"velocity"`
	Length   int32   `cbor:"length"`
	NoteID   int32   `cbor:"note_id"`
}

// NoteOffEvent is the payload of EventTypeNoteOff.
type NoteOffEvent struct {
	Channel  int16   `cbor:"channel"`
	Pitch    int16   `cbor:"pitch"`
	Velocity float32 `cbor:"velocity"`
	NoteID   int32   `cbor:"note_id"`
	Tuning   float32 `cbor:"tuning"`
}

// DataEvent is the payload of EventTypeData (SysEx and similar).
type DataEvent struct {
	Type  uint32 `cbor:"type"`
	Bytes []byte `cbor:"bytes"`
}

// PolyPressureEvent is the payload of EventTypePolyPressure.
type PolyPressureEvent struct {
	Channel  int16   `cbor:"channel"`
	Pitch    int16   `cbor:"pitch"`
	Pressure float32 `cbor:"pressure"`
	NoteID   int32   `cbor:"note_id"`
}

// LegacyMIDICCEvent is the payload of EventTypeLegacyMIDICC.
type LegacyMIDICCEvent struct {
	ControlNumber uint8 `cbor:"control_number"`
	Channel       int8  `cbor:"channel"`
	Value         int8  `cbor:"value"`
	Value2        int8  `cbor:"value2"`
}

// Event is one entry of an EventList. Only the payload field matching
// Type is set.
type Event struct {
	BusIndex     int32     `cbor:"bus_index"`
	SampleOffset int32     `cbor:"sample_offset"`
	PPQPosition  float64   `cbor:"ppq_position"`
	Flags        uint16    `cbor:"flags"`
	Type         EventType `cbor:"type"`

	NoteOn       *NoteOnEvent       `cbor:"note_on,omitempty"`
	NoteOff      *NoteOffEvent      `cbor:"note_off,omitempty"`
	Data         *DataEvent         `cbor:"data,omitempty"`
	PolyPressure *PolyPressureEvent `cbor:"poly_pressure,omitempty"`
	LegacyMIDICC *LegacyMIDICCEvent `cbor:"legacy_midi_cc,omitempty"`
}

// EventList is IEventList.
type EventList struct {
	Events []Event `cbor:"events"`
}

// EventCount returns the number of events.
func (l *EventList) EventCount() int32 {
	if l == nil {
		return 0
	}
	return int32(len(l.Events))
}

// AddEvent appends an event.
func (l *EventList) AddEvent(event Event) {
	l.Events = append(l.Events, event)
}

// Reset empties the list while keeping allocated storage.
func (l *EventList) Reset() {
	l.Events = l.Events[:0]
}

// Process context state flags.
const (
	ProcessContextPlaying          uint32 = 1 << 1
	ProcessContextCycleActive      uint32 = 1 << 2
	ProcessContextRecording        uint32 = 1 << 3
	ProcessContextSystemTimeValid  uint32 = 1 << 8
	ProcessContextProjectTimeValid uint32 = 1 << 9
	ProcessContextTempoValid       uint32 = 1 << 10
	ProcessContextBarPositionValid uint32 = 1 << 11
	ProcessContextCycleValid       uint32 = 1 << 12
	ProcessContextTimeSigValid     uint32 = 1 << 13
)

// ProcessContext carries transport and tempo information for a block.
type ProcessContext struct {
	State                 uint32  `cbor:"state"`
	SampleRate            float64 `cbor:"sample_rate"`
	ProjectTimeSamples    int64   `cbor:"project_time_samples"`
	SystemTime            int64   `cbor:"system_time"`
	ContinuousTimeSamples int64   `cbor:"continuous_time_samples"`
	ProjectTimeMusic      float64 `cbor:"project_time_music"`
	BarPositionMusic      float64 `cbor:"bar_position_music"`
	CycleStartMusic       float64 `cbor:"cycle_start_music"`
	CycleEndMusic         float64 `cbor:"cycle_end_music"`
	Tempo                 float64 `cbor:"tempo"`
	TimeSigNumerator      int32   `cbor:"time_sig_numerator"`
	TimeSigDenominator    int32   `cbor:"time_sig_denominator"`
	SamplesToNextClock    int32   `cbor:"samples_to_next_clock"`
}
