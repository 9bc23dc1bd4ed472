// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package vst3

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// TUID is a 16-byte class or interface identifier, stored in the
// native (non-COM) byte order.
type TUID uuid.UUID

// ParseTUID parses the canonical hyphenated form, with or without
// surrounding braces.
func ParseTUID(text string) (TUID, error) {
	parsed, err := uuid.Parse(strings.Trim(text, "{}"))
	if err != nil {
		return TUID{}, fmt.Errorf("parsing class id %q: %w", text, err)
	}
	return TUID(parsed), nil
}

// String renders the identifier the way the SDK's FUID::print does:
// upper-case hex in GUID grouping.
func (t TUID) String() string {
	return strings.ToUpper(uuid.UUID(t).String())
}

// IsZero reports whether every byte is zero.
func (t TUID) IsZero() bool { return t == TUID{} }

// MarshalBinary encodes the identifier as its raw 16 bytes so the
// codec emits a CBOR byte string instead of an array of integers.
func (t TUID) MarshalBinary() ([]byte, error) {
	return t[:], nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (t *TUID) UnmarshalBinary(data []byte) error {
	if len(data) != len(t) {
		return fmt.Errorf("class id must be %d bytes, got %d", len(t), len(data))
	}
	copy(t[:], data)
	return nil
}

// ParamID identifies a parameter of an edit controller.
type ParamID uint32

// ParamValue is a normalized (0..1) or plain parameter value.
type ParamValue float64

// SpeakerArrangement is a bitmask of speaker positions. The number of
// set bits is the bus's channel count.
type SpeakerArrangement uint64

const (
	SpeakerArrangementEmpty  SpeakerArrangement = 0
	SpeakerArrangementMono   SpeakerArrangement = 1 << 19
	SpeakerArrangementStereo SpeakerArrangement = 1<<0 | 1<<1
)

// MediaType selects audio or event buses.
type MediaType int32

const (
	MediaTypeAudio MediaType = 0
	MediaTypeEvent MediaType = 1
)

// BusDirection selects input or output buses.
type BusDirection int32

const (
	BusDirectionInput  BusDirection = 0
	BusDirectionOutput BusDirection = 1
)

// BusType distinguishes main buses from auxiliary (sidechain) buses.
type BusType int32

const (
	BusTypeMain BusType = 0
	BusTypeAux  BusType = 1
)

// BusFlagDefaultActive marks a bus the host should activate by default.
const BusFlagDefaultActive uint32 = 1

// IoMode is the argument of Component.SetIoMode.
type IoMode int32

const (
	IoModeSimple            IoMode = 0
	IoModeAdvanced          IoMode = 1
	IoModeOfflineProcessing IoMode = 2
)

// ProcessMode values for ProcessSetup and ProcessData.
const (
	ProcessModeRealtime int32 = 0
	ProcessModePrefetch int32 = 1
	ProcessModeOffline  int32 = 2
)

// Symbolic sample sizes.
const (
	SampleSize32 int32 = 0
	SampleSize64 int32 = 1
)

// RestartFlags is the argument of ComponentHandler.RestartComponent.
type RestartFlags int32

const (
	RestartReloadComponent    RestartFlags = 1 << 0
	RestartIoChanged          RestartFlags = 1 << 1
	RestartParamValuesChanged RestartFlags = 1 << 2
	RestartLatencyChanged     RestartFlags = 1 << 3
	RestartParamTitlesChanged RestartFlags = 1 << 4
)

// String128 is the SDK's fixed-size, NUL-terminated UTF-16 string.
type String128 [128]uint16

// utf16Encoding transcodes between UTF-8 and little-endian UTF-16 code units.
// The byte order only matters for the intermediate byte slice; the
// units themselves live in a []uint16.
var utf16Encoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// NewString128 converts text into a String128, truncating to 127 code
// units so the terminating NUL always fits. A surrogate pair is never
// split by truncation.
func NewString128(text string) String128 {
	var result String128
	result.Set(text)
	return result
}

// Set replaces the contents of s with text.
func (s *String128) Set(text string) {
	*s = String128{}
	encoded, err := utf16Encoding.NewEncoder().Bytes([]byte(text))
	if err != nil {
		// The encoder replaces invalid UTF-8 instead of failing; this is
		// unreachable with the replacement policy but keeps s empty.
		return
	}
	units := len(encoded) / 2
	if units > len(s)-1 {
		units = len(s) - 1
		last := binary.LittleEndian.Uint16(encoded[(units-1)*2:])
		if last >= 0xD800 && last < 0xDC00 {
			units--
		}
	}
	for index := range units {
		s[index] = binary.LittleEndian.Uint16(encoded[index*2:])
	}
}

// Len returns the number of code units before the terminating NUL.
func (s *String128) Len() int {
	for index, unit := range s {
		if unit == 0 {
			return index
		}
	}
	return len(s)
}

// String decodes the contents up to the terminating NUL.
func (s String128) String() string {
	length := s.Len()
	raw := make([]byte, length*2)
	for index := range length {
		binary.LittleEndian.PutUint16(raw[index*2:], s[index])
	}
	decoded, err := utf16Encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// MarshalText encodes the string as UTF-8, the canonical encoding on
// the wire.
func (s String128) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *String128) UnmarshalText(text []byte) error {
	s.Set(string(text))
	return nil
}
