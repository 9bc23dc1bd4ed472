// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package audio

import (
	"encoding/binary"
	"math"
)

func appendFloat32(dst []byte, samples []float32) []byte {
	for _, sample := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(sample))
	}
	return dst
}

func appendFloat64(dst []byte, samples []float64) []byte {
	for _, sample := range samples {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(sample))
	}
	return dst
}

func decodeFloat32(dst []float32, raw []byte) {
	for index := range dst {
		dst[index] = math.Float32frombits(binary.LittleEndian.Uint32(raw[index*4:]))
	}
}

func decodeFloat64(dst []float64, raw []byte) {
	for index := range dst {
		dst[index] = math.Float64frombits(binary.LittleEndian.Uint64(raw[index*8:]))
	}
}

// Samples holds the little-endian sample bytes of one bus, channel
// after channel. Decoding copies into the storage already held, so a
// reused Request or Response does not allocate once warm.
type Samples []byte

// UnmarshalBinary replaces s with a copy of data, keeping its storage.
func (s *Samples) UnmarshalBinary(data []byte) error {
	*s = append((*s)[:0], data...)
	return nil
}
