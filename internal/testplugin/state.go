// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package testplugin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var stateMagic = [4]byte{'Y', 'B', 'G', 'N'}

const stateVersion = 1

// processorState is the persisted state of a Processor:
//
//	magic "YBGN" | version u8 | gain f64 | bypass u8 | padding length u32 | padding
//
// Integers and floats are little-endian.
type processorState struct {
	gain    float64
	bypass  bool
	padding []byte
}

func (s processorState) write(w io.Writer) error {
	header := make([]byte, 0, 18)
	header = append(header, stateMagic[:]...)
	header = append(header, stateVersion)
	header = binary.LittleEndian.AppendUint64(header, math.Float64bits(s.gain))
	if s.bypass {
		header = append(header, 1)
	} else {
		header = append(header, 0)
	}
	header = binary.LittleEndian.AppendUint32(header, uint32(len(s.padding)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(s.padding)
	return err
}

func readProcessorState(r io.Reader) (processorState, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return processorState{}, err
	}
	if len(data) < 18 || !bytes.Equal(data[:4], stateMagic[:]) {
		return processorState{}, errors.New("not a gain plugin state")
	}
	if data[4] != stateVersion {
		return processorState{}, fmt.Errorf("unsupported state version %d", data[4])
	}
	state := processorState{
		gain:   math.Float64frombits(binary.LittleEndian.Uint64(data[5:13])),
		bypass: data[13] != 0,
	}
	length := binary.LittleEndian.Uint32(data[14:18])
	if uint64(len(data)-18) != uint64(length) {
		return processorState{}, fmt.Errorf("state padding is %d bytes, header says %d", len(data)-18, length)
	}
	state.padding = data[18:]
	return state, nil
}

// filler returns n bytes of deterministic, mildly compressible data.
func filler(n int) []byte {
	data := make([]byte, n)
	var x uint32 = 2463534242
	for index := range data {
		if index%64 == 0 {
			x ^= x << 13
			x ^= x >> 17
			x ^= x << 5
		}
		data[index] = byte(x>>uint(index%4*8)) ^ byte(index/64)
	}
	return data
}
