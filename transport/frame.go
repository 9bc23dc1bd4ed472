// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/protocol"
)

type frameType uint8

const (
	frameRequest  frameType = 0x01
	frameResponse frameType = 0x02
)

func (t frameType) String() string {
	switch t {
	case frameRequest:
		return "request"
	case frameResponse:
		return "response"
	default:
		return fmt.Sprintf("frame(%#x)", uint8(t))
	}
}

// headerLength is type, flags, kind, call id and payload length.
const headerLength = 1 + 1 + 2 + 8 + 8

// DefaultMaxPayload bounds a single frame. Plugin state has no
// inherent size limit, so the bound is only a guard against a corrupt
// length field.
const DefaultMaxPayload uint64 = 4 << 30

// readChunk bounds each step of a payload read, so a corrupt length
// fails on the short stream before the claimed size is allocated.
const readChunk = 1 << 20

// retainedBuffer is the largest read or encode buffer kept for reuse.
// Larger ones (plugin state) are released after use.
const retainedBuffer = 4 << 20

type frame struct {
	typ     frameType
	flags   uint8
	kind    protocol.Kind
	callID  uint64
	payload []byte
}

func putHeader(header []byte, f frame, length uint64) {
	header[0] = byte(f.typ)
	header[1] = f.flags
	binary.BigEndian.PutUint16(header[2:4], uint16(f.kind))
	binary.BigEndian.PutUint64(header[4:12], f.callID)
	binary.BigEndian.PutUint64(header[12:20], length)
}

// frameBuffers recycles encode buffers between frames.
var frameBuffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getFrameBuffer() *bytes.Buffer {
	return frameBuffers.Get().(*bytes.Buffer)
}

func putFrameBuffer(buffer *bytes.Buffer) {
	if buffer.Cap() > retainedBuffer {
		return
	}
	buffer.Reset()
	frameBuffers.Put(buffer)
}

// encodeFrame replaces the contents of buffer with the header of f
// followed by the CBOR encoding of message, ready for a single Write.
// f.payload is ignored.
func encodeFrame(buffer *bytes.Buffer, f frame, message any) error {
	buffer.Reset()
	var header [headerLength]byte
	buffer.Write(header[:])
	if err := codec.MarshalTo(buffer, message); err != nil {
		return err
	}
	encoded := buffer.Bytes()
	putHeader(encoded[:headerLength], f, uint64(len(encoded)-headerLength))
	return nil
}

// frameReader reads frames from one stream into a reused payload
// buffer. A returned payload is valid until the next read.
type frameReader struct {
	r          io.Reader
	maxPayload uint64
	header     [headerLength]byte
	buffer     []byte
}

func newFrameReader(r io.Reader, maxPayload uint64) *frameReader {
	return &frameReader{r: r, maxPayload: maxPayload}
}

// read reads one frame. Header violations are returned as
// *ProtocolError; I/O failures are returned as is.
func (fr *frameReader) read() (frame, error) {
	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		return frame{}, fmt.Errorf("read frame header: %w", err)
	}
	header := fr.header[:]
	f := frame{
		typ:    frameType(header[0]),
		flags:  header[1],
		kind:   protocol.Kind(binary.BigEndian.Uint16(header[2:4])),
		callID: binary.BigEndian.Uint64(header[4:12]),
	}
	length := binary.BigEndian.Uint64(header[12:20])

	if f.typ != frameRequest && f.typ != frameResponse {
		return frame{}, &ProtocolError{Reason: "unknown frame type " + f.typ.String(), Kind: f.kind, CallID: f.callID}
	}
	if f.flags != 0 {
		return frame{}, &ProtocolError{Reason: fmt.Sprintf("reserved flags %#x set", f.flags), Kind: f.kind, CallID: f.callID}
	}
	if length > fr.maxPayload || length > math.MaxInt {
		return frame{}, &ProtocolError{
			Reason: fmt.Sprintf("payload length %d exceeds maximum %d", length, fr.maxPayload),
			Kind:   f.kind,
			CallID: f.callID,
		}
	}

	payload, err := fr.readPayload(int(length))
	if err != nil {
		return frame{}, fmt.Errorf("read frame payload: %w", err)
	}
	f.payload = payload
	return f, nil
}

// readPayload grows the buffer one chunk at a time as bytes arrive.
func (fr *frameReader) readPayload(length int) ([]byte, error) {
	if cap(fr.buffer) > retainedBuffer {
		fr.buffer = nil
	}
	payload := fr.buffer[:0]
	for len(payload) < length {
		step := min(length-len(payload), readChunk)
		payload = slices.Grow(payload, step)
		read, err := io.ReadFull(fr.r, payload[len(payload):len(payload)+step])
		payload = payload[:len(payload)+read]
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	fr.buffer = payload
	return payload, nil
}
