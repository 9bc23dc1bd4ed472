// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"testing"

	"github.com/sarvex/yabridge/lib/codec"
	"github.com/sarvex/yabridge/lib/protocol"
)

// writeFrame writes f with its payload taken verbatim, the way a raw
// peer in these tests does.
func writeFrame(w io.Writer, f frame) error {
	var header [headerLength]byte
	putHeader(header[:], f, uint64(len(f.payload)))
	if _, err := w.Write(append(header[:], f.payload...)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readFrame reads one frame with a fresh reader, so the payload stays
// valid.
func readFrame(r io.Reader, maxPayload uint64) (frame, error) {
	return newFrameReader(r, maxPayload).read()
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		frame frame
	}{
		{"request", frame{typ: frameRequest, kind: protocol.KindProcess, callID: 7, payload: []byte{0xa0}}},
		{"response", frame{typ: frameResponse, kind: protocol.KindProcessResponse, callID: 1 << 40, payload: bytes.Repeat([]byte{1}, 1000)}},
		{"empty payload", frame{typ: frameResponse, kind: protocol.KindAck, callID: 3}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var buffer bytes.Buffer
			if err := writeFrame(&buffer, test.frame); err != nil {
				t.Fatalf("writeFrame: %v", err)
			}
			if buffer.Len() != headerLength+len(test.frame.payload) {
				t.Fatalf("wrote %d bytes, want %d", buffer.Len(), headerLength+len(test.frame.payload))
			}
			got, err := readFrame(&buffer, DefaultMaxPayload)
			if err != nil {
				t.Fatalf("readFrame: %v", err)
			}
			if got.typ != test.frame.typ || got.kind != test.frame.kind || got.callID != test.frame.callID {
				t.Errorf("header = %+v, want %+v", got, test.frame)
			}
			if !bytes.Equal(got.payload, test.frame.payload) && len(test.frame.payload) > 0 {
				t.Error("payload changed")
			}
		})
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	if err := writeFrame(&buffer, frame{typ: frameRequest, kind: 0x0102, callID: 0x0304, payload: []byte{9, 9}}); err != nil {
		t.Fatal(err)
	}
	header := buffer.Bytes()[:headerLength]
	if header[0] != 0x01 || header[1] != 0 {
		t.Errorf("type/flags = %#x %#x", header[0], header[1])
	}
	if kind := binary.BigEndian.Uint16(header[2:4]); kind != 0x0102 {
		t.Errorf("kind = %#x", kind)
	}
	if callID := binary.BigEndian.Uint64(header[4:12]); callID != 0x0304 {
		t.Errorf("call id = %#x", callID)
	}
	if length := binary.BigEndian.Uint64(header[12:20]); length != 2 {
		t.Errorf("length = %d", length)
	}
}

func TestReadFrameViolations(t *testing.T) {
	t.Parallel()
	header := func(typ, flags byte, length uint64) []byte {
		raw := make([]byte, headerLength)
		raw[0] = typ
		raw[1] = flags
		binary.BigEndian.PutUint16(raw[2:4], uint16(protocol.KindAck))
		binary.BigEndian.PutUint64(raw[12:20], length)
		return raw
	}
	tests := []struct {
		name     string
		raw      []byte
		protocol bool
	}{
		{"unknown type", header(0x09, 0, 0), true},
		{"reserved flags", header(0x02, 0x80, 0), true},
		{"oversize", header(0x02, 0, 1<<20), true},
		{"truncated header", header(0x02, 0, 0)[:7], false},
		{"truncated payload", append(header(0x02, 0, 10), 1, 2, 3), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := readFrame(bytes.NewReader(test.raw), 1024)
			if err == nil {
				t.Fatal("readFrame accepted an invalid frame")
			}
			if got := IsProtocolError(err); got != test.protocol {
				t.Errorf("IsProtocolError(%v) = %v, want %v", err, got, test.protocol)
			}
			if !test.protocol && !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("truncation error = %v, want io.ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	t.Parallel()
	_, err := readFrame(bytes.NewReader(nil), DefaultMaxPayload)
	if !errors.Is(err, io.EOF) {
		t.Errorf("readFrame on empty stream = %v, want io.EOF", err)
	}
}

func TestReadFrameLengthBeyondStream(t *testing.T) {
	raw := make([]byte, headerLength, headerLength+10)
	putHeader(raw, frame{typ: frameResponse, kind: protocol.KindAck, callID: 1}, 3<<30)
	raw = append(raw, bytes.Repeat([]byte{7}, 10)...)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := readFrame(bytes.NewReader(raw), DefaultMaxPayload)
	runtime.ReadMemStats(&after)

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("readFrame = %v, want io.ErrUnexpectedEOF", err)
	}
	if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 16<<20 {
		t.Errorf("reading a truncated 3 GiB frame allocated %d bytes", allocated)
	}
}

func TestFrameReaderReusesPayload(t *testing.T) {
	t.Parallel()
	var stream bytes.Buffer
	for callID := range uint64(3) {
		if err := writeFrame(&stream, frame{typ: frameRequest, kind: protocol.KindAck, callID: callID, payload: bytes.Repeat([]byte{byte(callID)}, 4096)}); err != nil {
			t.Fatal(err)
		}
	}
	// A payload spanning several read chunks.
	large := bytes.Repeat([]byte{9}, 3*readChunk+5)
	if err := writeFrame(&stream, frame{typ: frameRequest, kind: protocol.KindAck, callID: 3, payload: large}); err != nil {
		t.Fatal(err)
	}

	reader := newFrameReader(&stream, DefaultMaxPayload)
	first, err := reader.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for callID := uint64(1); callID < 3; callID++ {
		f, err := reader.read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if f.callID != callID || f.payload[0] != byte(callID) {
			t.Fatalf("frame %d: call id %d, payload byte %d", callID, f.callID, f.payload[0])
		}
		if &f.payload[0] != &first.payload[0] {
			t.Errorf("frame %d did not reuse the payload buffer", callID)
		}
	}
	f, err := reader.read()
	if err != nil {
		t.Fatalf("read large: %v", err)
	}
	if !bytes.Equal(f.payload, large) {
		t.Error("large payload changed")
	}
}

func TestEncodeFrame(t *testing.T) {
	t.Parallel()
	message := &protocol.CountResponse{Count: 4}
	want, err := codec.Marshal(message)
	if err != nil {
		t.Fatal(err)
	}

	var buffer bytes.Buffer
	buffer.WriteString("stale")
	if err := encodeFrame(&buffer, frame{typ: frameResponse, kind: message.Kind(), callID: 12}, message); err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	got, err := readFrame(&buffer, DefaultMaxPayload)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if got.typ != frameResponse || got.kind != message.Kind() || got.callID != 12 {
		t.Errorf("header = %+v", got)
	}
	if !bytes.Equal(got.payload, want) {
		t.Errorf("payload = %x, want %x", got.payload, want)
	}
}
