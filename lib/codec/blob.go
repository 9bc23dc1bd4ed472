// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Compression identifies how a Blob's payload is stored. The values
// are wire constants.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0

	// CompressionLZ4 stores an LZ4 block. Cheap enough to apply to
	// every state save.
	CompressionLZ4 Compression = 1

	// CompressionZstd stores a zstd frame at the default level.
	CompressionZstd Compression = 2

	// CompressionAuto is only valid in a BlobPolicy: the packer tries
	// a prefix of the payload with zstd and picks zstd, LZ4 or none by ratio.
	CompressionAuto Compression = 255
)

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionAuto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a configuration name produced by String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "auto":
		return CompressionAuto, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// BlobPolicy controls how PackBlob stores a payload. Payloads shorter
// than Threshold bytes are never compressed.
type BlobPolicy struct {
	Compression Compression `cbor:"compression"`
	Threshold   int         `cbor:"threshold"`
}

// DefaultBlobPolicy compresses state larger than 64 KiB with LZ4.
var DefaultBlobPolicy = BlobPolicy{Compression: CompressionLZ4, Threshold: 64 << 10}

// MaxBlobSize bounds the uncompressed size Unpack accepts. It matches
// the largest frame the transport carries.
const MaxBlobSize = 4 << 30

// An LZ4 block expands by less than this factor: each extra length
// byte stands for at most 255 output bytes.
const maxLZ4Ratio = 256

// ErrBlobSize is returned by Unpack when the recorded size cannot be
// produced from the stored data.
var ErrBlobSize = errors.New("implausible blob size")

// ErrDigestMismatch is returned by Unpack when the decoded payload does
// not hash to the digest recorded at pack time.
var ErrDigestMismatch = errors.New("blob digest mismatch")

// Blob is an opaque byte payload (plugin state) as carried inside a
// frame. Size and Digest describe the uncompressed bytes, so a blob can
// be logged or compared without unpacking it.
type Blob struct {
	Compression Compression `cbor:"compression"`
	Size        uint64      `cbor:"size"`
	Digest      []byte      `cbor:"digest"`
	Data        []byte      `cbor:"data"`
}

// PackBlob builds a Blob from data according to policy. Data that does
// not shrink is stored uncompressed. The returned blob may alias data.
func PackBlob(data []byte, policy BlobPolicy) (Blob, error) {
	digest := blake3.Sum256(data)
	blob := Blob{
		Compression: CompressionNone,
		Size:        uint64(len(data)),
		Digest:      digest[:],
		Data:        data,
	}
	if len(data) == 0 || len(data) < policy.Threshold {
		return blob, nil
	}

	algorithm := policy.Compression
	if algorithm == CompressionAuto {
		algorithm = selectCompression(data)
	}

	var compressed []byte
	var err error
	switch algorithm {
	case CompressionNone:
		return blob, nil
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZstd:
		compressed, err = compressZstd(data)
	default:
		return Blob{}, fmt.Errorf("packing blob: unsupported compression %s", algorithm)
	}
	if errors.Is(err, errIncompressible) {
		return blob, nil
	}
	if err != nil {
		return Blob{}, fmt.Errorf("packing blob: %w", err)
	}

	blob.Compression = algorithm
	blob.Data = compressed
	return blob, nil
}

// Unpack returns the uncompressed payload after verifying its size and
// digest.
func (b Blob) Unpack() ([]byte, error) {
	if b.Size > MaxBlobSize || b.Size > math.MaxInt {
		return nil, fmt.Errorf("unpacking blob: %w: %d bytes exceeds the %d-byte limit", ErrBlobSize, b.Size, uint64(MaxBlobSize))
	}
	if b.Compression == CompressionLZ4 && b.Size > maxLZ4Ratio*uint64(len(b.Data))+maxLZ4Ratio {
		return nil, fmt.Errorf("unpacking blob: %w: %d bytes from %d bytes of lz4", ErrBlobSize, b.Size, len(b.Data))
	}

	var data []byte
	var err error
	switch b.Compression {
	case CompressionNone:
		data = b.Data
		if uint64(len(data)) != b.Size {
			return nil, fmt.Errorf("unpacking blob: size %d does not match recorded %d", len(data), b.Size)
		}
	case CompressionLZ4:
		data, err = decompressLZ4(b.Data, int(b.Size))
	case CompressionZstd:
		data, err = decompressZstd(b.Data, int(b.Size))
	default:
		return nil, fmt.Errorf("unpacking blob: unsupported compression %s", b.Compression)
	}
	if err != nil {
		return nil, fmt.Errorf("unpacking blob: %w", err)
	}

	digest := blake3.Sum256(data)
	if !bytes.Equal(digest[:], b.Digest) {
		return nil, fmt.Errorf("unpacking %d-byte blob: %w", b.Size, ErrDigestMismatch)
	}
	return data, nil
}

// ShortDigest returns the first eight hex digits of the digest.
func (b Blob) ShortDigest() string {
	if len(b.Digest) < 4 {
		return ""
	}
	return hex.EncodeToString(b.Digest[:4])
}

// LogValue renders the blob by size and digest instead of its bytes.
func (b Blob) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("size", b.Size),
		slog.String("compression", b.Compression.String()),
		slog.String("blake3", b.ShortDigest()),
	)
}

var errIncompressible = errors.New("data is incompressible")

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for data it cannot shrink.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use through
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxBlobSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	// The recorded size is untrusted: reserve at most what a plausible
	// ratio needs and let DecodeAll grow past it.
	reserve := min(size, 64*len(compressed)+4096)
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, reserve))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}

// selectCompression compresses at most the first 256 KiB: zstd when the
// ratio reaches 1.5, LZ4 from 1.1, otherwise none.
func selectCompression(data []byte) Compression {
	sample := data
	if len(sample) > 256<<10 {
		sample = sample[:256<<10]
	}
	compressed := zstdEncoder.EncodeAll(sample, nil)
	ratio := float64(len(sample)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return CompressionZstd
	case ratio >= 1.1:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
