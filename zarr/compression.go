package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/qri-io/dataset/compression"
)

// numcodecs codec identifiers
const (
	CodecZstd = "zstd"
	CodecGzip = "gzip"
	CodecZlib = "zlib"
	CodecLZ4  = "lz4"
)

// CompressionMeta defines compression settings zarr-go understands
type CompressionMeta struct {
	ID      string `json:"id"`
	Level   int    `json:"level,omitempty"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
	// Acceleration is the lz4 codec's speed/ratio knob
	Acceleration int `json:"acceleration,omitempty"`
}

// DefaultCompressor matches the codec xarray users most often pick for
// float data when blosc is unavailable.
func DefaultCompressor() *CompressionMeta {
	return &CompressionMeta{ID: CodecZstd, Level: 1}
}

// Decompressor wraps r in a reader producing decoded chunk bytes. A nil
// receiver means the chunk is stored raw.
func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	if m == nil {
		return r, nil
	}
	switch m.ID {
	case CodecZstd, CodecGzip, CodecZlib, CodecLZ4:
		defer r.Close()
		d, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		out, err := m.Decode(d)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(out)), nil
	}
	return compression.Decompressor(m.ID, r)
}

// Decode decodes a whole chunk.
func (m *CompressionMeta) Decode(d []byte) ([]byte, error) {
	if m == nil {
		return d, nil
	}
	switch m.ID {
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(d, nil)
	case CodecGzip:
		zr, err := gzip.NewReader(bytes.NewReader(d))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CodecZlib:
		zr, err := zlib.NewReader(bytes.NewReader(d))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CodecLZ4:
		if len(d) < 4 {
			return nil, fmt.Errorf("lz4 chunk too small for header")
		}
		size := binary.LittleEndian.Uint32(d[:4])
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(d[4:], out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("lz4 decompressed size mismatch: want %d, got %d", size, n)
		}
		return out, nil
	}

	rc, err := compression.Decompressor(m.ID, io.NopCloser(bytes.NewReader(d)))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Encode compresses a whole chunk. Only the codecs listed above can be
// written.
func (m *CompressionMeta) Encode(d []byte) ([]byte, error) {
	if m == nil {
		return d, nil
	}
	switch m.ID {
	case CodecZstd:
		level := m.Level
		if level == 0 {
			level = 1
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(d, nil), nil
	case CodecGzip:
		buf := &bytes.Buffer{}
		zw, err := gzip.NewWriterLevel(buf, gzipLevel(m.Level))
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(d); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CodecZlib:
		buf := &bytes.Buffer{}
		zw, err := zlib.NewWriterLevel(buf, gzipLevel(m.Level))
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(d); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CodecLZ4:
		out := make([]byte, 4+lz4.CompressBlockBound(len(d)))
		binary.LittleEndian.PutUint32(out[:4], uint32(len(d)))
		n, err := lz4.CompressBlock(d, out[4:], nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return append(out[:4], lz4LiteralBlock(d)...), nil
		}
		return out[:4+n], nil
	}
	return nil, fmt.Errorf("unsupported compressor for writing: %q", m.ID)
}

func gzipLevel(l int) int {
	if l == 0 {
		return gzip.DefaultCompression
	}
	return l
}

// lz4LiteralBlock encodes d as a single literal-only lz4 sequence. The block
// compressor reports 0 for input it cannot shrink, but numcodecs still
// expects a valid block.
func lz4LiteralBlock(d []byte) []byte {
	out := make([]byte, 0, len(d)+len(d)/255+2)
	n := len(d)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xF0)
		rest := n - 15
		for rest >= 255 {
			out = append(out, 255)
			rest -= 255
		}
		out = append(out, byte(rest))
	}
	return append(out, d...)
}
