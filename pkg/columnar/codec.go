package columnar

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ajitpratap0/hdfmast/pkg/compression"
)

// EncodeFixed lays values out as NUL-padded fields of width bytes.
func EncodeFixed(values []string, width int) ([]byte, error) {
	if width < 1 {
		return nil, fmt.Errorf("invalid width %d", width)
	}
	buf := make([]byte, len(values)*width)
	for i, v := range values {
		if len(v) > width {
			return nil, fmt.Errorf("value of %d bytes exceeds width %d", len(v), width)
		}
		copy(buf[i*width:], v)
	}
	return buf, nil
}

// DecodeFixed splits buf into n fields of width bytes, trimming NUL padding.
func DecodeFixed(buf []byte, width, n int) ([]string, error) {
	if width < 1 || len(buf) != width*n {
		return nil, fmt.Errorf("fixed-width payload of %d bytes does not hold %d values of width %d", len(buf), n, width)
	}
	out := make([]string, n)
	for i := range out {
		field := buf[i*width : (i+1)*width]
		out[i] = string(bytes.TrimRight(field, "\x00"))
	}
	return out, nil
}

// BlockHeader describes a stored column block.
type BlockHeader struct {
	Algorithm compression.Algorithm
	Width     int
	Rows      int
}

// EncodeBlock encodes values at width and compresses the payload with c.
func EncodeBlock(c compression.Compressor, values []string, width int) ([]byte, error) {
	id, ok := c.Algorithm().ID()
	if !ok {
		return nil, fmt.Errorf("compression algorithm %q has no block id", c.Algorithm())
	}
	raw, err := EncodeFixed(values, width)
	if err != nil {
		return nil, err
	}
	payload, err := c.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compress block: %w", err)
	}

	out := make([]byte, 1, 1+2*binary.MaxVarintLen64+len(payload))
	out[0] = id
	out = binary.AppendUvarint(out, uint64(width))
	out = binary.AppendUvarint(out, uint64(len(values)))
	return append(out, payload...), nil
}

// ReadBlockHeader parses the header of a block and returns the offset of its
// payload.
func ReadBlockHeader(data []byte) (BlockHeader, int, error) {
	if len(data) < 1 {
		return BlockHeader{}, 0, fmt.Errorf("empty block")
	}
	algo, err := compression.AlgorithmFromID(data[0])
	if err != nil {
		return BlockHeader{}, 0, err
	}
	off := 1
	width, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return BlockHeader{}, 0, fmt.Errorf("corrupt block width")
	}
	off += n
	rows, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return BlockHeader{}, 0, fmt.Errorf("corrupt block row count")
	}
	off += n
	return BlockHeader{Algorithm: algo, Width: int(width), Rows: int(rows)}, off, nil
}

// DecodeBlock decompresses a block with the codec named in its header.
func DecodeBlock(reg *compression.Registry, data []byte) ([]string, error) {
	hdr, off, err := ReadBlockHeader(data)
	if err != nil {
		return nil, err
	}
	c, err := reg.Get(hdr.Algorithm)
	if err != nil {
		return nil, err
	}
	raw, err := c.Decompress(data[off:])
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s block: %w", hdr.Algorithm, err)
	}
	return DecodeFixed(raw, hdr.Width, hdr.Rows)
}
