// Package compression provides the block codecs used by the store.
//
// # Overview
//
// Every column block written to a store is compressed with one of the
// algorithms below. Each algorithm has a stable one-byte ID that is written in
// front of the block, so a store can contain blocks written by runs that used
// different settings and still be read back.
//
// # Algorithm Selection
//
//   - Zlib: default, written at level 9
//   - Zstd: best compression ratio, good speed
//   - Gzip/Deflate: wide compatibility
//   - Snappy/S2: best for speed, moderate compression
//   - LZ4: extremely fast, decent compression
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zlib,
//	    Level:     compression.Best,
//	})
//	compressed, err := comp.Compress(data)
//	original, err := comp.Decompress(compressed)
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Zlib represents zlib compression
	Zlib Algorithm = "zlib"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
)

// algorithmIDs are persisted in block headers. Never renumber.
var algorithmIDs = map[Algorithm]byte{
	None:    0,
	Zlib:    1,
	Gzip:    2,
	Deflate: 3,
	Zstd:    4,
	Snappy:  5,
	S2:      6,
	LZ4:     7,
}

// Algorithms returns every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{None, Zlib, Gzip, Deflate, Zstd, Snappy, S2, LZ4}
}

// ID returns the persisted identifier of the algorithm.
func (a Algorithm) ID() (byte, bool) {
	id, ok := algorithmIDs[a]
	return id, ok
}

// AlgorithmFromID resolves a persisted identifier.
func AlgorithmFromID(id byte) (Algorithm, error) {
	for a, v := range algorithmIDs {
		if v == id {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown compression id: %d", id)
}

// ParseAlgorithm resolves an algorithm name, case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if a == "" {
		return Zlib, nil
	}
	if _, ok := algorithmIDs[a]; !ok {
		return "", fmt.Errorf("unsupported compression algorithm: %s", name)
	}
	return a, nil
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// String returns the level name
func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return fmt.Sprintf("level-%d", int(l))
	}
}

// ParseLevel accepts a level name or its number (1, 5, 7, 9). Other numbers
// between 1 and 9 round to the nearest named level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fastest", "1", "2":
		return Fastest, nil
	case "", "default", "3", "4", "5":
		return Default, nil
	case "better", "6", "7":
		return Better, nil
	case "best", "8", "9":
		return Best, nil
	}
	return 0, fmt.Errorf("invalid compression level: %q", s)
}

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	Compress(data []byte) ([]byte, error)
	// Decompress decompresses data and returns the original bytes.
	Decompress(data []byte) ([]byte, error)
	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm
	// Level returns the compression level configured.
	Level() Level
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm
	Level     Level
}

// DefaultConfig returns zlib at the best level.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: Zlib,
		Level:     Best,
	}
}

// NewCompressor creates a new compressor based on the provided configuration.
// If config is nil, default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	base := baseCompressor{algorithm: config.Algorithm, level: config.Level}
	switch config.Algorithm {
	case None:
		return &noneCompressor{base}, nil
	case Zlib:
		return newZlibCompressor(base), nil
	case Gzip:
		return newGzipCompressor(base), nil
	case Deflate:
		return &deflateCompressor{baseCompressor: base, flateLevel: mapFlateLevel(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(base), nil
	case Snappy:
		return &snappyCompressor{base}, nil
	case S2:
		return &s2Compressor{base}, nil
	case LZ4:
		return &lz4Compressor{baseCompressor: base, compressionLevel: mapLZ4Level(config.Level)}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// Registry hands out one compressor per algorithm, creating them on demand.
// Block readers use it because each block names its own algorithm.
type Registry struct {
	mu          sync.Mutex
	level       Level
	compressors map[Algorithm]Compressor
}

// NewRegistry creates a registry whose compressors use level.
func NewRegistry(level Level) *Registry {
	return &Registry{
		level:       level,
		compressors: make(map[Algorithm]Compressor),
	}
}

// Get returns the compressor for algorithm a.
func (r *Registry) Get(a Algorithm) (Compressor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.compressors[a]; ok {
		return c, nil
	}
	c, err := NewCompressor(&Config{Algorithm: a, Level: r.level})
	if err != nil {
		return nil, err
	}
	r.compressors[a] = c
	return c, nil
}

// Base compressor implementation
type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

// Algorithm returns the compression algorithm
func (bc *baseCompressor) Algorithm() Algorithm {
	return bc.algorithm
}

// Level returns the compression level
func (bc *baseCompressor) Level() Level {
	return bc.level
}

// None compressor (no compression)
type noneCompressor struct {
	baseCompressor
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// Zlib compressor
type zlibCompressor struct {
	baseCompressor
	writerPool sync.Pool
}

func newZlibCompressor(base baseCompressor) *zlibCompressor {
	level := mapFlateLevel(base.level)
	zc := &zlibCompressor{baseCompressor: base}
	zc.writerPool.New = func() interface{} {
		w, _ := zlib.NewWriterLevel(nil, level)
		return w
	}
	return zc
}

func (zc *zlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zc.writerPool.Get().(*zlib.Writer)
	defer zc.writerPool.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zc *zlibCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Gzip compressor
type gzipCompressor struct {
	baseCompressor
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCompressor(base baseCompressor) *gzipCompressor {
	level := mapFlateLevel(base.level)
	gc := &gzipCompressor{baseCompressor: base}

	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, level)
		return w
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Deflate compressor
type deflateCompressor struct {
	baseCompressor
	flateLevel int
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, dc.flateLevel)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

// Zstd compressor
type zstdCompressor struct {
	baseCompressor
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(base baseCompressor) *zstdCompressor {
	level := mapZstdLevel(base.level)
	zc := &zstdCompressor{baseCompressor: base}

	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return zc
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	return dec.DecodeAll(data, nil)
}

// Snappy compressor
type snappyCompressor struct {
	baseCompressor
}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

// S2 compressor (Snappy-compatible but better compression)
type s2Compressor struct {
	baseCompressor
}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	if sc.level >= Better {
		return s2.EncodeBetter(nil, data), nil
	}
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

// LZ4 compressor
type lz4Compressor struct {
	baseCompressor
	compressionLevel lz4.CompressionLevel
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)

	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// Helper functions to map compression levels

func mapFlateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Better:
		return 7
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Better:
		return lz4.Level7
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
