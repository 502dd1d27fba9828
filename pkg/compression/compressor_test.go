package compression

import (
	"bytes"
	"testing"
)

func TestRoundTripAllAlgorithms(t *testing.T) {
	original := bytes.Repeat([]byte("ID,NAME,ICODE\x00\x00\x00"), 200)

	for _, algo := range Algorithms() {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(string(algo)+"/"+level.String(), func(t *testing.T) {
				c, err := NewCompressor(&Config{Algorithm: algo, Level: level})
				if err != nil {
					t.Fatalf("Failed to create %s compressor: %v", algo, err)
				}

				compressed, err := c.Compress(original)
				if err != nil {
					t.Fatalf("Failed to compress: %v", err)
				}
				decompressed, err := c.Decompress(compressed)
				if err != nil {
					t.Fatalf("Failed to decompress: %v", err)
				}
				if !bytes.Equal(original, decompressed) {
					t.Errorf("Decompressed data doesn't match original")
				}
				if algo != None && len(compressed) >= len(original) {
					t.Errorf("%s did not shrink repetitive input: %d >= %d", algo, len(compressed), len(original))
				}
			})
		}
	}
}

func TestAlgorithmIDsAreStable(t *testing.T) {
	want := map[Algorithm]byte{None: 0, Zlib: 1, Gzip: 2, Deflate: 3, Zstd: 4, Snappy: 5, S2: 6, LZ4: 7}
	for algo, id := range want {
		got, ok := algo.ID()
		if !ok || got != id {
			t.Errorf("%s: id = %d, want %d", algo, got, id)
		}
		back, err := AlgorithmFromID(id)
		if err != nil || back != algo {
			t.Errorf("AlgorithmFromID(%d) = %s, %v", id, back, err)
		}
	}
	if _, err := AlgorithmFromID(200); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestParse(t *testing.T) {
	if a, err := ParseAlgorithm("ZSTD"); err != nil || a != Zstd {
		t.Errorf("ParseAlgorithm(ZSTD) = %s, %v", a, err)
	}
	if a, err := ParseAlgorithm(""); err != nil || a != Zlib {
		t.Errorf("ParseAlgorithm(\"\") = %s, %v", a, err)
	}
	if _, err := ParseAlgorithm("blosc"); err == nil {
		t.Error("expected error for blosc")
	}
	if l, err := ParseLevel("9"); err != nil || l != Best {
		t.Errorf("ParseLevel(9) = %v, %v", l, err)
	}
	if l, err := ParseLevel("better"); err != nil || l != Better {
		t.Errorf("ParseLevel(better) = %v, %v", l, err)
	}
	if _, err := ParseLevel("11"); err == nil {
		t.Error("expected error for level 11")
	}
}

func TestRegistryReusesCompressors(t *testing.T) {
	r := NewRegistry(Best)
	a, err := r.Get(Zstd)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Get(Zstd)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected the same compressor instance")
	}
	if _, err := r.Get(Algorithm("brotli")); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}
