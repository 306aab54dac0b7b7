package util_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/downfa11-org/logstream/util"
)

// TestCompressDecompress_AllTypes round-trips every supported codec
func TestCompressDecompress_AllTypes(t *testing.T) {
	testData := []byte(strings.Repeat("Hello, World! This is a test string for compression. ", 8))

	tests := []struct {
		name             string
		expectCompressed bool
	}{
		{"gzip", true},
		{"snappy", true},
		{"lz4", true},
		{"zstd", true},
		{"none", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := util.CodecByName(tt.name)
			if err != nil {
				t.Fatalf("CodecByName(%q) failed: %v", tt.name, err)
			}

			compressed, err := util.CompressMessage(testData, codec)
			if err != nil {
				t.Fatalf("CompressMessage failed: %v", err)
			}
			if tt.expectCompressed && bytes.Equal(compressed, testData) {
				t.Errorf("Expected compressed data for %q", tt.name)
			}
			if !tt.expectCompressed && !bytes.Equal(compressed, testData) {
				t.Errorf("Expected original data for %q", tt.name)
			}

			restored, err := util.DecompressMessage(compressed, codec)
			if err != nil {
				t.Fatalf("DecompressMessage failed: %v", err)
			}
			if !bytes.Equal(restored, testData) {
				t.Errorf("Round trip mismatch for %q", tt.name)
			}
		})
	}
}

func TestCodecByNameUnsupported(t *testing.T) {
	if _, err := util.CodecByName("brotli"); err == nil {
		t.Error("Expected error for unsupported compression type")
	}
	if _, err := util.CompressMessage([]byte("x"), 42); err == nil {
		t.Error("Expected error for unknown codec id")
	}
}

func TestDecompressInvalidData(t *testing.T) {
	if _, err := util.DecompressMessage([]byte("notgzip"), util.CodecGzip); err == nil {
		t.Error("Expected error when decompressing invalid gzip data")
	}
}

func TestDecompressRejectsOversizedOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a frame-sized buffer")
	}
	huge := make([]byte, util.MaxMessageSize+1)

	for _, name := range []string{"gzip", "snappy", "lz4", "zstd"} {
		t.Run(name, func(t *testing.T) {
			codec, err := util.CodecByName(name)
			if err != nil {
				t.Fatalf("CodecByName(%q) failed: %v", name, err)
			}
			compressed, err := util.CompressMessage(huge, codec)
			if err != nil {
				t.Fatalf("CompressMessage failed: %v", err)
			}
			if len(compressed) >= len(huge) {
				t.Fatalf("Expected zeros to compress, got %d bytes", len(compressed))
			}

			out, err := util.DecompressMessage(compressed, codec)
			if err == nil {
				t.Fatalf("Expected %q to reject %d decompressed bytes, got %d", name, len(huge), len(out))
			}
			if name != "zstd" && !errors.Is(err, util.ErrDecompressedTooLarge) {
				t.Errorf("Expected ErrDecompressedTooLarge for %q, got %v", name, err)
			}
		})
	}
}

func TestDecompressAllowsFrameSizedOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a frame-sized buffer")
	}
	full := make([]byte, util.MaxMessageSize)
	compressed, err := util.CompressMessage(full, util.CodecGzip)
	if err != nil {
		t.Fatalf("CompressMessage failed: %v", err)
	}
	out, err := util.DecompressMessage(compressed, util.CodecGzip)
	if err != nil {
		t.Fatalf("DecompressMessage failed: %v", err)
	}
	if len(out) != util.MaxMessageSize {
		t.Errorf("Expected %d bytes, got %d", util.MaxMessageSize, len(out))
	}
}
