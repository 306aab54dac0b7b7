package util

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression codec ids as carried in batch frames.
const (
	CodecNone byte = iota
	CodecGzip
	CodecSnappy
	CodecLZ4
	CodecZstd
)

// CodecByName maps a configuration value to a codec id.
func CodecByName(compressionType string) (byte, error) {
	switch compressionType {
	case "none", "":
		return CodecNone, nil
	case "gzip":
		return CodecGzip, nil
	case "snappy":
		return CodecSnappy, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

func CompressMessage(data []byte, codec byte) ([]byte, error) {
	switch codec {
	case CodecGzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CodecSnappy:
		return snappy.Encode(nil, data), nil

	case CodecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil

	case CodecNone:
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported compression codec: %d", codec)
	}
}

// ErrDecompressedTooLarge is returned when a body inflates past MaxMessageSize.
var ErrDecompressedTooLarge = fmt.Errorf("decompressed data exceeds %d bytes", MaxMessageSize)

// readLimited reads r up to MaxMessageSize and fails if more remains.
func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, MaxMessageSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxMessageSize {
		return nil, ErrDecompressedTooLarge
	}
	return out, nil
}

// DecompressMessage inflates data. Output is capped at MaxMessageSize like a frame.
func DecompressMessage(data []byte, codec byte) ([]byte, error) {
	switch codec {
	case CodecGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		return readLimited(gr)

	case CodecSnappy:
		n, err := snappy.DecodedLen(data)
		if err != nil {
			return nil, err
		}
		if n > MaxMessageSize {
			return nil, ErrDecompressedTooLarge
		}
		return snappy.Decode(nil, data)

	case CodecLZ4:
		return readLimited(lz4.NewReader(bytes.NewReader(data)))

	case CodecZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxMessageSize))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, err
		}
		if len(out) > MaxMessageSize {
			return nil, ErrDecompressedTooLarge
		}
		return out, nil

	case CodecNone:
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported compression codec: %d", codec)
	}
}
