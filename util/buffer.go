package util

import (
	"encoding/binary"
	"fmt"
	"io"
)

const MaxMessageSize = 64 * 1024 * 1024 // 64MB

// WriteWithLength writes data with a 4-byte length prefix.
func WriteWithLength(w io.Writer, data []byte) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("data size %d exceeds maximum %d", len(data), MaxMessageSize)
	}

	buf := make([]byte, 4, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadWithLength reads data with a 4-byte length prefix.
func ReadWithLength(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxMessageSize {
		return nil, fmt.Errorf("message size %d exceeds maximum %d", length, MaxMessageSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return buf, nil
}
