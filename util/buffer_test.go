package util_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/downfa11-org/logstream/util"
)

func TestWriteReadWithLength(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("first"), {}, []byte("third frame")}

	for _, p := range payloads {
		if err := util.WriteWithLength(&buf, p); err != nil {
			t.Fatalf("WriteWithLength failed: %v", err)
		}
	}

	for i, want := range payloads {
		got, err := util.ReadWithLength(&buf)
		if err != nil {
			t.Fatalf("ReadWithLength #%d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Frame #%d mismatch: got %q, want %q", i, got, want)
		}
	}
}

func TestReadWithLengthRejectsOversized(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, util.MaxMessageSize+1)

	_, err := util.ReadWithLength(bytes.NewReader(header))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestReadWithLengthTruncated(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 10)

	if _, err := util.ReadWithLength(bytes.NewReader(append(header, 'a', 'b'))); err == nil {
		t.Error("Expected error for truncated body")
	}
}
