package util

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/google/uuid"
)

var batchMagic = [2]byte{0xBA, 0x7C}

// IsBatchFrame reports whether data starts with the batch magic.
func IsBatchFrame(data []byte) bool {
	return len(data) >= 2 && data[0] == batchMagic[0] && data[1] == batchMagic[1]
}

// EncodeBatchMessages serializes a batch as magic, codec id and a body compressed with codec.
func EncodeBatchMessages(b *types.Batch, codec byte) ([]byte, error) {
	var buf bytes.Buffer

	write := func(v any) error {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return fmt.Errorf("encode value failed: %w", err)
		}
		return nil
	}

	if err := write(b.StreamID); err != nil {
		return nil, err
	}
	if err := write(b.TopicID); err != nil {
		return nil, err
	}
	if err := write(b.Partition); err != nil {
		return nil, err
	}
	if err := write(b.CurrentOffset); err != nil {
		return nil, err
	}
	if err := write(uint32(len(b.Messages))); err != nil {
		return nil, err
	}

	for _, m := range b.Messages {
		if _, err := buf.Write(m.ID[:]); err != nil {
			return nil, fmt.Errorf("write message id failed: %w", err)
		}
		if err := write(m.Offset); err != nil {
			return nil, err
		}
		if err := write(m.Timestamp); err != nil {
			return nil, err
		}
		if err := write(uint32(len(m.Payload))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(m.Payload); err != nil {
			return nil, fmt.Errorf("write payload bytes failed: %w", err)
		}
	}

	body, err := CompressMessage(buf.Bytes(), codec)
	if err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}

	out := make([]byte, 0, 3+len(body))
	out = append(out, batchMagic[0], batchMagic[1], codec)
	return append(out, body...), nil
}

// DecodeBatchMessages decodes a batch encoded by EncodeBatchMessages.
func DecodeBatchMessages(data []byte) (*types.Batch, error) {
	if !IsBatchFrame(data) || len(data) < 3 {
		return nil, fmt.Errorf("invalid batch header")
	}
	data, err := DecompressMessage(data[3:], data[2])
	if err != nil {
		return nil, fmt.Errorf("decompress batch: %w", err)
	}

	offset := 0
	read := func(size int) ([]byte, error) {
		if offset+size > len(data) {
			return nil, errors.New("data too short")
		}
		b := data[offset : offset+size]
		offset += size
		return b, nil
	}
	readU32 := func() (uint32, error) {
		b, err := read(4)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint32(b), nil
	}
	readU64 := func() (uint64, error) {
		b, err := read(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	}

	batch := &types.Batch{}
	if batch.StreamID, err = readU32(); err != nil {
		return nil, err
	}
	if batch.TopicID, err = readU32(); err != nil {
		return nil, err
	}
	if batch.Partition, err = readU32(); err != nil {
		return nil, err
	}
	if batch.CurrentOffset, err = readU64(); err != nil {
		return nil, err
	}
	numMsgs, err := readU32()
	if err != nil {
		return nil, err
	}
	// each message carries at least 36 bytes of header
	if int(numMsgs) > (len(data)-offset)/36 {
		return nil, fmt.Errorf("message count %d exceeds frame size", numMsgs)
	}

	batch.Messages = make([]types.Message, 0, numMsgs)
	for i := uint32(0); i < numMsgs; i++ {
		idBytes, err := read(16)
		if err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(idBytes)
		if err != nil {
			return nil, fmt.Errorf("invalid message id: %w", err)
		}
		msgOffset, err := readU64()
		if err != nil {
			return nil, err
		}
		ts, err := readU64()
		if err != nil {
			return nil, err
		}
		payloadLen, err := readU32()
		if err != nil {
			return nil, err
		}
		payload, err := read(int(payloadLen))
		if err != nil {
			return nil, err
		}

		batch.Messages = append(batch.Messages, types.Message{
			ID:        id,
			Offset:    msgOffset,
			Partition: batch.Partition,
			Timestamp: int64(ts),
			Payload:   append([]byte(nil), payload...),
		})
	}

	return batch, nil
}
