package util_test

import (
	"fmt"
	"testing"

	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch(n int) *types.Batch {
	b := &types.Batch{StreamID: 1, TopicID: 2, Partition: 3, CurrentOffset: 41}
	for i := 0; i < n; i++ {
		m := types.NewMessage([]byte(fmt.Sprintf("message-%d", i+1)))
		m.Offset = uint64(32 + i)
		m.Timestamp = int64(1700000000 + i)
		b.Messages = append(b.Messages, m)
	}
	return b
}

func TestEncodeDecodeBatchMessages(t *testing.T) {
	for _, codec := range []byte{util.CodecNone, util.CodecSnappy, util.CodecZstd} {
		t.Run(fmt.Sprintf("codec-%d", codec), func(t *testing.T) {
			in := sampleBatch(10)

			data, err := util.EncodeBatchMessages(in, codec)
			require.NoError(t, err)
			assert.True(t, util.IsBatchFrame(data))
			assert.Equal(t, codec, data[2])

			out, err := util.DecodeBatchMessages(data)
			require.NoError(t, err)
			assert.Equal(t, in.StreamID, out.StreamID)
			assert.Equal(t, in.TopicID, out.TopicID)
			assert.Equal(t, in.Partition, out.Partition)
			assert.Equal(t, in.CurrentOffset, out.CurrentOffset)
			require.Len(t, out.Messages, 10)
			for i, m := range out.Messages {
				assert.Equal(t, in.Messages[i].ID, m.ID)
				assert.Equal(t, in.Messages[i].Offset, m.Offset)
				assert.Equal(t, in.Messages[i].Timestamp, m.Timestamp)
				assert.Equal(t, in.Messages[i].Payload, m.Payload)
				assert.Equal(t, in.Partition, m.Partition)
			}
		})
	}
}

func TestEncodeEmptyBatch(t *testing.T) {
	data, err := util.EncodeBatchMessages(&types.Batch{}, util.CodecNone)
	require.NoError(t, err)

	out, err := util.DecodeBatchMessages(data)
	require.NoError(t, err)
	assert.Empty(t, out.Messages)
}

func TestDecodeBatchMessagesInvalid(t *testing.T) {
	_, err := util.DecodeBatchMessages([]byte("OK"))
	assert.Error(t, err)

	data, err := util.EncodeBatchMessages(sampleBatch(2), util.CodecNone)
	require.NoError(t, err)
	_, err = util.DecodeBatchMessages(data[:len(data)-3])
	assert.Error(t, err)
}
