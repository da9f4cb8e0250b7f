package kafkaadmin

import (
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
)

func TestFetchOffsetString(t *testing.T) {
	assert.Equal(t, "Beginning", FetchOffset{Type: FetchBeginning}.String())
	assert.Equal(t, "End", FetchOffset{Type: FetchEnd}.String())
	assert.Equal(t, "Timestamp(1700000000000)", FetchOffset{Type: FetchTimestamp, Timestamp: 1700000000000}.String())
}

func TestPartitionsEnded(t *testing.T) {
	assert.False(t, partitionsEnded(map[int32]int64{0: 100}, nil))

	ends := map[int32]int64{0: 10, 1: 5}
	assert.False(t, partitionsEnded(map[int32]int64{0: 10, 1: 4}, ends))
	assert.True(t, partitionsEnded(map[int32]int64{0: 10, 1: 5}, ends))
	assert.True(t, partitionsEnded(map[int32]int64{0: 11, 1: 7}, ends))
	// Empty ranges end immediately.
	assert.True(t, partitionsEnded(map[int32]int64{}, map[int32]int64{}))
}

func TestEnvelopeFromMessage(t *testing.T) {
	topic := "orders"
	ts := time.UnixMilli(1700000000123)

	m := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 3, Offset: 42},
		Key:            []byte("order-1"),
		Value:          []byte{'o', 'k', 0xff},
		Timestamp:      ts,
		Headers:        []kafka.Header{{Key: "trace", Value: []byte("abc")}},
	}

	env := envelopeFromMessage(m)
	assert.Equal(t, "order-1", env.Key)
	assert.Equal(t, int32(3), env.Partition)
	assert.Equal(t, int64(42), env.Offset)
	assert.Equal(t, "ok�", env.Payload)
	assert.Equal(t, int64(1700000000123), env.Timestamp)
	assert.Equal(t, map[string]string{"trace": "abc"}, env.Headers)

	env = envelopeFromMessage(&kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic}})
	assert.Equal(t, int64(0), env.Timestamp)
	assert.Equal(t, "", env.Key)
}
