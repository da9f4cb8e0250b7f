package kafkaadmin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// FetchOffsetType enumerates the positions a consumer can start or stop at.
type FetchOffsetType int

const (
	FetchBeginning FetchOffsetType = iota
	FetchEnd
	FetchTimestamp
)

// FetchOffset is a log position expressed as the beginning of the log, the
// end of the log or the first message at or after a timestamp (epoch ms).
type FetchOffset struct {
	Type      FetchOffsetType
	Timestamp int64
}

func (f FetchOffset) String() string {
	switch f.Type {
	case FetchBeginning:
		return "Beginning"
	case FetchEnd:
		return "End"
	default:
		return fmt.Sprintf("Timestamp(%d)", f.Timestamp)
	}
}

// MessageEnvelope is a consumed message with its key, payload and headers
// decoded as UTF-8.
type MessageEnvelope struct {
	Key       string
	Partition int32
	Offset    int64
	Headers   map[string]string
	Payload   string
	Timestamp int64
}

// ConsumerHandle is returned by ConsumeBetweenOffsets. Messages is closed once
// the consumer stops, either through StopConsumer or because every partition
// reached its end offset.
type ConsumerHandle struct {
	ID    string
	Topic string
	// StartOffsets maps each partition to the offset consumption starts at.
	StartOffsets map[int32]int64
	Messages     <-chan MessageEnvelope
}

// consumerSession tracks a running consumer goroutine.
type consumerSession struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the session and waits for its goroutine to exit.
func (s *consumerSession) stop() {
	s.cancel()
	<-s.done
}

// consumerPollInterval bounds each ReadMessage call so that cancellation is
// observed promptly.
var consumerPollInterval = 200 * time.Millisecond

// ConsumeBetweenOffsets starts a consumer on every partition of topic at
// start. When end is set (and not FetchBeginning), the consumer stops once
// every partition reaches the offset end resolves to.
func (c *Client) ConsumeBetweenOffsets(ctx context.Context, topic string, start FetchOffset, end *FetchOffset) (*ConsumerHandle, error) {
	const op = "consume between offsets"

	md, err := c.fetchMetadata(ctx, nil)
	if err != nil {
		return nil, err
	}

	tm, exists := md.Topics[topic]
	if !exists {
		return nil, ErrRejected{Op: op, Message: fmt.Sprintf("topic %s does not exist", topic)}
	}

	var partitions []int32
	for _, p := range tm.Partitions {
		partitions = append(partitions, p.ID)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	consumer, err := c.consumer("")
	if err != nil {
		return nil, classify(op, err)
	}

	starts, err := c.resolveOffsets(ctx, consumer, topic, partitions, start)
	if err != nil {
		consumer.Close()
		return nil, classify(op, err)
	}

	var ends map[int32]int64
	if end != nil && end.Type != FetchBeginning {
		if ends, err = c.resolveOffsets(ctx, consumer, topic, partitions, *end); err != nil {
			consumer.Close()
			return nil, classify(op, err)
		}
	}

	var assignment []kafka.TopicPartition
	for _, p := range partitions {
		assignment = append(assignment, kafka.TopicPartition{
			Topic:     &topic,
			Partition: p,
			Offset:    kafka.Offset(starts[p]),
		})
	}

	if err := consumer.Assign(assignment); err != nil {
		consumer.Close()
		return nil, classify(op, err)
	}

	id := fmt.Sprintf("consumer_%d/%s/%s", time.Now().UnixMilli(), topic, start)

	sctx, cancel := context.WithCancel(context.Background())
	session := &consumerSession{cancel: cancel, done: make(chan struct{})}
	out := make(chan MessageEnvelope, 64)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		consumer.Close()
		return nil, ErrClientClosed
	}
	c.consumers[id] = session
	c.mu.Unlock()

	c.logger.Info("consumer started", "id", id, "topic", topic, "start", start.String())

	current := make(map[int32]int64, len(starts))
	for p, o := range starts {
		current[p] = o
	}

	go func() {
		defer close(session.done)
		defer close(out)
		defer consumer.Close()
		defer c.removeSession(id, session)

		for {
			if partitionsEnded(current, ends) {
				c.logger.Info("consumer reached end offsets", "id", id)
				return
			}

			select {
			case <-sctx.Done():
				return
			default:
			}

			msg, err := consumer.ReadMessage(consumerPollInterval)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.IsTimeout() {
					continue
				}
				c.logger.Warn("consumer read failed", "id", id, "error", err)
				continue
			}

			env := envelopeFromMessage(msg)
			if end, bounded := ends[env.Partition]; !bounded || env.Offset < end {
				select {
				case out <- env:
				case <-sctx.Done():
					return
				}
			}

			current[env.Partition] = env.Offset + 1
		}
	}()

	return &ConsumerHandle{
		ID:           id,
		Topic:        topic,
		StartOffsets: starts,
		Messages:     out,
	}, nil
}

// StopConsumer stops the consumer with the provided ID and waits for it to
// exit or for ctx to be done.
func (c *Client) StopConsumer(ctx context.Context, id string) error {
	c.mu.Lock()
	session, exists := c.consumers[id]
	delete(c.consumers, id)
	c.mu.Unlock()

	if !exists {
		return ErrNoSuchConsumer{ID: id}
	}

	session.cancel()

	select {
	case <-session.done:
	case <-ctx.Done():
		return ErrTransport{Op: "stop consumer", Err: ctx.Err()}
	}

	c.logger.Info("consumer stopped", "id", id)

	return nil
}

// ActiveConsumers returns the IDs of all running consumers.
func (c *Client) ActiveConsumers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.consumers))
	for id := range c.consumers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (c *Client) removeSession(id string, s *consumerSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumers[id] == s {
		delete(c.consumers, id)
	}
}

// resolveOffsets translates a FetchOffset into an absolute offset for each
// partition. Timestamps past the last message resolve to the log end.
func (c *Client) resolveOffsets(ctx context.Context, consumer *kafka.Consumer, topic string, partitions []int32, at FetchOffset) (map[int32]int64, error) {
	offsets := make(map[int32]int64, len(partitions))
	highs := make(map[int32]int64, len(partitions))

	for _, p := range partitions {
		low, high, err := consumer.QueryWatermarkOffsets(topic, p, c.timeoutMs(ctx))
		if err != nil {
			return nil, err
		}
		highs[p] = high

		switch at.Type {
		case FetchBeginning:
			offsets[p] = low
		case FetchEnd:
			offsets[p] = high
		}
	}

	if at.Type != FetchTimestamp {
		return offsets, nil
	}

	var query []kafka.TopicPartition
	for _, p := range partitions {
		query = append(query, kafka.TopicPartition{
			Topic:     &topic,
			Partition: p,
			Offset:    kafka.Offset(at.Timestamp),
		})
	}

	found, err := consumer.OffsetsForTimes(query, c.timeoutMs(ctx))
	if err != nil {
		return nil, err
	}

	for _, tp := range found {
		offsets[tp.Partition] = int64(tp.Offset)
		if tp.Offset < 0 {
			offsets[tp.Partition] = highs[tp.Partition]
		}
	}

	return offsets, nil
}

// partitionsEnded returns whether every bounded partition has been consumed
// up to its end offset. A nil ends map never ends.
func partitionsEnded(current, ends map[int32]int64) bool {
	if ends == nil {
		return false
	}

	for p, end := range ends {
		if current[p] < end {
			return false
		}
	}

	return true
}

func envelopeFromMessage(m *kafka.Message) MessageEnvelope {
	env := MessageEnvelope{
		Key:       lossy(m.Key),
		Partition: m.TopicPartition.Partition,
		Offset:    int64(m.TopicPartition.Offset),
		Headers:   make(map[string]string, len(m.Headers)),
		Payload:   lossy(m.Value),
	}

	if !m.Timestamp.IsZero() {
		env.Timestamp = m.Timestamp.UnixMilli()
	}

	for _, h := range m.Headers {
		env.Headers[h.Key] = lossy(h.Value)
	}

	return env
}

func lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
