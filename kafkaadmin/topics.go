package kafkaadmin

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// CreateTopicConfig holds CreateTopic parameters.
type CreateTopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	Config            map[string]string
	ReplicaAssignment ReplicaAssignment
}

// ReplicaAssignment is a [][]int32 of partition assignments. The outer slice
// index maps to the partition ID (ie index position 3 describes partition 3
// for the reference topic), the inner slice is an []int32 of broker assignments.
type ReplicaAssignment [][]int32

// CreateTopic creates a topic and returns the created topic name.
func (c *Client) CreateTopic(ctx context.Context, cfg CreateTopicConfig) (string, error) {
	const op = "create topic"

	if err := ValidateTopicName(cfg.Name); err != nil {
		return "", ErrRejected{Op: op, Message: err.Error()}
	}

	if cfg.Partitions < 1 {
		return "", ErrRejected{Op: op, Message: "partitions must be at least 1"}
	}

	if c.isClosed() {
		return "", ErrClientClosed
	}

	spec := kafka.TopicSpecification{
		Topic:             cfg.Name,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
		ReplicaAssignment: cfg.ReplicaAssignment,
		Config:            cfg.Config,
	}

	// ReplicaAssignment and ReplicationFactor are
	// mutually exclusive.
	if cfg.ReplicaAssignment != nil {
		spec.ReplicationFactor = 0
	}

	results, err := c.c.CreateTopics(ctx, []kafka.TopicSpecification{spec})
	if err != nil {
		return "", classify(op, err)
	}

	return topicResult(op, results)
}

// DeleteTopic deletes a topic and returns the deleted topic name.
func (c *Client) DeleteTopic(ctx context.Context, name string) (string, error) {
	const op = "delete topic"

	if name == "" {
		return "", ErrNoTopics
	}

	if c.isClosed() {
		return "", ErrClientClosed
	}

	results, err := c.c.DeleteTopics(ctx, []string{name})
	if err != nil {
		return "", classify(op, err)
	}

	return topicResult(op, results)
}

// topicResult unpacks the single TopicResult of a one-topic request.
func topicResult(op string, results []kafka.TopicResult) (string, error) {
	if len(results) != 1 {
		return "", ErrTransport{Op: op, Err: fmt.Errorf("expected 1 topic result, got %d", len(results))}
	}

	r := results[0]
	if isErr(r.Error) {
		return "", classify(op, fmt.Errorf("topic %s: %w", r.Topic, r.Error))
	}

	return r.Topic, nil
}
