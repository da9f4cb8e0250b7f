package kafkaadmin

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// GetClusterMetadata returns a ClusterMetadata for all live brokers and all
// topics.
func (c *Client) GetClusterMetadata(ctx context.Context) (ClusterMetadata, error) {
	md, err := c.fetchMetadata(ctx, nil)
	if err != nil {
		return ClusterMetadata{}, err
	}

	return ClusterMetadataFromKafka(md)
}

// fetchMetadata performs a ckg metadata lookup. A nil topic fetches all
// topics.
func (c *Client) fetchMetadata(ctx context.Context, topic *string) (*kafka.Metadata, error) {
	const op = "get cluster metadata"

	if c.isClosed() {
		return nil, ErrClientClosed
	}

	// confluent-kafka-go takes a millisecond timeout rather than a context.
	to := c.timeoutMs(ctx)

	c.logger.Debug("fetching metadata", "timeout_ms", to)

	md, err := c.c.GetMetadata(topic, topic == nil, to)
	if err != nil {
		return nil, classify(op, err)
	}

	return md, nil
}
