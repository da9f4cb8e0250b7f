// Package kafkaadmin wraps the Kafka admin and consumer API calls used by
// kafkadesk. Every call the UI-facing cache makes against a cluster goes
// through the KafkaAdmin interface.
package kafkaadmin

import (
	"context"
)

// KafkaAdmin is the remote command interface.
type KafkaAdmin interface {
	Close()
	// Cluster.
	CurrentCluster() ClusterConfig
	GetClusterMetadata(context.Context) (ClusterMetadata, error)
	// Topics.
	CreateTopic(context.Context, CreateTopicConfig) (string, error)
	DeleteTopic(context.Context, string) (string, error)
	FetchTopicConfigs(context.Context, []string) (TopicConfigs, error)
	AlterTopicConfigs(context.Context, string, map[string]string) error
	// Consumer groups.
	ListConsumerGroups(context.Context) ([]ConsumerGroup, error)
	GetGroupOffsets(context.Context, string) ([]TopicGroupOffsets, error)
	CreateGroupOffsets(context.Context, string, []string, GroupOffset) error
	DeleteConsumerGroup(context.Context, string) (string, error)
	// Consumers.
	ConsumeBetweenOffsets(context.Context, string, FetchOffset, *FetchOffset) (*ConsumerHandle, error)
	StopConsumer(context.Context, string) error
	ActiveConsumers() []string
}
