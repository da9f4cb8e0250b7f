package kafkaadmin

import (
	"sort"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ClusterMetadata is a point in time snapshot of the brokers and topics
// known to a cluster.
type ClusterMetadata struct {
	OriginatingBrokerID int32
	Topics              []TopicInfo
	Brokers             []BrokerInfo
}

// BrokerInfo describes a live broker.
type BrokerInfo struct {
	ID   int32
	Host string
	Port int
}

// TopicInfo describes a topic and its partitions.
type TopicInfo struct {
	Name       string
	Partitions []PartitionInfo
}

// PartitionInfo describes the state of a partition.
type PartitionInfo struct {
	ID       int32
	Leader   int32
	Replicas []int32
	ISR      []int32
}

// TopicNames returns the names of all topics in the snapshot, in snapshot
// order.
func (md ClusterMetadata) TopicNames() []string {
	names := make([]string, 0, len(md.Topics))
	for _, t := range md.Topics {
		names = append(names, t.Name)
	}

	return names
}

// IsEmpty returns whether the snapshot holds neither topics nor brokers.
func (md ClusterMetadata) IsEmpty() bool {
	return len(md.Topics) == 0 && len(md.Brokers) == 0
}

// UnderReplicated returns all topics that have at least one partition with
// fewer in-sync replicas than assigned replicas.
func (md ClusterMetadata) UnderReplicated() []TopicInfo {
	var filtered []TopicInfo

	for _, t := range md.Topics {
		// As of writing, librdkafka returns no partition level error for an
		// under-replicated partition. The best inference we have is comparing
		// len(ISR) against len(Replicas), which means under-replicated topics are
		// indistinguishable from reassigning topics.
		for _, p := range t.Partitions {
			if len(p.ISR) < len(p.Replicas) {
				filtered = append(filtered, t)
				break
			}
		}
	}

	return filtered
}

// ReplicationFactor returns the replica count of the first partition.
func (t TopicInfo) ReplicationFactor() int {
	if len(t.Partitions) == 0 {
		return 0
	}

	return len(t.Partitions[0].Replicas)
}

// ClusterMetadataFromKafka translates a *kafka.Metadata. Topics are sorted
// by name and partitions by ID since librdkafka returns topics as a map.
func ClusterMetadataFromKafka(md *kafka.Metadata) (ClusterMetadata, error) {
	if md == nil {
		return ClusterMetadata{}, ErrFetchingMetadata{Message: "nil metadata"}
	}

	cm := ClusterMetadata{
		OriginatingBrokerID: md.OriginatingBroker.ID,
		Topics:              make([]TopicInfo, 0, len(md.Topics)),
		Brokers:             make([]BrokerInfo, 0, len(md.Brokers)),
	}

	for _, b := range md.Brokers {
		cm.Brokers = append(cm.Brokers, BrokerInfo{
			ID:   b.ID,
			Host: b.Host,
			Port: b.Port,
		})
	}

	sort.Slice(cm.Brokers, func(i, j int) bool {
		return cm.Brokers[i].ID < cm.Brokers[j].ID
	})

	for name, topic := range md.Topics {
		// Topics that fail metadata lookup (e.g. being deleted) are skipped.
		if topic.Error.Code() != kafka.ErrNoError {
			continue
		}

		ti := TopicInfo{
			Name:       name,
			Partitions: make([]PartitionInfo, 0, len(topic.Partitions)),
		}

		for _, p := range topic.Partitions {
			ti.Partitions = append(ti.Partitions, PartitionInfo{
				ID:       p.ID,
				Leader:   p.Leader,
				Replicas: p.Replicas,
				ISR:      p.Isrs,
			})
		}

		sort.Slice(ti.Partitions, func(i, j int) bool {
			return ti.Partitions[i].ID < ti.Partitions[j].ID
		})

		cm.Topics = append(cm.Topics, ti)
	}

	sort.Slice(cm.Topics, func(i, j int) bool {
		return cm.Topics[i].Name < cm.Topics[j].Name
	})

	return cm, nil
}
