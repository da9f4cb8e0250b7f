package stub

import (
	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

var defaultTopicConfigs = map[string]string{
	"cleanup.policy":      "delete",
	"compression.type":    "producer",
	"max.message.bytes":   "1048588",
	"min.insync.replicas": "1",
	"retention.bytes":     "-1",
	"retention.ms":        "604800000",
	"segment.bytes":       "1073741824",
}

func fakeClusterMetadata() kafkaadmin.ClusterMetadata {
	return kafkaadmin.ClusterMetadata{
		OriginatingBrokerID: 1001,
		Brokers: []kafkaadmin.BrokerInfo{
			{
				ID:   1001,
				Host: "host-a",
				Port: 9092,
			},
			{
				ID:   1002,
				Host: "host-b",
				Port: 9092,
			},
			{
				ID:   1003,
				Host: "host-c",
				Port: 9092,
			},
		},
		Topics: []kafkaadmin.TopicInfo{
			{
				Name: "test1",
				Partitions: []kafkaadmin.PartitionInfo{
					{
						ID:       0,
						Leader:   1001,
						Replicas: []int32{1001, 1002},
						ISR:      []int32{1001, 1002},
					},
					{
						ID:       1,
						Leader:   1002,
						Replicas: []int32{1002},
						ISR:      []int32{1002},
					},
				},
			},
			{
				Name: "test2",
				Partitions: []kafkaadmin.PartitionInfo{
					{
						ID:       0,
						Leader:   1003,
						Replicas: []int32{1003, 1002},
						ISR:      []int32{1003, 1002},
					},
					{
						ID:       1,
						Leader:   1003,
						Replicas: []int32{1002, 1003},
						ISR:      []int32{1003, 1002},
					},
				},
			},
		},
	}
}

func copyTopic(t kafkaadmin.TopicInfo) kafkaadmin.TopicInfo {
	out := kafkaadmin.TopicInfo{
		Name:       t.Name,
		Partitions: make([]kafkaadmin.PartitionInfo, len(t.Partitions)),
	}

	for i, p := range t.Partitions {
		out.Partitions[i] = kafkaadmin.PartitionInfo{
			ID:       p.ID,
			Leader:   p.Leader,
			Replicas: append([]int32(nil), p.Replicas...),
			ISR:      append([]int32(nil), p.ISR...),
		}
	}

	return out
}
