package stub

import (
	"context"
	"fmt"
	"sort"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// AddGroup registers a consumer group with committed offsets keyed by topic
// and partition.
func (c *Client) AddGroup(g kafkaadmin.ConsumerGroup, offsets map[string]map[int32]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offsets == nil {
		offsets = map[string]map[int32]int64{}
	}
	c.groups[g.Name] = &group{desc: g, offsets: offsets}
}

func (c *Client) ListConsumerGroups(ctx context.Context) ([]kafkaadmin.ConsumerGroup, error) {
	if err := c.enter(ctx, MethodListConsumerGroups); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []kafkaadmin.ConsumerGroup
	for _, g := range c.groups {
		out = append(out, g.desc)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out, nil
}

func (c *Client) GetGroupOffsets(ctx context.Context, name string) ([]kafkaadmin.TopicGroupOffsets, error) {
	if err := c.enter(ctx, MethodGetGroupOffsets); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g, exists := c.groups[name]
	if !exists {
		return nil, nil
	}

	var out []kafkaadmin.TopicGroupOffsets
	for topic, partitions := range g.offsets {
		tgo := kafkaadmin.TopicGroupOffsets{Topic: topic}

		for p, committed := range partitions {
			po := kafkaadmin.PartitionOffsets{
				Partition:     p,
				StartOffset:   -1,
				EndOffset:     -1,
				CurrentOffset: committed,
			}

			if t, exists := c.topics[topic]; exists && hasPartition(t, p) {
				po.StartOffset, po.EndOffset = c.watermarks(topic, p)
			}

			tgo.Partitions = append(tgo.Partitions, po)
		}

		sort.Slice(tgo.Partitions, func(i, j int) bool {
			return tgo.Partitions[i].Partition < tgo.Partitions[j].Partition
		})

		out = append(out, tgo)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Topic < out[j].Topic
	})

	return out, nil
}

func (c *Client) CreateGroupOffsets(ctx context.Context, groupID string, topics []string, initial kafkaadmin.GroupOffset) error {
	const op = "create group offsets"

	if groupID == "" {
		return kafkaadmin.ErrRejected{Op: op, Message: "group id must be specified"}
	}

	if len(topics) == 0 {
		return kafkaadmin.ErrNoTopics
	}

	if err := c.enter(ctx, MethodCreateGroupOffsets); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g, exists := c.groups[groupID]
	if !exists {
		g = &group{
			desc: kafkaadmin.ConsumerGroup{
				Name:         groupID,
				State:        "Empty",
				ProtocolType: "consumer",
			},
			offsets: map[string]map[int32]int64{},
		}
	}

	for _, topic := range topics {
		t, exists := c.topics[topic]
		if !exists {
			return kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("topic %s does not exist", topic)}
		}

		if g.offsets[topic] == nil {
			g.offsets[topic] = map[int32]int64{}
		}

		for _, p := range t.Partitions {
			low, high := c.watermarks(topic, p.ID)
			g.offsets[topic][p.ID] = initial.Resolve(low, high)
		}
	}

	c.groups[groupID] = g

	return nil
}

func (c *Client) DeleteConsumerGroup(ctx context.Context, name string) (string, error) {
	const op = "delete consumer group"

	if err := c.enter(ctx, MethodDeleteConsumerGroup); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	g, exists := c.groups[name]
	switch {
	case !exists:
		return "", kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("group %s: Broker: The group id does not exist", name)}
	case len(g.desc.Members) > 0:
		return "", kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("group %s: Broker: The group is not empty", name)}
	}

	delete(c.groups, name)

	return name, nil
}

// watermarks returns the log start and end offsets of a partition. Logs are
// never truncated, so the start is always 0.
func (c *Client) watermarks(topic string, partition int32) (int64, int64) {
	return 0, int64(len(c.logs[topic][partition]))
}
