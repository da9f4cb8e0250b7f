package kafkaadmin

import (
	"context"
	"fmt"
	"sort"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/hashicorp/go-multierror"
)

// ConsumerGroup describes a consumer group and its members.
type ConsumerGroup struct {
	Name         string
	State        string
	Protocol     string
	ProtocolType string
	Members      []GroupMember
}

// GroupMember describes a single member of a consumer group.
type GroupMember struct {
	ID          string
	ClientID    string
	ClientHost  string
	Metadata    []byte
	Assignments []MemberAssignment
}

// MemberAssignment lists the partitions of a topic assigned to a member.
type MemberAssignment struct {
	Topic      string
	Partitions []int32
}

// TopicGroupOffsets holds a group's offsets for each partition of a topic.
type TopicGroupOffsets struct {
	Topic      string
	Partitions []PartitionOffsets
}

// PartitionOffsets holds the log start, log end and committed offsets of a
// partition. Unknown offsets are -1.
type PartitionOffsets struct {
	Partition     int32
	StartOffset   int64
	EndOffset     int64
	CurrentOffset int64
}

// Lag returns the number of messages between the committed offset and the end
// of the log.
func (p PartitionOffsets) Lag() int64 {
	return p.EndOffset - p.CurrentOffset
}

// GroupOffsetType enumerates the initial position kinds of CreateGroupOffsets.
type GroupOffsetType int

const (
	GroupOffsetBeginning GroupOffsetType = iota
	GroupOffsetEnd
	GroupOffsetTail
	GroupOffsetAt
)

// GroupOffset is the initial position committed by CreateGroupOffsets.
// Value is only meaningful for GroupOffsetTail (messages back from the end)
// and GroupOffsetAt (absolute offset).
type GroupOffset struct {
	Type  GroupOffsetType
	Value int64
}

func (g GroupOffset) String() string {
	switch g.Type {
	case GroupOffsetBeginning:
		return "Beginning"
	case GroupOffsetEnd:
		return "End"
	case GroupOffsetTail:
		return fmt.Sprintf("Tail(%d)", g.Value)
	default:
		return fmt.Sprintf("Offset(%d)", g.Value)
	}
}

// Resolve returns the absolute offset for a partition with the provided
// watermarks.
func (g GroupOffset) Resolve(low, high int64) int64 {
	switch g.Type {
	case GroupOffsetBeginning:
		return low
	case GroupOffsetEnd:
		return high
	case GroupOffsetTail:
		if o := high - g.Value; o > low {
			return o
		}
		return low
	default:
		return g.Value
	}
}

// ListConsumerGroups returns every consumer group with its members.
func (c *Client) ListConsumerGroups(ctx context.Context) ([]ConsumerGroup, error) {
	const op = "list consumer groups"

	if c.isClosed() {
		return nil, ErrClientClosed
	}

	listing, err := c.c.ListConsumerGroups(ctx)
	if err != nil {
		return nil, classify(op, err)
	}

	for _, e := range listing.Errors {
		c.logger.Warn("partial consumer group listing", "error", e)
	}

	var ids []string
	for _, g := range listing.Valid {
		ids = append(ids, g.GroupID)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	described, err := c.c.DescribeConsumerGroups(ctx, ids)
	if err != nil {
		return nil, classify(op, err)
	}

	var errs *multierror.Error
	var groups []ConsumerGroup

	for _, d := range described.ConsumerGroupDescriptions {
		if isErr(d.Error) {
			errs = multierror.Append(errs, classify(op, fmt.Errorf("group %s: %w", d.GroupID, d.Error)))
			continue
		}

		g := ConsumerGroup{
			Name:     d.GroupID,
			State:    d.State.String(),
			Protocol: d.PartitionAssignor,
		}

		if !d.IsSimpleConsumerGroup {
			g.ProtocolType = "consumer"
		}

		for _, m := range d.Members {
			g.Members = append(g.Members, GroupMember{
				ID:          m.ConsumerID,
				ClientID:    m.ClientID,
				ClientHost:  m.Host,
				Assignments: assignmentsFromTopicPartitions(m.Assignment.TopicPartitions),
			})
		}

		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})

	return groups, errs.ErrorOrNil()
}

// GetGroupOffsets returns the committed offsets of a group along with the log
// start and end offsets of each partition it has committed offsets for.
func (c *Client) GetGroupOffsets(ctx context.Context, group string) ([]TopicGroupOffsets, error) {
	const op = "get group offsets"

	if c.isClosed() {
		return nil, ErrClientClosed
	}

	// A nil partition list requests every committed offset of the group.
	res, err := c.c.ListConsumerGroupOffsets(ctx, []kafka.ConsumerGroupTopicPartitions{{Group: group}})
	if err != nil {
		return nil, classify(op, err)
	}

	consumer, err := c.consumer(group)
	if err != nil {
		return nil, classify(op, err)
	}
	defer consumer.Close()

	byTopic := map[string][]PartitionOffsets{}

	for _, gtp := range res.ConsumerGroupsTopicPartitions {
		for _, tp := range gtp.Partitions {
			if tp.Topic == nil || tp.Offset < 0 {
				continue
			}

			po := PartitionOffsets{
				Partition:     tp.Partition,
				StartOffset:   -1,
				EndOffset:     -1,
				CurrentOffset: int64(tp.Offset),
			}

			low, high, err := consumer.QueryWatermarkOffsets(*tp.Topic, tp.Partition, c.timeoutMs(ctx))
			if err != nil {
				c.logger.Warn("watermark lookup failed", "topic", *tp.Topic, "partition", tp.Partition, "error", err)
			} else {
				po.StartOffset, po.EndOffset = low, high
			}

			byTopic[*tp.Topic] = append(byTopic[*tp.Topic], po)
		}
	}

	var out []TopicGroupOffsets
	for topic, partitions := range byTopic {
		sort.Slice(partitions, func(i, j int) bool {
			return partitions[i].Partition < partitions[j].Partition
		})
		out = append(out, TopicGroupOffsets{Topic: topic, Partitions: partitions})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Topic < out[j].Topic
	})

	return out, nil
}

// CreateGroupOffsets commits offsets for every partition of the provided
// topics on behalf of groupID, creating the group if it doesn't exist.
func (c *Client) CreateGroupOffsets(ctx context.Context, groupID string, topics []string, initial GroupOffset) error {
	const op = "create group offsets"

	if groupID == "" {
		return ErrRejected{Op: op, Message: "group id must be specified"}
	}

	if len(topics) == 0 {
		return ErrNoTopics
	}

	md, err := c.fetchMetadata(ctx, nil)
	if err != nil {
		return err
	}

	consumer, err := c.consumer(groupID)
	if err != nil {
		return classify(op, err)
	}
	defer consumer.Close()

	var partitions []kafka.TopicPartition

	for _, t := range topics {
		topic := t
		tm, exists := md.Topics[topic]
		if !exists {
			return ErrRejected{Op: op, Message: fmt.Sprintf("topic %s does not exist", topic)}
		}

		for _, p := range tm.Partitions {
			low, high, err := consumer.QueryWatermarkOffsets(topic, p.ID, c.timeoutMs(ctx))
			if err != nil {
				return classify(op, err)
			}

			partitions = append(partitions, kafka.TopicPartition{
				Topic:     &topic,
				Partition: p.ID,
				Offset:    kafka.Offset(initial.Resolve(low, high)),
			})
		}
	}

	res, err := c.c.AlterConsumerGroupOffsets(ctx, []kafka.ConsumerGroupTopicPartitions{
		{Group: groupID, Partitions: partitions},
	})
	if err != nil {
		return classify(op, err)
	}

	var errs *multierror.Error
	for _, gtp := range res.ConsumerGroupsTopicPartitions {
		for _, tp := range gtp.Partitions {
			if tp.Error != nil {
				errs = multierror.Append(errs, classify(op, tp.Error))
			}
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	c.logger.Info("created group offsets", "group", groupID, "topics", topics, "initial", initial.String())

	return nil
}

// DeleteConsumerGroup deletes an empty consumer group and returns its name.
func (c *Client) DeleteConsumerGroup(ctx context.Context, group string) (string, error) {
	const op = "delete consumer group"

	if c.isClosed() {
		return "", ErrClientClosed
	}

	res, err := c.c.DeleteConsumerGroups(ctx, []string{group})
	if err != nil {
		return "", classify(op, err)
	}

	for _, r := range res.ConsumerGroupResults {
		if isErr(r.Error) {
			return "", classify(op, fmt.Errorf("group %s: %w", r.Group, r.Error))
		}
	}

	return group, nil
}

func assignmentsFromTopicPartitions(tps []kafka.TopicPartition) []MemberAssignment {
	byTopic := map[string][]int32{}
	for _, tp := range tps {
		if tp.Topic == nil {
			continue
		}
		byTopic[*tp.Topic] = append(byTopic[*tp.Topic], tp.Partition)
	}

	var out []MemberAssignment
	for topic, partitions := range byTopic {
		sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
		out = append(out, MemberAssignment{Topic: topic, Partitions: partitions})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Topic < out[j].Topic
	})

	return out
}
