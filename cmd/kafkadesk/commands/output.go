package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ryanuber/columnize"

	"github.com/kafkadesk/kafkadesk/clustercache"
	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// writeColumns writes pipe delimited lines as aligned columns.
func writeColumns(w io.Writer, lines []string) {
	fmt.Fprintln(w, columnize.SimpleFormat(lines))
}

func topicLines(topics []kafkaadmin.TopicInfo) []string {
	lines := []string{"Topic|Partitions|Replication|Under-replicated"}

	for _, t := range topics {
		var under int
		for _, p := range t.Partitions {
			if len(p.ISR) < len(p.Replicas) {
				under++
			}
		}

		lines = append(lines, fmt.Sprintf("%s|%d|%d|%d", t.Name, len(t.Partitions), t.ReplicationFactor(), under))
	}

	return lines
}

func partitionLines(t kafkaadmin.TopicInfo, brokers *clustercache.BrokerRegistry) []string {
	lines := []string{"Partition|Leader|Replicas|ISR"}

	for _, p := range t.Partitions {
		leader := "none"
		if p.Leader >= 0 {
			leader = brokers.Label(p.Leader)
		}

		lines = append(lines, fmt.Sprintf("%d|%s|%s|%s", p.ID, leader, joinIDs(p.Replicas), joinIDs(p.ISR)))
	}

	return lines
}

func brokerLines(brokers []kafkaadmin.BrokerInfo, registry *clustercache.BrokerRegistry, controller int32) []string {
	lines := []string{"ID|Host|Port|Label|Controller"}

	for _, b := range brokers {
		var c string
		if b.ID == controller {
			c = "*"
		}

		lines = append(lines, fmt.Sprintf("%d|%s|%d|%s|%s", b.ID, b.Host, b.Port, registry.Label(b.ID), c))
	}

	return lines
}

func configLines(entries kafkaadmin.ConfigEntries) []string {
	lines := []string{"Name|Value|Source|Override|Default"}

	for _, e := range entries {
		value := e.StringValue()
		if e.IsSensitive {
			value = "(sensitive)"
		}

		var override string
		if e.IsOverride() {
			override = "yes"
		}

		def := "-"
		if d, ok := kafkaadmin.LookupTopicConfig(e.Name); ok {
			def = orNone(d.Default)
		}

		lines = append(lines, fmt.Sprintf("%s|%s|%s|%s|%s", e.Name, value, e.Source, override, def))
	}

	return lines
}

func configDefLines(defs []kafkaadmin.TopicConfigDef) []string {
	lines := []string{"Name|Type|Valid values|Default"}

	for _, d := range defs {
		lines = append(lines, fmt.Sprintf("%s|%s|%s|%s", d.Name, d.Type, validValues(d), orNone(d.Default)))
	}

	return lines
}

func validValues(d kafkaadmin.TopicConfigDef) string {
	if len(d.ValidValues) > 0 {
		return strings.Join(d.ValidValues, ",")
	}
	if d.Range != "" {
		return d.Range
	}
	return "any"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func groupLines(groups []kafkaadmin.ConsumerGroup) []string {
	lines := []string{"Group|State|Protocol|Members"}

	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("%s|%s|%s|%d", g.Name, g.State, g.Protocol, len(g.Members)))
	}

	return lines
}

func groupOffsetLines(offsets []kafkaadmin.TopicGroupOffsets) []string {
	lines := []string{"Topic|Partition|Start|End|Committed|Lag"}

	for _, t := range offsets {
		for _, p := range t.Partitions {
			lag := "-"
			if p.EndOffset >= 0 {
				lag = fmt.Sprint(p.Lag())
			}

			lines = append(lines, fmt.Sprintf("%s|%d|%d|%d|%d|%s",
				t.Topic, p.Partition, p.StartOffset, p.EndOffset, p.CurrentOffset, lag))
		}
	}

	return lines
}

func messageLine(m kafkaadmin.MessageEnvelope) string {
	ts := "-"
	if m.Timestamp > 0 {
		ts = time.UnixMilli(m.Timestamp).UTC().Format(time.RFC3339Nano)
	}

	return fmt.Sprintf("partition=%d offset=%d timestamp=%s key=%q %s", m.Partition, m.Offset, ts, m.Key, m.Payload)
}

func joinIDs(ids []int32) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = fmt.Sprint(id)
	}

	return strings.Join(s, ",")
}
