package kafkaadmin

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ConfigType is the value type of a topic config.
type ConfigType string

// Topic config value types.
const (
	ConfigTypeString  ConfigType = "string"
	ConfigTypeInt     ConfigType = "int"
	ConfigTypeLong    ConfigType = "long"
	ConfigTypeDouble  ConfigType = "double"
	ConfigTypeBoolean ConfigType = "boolean"
	ConfigTypeList    ConfigType = "list"
)

// TopicConfigDef documents a topic level config.
type TopicConfigDef struct {
	Name        string
	Description string
	Type        ConfigType
	// ValidValues enumerates the accepted values. For list configs it
	// enumerates the accepted elements. Empty means any value of Type.
	ValidValues []string
	// Range describes the accepted values when they aren't enumerated.
	Range   string
	Default string
}

// Validate checks value against the type and enumerated values of the config.
func (d TopicConfigDef) Validate(value string) error {
	switch d.Type {
	case ConfigTypeInt:
		if _, err := strconv.ParseInt(value, 10, 32); err != nil {
			return fmt.Errorf("%s: %q is not an int", d.Name, value)
		}
	case ConfigTypeLong:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("%s: %q is not a long", d.Name, value)
		}
	case ConfigTypeDouble:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) {
			return fmt.Errorf("%s: %q is not a double", d.Name, value)
		}
	case ConfigTypeBoolean:
		if value != "true" && value != "false" {
			return fmt.Errorf("%s: %q is not a boolean", d.Name, value)
		}
	}

	if len(d.ValidValues) == 0 {
		return nil
	}

	values := []string{value}
	if d.Type == ConfigTypeList {
		values = strings.Split(value, ",")
	}

	for _, v := range values {
		if !contains(d.ValidValues, strings.TrimSpace(v)) {
			return fmt.Errorf("%s: %q is not one of [%s]", d.Name, v, strings.Join(d.ValidValues, ", "))
		}
	}

	return nil
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

var topicConfigDefs = []TopicConfigDef{
	{
		Name:        "cleanup.policy",
		Description: "The retention policy for old log segments. delete discards segments past the retention time or size, compact keeps the latest record per key.",
		Type:        ConfigTypeList,
		ValidValues: []string{"delete", "compact"},
		Default:     "delete",
	},
	{
		Name:        "compression.type",
		Description: "The final compression codec of the topic. producer keeps the codec set by the producer, uncompressed disables compression.",
		Type:        ConfigTypeString,
		ValidValues: []string{"uncompressed", "zstd", "lz4", "snappy", "gzip", "producer"},
		Default:     "producer",
	},
	{
		Name:        "delete.retention.ms",
		Description: "How long delete markers are retained on compacted topics. Bounds the time a consumer reading from offset 0 has to see a consistent snapshot.",
		Type:        ConfigTypeLong,
		Range:       "[0,...]",
		Default:     "86400000",
	},
	{
		Name:        "file.delete.delay.ms",
		Description: "The time to wait before deleting a file from the filesystem.",
		Type:        ConfigTypeLong,
		Range:       "[0,...]",
		Default:     "60000",
	},
	{
		Name:        "flush.messages",
		Description: "Forces an fsync after this many messages. Replication is normally preferred for durability.",
		Type:        ConfigTypeLong,
		Range:       "[1,...]",
		Default:     "9223372036854775807",
	},
	{
		Name:        "flush.ms",
		Description: "Forces an fsync after this many milliseconds. Replication is normally preferred for durability.",
		Type:        ConfigTypeLong,
		Range:       "[0,...]",
		Default:     "9223372036854775807",
	},
	{
		Name:        "follower.replication.throttled.replicas",
		Description: "Replicas throttled on the follower side, as partition:broker pairs or * for all replicas of the topic.",
		Type:        ConfigTypeList,
		Range:       "[partitionId]:[brokerId],... or *",
		Default:     "",
	},
	{
		Name:        "index.interval.bytes",
		Description: "How often an entry is added to the offset index. More entries allow reads to seek closer to a position at the cost of a larger index.",
		Type:        ConfigTypeInt,
		Range:       "[0,...]",
		Default:     "4096",
	},
	{
		Name:        "leader.replication.throttled.replicas",
		Description: "Replicas throttled on the leader side, as partition:broker pairs or * for all replicas of the topic.",
		Type:        ConfigTypeList,
		Range:       "[partitionId]:[brokerId],... or *",
		Default:     "",
	},
	{
		Name:        "max.compaction.lag.ms",
		Description: "The longest time a message stays ineligible for compaction. Only applies to compacted topics.",
		Type:        ConfigTypeLong,
		Range:       "[1,...]",
		Default:     "9223372036854775807",
	},
	{
		Name:        "max.message.bytes",
		Description: "The largest record batch size accepted by the topic.",
		Type:        ConfigTypeInt,
		Range:       "[0,...]",
		Default:     "1048588",
	},
	{
		Name:        "message.format.version",
		Description: "The message format version used to append to the log, as an ApiVersion such as 0.10.0 or 2.8-IV1.",
		Type:        ConfigTypeString,
		Range:       "ApiVersion",
		Default:     "the broker's inter.broker.protocol.version",
	},
	{
		Name:        "message.timestamp.difference.max.ms",
		Description: "The largest allowed difference between the broker receive time and the message timestamp. Messages outside it are rejected.",
		Type:        ConfigTypeLong,
		Range:       "[0,...]",
		Default:     "9223372036854775807",
	},
	{
		Name:        "message.timestamp.type",
		Description: "Whether message timestamps are the creation time or the log append time.",
		Type:        ConfigTypeString,
		ValidValues: []string{"CreateTime", "LogAppendTime"},
		Default:     "CreateTime",
	},
	{
		Name:        "min.cleanable.dirty.ratio",
		Description: "The share of a log that may be uncompacted before the cleaner runs.",
		Type:        ConfigTypeDouble,
		Range:       "[0,...,1]",
		Default:     "0.5",
	},
	{
		Name:        "min.compaction.lag.ms",
		Description: "The shortest time a message stays uncompacted. Only applies to compacted topics.",
		Type:        ConfigTypeLong,
		Range:       "[0,...]",
		Default:     "0",
	},
	{
		Name:        "min.insync.replicas",
		Description: "The number of replicas that must acknowledge a write produced with acks=all.",
		Type:        ConfigTypeInt,
		Range:       "[1,...]",
		Default:     "1",
	},
	{
		Name:        "preallocate",
		Description: "Whether segment files are preallocated on disk when created.",
		Type:        ConfigTypeBoolean,
		ValidValues: []string{"true", "false"},
		Default:     "false",
	},
	{
		Name:        "retention.bytes",
		Description: "The largest size a partition may grow to before old segments are discarded under the delete policy. -1 means no size limit.",
		Type:        ConfigTypeLong,
		Range:       "-1 or [1,...]",
		Default:     "-1",
	},
	{
		Name:        "retention.ms",
		Description: "How long a log is retained before old segments are discarded under the delete policy. -1 means no time limit.",
		Type:        ConfigTypeLong,
		Range:       "-1 or [1,...]",
		Default:     "604800000",
	},
	{
		Name:        "segment.bytes",
		Description: "The size of a log segment file. Retention and compaction work a segment at a time.",
		Type:        ConfigTypeInt,
		Range:       "[14,...]",
		Default:     "1073741824",
	},
	{
		Name:        "segment.index.bytes",
		Description: "The size of the index mapping offsets to file positions.",
		Type:        ConfigTypeInt,
		Range:       "[4,...]",
		Default:     "10485760",
	},
	{
		Name:        "segment.jitter.ms",
		Description: "The largest random jitter subtracted from the segment roll time.",
		Type:        ConfigTypeLong,
		Range:       "[0,...]",
		Default:     "0",
	},
	{
		Name:        "segment.ms",
		Description: "The time after which a segment is rolled even if it isn't full.",
		Type:        ConfigTypeLong,
		Range:       "[1,...]",
		Default:     "604800000",
	},
	{
		Name:        "unclean.leader.election.enable",
		Description: "Whether replicas outside the ISR may be elected leader as a last resort, at the risk of data loss.",
		Type:        ConfigTypeBoolean,
		ValidValues: []string{"true", "false"},
		Default:     "false",
	},
}

var topicConfigsByName = func() map[string]TopicConfigDef {
	m := make(map[string]TopicConfigDef, len(topicConfigDefs))
	for _, d := range topicConfigDefs {
		m[d.Name] = d
	}
	return m
}()

// TopicConfigDefs returns the documented topic configs sorted by name.
func TopicConfigDefs() []TopicConfigDef {
	defs := append([]TopicConfigDef(nil), topicConfigDefs...)
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})

	return defs
}

// LookupTopicConfig returns the definition of a topic config.
func LookupTopicConfig(name string) (TopicConfigDef, bool) {
	d, ok := topicConfigsByName[name]
	return d, ok
}

// ValidateTopicConfigs checks configs against the known topic configs before
// they are sent to a cluster. Unknown names and invalid values are returned
// as an ErrRejected listing every problem.
func ValidateTopicConfigs(configs map[string]string) error {
	names := make([]string, 0, len(configs))
	for k := range configs {
		names = append(names, k)
	}
	sort.Strings(names)

	var errs *multierror.Error
	for _, name := range names {
		d, ok := LookupTopicConfig(name)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("unknown topic config %s", name))
			continue
		}
		if err := d.Validate(configs[name]); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if errs != nil {
		errs.ErrorFormat = joinErrors
		return ErrRejected{Op: "validate topic configs", Message: errs.Error()}
	}

	return nil
}

func joinErrors(errs []error) string {
	s := make([]string, len(errs))
	for i, err := range errs {
		s[i] = err.Error()
	}
	return strings.Join(s, "; ")
}
