package kafkaadmin

import (
	"context"
	"fmt"
	"sort"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/hashicorp/go-multierror"
)

var (
	topicResourceType, _ = kafka.ResourceTypeFromString("topic")
)

// ConfigSource describes where a config value originates.
type ConfigSource int

const (
	ConfigSourceUnknown ConfigSource = iota
	ConfigSourceDefault
	ConfigSourceDynamicTopic
	ConfigSourceDynamicBroker
	ConfigSourceStaticBroker
	ConfigSourceDynamicDefaultBroker
)

var configSourceNames = map[ConfigSource]string{
	ConfigSourceUnknown:              "Unknown",
	ConfigSourceDefault:              "Default",
	ConfigSourceDynamicTopic:         "DynamicTopic",
	ConfigSourceDynamicBroker:        "DynamicBroker",
	ConfigSourceStaticBroker:         "StaticBroker",
	ConfigSourceDynamicDefaultBroker: "DynamicDefaultBroker",
}

func (s ConfigSource) String() string {
	if n, ok := configSourceNames[s]; ok {
		return n
	}
	return configSourceNames[ConfigSourceUnknown]
}

// ParseConfigSource returns the ConfigSource named s. Unrecognized names map
// to ConfigSourceUnknown.
func ParseConfigSource(s string) ConfigSource {
	for src, name := range configSourceNames {
		if name == s {
			return src
		}
	}
	return ConfigSourceUnknown
}

// ConfigEntry is a single topic configuration value as reported by the
// cluster. Value is nil when the cluster withholds it (e.g. sensitive
// entries).
type ConfigEntry struct {
	Name        string
	Value       *string
	IsDefault   bool
	IsReadOnly  bool
	IsSensitive bool
	Source      ConfigSource
}

// StringValue returns the value, or an empty string when unset.
func (e ConfigEntry) StringValue() string {
	if e.Value == nil {
		return ""
	}
	return *e.Value
}

// IsOverride returns whether the entry was explicitly set rather than
// inherited.
func (e ConfigEntry) IsOverride() bool {
	return !e.IsDefault && e.Source != ConfigSourceDefault
}

// ConfigEntries is a list of ConfigEntry for one topic.
type ConfigEntries []ConfigEntry

// Overrides returns all entries that are explicitly set on the topic.
func (ce ConfigEntries) Overrides() ConfigEntries {
	var out ConfigEntries
	for _, e := range ce {
		if e.IsOverride() {
			out = append(out, e)
		}
	}

	return out
}

// ToMap returns a map of config name to value. Unset values map to "".
func (ce ConfigEntries) ToMap() map[string]string {
	m := make(map[string]string, len(ce))
	for _, e := range ce {
		m[e.Name] = e.StringValue()
	}

	return m
}

// Get returns the entry with the given name.
func (ce ConfigEntries) Get(name string) (ConfigEntry, bool) {
	for _, e := range ce {
		if e.Name == name {
			return e, true
		}
	}

	return ConfigEntry{}, false
}

// TopicConfigs is a map of topic name to its ConfigEntries.
type TopicConfigs map[string]ConfigEntries

// FetchTopicConfigs returns the full configuration of each named topic in a
// single DescribeConfigs request. If some topics fail, the configs of the
// remaining topics are returned along with an error describing each failure.
func (c *Client) FetchTopicConfigs(ctx context.Context, topics []string) (TopicConfigs, error) {
	const op = "fetch topic configs"

	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	if c.isClosed() {
		return nil, ErrClientClosed
	}

	resources := make([]kafka.ConfigResource, 0, len(topics))
	for _, t := range topics {
		resources = append(resources, kafka.ConfigResource{
			Type: topicResourceType,
			Name: t,
		})
	}

	results, err := c.c.DescribeConfigs(ctx, resources)
	if err != nil {
		return nil, classify(op, err)
	}

	var errs *multierror.Error
	var configs = make(TopicConfigs, len(results))

	for _, r := range results {
		if isErr(r.Error) {
			errs = multierror.Append(errs, classify(op, fmt.Errorf("topic %s: %w", r.Name, r.Error)))
			continue
		}

		configs[r.Name] = configEntriesFromKafka(r.Config)
	}

	return configs, errs.ErrorOrNil()
}

// AlterTopicConfigs replaces the dynamic configuration of a topic with the
// provided configs. This is a full replacement: any dynamic config not
// present in configs reverts to its default.
func (c *Client) AlterTopicConfigs(ctx context.Context, topic string, configs map[string]string) error {
	const op = "alter topic configs"

	if topic == "" {
		return ErrNoTopics
	}

	if c.isClosed() {
		return ErrClientClosed
	}

	c.logger.Debug("altering topic configs", "topic", topic, "configs", len(configs))

	resource := kafka.ConfigResource{
		Type:   topicResourceType,
		Name:   topic,
		Config: kafka.StringMapToConfigEntries(configs, kafka.AlterOperationSet),
	}

	// The non-incremental AlterConfigs API carries the full replace semantics
	// that the desired state reconciliation depends on.
	results, err := c.c.AlterConfigs(ctx, []kafka.ConfigResource{resource})
	if err != nil {
		return classify(op, err)
	}

	for _, r := range results {
		if isErr(r.Error) {
			return classify(op, fmt.Errorf("topic %s: %w", r.Name, r.Error))
		}
	}

	return nil
}

func configEntriesFromKafka(results map[string]kafka.ConfigEntryResult) ConfigEntries {
	entries := make(ConfigEntries, 0, len(results))

	for _, r := range results {
		src := configSourceFromKafka(r.Source)
		e := ConfigEntry{
			Name:        r.Name,
			IsDefault:   src == ConfigSourceDefault,
			IsReadOnly:  r.IsReadOnly,
			IsSensitive: r.IsSensitive,
			Source:      src,
		}

		// Sensitive values are never returned by the broker.
		if !r.IsSensitive {
			v := r.Value
			e.Value = &v
		}

		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries
}

func configSourceFromKafka(s kafka.ConfigSource) ConfigSource {
	switch s {
	case kafka.ConfigSourceDefault:
		return ConfigSourceDefault
	case kafka.ConfigSourceDynamicTopic:
		return ConfigSourceDynamicTopic
	case kafka.ConfigSourceDynamicBroker:
		return ConfigSourceDynamicBroker
	case kafka.ConfigSourceStaticBroker:
		return ConfigSourceStaticBroker
	case kafka.ConfigSourceDynamicDefaultBroker:
		return ConfigSourceDynamicDefaultBroker
	default:
		return ConfigSourceUnknown
	}
}
