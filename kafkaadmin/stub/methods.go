package stub

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// Close stops every running consumer. Calls made after Close fail with
// kafkaadmin.ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	sessions := c.consumers
	c.consumers = map[string]*session{}
	c.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
}

func (c *Client) CurrentCluster() kafkaadmin.ClusterConfig {
	return c.cluster
}

func (c *Client) GetClusterMetadata(ctx context.Context) (kafkaadmin.ClusterMetadata, error) {
	if err := c.enter(ctx, MethodGetClusterMetadata); err != nil {
		return kafkaadmin.ClusterMetadata{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	md := kafkaadmin.ClusterMetadata{
		Topics:  make([]kafkaadmin.TopicInfo, 0, len(c.order)),
		Brokers: make([]kafkaadmin.BrokerInfo, 0, len(c.brokers)),
	}

	for _, b := range c.brokers {
		md.Brokers = append(md.Brokers, b)
	}

	sort.Slice(md.Brokers, func(i, j int) bool {
		return md.Brokers[i].ID < md.Brokers[j].ID
	})

	if len(md.Brokers) > 0 {
		md.OriginatingBrokerID = md.Brokers[0].ID
	}

	for _, name := range c.order {
		md.Topics = append(md.Topics, copyTopic(c.topics[name]))
	}

	return md, nil
}

func (c *Client) CreateTopic(ctx context.Context, cfg kafkaadmin.CreateTopicConfig) (string, error) {
	const op = "create topic"

	if err := c.enter(ctx, MethodCreateTopic); err != nil {
		return "", err
	}

	if err := kafkaadmin.ValidateTopicName(cfg.Name); err != nil {
		return "", kafkaadmin.ErrRejected{Op: op, Message: err.Error()}
	}

	if cfg.Partitions < 1 {
		return "", kafkaadmin.ErrRejected{Op: op, Message: "partitions must be at least 1"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.topics[cfg.Name]; exists {
		return "", kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("Topic '%s' already exists.", cfg.Name)}
	}

	for k := range cfg.Config {
		if _, known := c.defaults[k]; !known {
			return "", kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("unknown config %s", k)}
		}
	}

	var ids []int32
	for id := range c.brokers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rf := cfg.ReplicationFactor
	if rf < 1 {
		rf = 1
	}

	if cfg.ReplicaAssignment == nil && rf > len(ids) {
		return "", kafkaadmin.ErrRejected{
			Op:      op,
			Message: fmt.Sprintf("replication factor: %d larger than available brokers: %d", rf, len(ids)),
		}
	}

	t := kafkaadmin.TopicInfo{Name: cfg.Name}

	for p := 0; p < cfg.Partitions; p++ {
		var replicas []int32
		if cfg.ReplicaAssignment != nil && p < len(cfg.ReplicaAssignment) {
			replicas = append(replicas, cfg.ReplicaAssignment[p]...)
		} else {
			for r := 0; r < rf; r++ {
				replicas = append(replicas, ids[(p+r)%len(ids)])
			}
		}

		t.Partitions = append(t.Partitions, kafkaadmin.PartitionInfo{
			ID:       int32(p),
			Leader:   replicas[0],
			Replicas: replicas,
			ISR:      append([]int32(nil), replicas...),
		})
	}

	c.addTopic(t)

	if len(cfg.Config) > 0 {
		dyn := make(map[string]string, len(cfg.Config))
		for k, v := range cfg.Config {
			dyn[k] = v
		}
		c.dynamic[cfg.Name] = dyn
	}

	return cfg.Name, nil
}

func (c *Client) DeleteTopic(ctx context.Context, name string) (string, error) {
	if err := c.enter(ctx, MethodDeleteTopic); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.topics[name]; !exists {
		return "", kafkaadmin.ErrRejected{Op: "delete topic", Message: fmt.Sprintf("topic %s: Broker: Unknown topic or partition", name)}
	}

	c.removeTopic(name)

	return name, nil
}

// FetchTopicConfigs reports every config with a cluster default. Configs set
// on the topic are reported as DynamicTopic overrides.
func (c *Client) FetchTopicConfigs(ctx context.Context, topics []string) (kafkaadmin.TopicConfigs, error) {
	const op = "fetch topic configs"

	if len(topics) == 0 {
		return nil, kafkaadmin.ErrNoTopics
	}

	if err := c.enter(ctx, MethodFetchTopicConfigs); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs *multierror.Error
	configs := kafkaadmin.TopicConfigs{}

	for _, t := range topics {
		if _, exists := c.topics[t]; !exists {
			errs = multierror.Append(errs, kafkaadmin.ErrRejected{
				Op:      op,
				Message: fmt.Sprintf("topic %s: Broker: Unknown topic or partition", t),
			})
			continue
		}

		configs[t] = c.configEntries(t)
	}

	return configs, errs.ErrorOrNil()
}

// AlterTopicConfigs replaces the dynamic configs of topic wholesale.
func (c *Client) AlterTopicConfigs(ctx context.Context, topic string, configs map[string]string) error {
	const op = "alter topic configs"

	if topic == "" {
		return kafkaadmin.ErrNoTopics
	}

	cp := make(map[string]string, len(configs))
	for k, v := range configs {
		cp[k] = v
	}

	c.mu.Lock()
	c.alters = append(c.alters, AlterCall{Topic: topic, Configs: cp})
	c.mu.Unlock()

	if err := c.enter(ctx, MethodAlterTopicConfigs); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.topics[topic]; !exists {
		return kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("topic %s: Broker: Unknown topic or partition", topic)}
	}

	for k := range cp {
		if _, known := c.defaults[k]; !known {
			return kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("topic %s: Broker: Configuration is invalid: unknown config %s", topic, k)}
		}
	}

	c.dynamic[topic] = cp

	return nil
}

func (c *Client) configEntries(topic string) kafkaadmin.ConfigEntries {
	dyn := c.dynamic[topic]
	entries := make(kafkaadmin.ConfigEntries, 0, len(c.defaults))

	for name, def := range c.defaults {
		e := kafkaadmin.ConfigEntry{
			Name:      name,
			IsDefault: true,
			Source:    kafkaadmin.ConfigSourceDefault,
		}

		v := def
		if override, set := dyn[name]; set {
			v = override
			e.IsDefault = false
			e.Source = kafkaadmin.ConfigSourceDynamicTopic
		}
		if c.secrets[name] {
			e.IsSensitive = true
		} else {
			e.Value = &v
		}

		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries
}
