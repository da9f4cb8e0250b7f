// Package stub provides an in-memory kafkaadmin.KafkaAdmin. It models a small
// cluster (brokers, topics, topic configs, consumer groups and partition logs)
// and records every call so tests can assert on remote traffic.
package stub

import (
	"context"
	"sync"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// Method names used for call counting and hooks.
const (
	MethodGetClusterMetadata    = "GetClusterMetadata"
	MethodCreateTopic           = "CreateTopic"
	MethodDeleteTopic           = "DeleteTopic"
	MethodFetchTopicConfigs     = "FetchTopicConfigs"
	MethodAlterTopicConfigs     = "AlterTopicConfigs"
	MethodListConsumerGroups    = "ListConsumerGroups"
	MethodGetGroupOffsets       = "GetGroupOffsets"
	MethodCreateGroupOffsets    = "CreateGroupOffsets"
	MethodDeleteConsumerGroup   = "DeleteConsumerGroup"
	MethodConsumeBetweenOffsets = "ConsumeBetweenOffsets"
	MethodStopConsumer          = "StopConsumer"
)

var _ kafkaadmin.KafkaAdmin = (*Client)(nil)

// Hook is invoked at the start of a stubbed call. A non-nil error is returned
// to the caller in place of the call's result. Hooks may block.
type Hook func(ctx context.Context) error

// AlterCall records the arguments of an AlterTopicConfigs call.
type AlterCall struct {
	Topic   string
	Configs map[string]string
}

// Client is a stubbed implementation of KafkaAdmin.
type Client struct {
	mu sync.Mutex

	cluster  kafkaadmin.ClusterConfig
	brokers  map[int32]kafkaadmin.BrokerInfo
	topics   map[string]kafkaadmin.TopicInfo
	order    []string
	defaults map[string]string
	dynamic  map[string]map[string]string
	secrets  map[string]bool
	groups   map[string]*group
	logs     map[string]map[int32][]kafkaadmin.MessageEnvelope

	consumers map[string]*session
	calls     map[string]int
	hooks     map[string]Hook
	alters    []AlterCall
	closed    bool
}

type group struct {
	desc    kafkaadmin.ConsumerGroup
	offsets map[string]map[int32]int64
}

// NewClient returns a Client populated with the default fixture: brokers
// 1001-1003, topics test1 and test2 and a handful of default topic configs.
func NewClient() *Client {
	c := NewEmptyClient(kafkaadmin.ClusterConfig{
		Name:             "stub",
		BootstrapServers: []string{"localhost:9092"},
	})

	c.SetMetadata(fakeClusterMetadata())
	c.dynamic["test1"] = map[string]string{"retention.ms": "172800000"}
	c.dynamic["test2"] = map[string]string{"retention.ms": "172800000"}

	return c
}

// NewEmptyClient returns a Client with no brokers or topics.
func NewEmptyClient(cluster kafkaadmin.ClusterConfig) *Client {
	defaults := make(map[string]string, len(defaultTopicConfigs))
	for k, v := range defaultTopicConfigs {
		defaults[k] = v
	}

	return &Client{
		cluster:   cluster,
		brokers:   map[int32]kafkaadmin.BrokerInfo{},
		topics:    map[string]kafkaadmin.TopicInfo{},
		defaults:  defaults,
		dynamic:   map[string]map[string]string{},
		secrets:   map[string]bool{},
		groups:    map[string]*group{},
		logs:      map[string]map[int32][]kafkaadmin.MessageEnvelope{},
		consumers: map[string]*session{},
		calls:     map[string]int{},
		hooks:     map[string]Hook{},
	}
}

// SetMetadata replaces all brokers and topics. Topic order is preserved and
// reported back by GetClusterMetadata.
func (c *Client) SetMetadata(md kafkaadmin.ClusterMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.brokers = map[int32]kafkaadmin.BrokerInfo{}
	c.topics = map[string]kafkaadmin.TopicInfo{}
	c.order = nil

	for _, b := range md.Brokers {
		c.brokers[b.ID] = b
	}

	for _, t := range md.Topics {
		c.addTopic(t)
	}
}

// AddBrokers registers brokers, replacing any with the same ID.
func (c *Client) AddBrokers(bs ...kafkaadmin.BrokerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range bs {
		c.brokers[b.ID] = b
	}
}

// AddTopic registers a topic, replacing any with the same name.
func (c *Client) AddTopic(t kafkaadmin.TopicInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.addTopic(t)
}

// SetDefaultConfig sets the cluster default of a topic config. Only configs
// with a default can be altered.
func (c *Client) SetDefaultConfig(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defaults[name] = value
}

// SetSensitive marks a topic config as sensitive. Its value is withheld
// from FetchTopicConfigs, as brokers do for passwords and keys.
func (c *Client) SetSensitive(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.secrets[name] = true
}

// Produce appends a message to a topic partition log.
func (c *Client) Produce(topic string, partition int32, key, payload string, timestamp int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, exists := c.topics[topic]
	if !exists || !hasPartition(t, partition) {
		return 0, kafkaadmin.ErrRejected{Op: "produce", Message: "unknown topic or partition"}
	}

	if c.logs[topic] == nil {
		c.logs[topic] = map[int32][]kafkaadmin.MessageEnvelope{}
	}

	offset := int64(len(c.logs[topic][partition]))
	c.logs[topic][partition] = append(c.logs[topic][partition], kafkaadmin.MessageEnvelope{
		Key:       key,
		Partition: partition,
		Offset:    offset,
		Headers:   map[string]string{},
		Payload:   payload,
		Timestamp: timestamp,
	})

	return offset, nil
}

// SetHook installs a Hook for the named method. A nil hook removes it.
func (c *Client) SetHook(method string, h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h == nil {
		delete(c.hooks, method)
		return
	}
	c.hooks[method] = h
}

// FailWith makes every call to method return err.
func (c *Client) FailWith(method string, err error) {
	c.SetHook(method, func(context.Context) error { return err })
}

// Calls returns the number of calls made to method.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[method]
}

// AlterCalls returns the recorded AlterTopicConfigs arguments in call order.
func (c *Client) AlterCalls() []AlterCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]AlterCall, len(c.alters))
	copy(out, c.alters)

	return out
}

// enter counts a call and runs its hook outside of the lock.
func (c *Client) enter(ctx context.Context, method string) error {
	c.mu.Lock()
	c.calls[method]++
	h := c.hooks[method]
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return kafkaadmin.ErrClientClosed
	}

	if h != nil {
		return h(ctx)
	}

	return nil
}

func (c *Client) addTopic(t kafkaadmin.TopicInfo) {
	if _, exists := c.topics[t.Name]; !exists {
		c.order = append(c.order, t.Name)
	}
	c.topics[t.Name] = copyTopic(t)
}

func (c *Client) removeTopic(name string) {
	delete(c.topics, name)
	delete(c.dynamic, name)
	delete(c.logs, name)

	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func hasPartition(t kafkaadmin.TopicInfo, id int32) bool {
	for _, p := range t.Partitions {
		if p.ID == id {
			return true
		}
	}
	return false
}
