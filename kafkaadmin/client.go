package kafkaadmin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/hashicorp/go-hclog"
)

var (
	empty struct{}
	// SecurityProtocolSet is the set of protocols supported to communicate with brokers
	SecurityProtocolSet = map[string]struct{}{"PLAINTEXT": empty, "SSL": empty, "SASL_PLAINTEXT": empty, "SASL_SSL": empty}
	// SASLMechanismSet is the set of mechanisms supported for client to broker authentication
	SASLMechanismSet = map[string]struct{}{"PLAIN": empty, "SCRAM-SHA-256": empty, "SCRAM-SHA-512": empty}
	// Default timeout for requests to Kafka if a context is passed in with no
	// deadline set.
	defaultTimeout = 5 * time.Second
)

// FactoryFunc creates the underlying admin client.
type FactoryFunc func(conf *kafka.ConfigMap) (*kafka.AdminClient, error)

// ConsumerFactoryFunc creates consumers for offset lookups and message reads.
type ConsumerFactoryFunc func(conf *kafka.ConfigMap) (*kafka.Consumer, error)

// Client implements a KafkaAdmin.
type Client struct {
	c                *kafka.AdminClient
	cfg              Config
	newConsumer      ConsumerFactoryFunc
	logger           hclog.Logger
	DefaultTimeoutMs int

	mu        sync.Mutex
	consumers map[string]*consumerSession
	closed    bool
}

// Config holds Client configuration parameters.
type Config struct {
	// Required.
	Cluster ClusterConfig
	// Misc.
	DefaultTimeoutMs int
	GroupId          string
	SSLCALocation    string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Logger           hclog.Logger
}

// NewClient returns a KafkaAdmin.
func NewClient(cfg Config) (KafkaAdmin, error) {
	c, err := newClient(cfg, kafka.NewAdminClient, kafka.NewConsumer)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// NewClientWithFactory returns a new admin Client using a factory func for the kafkaAdminClient
func NewClientWithFactory(cfg Config, factory FactoryFunc, consumerFactory ConsumerFactoryFunc) (*Client, error) {
	return newClient(cfg, factory, consumerFactory)
}

// Close stops all running consumers and closes the Client.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sessions := c.consumers
	c.consumers = map[string]*consumerSession{}
	c.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}

	if c.c != nil {
		c.c.Close()
	}
}

// CurrentCluster returns the cluster this client is connected to.
func (c *Client) CurrentCluster() ClusterConfig {
	return c.cfg.Cluster
}

// NewConsumer returns a consumer configured like the admin client. A "runtime"
// group is used when none is set; offsets are never auto committed.
func NewConsumer(cfg Config) (*kafka.Consumer, error) {
	return newConsumer(cfg, kafka.NewConsumer)
}

func newConsumer(cfg Config, factory ConsumerFactoryFunc) (*kafka.Consumer, error) {
	if cfg.GroupId == "" {
		cfg.GroupId = "runtime"
	}

	kafkaCfg, err := cfgToConfigMap(cfg)
	if err != nil {
		return nil, fmt.Errorf("[config] %s", err)
	}
	kafkaCfg.SetKey("enable.auto.commit", false)

	c, err := factory(kafkaCfg)
	if err != nil {
		err = fmt.Errorf("[librdkafka] %s", err)
	}
	return c, err
}

func cfgToConfigMap(cfg Config) (*kafka.ConfigMap, error) {
	if len(cfg.Cluster.BootstrapServers) == 0 {
		return nil, fmt.Errorf("no bootstrap servers configured for cluster %q", cfg.Cluster.Name)
	}

	kafkaCfg := &kafka.ConfigMap{
		"bootstrap.servers": cfg.Cluster.BootstrapString(),
	}

	if cfg.GroupId != "" {
		kafkaCfg.SetKey("group.id", cfg.GroupId)
	}

	if cfg.SecurityProtocol != "" {
		if _, ok := SecurityProtocolSet[cfg.SecurityProtocol]; !ok {
			return nil, fmt.Errorf("unsupported security protocol %s", cfg.SecurityProtocol)
		}
		kafkaCfg.SetKey("security.protocol", cfg.SecurityProtocol)
	}

	if cfg.SecurityProtocol == "SSL" || cfg.SecurityProtocol == "SASL_SSL" {
		if cfg.SSLCALocation == "" {
			return nil, fmt.Errorf("kafka %s is enabled but SSLCALocation was not provided", cfg.SecurityProtocol)
		}
		kafkaCfg.SetKey("ssl.ca.location", cfg.SSLCALocation)
	}

	if strings.HasPrefix(cfg.SecurityProtocol, "SASL_") {
		if _, ok := SASLMechanismSet[cfg.SASLMechanism]; !ok {
			return nil, fmt.Errorf("unsupported SASL mechanism %s", cfg.SASLMechanism)
		}
		kafkaCfg.SetKey("sasl.mechanism", cfg.SASLMechanism)
		kafkaCfg.SetKey("sasl.username", cfg.SASLUsername)
		kafkaCfg.SetKey("sasl.password", cfg.SASLPassword)
	}
	return kafkaCfg, nil
}

func newClient(cfg Config, factory FactoryFunc, consumerFactory ConsumerFactoryFunc) (*Client, error) {
	c := &Client{
		cfg:              cfg,
		newConsumer:      consumerFactory,
		logger:           cfg.Logger,
		DefaultTimeoutMs: cfg.DefaultTimeoutMs,
		consumers:        map[string]*consumerSession{},
	}

	if c.logger == nil {
		c.logger = hclog.NewNullLogger()
	}
	c.logger = c.logger.Named("kafkaadmin")

	if c.DefaultTimeoutMs == 0 {
		c.DefaultTimeoutMs = int(defaultTimeout.Milliseconds())
	}

	// The admin client never joins a group.
	adminCfg := cfg
	adminCfg.GroupId = ""

	kafkaCfg, err := cfgToConfigMap(adminCfg)
	if err != nil {
		return nil, fmt.Errorf("[config] %s", err)
	}

	k, err := factory(kafkaCfg)
	if err != nil {
		return nil, fmt.Errorf("[librdkafka] %s", err)
	}
	c.c = k

	return c, nil
}

// timeoutMs returns the request timeout to use for librdkafka calls that take
// a millisecond timeout rather than a context.
func (c *Client) timeoutMs(ctx context.Context) int {
	dl, ok := ctx.Deadline()

	// If the context does not have a deadline set, use the default value.
	if !ok {
		return c.DefaultTimeoutMs
	}

	to := time.Until(dl).Milliseconds()
	if to < 1 {
		to = 1
	}

	return int(to)
}

// consumer returns a short lived consumer for offset lookups.
func (c *Client) consumer(groupID string) (*kafka.Consumer, error) {
	cfg := c.cfg
	cfg.GroupId = groupID

	return newConsumer(cfg, c.newConsumer)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}
