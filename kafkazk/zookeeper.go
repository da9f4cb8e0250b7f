// Package kafkazk reads and writes Kafka cluster state stored in ZooKeeper.
// It serves clusters that still keep their metadata in ZooKeeper, where
// topic configs and topic registration can be managed without a broker
// round trip.
package kafkazk

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	zkclient "github.com/go-zookeeper/zk"
	"github.com/hashicorp/go-hclog"
)

// Handler provides basic ZooKeeper operations along with
// calls that return kafkazk types describing Kafka states.
type Handler interface {
	Exists(string) (bool, error)
	Create(string, string) error
	CreatePath(string, string) error
	CreateSequential(string, string) error
	Set(string, string) error
	Get(string) ([]byte, error)
	Delete(string) error
	Children(string) ([]string, error)
	Close()
	Ready() bool
	// Kafka specific.
	GetTopics([]*regexp.Regexp) ([]string, error)
	GetTopicState(string) (*TopicState, error)
	GetTopicStateISR(string) (TopicStateISR, error)
	GetTopicConfig(string) (*TopicConfig, error)
	GetAllBrokerMeta() (BrokerMetaMap, []error)
	GetController() (int, error)
	GetPendingDeletion() ([]string, error)
	ReplaceKafkaConfig(KafkaConfig) (bool, error)
	CreateTopicState(string, TopicState) error
	MarkForDeletion(string) error
}

// conn is the subset of *zkclient.Conn used by ZKHandler.
type conn interface {
	Get(string) ([]byte, *zkclient.Stat, error)
	Set(string, []byte, int32) (*zkclient.Stat, error)
	Create(string, []byte, int32, []zkclient.ACL) (string, error)
	Exists(string) (bool, *zkclient.Stat, error)
	Children(string) ([]string, *zkclient.Stat, error)
	Delete(string, int32) error
	State() zkclient.State
	Close()
}

// ZKHandler implements the Handler interface
// for real ZooKeeper clusters.
type ZKHandler struct {
	client  conn
	Connect string
	Prefix  string
	logger  hclog.Logger
}

// Config holds initialization paramaters for a Handler. Connect
// is a ZooKeeper connect string. Prefix should reflect any prefix
// used for Kafka on the reference ZooKeeper cluster (excluding slashes).
type Config struct {
	Connect        string
	Prefix         string
	SessionTimeout time.Duration
	Logger         hclog.Logger
}

// NewHandler takes a *Config, performs
// any initialization and returns a Handler.
func NewHandler(c *Config) (Handler, error) {
	z := newHandler(c)

	timeout := c.SessionTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	logger := z.logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})

	client, _, err := zkclient.Connect(
		strings.Split(z.Connect, ","),
		timeout,
		zkclient.WithLogger(logger),
		zkclient.WithLogInfo(false),
	)
	if err != nil {
		return nil, err
	}

	z.client = client

	return z, nil
}

func newHandler(c *Config) *ZKHandler {
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &ZKHandler{
		Connect: c.Connect,
		Prefix:  strings.Trim(c.Prefix, "/"),
		logger:  logger.Named("zookeeper"),
	}
}

// path returns p rooted at the configured prefix.
func (z *ZKHandler) path(format string, args ...interface{}) string {
	p := fmt.Sprintf(format, args...)
	if z.Prefix != "" {
		return "/" + z.Prefix + p
	}

	return p
}

// Ready returns true if the client is in either state
// StateConnected or StateHasSession.
// See https://godoc.org/github.com/go-zookeeper/zk#State.
func (z *ZKHandler) Ready() bool {
	switch z.client.State() {
	case zkclient.StateConnected, zkclient.StateHasSession:
		return true
	default:
		return false
	}
}

// Close calls close on the *ZKHandler. Any additional
// shutdown cleanup or other tasks should be performed here.
func (z *ZKHandler) Close() {
	z.client.Close()
}

// Get returns the data from path p.
func (z *ZKHandler) Get(p string) ([]byte, error) {
	r, _, e := z.client.Get(p)

	if e != nil {
		switch e {
		case zkclient.ErrNoNode:
			return nil, ErrNoNode{s: fmt.Sprintf("[%s] %s", p, e.Error())}
		default:
			return nil, fmt.Errorf("[%s] %s", p, e.Error())
		}
	}

	return r, nil
}

// Set sets the data at path p.
func (z *ZKHandler) Set(p string, d string) error {
	_, e := z.client.Set(p, []byte(d), -1)
	if e != nil {
		switch e {
		case zkclient.ErrNoNode:
			return ErrNoNode{s: fmt.Sprintf("[%s] %s", p, e.Error())}
		default:
			return fmt.Errorf("[%s] %s", p, e.Error())
		}
	}

	return nil
}

// Delete deletes the znode at path p.
func (z *ZKHandler) Delete(p string) error {
	_, s, err := z.client.Get(p)
	if err != nil {
		if err == zkclient.ErrNoNode {
			return ErrNoNode{s: fmt.Sprintf("[%s] %s", p, err.Error())}
		}
		return fmt.Errorf("[%s] %s", p, err)
	}

	err = z.client.Delete(p, s.Version)
	if err != nil {
		return fmt.Errorf("[%s] %s", p, err)
	}

	return nil
}

// CreateSequential takes a path p and data d and creates
// a sequential znode at p with data d. An error is
// returned if encountered.
func (z *ZKHandler) CreateSequential(p string, d string) error {
	_, e := z.client.Create(p, []byte(d), zkclient.FlagSequence, zkclient.WorldACL(zkclient.PermAll))
	var err error
	if e != nil {
		err = fmt.Errorf("[%s] %s", p, e.Error())
	}

	return err
}

// Create creates the provided path p with the data
// from the provided string d and returns an error
// if encountered.
func (z *ZKHandler) Create(p string, d string) error {
	_, e := z.client.Create(p, []byte(d), 0, zkclient.WorldACL(zkclient.PermAll))
	if e != nil {
		switch e {
		case zkclient.ErrNoNode:
			return ErrNoNode{s: fmt.Sprintf("[%s] %s", p, e.Error())}
		default:
			return fmt.Errorf("[%s] %w", p, e)
		}
	}

	return nil
}

// CreatePath creates p with data d, creating any missing parent znodes
// with empty data first.
func (z *ZKHandler) CreatePath(p string, d string) error {
	parts := strings.Split(strings.Trim(p, "/"), "/")

	var parent string
	for _, part := range parts[:len(parts)-1] {
		parent += "/" + part

		exists, err := z.Exists(parent)
		if err != nil {
			return err
		}

		if exists {
			continue
		}

		if err := z.Create(parent, ""); err != nil && !isNodeExists(err) {
			return err
		}
	}

	return z.Create(p, d)
}

// Exists takes a path p and returns a bool as to whether the
// path exists and an error if encountered.
func (z *ZKHandler) Exists(p string) (bool, error) {
	b, _, e := z.client.Exists(p)
	var err error
	if e != nil {
		err = fmt.Errorf("[%s] %s", p, e.Error())
	}

	return b, err
}

// Children takes a path p and returns a list
// of child znodes and an error if encountered.
func (z *ZKHandler) Children(p string) ([]string, error) {
	c, _, e := z.client.Children(p)

	if e != nil {
		switch e {
		case zkclient.ErrNoNode:
			return nil, ErrNoNode{s: fmt.Sprintf("[%s] %s", p, e.Error())}
		default:
			return nil, fmt.Errorf("[%s] %s", p, e.Error())
		}
	}

	return c, nil
}

// GetTopics takes a []*regexp.Regexp and returns a sorted []string of all
// topic names that match any of the provided regex.
func (z *ZKHandler) GetTopics(ts []*regexp.Regexp) ([]string, error) {
	matchingTopics := []string{}

	// Find all topics in zk.
	entries, err := z.Children(z.path("/brokers/topics"))
	if err != nil {
		return nil, err
	}

	matched := map[string]bool{}
	// Get all topics that match all
	// provided topic regexps.
	for _, topicRe := range ts {
		for _, topic := range entries {
			if topicRe.MatchString(topic) {
				matched[topic] = true
			}
		}
	}

	// Add matches to a slice.
	for topic := range matched {
		matchingTopics = append(matchingTopics, topic)
	}

	sort.Strings(matchingTopics)

	return matchingTopics, nil
}

// GetPendingDeletion returns any topics pending deletion.
func (z *ZKHandler) GetPendingDeletion() ([]string, error) {
	pending, err := z.Children(z.path("/admin/delete_topics"))
	if err != nil {
		// The path is created lazily by the controller.
		if IsNoNode(err) {
			return nil, nil
		}
		return nil, err
	}

	sort.Strings(pending)

	return pending, nil
}

// GetTopicConfig takes a topic name. If the topic exists, the topic config
// is returned as a *TopicConfig.
func (z *ZKHandler) GetTopicConfig(t string) (*TopicConfig, error) {
	config := &TopicConfig{}

	// Get topic config.
	data, err := z.Get(z.path("/config/topics/%s", t))
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("topic %s config: %s", t, err)
	}

	return config, nil
}

// GetAllBrokerMeta looks up all registered Kafka brokers and returns their
// metadata as a BrokerMetaMap. Brokers that fail to load are reported
// in the []error and left out of the map.
func (z *ZKHandler) GetAllBrokerMeta() (BrokerMetaMap, []error) {
	var errs []error

	path := z.path("/brokers/ids")

	// Get all brokers.
	entries, err := z.Children(path)
	if err != nil {
		return nil, []error{err}
	}

	bmm := BrokerMetaMap{}

	// Map each broker.
	for _, b := range entries {
		bm := &BrokerMeta{}
		// In case we encounter non-ints (broker IDs) for
		// whatever reason, just continue.
		bid, err := strconv.Atoi(b)
		if err != nil {
			continue
		}

		// Fetch & unmarshal the data for each broker.
		bpath := fmt.Sprintf("%s/%s", path, b)
		data, err := z.Get(bpath)
		if err != nil {
			// Registrations are ephemeral; the broker may have gone away
			// between listing and reading.
			if !IsNoNode(err) {
				errs = append(errs, err)
			}
			continue
		}

		if err := json.Unmarshal(data, bm); err != nil {
			errs = append(errs, fmt.Errorf("broker %d: %s", bid, err))
			continue
		}

		bmm[bid] = bm
	}

	return bmm, errs
}

// GetController returns the broker ID of the active controller.
func (z *ZKHandler) GetController() (int, error) {
	data, err := z.Get(z.path("/controller"))
	if err != nil {
		return -1, err
	}

	var cs controllerState
	if err := json.Unmarshal(data, &cs); err != nil {
		return -1, fmt.Errorf("controller: %s", err)
	}

	return cs.BrokerID, nil
}

// GetTopicState takes a topic name. If the topic exists,
// the topic state is returned as a *TopicState.
func (z *ZKHandler) GetTopicState(t string) (*TopicState, error) {
	// Fetch topic data from z.
	ts := &TopicState{}
	data, err := z.Get(z.path("/brokers/topics/%s", t))
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(data, ts)
	if err != nil {
		return nil, err
	}

	return ts, nil
}

// GetTopicStateISR takes a topic name. If the topic exists, the topic state
// is returned as a TopicStateISR. GetTopicStateISR differs from
// GetTopicState in that the actual, current broker IDs in the ISR are
// returned for each partition. This method is more expensive due to the
// need for a call per partition to ZK. Partitions without a state znode
// (not yet elected) are omitted.
func (z *ZKHandler) GetTopicStateISR(t string) (TopicStateISR, error) {
	path := z.path("/brokers/topics/%s/partitions", t)

	ts := TopicStateISR{}

	// Get partitions.
	partitions, err := z.Children(path)
	if err != nil {
		if IsNoNode(err) {
			return ts, nil
		}
		return nil, err
	}

	// Get partition data.
	for _, p := range partitions {
		ppath := fmt.Sprintf("%s/%s/state", path, p)
		data, err := z.Get(ppath)
		if err != nil {
			if IsNoNode(err) {
				continue
			}
			return nil, err
		}

		state := PartitionState{}
		err = json.Unmarshal(data, &state)
		if err != nil {
			return nil, err
		}

		// Populate into TopicState.
		ts[p] = state
	}

	return ts, nil
}

// CreateTopicState registers a topic with the provided partition
// assignment. The controller watches /brokers/topics and creates the
// partitions once the znode appears.
func (z *ZKHandler) CreateTopicState(t string, ts TopicState) error {
	if ts.Version == 0 {
		ts.Version = 1
	}

	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("Error marshalling topic state: %s", err)
	}

	return z.CreatePath(z.path("/brokers/topics/%s", t), string(data))
}

// MarkForDeletion flags a topic for deletion by the controller.
func (z *ZKHandler) MarkForDeletion(t string) error {
	err := z.CreatePath(z.path("/admin/delete_topics/%s", t), "")
	if isNodeExists(err) {
		return nil
	}

	return err
}

// ReplaceKafkaConfig takes a KafkaConfig and makes its Configs the complete
// set of dynamic configs for the entity: keys absent from Configs are
// removed. If the config is changed, a persistent sequential znode is also
// written to propagate changes (via watches) to all Kafka brokers. This is
// a Kafka specific behavior; further references are available from the
// Kafka codebase. A bool is returned indicating whether the config was
// changed along with any errors encountered.
func (z *ZKHandler) ReplaceKafkaConfig(c KafkaConfig) (bool, error) {
	if _, valid := validKafkaConfigTypes[c.Type]; !valid {
		return false, ErrInvalidKafkaConfigType
	}

	// Get current config from the
	// appropriate path.
	path := z.path("/config/%ss/%s", c.Type, c.Name)

	config := NewKafkaConfigData()
	var exists bool

	data, err := z.Get(path)
	switch {
	case err == nil:
		exists = true
		if err := json.Unmarshal(data, &config); err != nil {
			return false, fmt.Errorf("Error unmarshalling config: %s", err)
		}
	case IsNoNode(err):
		// The path may be missing if the broker/topic
		// has never had a configuration applied.
	default:
		return false, err
	}

	desired := make(map[string]string, len(c.Configs))
	for k, v := range c.Configs {
		desired[k] = v
	}

	// Nothing to write if the config already matches.
	switch {
	case len(config.Config) == 0 && len(desired) == 0:
		return false, nil
	case exists && reflect.DeepEqual(config.Config, desired):
		return false, nil
	}

	config.Config = desired

	newConfig, err := json.Marshal(config)
	if err != nil {
		return false, fmt.Errorf("Error marshalling config: %s", err)
	}

	if exists {
		err = z.Set(path, string(newConfig))
	} else {
		err = z.CreatePath(path, string(newConfig))
	}

	if err != nil {
		return false, err
	}

	// If there were any config changes, write a change
	// notification at /config/changes/config_change_<seq>.
	cdata, _ := json.Marshal(configChange{
		Version:    2,
		EntityPath: fmt.Sprintf("%ss/%s", c.Type, c.Name),
	})

	err = z.CreateSequential(z.path("/config/changes/config_change_"), string(cdata))
	if err != nil {
		// If we're here, this would actually be a partial
		// write since the config was updated but we're
		// failing at the watch entry.
		z.logger.Warn("config written without change notification", "entity", c.Name, "error", err)
		return false, err
	}

	z.logger.Debug("replaced config", "type", c.Type, "name", c.Name, "configs", len(desired))

	return true, nil
}

func isNodeExists(err error) bool {
	return errors.Is(err, zkclient.ErrNodeExists)
}
