package kafkazk

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

var _ kafkaadmin.KafkaAdmin = (*Backend)(nil)

// errUnsupported is returned for operations that ZooKeeper can't serve when
// no delegate is configured.
const errUnsupported = "not supported by the zookeeper backend"

// Backend implements kafkaadmin.KafkaAdmin over the cluster state kept in
// ZooKeeper. Consumer group and consumer calls have no ZooKeeper
// representation in current Kafka versions; they're passed to Delegate
// when one is set.
type Backend struct {
	zk       Handler
	cluster  kafkaadmin.ClusterConfig
	delegate kafkaadmin.KafkaAdmin
	logger   hclog.Logger
}

// BackendConfig holds Backend configuration parameters.
type BackendConfig struct {
	// Required.
	Handler Handler
	Cluster kafkaadmin.ClusterConfig
	// Optional.
	Delegate kafkaadmin.KafkaAdmin
	Logger   hclog.Logger
}

// NewBackend returns a Backend.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if cfg.Handler == nil {
		return nil, errors.New("a ZooKeeper handler must be provided")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Backend{
		zk:       cfg.Handler,
		cluster:  cfg.Cluster,
		delegate: cfg.Delegate,
		logger:   logger.Named("kafkazk"),
	}, nil
}

// Close closes the ZooKeeper handler and the delegate.
func (b *Backend) Close() {
	b.zk.Close()
	if b.delegate != nil {
		b.delegate.Close()
	}
}

// CurrentCluster returns the cluster the Backend was created for.
func (b *Backend) CurrentCluster() kafkaadmin.ClusterConfig {
	return b.cluster
}

// GetClusterMetadata assembles a ClusterMetadata from broker registrations
// and topic state znodes. The active controller is reported as the
// originating broker. Topics pending deletion are left out.
func (b *Backend) GetClusterMetadata(ctx context.Context) (kafkaadmin.ClusterMetadata, error) {
	const op = "get cluster metadata"

	if err := b.ready(ctx, op); err != nil {
		return kafkaadmin.ClusterMetadata{}, err
	}

	bmm, errs := b.zk.GetAllBrokerMeta()
	if bmm == nil && len(errs) > 0 {
		return kafkaadmin.ClusterMetadata{}, transport(op, errs[0])
	}

	for _, err := range errs {
		b.logger.Warn("skipping broker registration", "error", err)
	}

	md := kafkaadmin.ClusterMetadata{OriginatingBrokerID: -1}

	for _, id := range bmm.IDs() {
		host, port := bmm[id].Address()
		md.Brokers = append(md.Brokers, kafkaadmin.BrokerInfo{
			ID:   int32(id),
			Host: host,
			Port: port,
		})
	}

	controller, err := b.zk.GetController()
	switch {
	case err == nil:
		md.OriginatingBrokerID = int32(controller)
	case IsNoNode(err):
		// Mid-election. Fall back to the lowest broker ID.
		if len(md.Brokers) > 0 {
			md.OriginatingBrokerID = md.Brokers[0].ID
		}
	default:
		return kafkaadmin.ClusterMetadata{}, transport(op, err)
	}

	topics, err := b.zk.GetTopics([]*regexp.Regexp{allTopicsRegexp})
	if err != nil {
		return kafkaadmin.ClusterMetadata{}, transport(op, err)
	}

	pending, err := b.zk.GetPendingDeletion()
	if err != nil {
		return kafkaadmin.ClusterMetadata{}, transport(op, err)
	}

	deleting := make(map[string]struct{}, len(pending))
	for _, t := range pending {
		deleting[t] = struct{}{}
	}

	for _, t := range topics {
		if err := ctx.Err(); err != nil {
			return kafkaadmin.ClusterMetadata{}, transport(op, err)
		}

		if _, skip := deleting[t]; skip {
			continue
		}

		ti, err := b.topicInfo(t)
		if err != nil {
			// Deleted between listing and reading.
			if IsNoNode(err) {
				continue
			}
			return kafkaadmin.ClusterMetadata{}, transport(op, err)
		}

		md.Topics = append(md.Topics, ti)
	}

	return md, nil
}

func (b *Backend) topicInfo(t string) (kafkaadmin.TopicInfo, error) {
	ts, err := b.zk.GetTopicState(t)
	if err != nil {
		return kafkaadmin.TopicInfo{}, err
	}

	isr, err := b.zk.GetTopicStateISR(t)
	if err != nil {
		return kafkaadmin.TopicInfo{}, err
	}

	ti := kafkaadmin.TopicInfo{Name: t}

	for _, id := range ts.PartitionIDs() {
		key := strconv.Itoa(id)
		pi := kafkaadmin.PartitionInfo{
			ID:       int32(id),
			Leader:   -1,
			Replicas: toInt32s(ts.Partitions[key]),
		}

		if state, ok := isr[key]; ok {
			pi.Leader = int32(state.Leader)
			pi.ISR = toInt32s(state.ISR)
		}

		ti.Partitions = append(ti.Partitions, pi)
	}

	return ti, nil
}

// CreateTopic registers a topic and its configs. Without an explicit
// ReplicaAssignment, replicas are assigned round robin across the
// registered brokers.
func (b *Backend) CreateTopic(ctx context.Context, cfg kafkaadmin.CreateTopicConfig) (string, error) {
	const op = "create topic"

	if err := kafkaadmin.ValidateTopicName(cfg.Name); err != nil {
		return "", kafkaadmin.ErrRejected{Op: op, Message: err.Error()}
	}

	if cfg.ReplicaAssignment == nil && cfg.Partitions < 1 {
		return "", kafkaadmin.ErrRejected{Op: op, Message: "partitions must be at least 1"}
	}

	if err := b.ready(ctx, op); err != nil {
		return "", err
	}

	if _, err := b.zk.GetTopicState(cfg.Name); err == nil {
		return "", kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("topic %s already exists", cfg.Name)}
	} else if !IsNoNode(err) {
		return "", transport(op, err)
	}

	assignment := cfg.ReplicaAssignment
	if assignment == nil {
		var err error
		if assignment, err = b.assign(op, cfg.Partitions, cfg.ReplicationFactor); err != nil {
			return "", err
		}
	}

	ts := TopicState{Version: 1, Partitions: map[string][]int{}}
	for p, replicas := range assignment {
		ids := make([]int, len(replicas))
		for i, r := range replicas {
			ids[i] = int(r)
		}
		ts.Partitions[strconv.Itoa(p)] = ids
	}

	// Configs are written first so the controller picks them up when the
	// topic registration appears.
	if len(cfg.Config) > 0 {
		if _, err := b.zk.ReplaceKafkaConfig(KafkaConfig{Type: "topic", Name: cfg.Name, Configs: cfg.Config}); err != nil {
			return "", transport(op, err)
		}
	}

	if err := b.zk.CreateTopicState(cfg.Name, ts); err != nil {
		return "", transport(op, err)
	}

	b.logger.Info("created topic", "topic", cfg.Name, "partitions", len(assignment))

	return cfg.Name, nil
}

func (b *Backend) assign(op string, partitions, rf int) (kafkaadmin.ReplicaAssignment, error) {
	if rf < 1 {
		rf = 1
	}

	bmm, errs := b.zk.GetAllBrokerMeta()
	if bmm == nil && len(errs) > 0 {
		return nil, transport(op, errs[0])
	}

	brokers := bmm.IDs()
	if rf > len(brokers) {
		return nil, kafkaadmin.ErrRejected{
			Op:      op,
			Message: fmt.Sprintf("replication factor %d larger than available brokers %d", rf, len(brokers)),
		}
	}

	assignment := make(kafkaadmin.ReplicaAssignment, partitions)
	for p := range assignment {
		for r := 0; r < rf; r++ {
			assignment[p] = append(assignment[p], int32(brokers[(p+r)%len(brokers)]))
		}
	}

	return assignment, nil
}

// DeleteTopic marks a topic for deletion. The controller performs the
// deletion asynchronously.
func (b *Backend) DeleteTopic(ctx context.Context, name string) (string, error) {
	const op = "delete topic"

	if name == "" {
		return "", kafkaadmin.ErrNoTopics
	}

	if err := b.ready(ctx, op); err != nil {
		return "", err
	}

	if err := b.mustExist(op, name); err != nil {
		return "", err
	}

	if err := b.zk.MarkForDeletion(name); err != nil {
		return "", transport(op, err)
	}

	b.logger.Info("marked topic for deletion", "topic", name)

	return name, nil
}

// FetchTopicConfigs returns the dynamic configs of each topic. ZooKeeper only
// holds overrides, so every entry is reported with ConfigSourceDynamicTopic.
func (b *Backend) FetchTopicConfigs(ctx context.Context, topics []string) (kafkaadmin.TopicConfigs, error) {
	const op = "fetch topic configs"

	if len(topics) == 0 {
		return nil, kafkaadmin.ErrNoTopics
	}

	if err := b.ready(ctx, op); err != nil {
		return nil, err
	}

	var errs *multierror.Error
	configs := make(kafkaadmin.TopicConfigs, len(topics))

	for _, t := range topics {
		if err := b.mustExist(op, t); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		tc, err := b.zk.GetTopicConfig(t)
		switch {
		case IsNoNode(err):
			configs[t] = kafkaadmin.ConfigEntries{}
		case err != nil:
			errs = multierror.Append(errs, transport(op, err))
		default:
			configs[t] = configEntries(tc.Config)
		}
	}

	return configs, errs.ErrorOrNil()
}

// AlterTopicConfigs replaces the dynamic configs of a topic.
func (b *Backend) AlterTopicConfigs(ctx context.Context, topic string, configs map[string]string) error {
	const op = "alter topic configs"

	if topic == "" {
		return kafkaadmin.ErrNoTopics
	}

	if err := b.ready(ctx, op); err != nil {
		return err
	}

	if err := b.mustExist(op, topic); err != nil {
		return err
	}

	changed, err := b.zk.ReplaceKafkaConfig(KafkaConfig{Type: "topic", Name: topic, Configs: configs})
	if err != nil {
		return transport(op, err)
	}

	b.logger.Debug("altered topic configs", "topic", topic, "configs", len(configs), "changed", changed)

	return nil
}

// ListConsumerGroups is served by the delegate.
func (b *Backend) ListConsumerGroups(ctx context.Context) ([]kafkaadmin.ConsumerGroup, error) {
	if b.delegate == nil {
		return nil, unsupported("list consumer groups")
	}
	return b.delegate.ListConsumerGroups(ctx)
}

// GetGroupOffsets is served by the delegate.
func (b *Backend) GetGroupOffsets(ctx context.Context, group string) ([]kafkaadmin.TopicGroupOffsets, error) {
	if b.delegate == nil {
		return nil, unsupported("get group offsets")
	}
	return b.delegate.GetGroupOffsets(ctx, group)
}

// CreateGroupOffsets is served by the delegate.
func (b *Backend) CreateGroupOffsets(ctx context.Context, group string, topics []string, initial kafkaadmin.GroupOffset) error {
	if b.delegate == nil {
		return unsupported("create group offsets")
	}
	return b.delegate.CreateGroupOffsets(ctx, group, topics, initial)
}

// DeleteConsumerGroup is served by the delegate.
func (b *Backend) DeleteConsumerGroup(ctx context.Context, group string) (string, error) {
	if b.delegate == nil {
		return "", unsupported("delete consumer group")
	}
	return b.delegate.DeleteConsumerGroup(ctx, group)
}

// ConsumeBetweenOffsets is served by the delegate.
func (b *Backend) ConsumeBetweenOffsets(ctx context.Context, topic string, start kafkaadmin.FetchOffset, end *kafkaadmin.FetchOffset) (*kafkaadmin.ConsumerHandle, error) {
	if b.delegate == nil {
		return nil, unsupported("consume between offsets")
	}
	return b.delegate.ConsumeBetweenOffsets(ctx, topic, start, end)
}

// StopConsumer is served by the delegate.
func (b *Backend) StopConsumer(ctx context.Context, id string) error {
	if b.delegate == nil {
		return kafkaadmin.ErrNoSuchConsumer{ID: id}
	}
	return b.delegate.StopConsumer(ctx, id)
}

// ActiveConsumers is served by the delegate.
func (b *Backend) ActiveConsumers() []string {
	if b.delegate == nil {
		return nil
	}
	return b.delegate.ActiveConsumers()
}

// ready checks ctx and the ZooKeeper session.
func (b *Backend) ready(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return transport(op, err)
	}

	if !b.zk.Ready() {
		return transport(op, errors.New("zookeeper session not established"))
	}

	return nil
}

func (b *Backend) mustExist(op, topic string) error {
	_, err := b.zk.GetTopicState(topic)
	switch {
	case err == nil:
		return nil
	case IsNoNode(err):
		return kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("topic %s does not exist", topic)}
	default:
		return transport(op, err)
	}
}

func configEntries(config map[string]string) kafkaadmin.ConfigEntries {
	entries := make(kafkaadmin.ConfigEntries, 0, len(config))
	for k, v := range config {
		v := v
		entries = append(entries, kafkaadmin.ConfigEntry{
			Name:   k,
			Value:  &v,
			Source: kafkaadmin.ConfigSourceDynamicTopic,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries
}

func toInt32s(ids []int) []int32 {
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id)
	}

	return out
}

func transport(op string, err error) error {
	return kafkaadmin.ErrTransport{Op: op, Err: err}
}

func unsupported(op string) error {
	return kafkaadmin.ErrRejected{Op: op, Message: errUnsupported}
}
