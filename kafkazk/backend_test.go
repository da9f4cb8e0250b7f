package kafkazk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
	"github.com/kafkadesk/kafkadesk/kafkaadmin/stub"
)

func testBackend(t *testing.T, delegate kafkaadmin.KafkaAdmin) (*Backend, *ZKHandler) {
	t.Helper()

	z := testHandler(t)
	b, err := NewBackend(BackendConfig{
		Handler:  z,
		Cluster:  kafkaadmin.ClusterConfig{Name: "zk", BootstrapServers: []string{"localhost:9092"}},
		Delegate: delegate,
	})
	require.NoError(t, err)

	return b, z
}

func TestNewBackendRequiresHandler(t *testing.T) {
	_, err := NewBackend(BackendConfig{})
	assert.Error(t, err)
}

func TestBackendGetClusterMetadata(t *testing.T) {
	b, _ := testBackend(t, nil)

	md, err := b.GetClusterMetadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1002), md.OriginatingBrokerID)
	assert.Equal(t, []kafkaadmin.BrokerInfo{
		{ID: 1001, Host: "10.0.1.1", Port: 9092},
		{ID: 1002, Host: "kafka-2.example.com", Port: 9093},
	}, md.Brokers)

	require.Equal(t, []string{"test1", "test2"}, md.TopicNames())

	test1 := md.Topics[0]
	assert.Equal(t, []kafkaadmin.PartitionInfo{
		{ID: 0, Leader: 1001, Replicas: []int32{1001, 1002}, ISR: []int32{1001, 1002}},
		{ID: 1, Leader: 1002, Replicas: []int32{1002, 1001}, ISR: []int32{1002}},
	}, test1.Partitions)

	// Partitions without a state znode have no leader.
	assert.Equal(t, int32(-1), md.Topics[1].Partitions[0].Leader)

	under := md.UnderReplicated()
	require.Len(t, under, 2)
}

func TestBackendGetClusterMetadataWithoutController(t *testing.T) {
	b, z := testBackend(t, nil)
	require.NoError(t, z.Delete("/kafka/controller"))

	md, err := b.GetClusterMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1001), md.OriginatingBrokerID)
}

func TestBackendGetClusterMetadataSkipsPendingDeletion(t *testing.T) {
	b, z := testBackend(t, nil)
	require.NoError(t, z.MarkForDeletion("test2"))

	md, err := b.GetClusterMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"test1"}, md.TopicNames())
}

func TestBackendNotReady(t *testing.T) {
	b, z := testBackend(t, nil)
	z.Close()

	_, err := b.GetClusterMetadata(context.Background())
	assert.True(t, kafkaadmin.Retryable(err))
}

func TestBackendCanceledContext(t *testing.T) {
	b, _ := testBackend(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.FetchTopicConfigs(ctx, []string{"test1"})
	assert.True(t, kafkaadmin.Retryable(err))
}

func TestBackendFetchTopicConfigs(t *testing.T) {
	b, _ := testBackend(t, nil)

	configs, err := b.FetchTopicConfigs(context.Background(), []string{"test1", "test2"})
	require.NoError(t, err)

	require.Len(t, configs["test1"], 1)
	e := configs["test1"][0]
	assert.Equal(t, "retention.ms", e.Name)
	assert.Equal(t, "172800000", e.StringValue())
	assert.Equal(t, kafkaadmin.ConfigSourceDynamicTopic, e.Source)
	assert.True(t, e.IsOverride())

	// Topics without a config znode have no overrides.
	assert.Empty(t, configs["test2"])
}

func TestBackendFetchTopicConfigsPartialFailure(t *testing.T) {
	b, _ := testBackend(t, nil)

	configs, err := b.FetchTopicConfigs(context.Background(), []string{"test1", "missing"})
	assert.True(t, kafkaadmin.Rejected(err))
	assert.Contains(t, configs, "test1")
	assert.NotContains(t, configs, "missing")

	_, err = b.FetchTopicConfigs(context.Background(), nil)
	assert.Equal(t, kafkaadmin.ErrNoTopics, err)
}

func TestBackendAlterTopicConfigs(t *testing.T) {
	b, _ := testBackend(t, nil)
	ctx := context.Background()

	err := b.AlterTopicConfigs(ctx, "test1", map[string]string{"cleanup.policy": "compact"})
	require.NoError(t, err)

	configs, err := b.FetchTopicConfigs(ctx, []string{"test1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cleanup.policy": "compact"}, configs["test1"].ToMap())

	// An empty map clears every override.
	require.NoError(t, b.AlterTopicConfigs(ctx, "test1", map[string]string{}))

	configs, err = b.FetchTopicConfigs(ctx, []string{"test1"})
	require.NoError(t, err)
	assert.Empty(t, configs["test1"])

	err = b.AlterTopicConfigs(ctx, "missing", map[string]string{})
	assert.True(t, kafkaadmin.Rejected(err))

	assert.Equal(t, kafkaadmin.ErrNoTopics, b.AlterTopicConfigs(ctx, "", nil))
}

func TestBackendCreateTopic(t *testing.T) {
	b, z := testBackend(t, nil)
	ctx := context.Background()

	name, err := b.CreateTopic(ctx, kafkaadmin.CreateTopicConfig{
		Name:              "test3",
		Partitions:        3,
		ReplicationFactor: 2,
		Config:            map[string]string{"retention.ms": "1000"},
	})
	require.NoError(t, err)
	assert.Equal(t, "test3", name)

	ts, err := z.GetTopicState("test3")
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{
		"0": {1001, 1002},
		"1": {1002, 1001},
		"2": {1001, 1002},
	}, ts.Partitions)

	tc, err := z.GetTopicConfig("test3")
	require.NoError(t, err)
	assert.Equal(t, "1000", tc.Config["retention.ms"])
}

func TestBackendCreateTopicReplicaAssignment(t *testing.T) {
	b, z := testBackend(t, nil)

	_, err := b.CreateTopic(context.Background(), kafkaadmin.CreateTopicConfig{
		Name:              "test3",
		ReplicaAssignment: kafkaadmin.ReplicaAssignment{{1002}, {1001}},
	})
	require.NoError(t, err)

	ts, err := z.GetTopicState("test3")
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"0": {1002}, "1": {1001}}, ts.Partitions)

	// No config znode for topics created without configs.
	_, err = z.GetTopicConfig("test3")
	assert.True(t, IsNoNode(err))
}

func TestBackendCreateTopicRejected(t *testing.T) {
	b, _ := testBackend(t, nil)
	ctx := context.Background()

	tests := map[string]kafkaadmin.CreateTopicConfig{
		"exists":        {Name: "test1", Partitions: 1},
		"invalid name":  {Name: "bad topic", Partitions: 1},
		"no partitions": {Name: "test3"},
		"rf too large":  {Name: "test3", Partitions: 1, ReplicationFactor: 3},
	}

	for name, cfg := range tests {
		_, err := b.CreateTopic(ctx, cfg)
		assert.True(t, kafkaadmin.Rejected(err), name)
	}
}

func TestBackendDeleteTopic(t *testing.T) {
	b, _ := testBackend(t, nil)
	ctx := context.Background()

	name, err := b.DeleteTopic(ctx, "test2")
	require.NoError(t, err)
	assert.Equal(t, "test2", name)

	md, err := b.GetClusterMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"test1"}, md.TopicNames())

	_, err = b.DeleteTopic(ctx, "missing")
	assert.True(t, kafkaadmin.Rejected(err))

	_, err = b.DeleteTopic(ctx, "")
	assert.Equal(t, kafkaadmin.ErrNoTopics, err)
}

func TestBackendUnsupportedWithoutDelegate(t *testing.T) {
	b, _ := testBackend(t, nil)
	ctx := context.Background()

	_, err := b.ListConsumerGroups(ctx)
	assert.True(t, kafkaadmin.Rejected(err))

	_, err = b.GetGroupOffsets(ctx, "g")
	assert.True(t, kafkaadmin.Rejected(err))

	err = b.CreateGroupOffsets(ctx, "g", []string{"test1"}, kafkaadmin.GroupOffset{})
	assert.True(t, kafkaadmin.Rejected(err))

	_, err = b.DeleteConsumerGroup(ctx, "g")
	assert.True(t, kafkaadmin.Rejected(err))

	_, err = b.ConsumeBetweenOffsets(ctx, "test1", kafkaadmin.FetchOffset{}, nil)
	assert.True(t, kafkaadmin.Rejected(err))

	assert.IsType(t, kafkaadmin.ErrNoSuchConsumer{}, b.StopConsumer(ctx, "x"))
	assert.Empty(t, b.ActiveConsumers())
}

func TestBackendDelegates(t *testing.T) {
	delegate := stub.NewClient()
	b, _ := testBackend(t, delegate)
	ctx := context.Background()

	require.NoError(t, b.CreateGroupOffsets(ctx, "g1", []string{"test1"}, kafkaadmin.GroupOffset{Type: kafkaadmin.GroupOffsetEnd}))

	groups, err := b.ListConsumerGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].Name)

	assert.Equal(t, 1, delegate.Calls(stub.MethodListConsumerGroups))

	b.Close()
	_, err = delegate.GetClusterMetadata(ctx)
	assert.Equal(t, kafkaadmin.ErrClientClosed, err)
}

func TestBackendCurrentCluster(t *testing.T) {
	b, _ := testBackend(t, nil)
	assert.Equal(t, "zk", b.CurrentCluster().Name)
}
