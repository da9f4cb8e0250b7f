//go:build integration

package kafkaadmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClusterMetadata(t *testing.T) {
	ctx, ka := testKafkaAdminClient(t)

	md, err := ka.GetClusterMetadata(ctx)
	require.Nil(t, err)

	assert.Greater(t, len(md.Brokers), 0, "expected live brokers")
	assert.Contains(t, md.TopicNames(), "test1")
}

func TestCreateAlterDeleteTopic(t *testing.T) {
	ctx, ka := testKafkaAdminClient(t)

	name, err := ka.CreateTopic(ctx, CreateTopicConfig{
		Name:              "kafkadesk-integration",
		Partitions:        1,
		ReplicationFactor: 1,
	})
	require.Nil(t, err)
	assert.Equal(t, "kafkadesk-integration", name)

	err = ka.AlterTopicConfigs(ctx, name, map[string]string{"retention.ms": "1000"})
	require.Nil(t, err)

	cfgs, err := ka.FetchTopicConfigs(ctx, []string{name})
	require.Nil(t, err)

	e, ok := cfgs[name].Get("retention.ms")
	require.True(t, ok)
	assert.Equal(t, "1000", e.StringValue())
	assert.True(t, e.IsOverride())

	// Full replacement with an empty map reverts the override.
	err = ka.AlterTopicConfigs(ctx, name, map[string]string{})
	require.Nil(t, err)

	cfgs, err = ka.FetchTopicConfigs(ctx, []string{name})
	require.Nil(t, err)
	assert.Empty(t, cfgs[name].Overrides())

	deleted, err := ka.DeleteTopic(ctx, name)
	require.Nil(t, err)
	assert.Equal(t, name, deleted)
}
