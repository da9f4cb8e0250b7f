//go:build integration
// +build integration

package kafkazk

import (
	"os"
	"regexp"
	"sort"
	"testing"
	"time"

	zkclient "github.com/go-zookeeper/zk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	zkaddr   = "localhost:2181"
	zkprefix = "/kafkazk_test"
)

var (
	zkc *zkclient.Conn
	zki Handler
	// Paths to pre-populate.
	paths = []string{
		zkprefix,
		zkprefix + "/brokers",
		zkprefix + "/brokers/ids",
		zkprefix + "/brokers/topics",
		zkprefix + "/admin",
		zkprefix + "/config",
		zkprefix + "/config/topics",
		zkprefix + "/config/changes",
	}
)

// TestSetup is used for long tests that rely on a blank ZooKeeper
// server listening on localhost:2181. A usable setup can be done
// with the official ZooKeeper docker image:
// - $ docker pull zookeeper
// - $ docker run --rm -d -p 2181:2181 zookeeper
// It's preferable to run the container with --rm and start a new one
// for each test run. The removal logic in TestTearDown is rudimentary.
func TestSetup(t *testing.T) {
	if override := os.Getenv("TEST_ZK_ADDR"); override != "" {
		zkaddr = override
	}

	// Init a direct client.
	var err error
	zkc, _, err = zkclient.Connect([]string{zkaddr}, time.Second, zkclient.WithLogInfo(false))
	require.NoError(t, err)

	zki, err = NewHandler(&Config{
		Connect: zkaddr,
		Prefix:  zkprefix[1:],
	})
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)
	require.True(t, zki.Ready(), "ZooKeeper client not ready in 250ms")

	for _, p := range paths {
		_, err := zkc.Create(p, []byte{}, 0, zkclient.WorldACL(zkclient.PermAll))
		require.NoError(t, err, p)
	}

	brokers := map[string]string{
		"1001": `{"host":"10.0.1.1","port":9092,"rack":"a"}`,
		"1002": `{"host":"10.0.1.2","port":9092,"rack":"b"}`,
	}
	for id, data := range brokers {
		_, err := zkc.Create(zkprefix+"/brokers/ids/"+id, []byte(data), 0, zkclient.WorldACL(zkclient.PermAll))
		require.NoError(t, err)
	}
}

func TestIntegrationCreateTopicAndReplaceConfig(t *testing.T) {
	err := zki.CreateTopicState("orders", TopicState{Partitions: map[string][]int{"0": {1001, 1002}}})
	require.NoError(t, err)

	topics, err := zki.GetTopics([]*regexp.Regexp{allTopicsRegexp})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, topics)

	changed, err := zki.ReplaceKafkaConfig(KafkaConfig{
		Type:    "topic",
		Name:    "orders",
		Configs: map[string]string{"retention.ms": "172800000"},
	})
	require.NoError(t, err)
	assert.True(t, changed)

	tc, err := zki.GetTopicConfig("orders")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"retention.ms": "172800000"}, tc.Config)

	changes, err := zki.Children(zkprefix + "/config/changes")
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestIntegrationGetAllBrokerMeta(t *testing.T) {
	bmm, errs := zki.GetAllBrokerMeta()
	assert.Empty(t, errs)
	assert.Equal(t, []int{1001, 1002}, bmm.IDs())
}

// TestTearDown removes everything created under zkprefix.
func TestTearDown(t *testing.T) {
	all := allChildren(zkprefix)
	// Deepest paths first.
	sort.Slice(all, func(i, j int) bool { return len(all[i]) > len(all[j]) })

	for _, p := range append(all, zkprefix) {
		_, s, err := zkc.Get(p)
		if err != nil {
			t.Log(err)
			continue
		}
		if err := zkc.Delete(p, s.Version); err != nil {
			t.Log(p, err)
		}
	}

	zki.Close()
	zkc.Close()
}

func allChildren(p string) []string {
	var paths []string

	children, _, err := zkc.Children(p)
	if err != nil {
		return paths
	}

	for _, c := range children {
		child := p + "/" + c
		paths = append(paths, child)
		paths = append(paths, allChildren(child)...)
	}

	return paths
}
