package clustercache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
	"github.com/kafkadesk/kafkadesk/kafkaadmin/stub"
)

func newTestConfigStore(t *testing.T, admin kafkaadmin.KafkaAdmin) (*ConfigStore, *testClock) {
	clock := newTestClock()
	s, err := NewConfigStore(admin, WithClock(clock.Now))
	require.Nil(t, err)
	return s, clock
}

func TestNewConfigStore(t *testing.T) {
	_, err := NewConfigStore(nil)
	assert.NotNil(t, err)

	_, err = NewConfigStore(stub.NewClient(), WithClock(nil))
	assert.NotNil(t, err)
}

func TestLoadAll(t *testing.T) {
	c := stub.NewClient()
	s, clock := newTestConfigStore(t, c)
	ctx := context.Background()

	require.Nil(t, s.LoadAll(ctx, []string{"test1", "test2"}))
	assert.Equal(t, 1, c.Calls(stub.MethodFetchTopicConfigs))
	assert.Equal(t, []string{"test1", "test2"}, s.Topics())
	assert.False(t, s.Loading())
	assert.Nil(t, s.LastError())

	overrides := s.OverrideSet("test1")
	require.Len(t, overrides, 1)
	assert.Equal(t, "retention.ms", overrides[0].Name)

	loadedAt, ok := s.LoadedAt("test1")
	assert.True(t, ok)
	assert.Equal(t, clock.Now(), loadedAt)

	// Topics no longer listed are dropped.
	require.Nil(t, s.LoadAll(ctx, []string{"test2"}))
	_, ok = s.Entries("test1")
	assert.False(t, ok)
	_, ok = s.LoadedAt("test1")
	assert.False(t, ok)

	// No topics, no remote call.
	require.Nil(t, s.LoadAll(ctx, nil))
	assert.Equal(t, 2, c.Calls(stub.MethodFetchTopicConfigs))
	assert.Empty(t, s.Topics())
}

func TestLoadAllFailureMarksStale(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	require.Nil(t, s.LoadAll(ctx, []string{"test1", "test2"}))
	before, _ := s.Entries("test1")

	boom := kafkaadmin.ErrTransport{Op: "fetch topic configs", Err: errors.New("all brokers down")}
	c.FailWith(stub.MethodFetchTopicConfigs, boom)

	err := s.LoadAll(ctx, []string{"test1", "test2"})
	assert.Equal(t, boom, err)
	assert.Equal(t, boom, s.LastError())
	assert.True(t, kafkaadmin.Retryable(s.LastError()))

	// Cached entries are retained but labeled stale.
	after, ok := s.Entries("test1")
	assert.True(t, ok)
	assert.Equal(t, before, after)
	assert.True(t, s.Stale("test1"))
	assert.True(t, s.Stale("test2"))
	assert.False(t, s.Loading())

	c.SetHook(stub.MethodFetchTopicConfigs, nil)
	require.Nil(t, s.LoadAll(ctx, []string{"test1", "test2"}))
	assert.False(t, s.Stale("test1"))
	assert.Nil(t, s.LastError())
}

func TestLoadAllPartialFailure(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	require.Nil(t, s.LoadAll(ctx, []string{"test1", "test2"}))

	_, err := c.DeleteTopic(ctx, "test2")
	require.Nil(t, err)
	require.Nil(t, c.AlterTopicConfigs(ctx, "test1", map[string]string{"retention.ms": "1000"}))

	err = s.LoadAll(ctx, []string{"test1", "test2"})
	assert.True(t, kafkaadmin.Rejected(err))

	// test1 was fetched and applied; test2 kept its entries and is stale.
	e, _ := s.OverrideSet("test1").Get("retention.ms")
	assert.Equal(t, "1000", e.StringValue())
	assert.False(t, s.Stale("test1"))
	assert.True(t, s.Stale("test2"))
}

// laggingAdmin computes bulk config responses, then holds them until
// released. Single topic fetches pass straight through.
type laggingAdmin struct {
	*stub.Client
	entered chan struct{}
	release chan struct{}
}

func (l *laggingAdmin) FetchTopicConfigs(ctx context.Context, topics []string) (kafkaadmin.TopicConfigs, error) {
	res, err := l.Client.FetchTopicConfigs(ctx, topics)
	if len(topics) > 1 {
		close(l.entered)
		<-l.release
	}
	return res, err
}

func TestLoadAllKeepsNewerLoadOne(t *testing.T) {
	c := stub.NewClient()
	admin := &laggingAdmin{Client: c, entered: make(chan struct{}), release: make(chan struct{})}
	s, _ := newTestConfigStore(t, admin)
	ctx := context.Background()

	done := make(chan error)
	go func() {
		done <- s.LoadAll(ctx, []string{"test1", "test2"})
	}()

	// The bulk response now holds retention.ms=172800000 for test1.
	<-admin.entered

	require.Nil(t, c.AlterTopicConfigs(ctx, "test1", map[string]string{"retention.ms": "1000"}))
	require.Nil(t, s.LoadOne(ctx, "test1"))
	assert.True(t, s.Loading())

	close(admin.release)
	require.Nil(t, <-done)

	e, ok := s.OverrideSet("test1").Get("retention.ms")
	require.True(t, ok)
	assert.Equal(t, "1000", e.StringValue())

	_, ok = s.Entries("test2")
	assert.True(t, ok)
	assert.False(t, s.Loading())
}

func TestOverrideRoundTrip(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	require.Nil(t, s.LoadAll(ctx, []string{"test1"}))
	before := s.OverrideSet("test1")

	require.Nil(t, s.ApplyOverrides(ctx, "test1", map[string]string{"cleanup.policy": "compact"}))
	assert.Equal(t, map[string]string{
		"cleanup.policy": "compact",
		"retention.ms":   "172800000",
	}, s.OverrideSet("test1").ToMap())

	require.Nil(t, s.ClearOverride(ctx, "test1", "cleanup.policy"))
	assert.Equal(t, before, s.OverrideSet("test1"))
}

func TestRetentionRoundTrip(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	_, err := c.CreateTopic(ctx, kafkaadmin.CreateTopicConfig{Name: "orders", Partitions: 1, ReplicationFactor: 1})
	require.Nil(t, err)
	require.Nil(t, s.LoadAll(ctx, []string{"orders"}))
	before := s.OverrideSet("orders")

	require.Nil(t, s.ApplyOverrides(ctx, "orders", map[string]string{"retention.ms": "1000"}))
	require.Nil(t, s.ClearOverride(ctx, "orders", "retention.ms"))

	assert.Equal(t, before, s.OverrideSet("orders"))
}

func TestClearOverride(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	// Cached: retention.ms=1000 set on the topic.
	_, err := c.CreateTopic(ctx, kafkaadmin.CreateTopicConfig{
		Name:              "orders",
		Partitions:        1,
		ReplicationFactor: 1,
		Config:            map[string]string{"retention.ms": "1000"},
	})
	require.Nil(t, err)
	require.Nil(t, s.LoadOne(ctx, "orders"))

	e, _ := s.OverrideSet("orders").Get("retention.ms")
	assert.False(t, e.IsDefault)
	assert.Equal(t, kafkaadmin.ConfigSourceDynamicTopic, e.Source)

	require.Nil(t, s.ClearOverride(ctx, "orders", "retention.ms"))

	alters := c.AlterCalls()
	require.Len(t, alters, 1)
	assert.Equal(t, stub.AlterCall{Topic: "orders", Configs: map[string]string{}}, alters[0])

	entries, _ := s.Entries("orders")
	e, ok := entries.Get("retention.ms")
	require.True(t, ok)
	assert.True(t, e.IsDefault)
	assert.Empty(t, s.OverrideSet("orders"))
}

func TestApplyOverridesLoadsUncachedTopic(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	require.Nil(t, s.ApplyOverrides(ctx, "test1", map[string]string{"cleanup.policy": "compact"}))

	// The existing retention.ms override survives the full replacement.
	alters := c.AlterCalls()
	require.Len(t, alters, 1)
	assert.Equal(t, map[string]string{"cleanup.policy": "compact", "retention.ms": "172800000"}, alters[0].Configs)
}

func TestApplyOverridesRejected(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	require.Nil(t, s.LoadAll(ctx, []string{"test1"}))
	before, _ := s.Entries("test1")

	err := s.ApplyOverrides(ctx, "test1", map[string]string{"no.such.config": "1"})
	assert.True(t, kafkaadmin.Rejected(err))
	assert.False(t, kafkaadmin.Retryable(err))
	assert.Equal(t, err, s.LastError())

	after, _ := s.Entries("test1")
	assert.Equal(t, before, after)
	assert.True(t, s.Stale("test1"))

	// The next mutation reconciles before computing its desired state.
	fetches := c.Calls(stub.MethodFetchTopicConfigs)
	require.Nil(t, s.ApplyOverrides(ctx, "test1", map[string]string{"cleanup.policy": "compact"}))
	assert.Equal(t, fetches+2, c.Calls(stub.MethodFetchTopicConfigs))
	assert.False(t, s.Stale("test1"))
}

func TestMutationKeepsWithheldOverrides(t *testing.T) {
	c := stub.NewClient()
	c.SetDefaultConfig("ssl.truststore.password", "")
	c.SetSensitive("ssl.truststore.password")
	ctx := context.Background()

	require.Nil(t, c.AlterTopicConfigs(ctx, "test1", map[string]string{
		"retention.ms":            "172800000",
		"ssl.truststore.password": "hunter2",
	}))

	s, _ := newTestConfigStore(t, c)
	require.Nil(t, s.LoadOne(ctx, "test1"))

	e, ok := s.OverrideSet("test1").Get("ssl.truststore.password")
	require.True(t, ok)
	assert.True(t, e.IsSensitive)
	assert.Nil(t, e.Value)

	// Sending the override set back would blank the withheld value.
	alters := len(c.AlterCalls())
	err := s.ApplyOverrides(ctx, "test1", map[string]string{"cleanup.policy": "compact"})
	assert.True(t, kafkaadmin.Rejected(err))
	assert.Contains(t, err.Error(), "ssl.truststore.password")
	assert.Len(t, c.AlterCalls(), alters)
	assert.False(t, s.Stale("test1"))

	// Setting it explicitly is allowed.
	require.Nil(t, s.ApplyOverrides(ctx, "test1", map[string]string{
		"cleanup.policy":          "compact",
		"ssl.truststore.password": "hunter3",
	}))
	calls := c.AlterCalls()
	assert.Equal(t, map[string]string{
		"cleanup.policy":          "compact",
		"retention.ms":            "172800000",
		"ssl.truststore.password": "hunter3",
	}, calls[len(calls)-1].Configs)

	// So is clearing it.
	require.Nil(t, s.ClearOverride(ctx, "test1", "ssl.truststore.password"))
	_, ok = s.OverrideSet("test1").Get("ssl.truststore.password")
	assert.False(t, ok)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)
	ctx := context.Background()

	_, err := c.CreateTopic(ctx, kafkaadmin.CreateTopicConfig{Name: "orders", Partitions: 1, ReplicationFactor: 1})
	require.Nil(t, err)
	require.Nil(t, s.LoadOne(ctx, "orders"))

	// Block the first alter until released.
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c.SetHook(stub.MethodAlterTopicConfigs, func(context.Context) error {
		first := false
		once.Do(func() { first = true })
		if first {
			close(entered)
			<-release
		}
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		assert.Nil(t, s.ApplyOverrides(ctx, "orders", map[string]string{
			"retention.ms":   "1000",
			"cleanup.policy": "compact",
		}))
	}()

	<-entered

	go func() {
		defer wg.Done()
		assert.Nil(t, s.ClearOverride(ctx, "orders", "retention.ms"))
	}()

	// Give the clear a chance to race; it must wait for the apply.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.AlterCalls(), 1)

	close(release)
	wg.Wait()

	alters := c.AlterCalls()
	require.Len(t, alters, 2)
	assert.Equal(t, map[string]string{"retention.ms": "1000", "cleanup.policy": "compact"}, alters[0].Configs)
	// The clear was computed from the state the apply left behind.
	assert.Equal(t, map[string]string{"cleanup.policy": "compact"}, alters[1].Configs)

	assert.Equal(t, map[string]string{"cleanup.policy": "compact"}, s.OverrideSet("orders").ToMap())
}

func TestMutationLockTimeout(t *testing.T) {
	c := stub.NewClient()
	s, _ := newTestConfigStore(t, c)

	require.Nil(t, s.locks.Lock(context.Background(), "test1"))
	defer s.locks.Unlock("test1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.ApplyOverrides(ctx, "test1", map[string]string{"retention.ms": "1"})
	assert.True(t, kafkaadmin.Retryable(err))
	assert.Empty(t, c.AlterCalls())
}
