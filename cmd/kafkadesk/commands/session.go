package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/kafkadesk/kafkadesk/clustercache"
	"github.com/kafkadesk/kafkadesk/kafkaadmin"
	"github.com/kafkadesk/kafkadesk/kafkaadmin/stub"
	"github.com/kafkadesk/kafkadesk/kafkazk"
)

// session holds the clients shared by a command invocation.
type session struct {
	admin   kafkaadmin.KafkaAdmin
	cache   *clustercache.MetadataCache
	logger  hclog.Logger
	out     io.Writer
	timeout time.Duration
}

func newSession(cmd *cobra.Command) (*session, error) {
	level, _ := cmd.Flags().GetString("log-level")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "kafkadesk",
		Level:  hclog.LevelFromString(level),
		Output: cmd.ErrOrStderr(),
	})

	admin, err := newAdmin(cmd, logger)
	if err != nil {
		return nil, err
	}

	cache, err := clustercache.NewMetadataCache(admin,
		clustercache.WithLogger(logger),
		clustercache.WithTTL(ttl),
	)
	if err != nil {
		admin.Close()
		return nil, err
	}

	return &session{
		admin:   admin,
		cache:   cache,
		logger:  logger,
		out:     cmd.OutOrStdout(),
		timeout: timeout,
	}, nil
}

// newAdmin returns the KafkaAdmin selected by the connection flags.
func newAdmin(cmd *cobra.Command, logger hclog.Logger) (kafkaadmin.KafkaAdmin, error) {
	if useStub, _ := cmd.Flags().GetBool("stub"); useStub {
		return demoCluster(), nil
	}

	cfg := kafkaConfigFromCmd(cmd)
	cfg.Logger = logger

	zkAddr, _ := cmd.Flags().GetString("zk-addr")
	if zkAddr == "" {
		return kafkaadmin.NewClient(cfg)
	}

	zkPrefix, _ := cmd.Flags().GetString("zk-prefix")

	zk, err := kafkazk.NewHandler(&kafkazk.Config{
		Connect: zkAddr,
		Prefix:  zkPrefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("Error initializing ZooKeeper client: %s", err)
	}

	// Group and consumer calls still go to the brokers.
	var delegate kafkaadmin.KafkaAdmin
	if client, err := kafkaadmin.NewClient(cfg); err != nil {
		logger.Warn("kafka client unavailable, consumer group commands disabled", "error", err)
	} else {
		delegate = client
	}

	backend, err := kafkazk.NewBackend(kafkazk.BackendConfig{
		Handler:  zk,
		Cluster:  cfg.Cluster,
		Delegate: delegate,
		Logger:   logger,
	})
	if err != nil {
		zk.Close()
		return nil, err
	}

	return backend, nil
}

func kafkaConfigFromCmd(cmd *cobra.Command) kafkaadmin.Config {
	name, _ := cmd.Flags().GetString("cluster")
	bootstrap, _ := cmd.Flags().GetString("bootstrap-servers")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg := kafkaadmin.Config{
		Cluster: kafkaadmin.ClusterConfig{
			Name:             name,
			BootstrapServers: splitList(bootstrap),
		},
		DefaultTimeoutMs: int(timeout.Milliseconds()),
	}

	cfg.SecurityProtocol, _ = cmd.Flags().GetString("security-protocol")
	cfg.SSLCALocation, _ = cmd.Flags().GetString("ssl-ca-location")
	cfg.SASLMechanism, _ = cmd.Flags().GetString("sasl-mechanism")
	cfg.SASLUsername, _ = cmd.Flags().GetString("sasl-username")
	cfg.SASLPassword, _ = cmd.Flags().GetString("sasl-password")

	return cfg
}

// demoCluster returns the in-memory cluster used with --stub, with a
// consumer group and a few messages on test1.
func demoCluster() kafkaadmin.KafkaAdmin {
	c := stub.NewClient()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for i := 0; i < 3; i++ {
		for _, p := range []int32{0, 1} {
			c.Produce("test1", p, fmt.Sprintf("key-%d", i), fmt.Sprintf("message %d", i), ts+int64(i)*1000)
		}
	}

	c.AddGroup(kafkaadmin.ConsumerGroup{
		Name:         "billing",
		State:        "Stable",
		Protocol:     "range",
		ProtocolType: "consumer",
		Members: []kafkaadmin.GroupMember{
			{
				ID:          "billing-1",
				ClientID:    "billing",
				ClientHost:  "/10.0.0.5",
				Assignments: []kafkaadmin.MemberAssignment{{Topic: "test1", Partitions: []int32{0, 1}}},
			},
		},
	}, map[string]map[int32]int64{"test1": {0: 1, 1: 3}})

	return c
}

// context returns a context bounded by the request timeout.
func (s *session) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// metadata returns cluster metadata through the cache.
func (s *session) metadata(ctx context.Context) (kafkaadmin.ClusterMetadata, error) {
	return s.cache.EnsureFreshDefault(ctx)
}

func (s *session) Close() {
	s.admin.Close()
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}
