//go:build integration

package kafkaadmin

import (
	"context"
	"testing"
	"time"
)

var (
	testKafkaBootstrapServers = []string{"kafka:9094"}
	testKafkaAdminTimeout     = 5 * time.Second
)

func testKafkaAdminClient(t *testing.T) (context.Context, KafkaAdmin) {
	ctx, cancel := context.WithTimeout(context.Background(), testKafkaAdminTimeout)
	t.Cleanup(cancel)

	ka, err := NewClient(Config{
		Cluster: ClusterConfig{Name: "integration", BootstrapServers: testKafkaBootstrapServers},
	})
	if err != nil {
		t.Logf("failed to initialize client: %s", err)
		t.FailNow()
	}
	t.Cleanup(ka.Close)

	return ctx, ka
}
