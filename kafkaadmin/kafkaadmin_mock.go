package kafkaadmin

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/mock"
)

// MockedKafkaAdminClient is a mocked implementation of the librdkafka client
// factories.
type MockedKafkaAdminClient struct {
	mock.Mock
}

// NewAdminClient creates a new AdminClient instance
func (m *MockedKafkaAdminClient) NewAdminClient(conf *kafka.ConfigMap) (*kafka.AdminClient, error) {
	args := m.Called(conf)
	return args.Get(0).(*kafka.AdminClient), args.Error(1)
}

// NewConsumer creates a new Consumer instance
func (m *MockedKafkaAdminClient) NewConsumer(conf *kafka.ConfigMap) (*kafka.Consumer, error) {
	args := m.Called(conf)
	return args.Get(0).(*kafka.Consumer), args.Error(1)
}
