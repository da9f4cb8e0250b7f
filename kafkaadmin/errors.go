package kafkaadmin

import (
	"context"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

var (
	// ErrNoTopics is returned when a topic scoped call is made without topics.
	ErrNoTopics = errors.New("no topic names provided")
	// ErrClientClosed is returned for calls issued after Close.
	ErrClientClosed = errors.New("client closed")
)

// ErrFetchingMetadata is returned when a cluster metadata lookup fails.
type ErrFetchingMetadata struct {
	Message string
}

func (e ErrFetchingMetadata) Error() string {
	return fmt.Sprintf("failed to fetch metadata: %s", e.Message)
}

// ErrTransport is a retryable failure: the request may not have reached the
// cluster, or the cluster was temporarily unable to serve it.
type ErrTransport struct {
	Op  string
	Err error
}

func (e ErrTransport) Error() string {
	return fmt.Sprintf("%s: transport failure: %s", e.Op, e.Err)
}

func (e ErrTransport) Unwrap() error {
	return e.Err
}

// ErrRejected is a non-retryable failure: the cluster understood the request
// and refused it (invalid config value, unknown topic, authorization).
type ErrRejected struct {
	Op      string
	Message string
}

func (e ErrRejected) Error() string {
	return fmt.Sprintf("%s: rejected: %s", e.Op, e.Message)
}

// ErrNoSuchConsumer is returned by StopConsumer for unknown consumer IDs.
type ErrNoSuchConsumer struct {
	ID string
}

func (e ErrNoSuchConsumer) Error() string {
	return fmt.Sprintf("there is no such consumer running on channel: '%s'", e.ID)
}

// Retryable returns whether err is a transient failure worth retrying.
func Retryable(err error) bool {
	var te ErrTransport
	return errors.As(err, &te)
}

// Rejected returns whether err is a refusal by the cluster.
func Rejected(err error) bool {
	var re ErrRejected
	return errors.As(err, &re)
}

// transportCodes are librdkafka errors that describe connectivity rather than
// the request itself.
var transportCodes = map[kafka.ErrorCode]struct{}{
	kafka.ErrTransport:               {},
	kafka.ErrAllBrokersDown:          {},
	kafka.ErrTimedOut:                {},
	kafka.ErrNetworkException:        {},
	kafka.ErrRequestTimedOut:         {},
	kafka.ErrBrokerNotAvailable:      {},
	kafka.ErrLeaderNotAvailable:      {},
	kafka.ErrNotController:           {},
	kafka.ErrCoordinatorNotAvailable: {},
}

// classify wraps err as either an ErrTransport or ErrRejected. Errors already
// classified are returned as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if Retryable(err) || Rejected(err) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTransport{Op: op, Err: err}
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		if _, transport := transportCodes[kerr.Code()]; transport || kerr.IsRetriable() || kerr.IsTimeout() {
			return ErrTransport{Op: op, Err: err}
		}
		return ErrRejected{Op: op, Message: err.Error()}
	}

	// Unknown error types are treated as transport level; nothing indicates the
	// cluster evaluated the request.
	return ErrTransport{Op: op, Err: err}
}

// isErr returns whether a result level kafka.Error holds an actual error.
func isErr(e kafka.Error) bool {
	return e.Code() != kafka.ErrNoError
}
