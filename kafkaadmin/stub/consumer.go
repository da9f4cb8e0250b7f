package stub

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) stop() {
	s.cancel()
	<-s.done
}

var consumerSeq int64

// ConsumeBetweenOffsets replays the partition logs of topic between start and
// end. Without an end, the consumer emits the messages present at call time
// and then idles until stopped.
func (c *Client) ConsumeBetweenOffsets(ctx context.Context, topic string, start kafkaadmin.FetchOffset, end *kafkaadmin.FetchOffset) (*kafkaadmin.ConsumerHandle, error) {
	const op = "consume between offsets"

	if err := c.enter(ctx, MethodConsumeBetweenOffsets); err != nil {
		return nil, err
	}

	c.mu.Lock()

	t, exists := c.topics[topic]
	if !exists {
		c.mu.Unlock()
		return nil, kafkaadmin.ErrRejected{Op: op, Message: fmt.Sprintf("topic %s does not exist", topic)}
	}

	starts := map[int32]int64{}
	var pending []kafkaadmin.MessageEnvelope

	for _, p := range t.Partitions {
		log := c.logs[topic][p.ID]
		from := offsetFor(log, start)
		to := int64(len(log))
		if end != nil && end.Type != kafkaadmin.FetchBeginning {
			to = offsetFor(log, *end)
		}

		starts[p.ID] = from
		for o := from; o < to; o++ {
			pending = append(pending, log[o])
		}
	}

	// The stub clock is a sequence so IDs stay unique within a millisecond.
	id := fmt.Sprintf("consumer_%d/%s/%s", atomic.AddInt64(&consumerSeq, 1), topic, start)

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{cancel: cancel, done: make(chan struct{})}
	c.consumers[id] = s
	c.mu.Unlock()

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Partition < pending[j].Partition
	})

	out := make(chan kafkaadmin.MessageEnvelope)
	bounded := end != nil && end.Type != kafkaadmin.FetchBeginning

	go func() {
		defer close(s.done)
		defer close(out)
		defer c.removeSession(id, s)

		for _, m := range pending {
			select {
			case out <- m:
			case <-sctx.Done():
				return
			}
		}

		if !bounded {
			<-sctx.Done()
		}
	}()

	return &kafkaadmin.ConsumerHandle{
		ID:           id,
		Topic:        topic,
		StartOffsets: starts,
		Messages:     out,
	}, nil
}

func (c *Client) StopConsumer(ctx context.Context, id string) error {
	if err := c.enter(ctx, MethodStopConsumer); err != nil {
		return err
	}

	c.mu.Lock()
	s, exists := c.consumers[id]
	delete(c.consumers, id)
	c.mu.Unlock()

	if !exists {
		return kafkaadmin.ErrNoSuchConsumer{ID: id}
	}

	s.stop()

	return nil
}

func (c *Client) ActiveConsumers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.consumers))
	for id := range c.consumers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (c *Client) removeSession(id string, s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumers[id] == s {
		delete(c.consumers, id)
	}
}

// offsetFor resolves a FetchOffset against a partition log.
func offsetFor(log []kafkaadmin.MessageEnvelope, at kafkaadmin.FetchOffset) int64 {
	switch at.Type {
	case kafkaadmin.FetchBeginning:
		return 0
	case kafkaadmin.FetchEnd:
		return int64(len(log))
	}

	i := sort.Search(len(log), func(i int) bool {
		return log[i].Timestamp >= at.Timestamp
	})

	return int64(i)
}
