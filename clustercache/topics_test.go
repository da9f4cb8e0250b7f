package clustercache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

func topicInfos(names ...string) []kafkaadmin.TopicInfo {
	var out []kafkaadmin.TopicInfo
	for _, n := range names {
		out = append(out, kafkaadmin.TopicInfo{Name: n})
	}
	return out
}

func names(topics []kafkaadmin.TopicInfo) []string {
	var out []string
	for _, t := range topics {
		out = append(out, t.Name)
	}
	return out
}

func TestTopicIndexSearch(t *testing.T) {
	ti := NewTopicIndex()
	ti.Update(topicInfos("orders", "orders-dlq", "payments"))

	assert.ElementsMatch(t, []string{"orders", "orders-dlq", "payments"}, names(ti.Search("")))
	assert.ElementsMatch(t, []string{"orders", "orders-dlq"}, names(ti.Search("ord")))
	assert.Equal(t, []string{"orders-dlq"}, names(ti.Search("dlq")))
	assert.Empty(t, ti.Search("xyz"))

	assert.True(t, ti.Exists("orders"))
	assert.False(t, ti.Exists("unknown-topic"))
	// Exists is exact.
	assert.False(t, ti.Exists("ord"))
}

func TestTopicIndexOrdering(t *testing.T) {
	ti := NewTopicIndex()
	ti.Update(topicInfos("payments", "orders", "orders-dlq"))

	// Empty queries keep list order.
	assert.Equal(t, []string{"payments", "orders", "orders-dlq"}, names(ti.Search("")))

	// The prefix match on a shorter name ranks first.
	res := names(ti.Search("orders"))
	assert.Equal(t, []string{"orders", "orders-dlq"}, res)
}

func TestTopicIndexEqualScores(t *testing.T) {
	ti := NewTopicIndex()

	// Every name matches "x" with the same score, so list order decides.
	ti.Update(topicInfos("aa-x", "bb-x", "cc-x"))
	assert.Equal(t, []string{"aa-x", "bb-x", "cc-x"}, names(ti.Search("x")))

	ti.Update(topicInfos("cc-x", "bb-x", "aa-x"))
	assert.Equal(t, []string{"cc-x", "bb-x", "aa-x"}, names(ti.Search("x")))

	// Repeated searches return the same order.
	assert.Equal(t, names(ti.Search("x")), names(ti.Search("x")))
}

func TestTopicIndexLazyRebuild(t *testing.T) {
	ti := NewTopicIndex()
	assert.True(t, ti.IsEmpty())
	assert.Equal(t, uint64(0), ti.Version())

	ti.Update(topicInfos("orders"))
	ti.Update(topicInfos("orders", "payments"))
	assert.Equal(t, uint64(2), ti.Version())
	assert.Equal(t, 0, ti.builds)

	ti.Search("o")
	ti.Search("p")
	assert.Equal(t, 1, ti.builds)

	ti.Update(topicInfos("orders", "payments", "refunds"))
	assert.Equal(t, 1, ti.builds)
	assert.Equal(t, []string{"refunds"}, names(ti.Search("ref")))
	assert.Equal(t, 2, ti.builds)

	assert.Equal(t, 3, ti.Len())
	assert.False(t, ti.IsEmpty())
}
