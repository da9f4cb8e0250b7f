package clustercache

import (
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// TopicIndex is a fuzzy search index over topic names. Update only records
// the new topic list and bumps the version; the index itself is rebuilt on
// the next Search that observes a version change.
type TopicIndex struct {
	mu      sync.Mutex
	topics  []kafkaadmin.TopicInfo
	names   map[string]struct{}
	version uint64

	index        topicSource
	indexVersion uint64
	builds       int
}

// topicSource implements fuzzy.Source over a topic list.
type topicSource []kafkaadmin.TopicInfo

func (s topicSource) String(i int) string { return s[i].Name }
func (s topicSource) Len() int            { return len(s) }

// NewTopicIndex returns an empty TopicIndex.
func NewTopicIndex() *TopicIndex {
	return &TopicIndex{names: map[string]struct{}{}}
}

// Update replaces the indexed topics.
func (ti *TopicIndex) Update(topics []kafkaadmin.TopicInfo) {
	names := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		names[t.Name] = struct{}{}
	}

	ti.mu.Lock()
	defer ti.mu.Unlock()

	ti.topics = append([]kafkaadmin.TopicInfo(nil), topics...)
	ti.names = names
	ti.version++
}

// Search returns topics matching query as a subsequence, best matches first.
// Equal scores keep topic list order. An empty query returns every topic in
// list order.
func (ti *TopicIndex) Search(query string) []kafkaadmin.TopicInfo {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if ti.index == nil || ti.indexVersion != ti.version {
		ti.index = topicSource(ti.topics)
		ti.indexVersion = ti.version
		ti.builds++
	}

	if query == "" {
		return append([]kafkaadmin.TopicInfo(nil), ti.index...)
	}

	matches := fuzzy.FindFromNoSort(query, ti.index)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})

	out := make([]kafkaadmin.TopicInfo, 0, len(matches))
	for _, m := range matches {
		out = append(out, ti.index[m.Index])
	}

	return out
}

// Exists returns whether a topic with exactly this name is indexed.
func (ti *TopicIndex) Exists(name string) bool {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	_, ok := ti.names[name]
	return ok
}

// IsEmpty returns whether no topics are indexed.
func (ti *TopicIndex) IsEmpty() bool {
	return ti.Len() == 0
}

// Len returns the number of indexed topics.
func (ti *TopicIndex) Len() int {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	return len(ti.topics)
}

// Version returns a counter incremented on every Update.
func (ti *TopicIndex) Version() uint64 {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	return ti.version
}
