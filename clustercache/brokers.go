package clustercache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// BrokerRegistry maps broker IDs to broker info.
type BrokerRegistry struct {
	mu      sync.RWMutex
	brokers map[int32]kafkaadmin.BrokerInfo
}

// NewBrokerRegistry returns an empty BrokerRegistry.
func NewBrokerRegistry() *BrokerRegistry {
	return &BrokerRegistry{brokers: map[int32]kafkaadmin.BrokerInfo{}}
}

// Update replaces all known brokers.
func (r *BrokerRegistry) Update(brokers []kafkaadmin.BrokerInfo) {
	m := make(map[int32]kafkaadmin.BrokerInfo, len(brokers))
	for _, b := range brokers {
		m[b.ID] = b
	}

	r.mu.Lock()
	r.brokers = m
	r.mu.Unlock()
}

// ByID returns the broker with the provided ID.
func (r *BrokerRegistry) ByID(id int32) (kafkaadmin.BrokerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.brokers[id]
	return b, ok
}

// Label returns "#<id> - <host>" for known brokers and "#<id>" otherwise.
func (r *BrokerRegistry) Label(id int32) string {
	if b, ok := r.ByID(id); ok {
		return fmt.Sprintf("#%d - %s", id, b.Host)
	}

	return fmt.Sprintf("#%d", id)
}

// List returns all brokers ordered by ID.
func (r *BrokerRegistry) List() []kafkaadmin.BrokerInfo {
	r.mu.RLock()
	out := make([]kafkaadmin.BrokerInfo, 0, len(r.brokers))
	for _, b := range r.brokers {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out
}

// Len returns the number of known brokers.
func (r *BrokerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.brokers)
}
