// Package clustercache holds the client side view of a cluster: a TTL gated
// metadata snapshot, the broker registry and topic search index derived from
// it, and the per-topic configuration cache.
package clustercache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

const refreshKey = "metadata"

// MetadataCache owns the cluster metadata snapshot. A successful refresh is
// distributed, in order, to the BrokerRegistry, the TopicIndex and the
// ConfigStore.
type MetadataCache struct {
	admin   kafkaadmin.KafkaAdmin
	logger  hclog.Logger
	now     func() time.Time
	ttl     time.Duration
	flights singleflight.Group

	brokers *BrokerRegistry
	topics  *TopicIndex
	configs *ConfigStore

	mu       sync.RWMutex
	md       kafkaadmin.ClusterMetadata
	loaded   bool
	lastLoad time.Time
	lastErr  error
	loading  bool
}

// NewMetadataCache returns an empty MetadataCache backed by admin.
func NewMetadataCache(admin kafkaadmin.KafkaAdmin, opt ...Option) (*MetadataCache, error) {
	const op = "clustercache.NewMetadataCache"

	if admin == nil {
		return nil, fmt.Errorf("%s: admin client is nil", op)
	}

	opts, err := getOpts(opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	configs, err := NewConfigStore(admin, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &MetadataCache{
		admin:   admin,
		logger:  opts.withLogger.Named("metadata"),
		now:     opts.withClock,
		ttl:     opts.withTTL,
		brokers: NewBrokerRegistry(),
		topics:  NewTopicIndex(),
		configs: configs,
	}, nil
}

// EnsureFresh returns the cached snapshot if it was loaded no more than ttl
// ago, without any remote call. Otherwise it refreshes. A cache that was
// never loaded is always refreshed.
func (m *MetadataCache) EnsureFresh(ctx context.Context, ttl time.Duration) (kafkaadmin.ClusterMetadata, error) {
	m.mu.RLock()
	fresh := m.loaded && m.now().Sub(m.lastLoad) <= ttl
	md := m.md
	m.mu.RUnlock()

	if fresh {
		return md, nil
	}

	return m.Refresh(ctx)
}

// EnsureFreshDefault calls EnsureFresh with the configured TTL.
func (m *MetadataCache) EnsureFreshDefault(ctx context.Context) (kafkaadmin.ClusterMetadata, error) {
	return m.EnsureFresh(ctx, m.ttl)
}

// Refresh fetches the cluster metadata. Concurrent callers share a single
// fetch; a caller whose ctx is done stops waiting without cancelling the
// fetch for the others. On failure the previous snapshot is returned along
// with the error and remains current.
func (m *MetadataCache) Refresh(ctx context.Context) (kafkaadmin.ClusterMetadata, error) {
	ch := m.flights.DoChan(refreshKey, func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case r := <-ch:
		return r.Val.(kafkaadmin.ClusterMetadata), r.Err
	case <-ctx.Done():
		md, _ := m.Snapshot()
		return md, kafkaadmin.ErrTransport{Op: "get cluster metadata", Err: ctx.Err()}
	}
}

func (m *MetadataCache) refresh(ctx context.Context) (kafkaadmin.ClusterMetadata, error) {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	start := m.now()
	md, err := m.admin.GetClusterMetadata(ctx)
	if err != nil {
		m.logger.Error("failed to refresh cluster metadata", "error", err)

		m.mu.Lock()
		m.lastErr = err
		prev := m.md
		m.mu.Unlock()

		return prev, err
	}

	m.mu.Lock()
	m.md = md
	m.loaded = true
	m.lastLoad = m.now()
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Debug("refreshed cluster metadata",
		"brokers", len(md.Brokers),
		"topics", len(md.Topics),
		"took", m.now().Sub(start))

	m.distribute(ctx, md)

	return md, nil
}

// distribute fans a new snapshot out to the derived views. Config load
// failures are recorded by the ConfigStore and don't fail the refresh.
func (m *MetadataCache) distribute(ctx context.Context, md kafkaadmin.ClusterMetadata) {
	m.brokers.Update(md.Brokers)
	m.topics.Update(md.Topics)

	if err := m.configs.LoadAll(ctx, md.TopicNames()); err != nil {
		m.logger.Warn("topic configs are stale after refresh", "error", err)
	}
}

// Snapshot returns the current metadata and whether it was ever loaded.
func (m *MetadataCache) Snapshot() (kafkaadmin.ClusterMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.md, m.loaded
}

// Loading returns whether a refresh is in flight.
func (m *MetadataCache) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.loading
}

// LastError returns the error of the last refresh, or nil if it succeeded.
func (m *MetadataCache) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastErr
}

// LastLoad returns the completion time of the last successful refresh.
func (m *MetadataCache) LastLoad() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastLoad
}

// OriginatingBrokerID returns the ID of the broker that served the current
// snapshot.
func (m *MetadataCache) OriginatingBrokerID() int32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.md.OriginatingBrokerID
}

// TTL returns the TTL used by EnsureFreshDefault.
func (m *MetadataCache) TTL() time.Duration {
	return m.ttl
}

// Brokers returns the registry of the brokers in the current snapshot.
func (m *MetadataCache) Brokers() *BrokerRegistry { return m.brokers }

// Topics returns the search index over the topics in the current snapshot.
func (m *MetadataCache) Topics() *TopicIndex { return m.topics }

// Configs returns the per-topic config cache, reloaded after every refresh.
func (m *MetadataCache) Configs() *ConfigStore { return m.configs }
