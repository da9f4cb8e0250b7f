package clustercache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kafkadesk/kafkadesk/cluster"
	"github.com/kafkadesk/kafkadesk/kafkaadmin"
)

// ConfigStore caches the configuration entries of each topic and reconciles
// override changes against the cluster.
//
// Overrides are written with a full replacement of the topic's dynamic
// configuration: the desired override set is computed from the cache, sent to
// the cluster, and the topic is reloaded. Mutations of one topic are
// serialized so each computes its desired set from the state its predecessor
// left behind.
type ConfigStore struct {
	admin  kafkaadmin.KafkaAdmin
	logger hclog.Logger
	now    func() time.Time
	locks  cluster.KeyedLocks

	mu       sync.Mutex
	entries  map[string]kafkaadmin.ConfigEntries
	loadedAt map[string]time.Time
	stale    map[string]bool
	// gen orders load starts and completions. written holds the gen at which
	// each topic was last written by a single topic load.
	gen     uint64
	written map[string]uint64
	loading int
	lastErr error
}

// NewConfigStore returns an empty ConfigStore.
func NewConfigStore(admin kafkaadmin.KafkaAdmin, opt ...Option) (*ConfigStore, error) {
	const op = "clustercache.NewConfigStore"

	if admin == nil {
		return nil, fmt.Errorf("%s: admin client is nil", op)
	}

	opts, err := getOpts(opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ConfigStore{
		admin:    admin,
		logger:   opts.withLogger.Named("configs"),
		now:      opts.withClock,
		entries:  map[string]kafkaadmin.ConfigEntries{},
		loadedAt: map[string]time.Time{},
		stale:    map[string]bool{},
		written:  map[string]uint64{},
	}, nil
}

// LoadAll fetches the configs of all provided topics in one request and
// replaces the cache with the result. Topics reloaded individually after
// LoadAll started keep their newer entries.
//
// On failure the cache is retained, every topic without fresh data is marked
// stale, and the error is both logged and returned. Configs of topics that
// could be fetched in a partially failed request are still applied.
func (s *ConfigStore) LoadAll(ctx context.Context, topics []string) error {
	s.mu.Lock()
	s.gen++
	started := s.gen
	s.loading++
	s.mu.Unlock()

	var fetched kafkaadmin.TopicConfigs
	var err error
	if len(topics) > 0 {
		fetched, err = s.admin.FetchTopicConfigs(ctx, topics)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--

	if err != nil {
		s.logger.Error("failed to load topic configs", "topics", len(topics), "error", err)
		s.lastErr = err

		for t := range s.entries {
			if _, ok := fetched[t]; !ok {
				s.stale[t] = true
			}
		}
		for t, ce := range fetched {
			s.store(t, ce, started)
		}

		return err
	}

	entries := make(map[string]kafkaadmin.ConfigEntries, len(fetched))
	for t, ce := range fetched {
		entries[t] = ce
	}

	// Keep topics reloaded after this load started.
	for t, w := range s.written {
		if w > started {
			if ce, ok := s.entries[t]; ok {
				entries[t] = ce
			}
		}
	}

	now := s.now()
	for t := range entries {
		if s.written[t] <= started {
			s.loadedAt[t] = now
			s.written[t] = started
			delete(s.stale, t)
		}
	}

	for t := range s.entries {
		if _, ok := entries[t]; !ok {
			delete(s.loadedAt, t)
			delete(s.stale, t)
			delete(s.written, t)
		}
	}

	s.entries = entries
	s.lastErr = nil

	s.logger.Debug("loaded topic configs", "topics", len(entries))

	return nil
}

// LoadOne fetches and replaces the configs of a single topic. On failure the
// cached entries are retained and marked stale.
func (s *ConfigStore) LoadOne(ctx context.Context, topic string) error {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()

	fetched, err := s.admin.FetchTopicConfigs(ctx, []string{topic})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--

	ce, ok := fetched[topic]
	if err == nil && !ok {
		err = kafkaadmin.ErrRejected{Op: "fetch topic configs", Message: fmt.Sprintf("no configs returned for topic %s", topic)}
	}

	if err != nil {
		s.logger.Error("failed to load topic configs", "topic", topic, "error", err)
		s.lastErr = err
		if _, cached := s.entries[topic]; cached {
			s.stale[topic] = true
		}
		return err
	}

	s.gen++
	s.store(topic, ce, s.gen)
	s.lastErr = nil

	return nil
}

// store writes the entries of one topic; s.mu must be held.
func (s *ConfigStore) store(topic string, ce kafkaadmin.ConfigEntries, gen uint64) {
	if s.written[topic] > gen {
		return
	}

	s.entries[topic] = ce
	s.loadedAt[topic] = s.now()
	s.written[topic] = gen
	delete(s.stale, topic)
}

// ApplyOverrides sets the provided configs on topic, keeping all of its other
// overrides, and reloads the topic.
func (s *ConfigStore) ApplyOverrides(ctx context.Context, topic string, changes map[string]string) error {
	return s.mutate(ctx, topic, func(desired map[string]string) []string {
		names := make([]string, 0, len(changes))
		for k, v := range changes {
			desired[k] = v
			names = append(names, k)
		}
		return names
	})
}

// ClearOverride removes the override name from topic, keeping all of its
// other overrides, and reloads the topic.
func (s *ConfigStore) ClearOverride(ctx context.Context, topic, name string) error {
	return s.mutate(ctx, topic, func(desired map[string]string) []string {
		delete(desired, name)
		return []string{name}
	})
}

// mutate runs the compute, alter and reconcile sequence for topic under the
// topic's lock. change edits the desired override set in place and returns
// the names it set or removed.
func (s *ConfigStore) mutate(ctx context.Context, topic string, change func(map[string]string) []string) error {
	const op = "alter topic configs"

	lock := s.locks.Key(topic)
	if err := lock.Lock(ctx); err != nil {
		return kafkaadmin.ErrTransport{Op: op, Err: err}
	}
	defer lock.Unlock(ctx)

	// A missing or stale override set would drop overrides set on the
	// cluster; reconcile before computing the desired state.
	if _, cached := s.Entries(topic); !cached || s.Stale(topic) {
		if err := s.LoadOne(ctx, topic); err != nil {
			return err
		}
	}

	overrides := s.OverrideSet(topic)
	desired := overrides.ToMap()
	touched := map[string]bool{}
	for _, name := range change(desired) {
		touched[name] = true
	}

	// The alter replaces every override, so one whose value the cluster
	// withholds would be sent back blank.
	var withheld []string
	for _, e := range overrides {
		if e.Value == nil && !touched[e.Name] {
			withheld = append(withheld, e.Name)
		}
	}
	if len(withheld) > 0 {
		sort.Strings(withheld)
		return kafkaadmin.ErrRejected{
			Op:      op,
			Message: fmt.Sprintf("topic %s: values of %s are withheld by the cluster and must be set explicitly", topic, strings.Join(withheld, ", ")),
		}
	}

	if err := s.admin.AlterTopicConfigs(ctx, topic, desired); err != nil {
		s.logger.Error("failed to alter topic configs", "topic", topic, "error", err)

		s.mu.Lock()
		s.lastErr = err
		if _, cached := s.entries[topic]; cached {
			s.stale[topic] = true
		}
		s.mu.Unlock()

		return err
	}

	s.logger.Info("altered topic configs", "topic", topic, "overrides", len(desired))

	return s.LoadOne(ctx, topic)
}

// Entries returns the cached config entries of topic.
func (s *ConfigStore) Entries(topic string) (kafkaadmin.ConfigEntries, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ce, ok := s.entries[topic]
	return ce, ok
}

// OverrideSet returns the cached entries of topic that were explicitly set.
func (s *ConfigStore) OverrideSet(topic string) kafkaadmin.ConfigEntries {
	ce, _ := s.Entries(topic)
	return ce.Overrides()
}

// Topics returns the names of all cached topics, sorted.
func (s *ConfigStore) Topics() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.entries))
	for t := range s.entries {
		names = append(names, t)
	}
	s.mu.Unlock()

	sort.Strings(names)

	return names
}

// Loading returns whether any load is in flight.
func (s *ConfigStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading > 0
}

// LoadedAt returns when the entries of topic were last replaced. It is
// informational and never gates a fetch.
func (s *ConfigStore) LoadedAt(topic string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.loadedAt[topic]
	return t, ok
}

// Stale returns whether the cached entries of topic may no longer reflect
// the cluster because the last attempt to load or alter them failed.
func (s *ConfigStore) Stale(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stale[topic]
}

// LastError returns the error of the most recent failed operation, or nil if
// the most recent operation succeeded.
func (s *ConfigStore) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}
