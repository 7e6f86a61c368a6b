// Package cache provides the bounded, TTL-expiring key-value stores that sit
// in front of the database on the dispatch hot path. Four independent named
// caches exist (user mappings, platform configs, AI model selection,
// conversation state); each is capacity-bounded with otter handling eviction.
//
// Caches here are strictly cache-aside: a miss must fall through to the
// authoritative repo query, which then repopulates the cache. Nothing in the
// dispatch layer treats a cache as the source of truth.
package cache

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/positonic/go-message-gateway/internal/config"
	"github.com/positonic/go-message-gateway/internal/domain"
)

// Stats is a point-in-time snapshot of one named cache.
type Stats struct {
	Name    string  `json:"name"`
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Store is a bounded string-keyed cache with a per-store default TTL and
// optional per-entry overrides. It is safe for concurrent use.
type Store[V any] struct {
	name       string
	defaultTTL time.Duration
	cache      otter.CacheWithVariableTTL[string, V]
}

// NewStore builds a bounded cache named name holding at most capacity entries,
// expiring them after ttl by default.
func NewStore[V any](name string, capacity int, ttl time.Duration) *Store[V] {
	c, err := otter.MustBuilder[string, V](capacity).
		CollectStats().
		Cost(func(_ string, _ V) uint32 { return 1 }).
		WithVariableTTL().
		Build()
	if err != nil {
		panic("cache: failed to build store " + name + ": " + err.Error())
	}
	return &Store[V]{name: name, defaultTTL: ttl, cache: c}
}

// Get returns the cached value for key, if present and not expired.
func (s *Store[V]) Get(key string) (V, bool) {
	return s.cache.Get(key)
}

// Set stores value under key with the store's default TTL.
func (s *Store[V]) Set(key string, value V) {
	s.cache.Set(key, value, s.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL override.
func (s *Store[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.cache.Set(key, value, ttl)
}

// Invalidate removes key from the cache. Removing an absent key is a no-op.
func (s *Store[V]) Invalidate(key string) {
	s.cache.Delete(key)
}

// GetStats returns the snapshot used by the worker diagnostics payload.
func (s *Store[V]) GetStats() Stats {
	st := s.cache.Stats()
	total := st.Hits() + st.Misses()
	rate := 0.0
	if total > 0 {
		rate = float64(st.Hits()) / float64(total)
	}
	return Stats{
		Name:    s.name,
		Size:    s.cache.Size(),
		Hits:    st.Hits(),
		Misses:  st.Misses(),
		HitRate: rate,
	}
}

// Caches bundles the four process-wide cache namespaces. One instance lives
// in the composition root and is injected into services; tests construct
// fresh instances per test.
type Caches struct {
	// Users maps a platform sender identifier (phone-number-id or chat id)
	// to the owning user id.
	Users *Store[string]
	// Configs maps a platform phone/bot identifier to its PlatformConfig.
	Configs *Store[domain.PlatformConfig]
	// Models maps a config id to the AI model selected for it.
	Models *Store[string]
	// Conversations maps a conversation id to its serialized rolling state.
	Conversations *Store[string]
}

// New constructs all four named caches from configuration.
func New(cfg config.Config) *Caches {
	return &Caches{
		Users:         NewStore[string]("userMappings", cfg.UserCache.Capacity, cfg.UserCache.TTL),
		Configs:       NewStore[domain.PlatformConfig]("platformConfigs", cfg.ConfigCache.Capacity, cfg.ConfigCache.TTL),
		Models:        NewStore[string]("modelSelection", cfg.ModelCache.Capacity, cfg.ModelCache.TTL),
		Conversations: NewStore[string]("conversationState", cfg.ConversationCache.Capacity, cfg.ConversationCache.TTL),
	}
}

// GetStats returns snapshots for every namespace, keyed by cache name.
func (c *Caches) GetStats() map[string]Stats {
	out := make(map[string]Stats, 4)
	for _, s := range []Stats{
		c.Users.GetStats(),
		c.Configs.GetStats(),
		c.Models.GetStats(),
		c.Conversations.GetStats(),
	} {
		out[s.Name] = s
	}
	return out
}
