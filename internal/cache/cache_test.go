package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/positonic/go-message-gateway/internal/config"
	"github.com/positonic/go-message-gateway/internal/domain"
)

func testConfig() config.Config {
	cfg, _ := config.Load()
	return cfg
}

func TestStore_SetGetInvalidate(t *testing.T) {
	s := NewStore[string]("test", 100, time.Minute)

	_, ok := s.Get("u1")
	assert.False(t, ok, "empty store must miss")

	s.Set("u1", "user-123")
	got, ok := s.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "user-123", got)

	s.Invalidate("u1")
	_, ok = s.Get("u1")
	assert.False(t, ok, "invalidated key must miss")
}

func TestStore_TTLExpiry(t *testing.T) {
	s := NewStore[string]("ttl", 100, time.Minute)

	s.SetTTL("k", "v", 50*time.Millisecond)
	_, ok := s.Get("k")
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry must expire after its TTL")
}

func TestStore_StatsCountHitsAndMisses(t *testing.T) {
	s := NewStore[string]("stats", 100, time.Minute)

	s.Set("a", "1")
	_, _ = s.Get("a")     // hit
	_, _ = s.Get("nope")  // miss
	_, _ = s.Get("nope2") // miss

	st := s.GetStats()
	assert.Equal(t, "stats", st.Name)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.InDelta(t, 1.0/3.0, st.HitRate, 0.001)
}

func TestCaches_FourIndependentNamespaces(t *testing.T) {
	c := New(testConfig())

	c.Users.Set("phone-1", "user-1")
	c.Configs.Set("phone-1", domain.PlatformConfig{ID: "cfg-1", PhoneID: "phone-1"})
	c.Models.Set("cfg-1", "claude-sonnet")
	c.Conversations.Set("conv-1", `{"turns":3}`)

	// Invalidation in one namespace must not leak into another.
	c.Users.Invalidate("phone-1")
	_, ok := c.Users.Get("phone-1")
	assert.False(t, ok)

	cfg, ok := c.Configs.Get("phone-1")
	require.True(t, ok)
	assert.Equal(t, "cfg-1", cfg.ID)

	stats := c.GetStats()
	require.Len(t, stats, 4)
	for _, name := range []string{"userMappings", "platformConfigs", "modelSelection", "conversationState"} {
		_, ok := stats[name]
		assert.True(t, ok, "missing stats for %s", name)
	}
}
