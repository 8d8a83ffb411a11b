package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultCache(t *testing.T) {
	t.Run("get and set round-trip", func(t *testing.T) {
		cache := NewResultCache(DefaultPolicy())

		_, hit := cache.Get(Key("get_sap_account", map[string]any{"email": "a@b.c"}))
		assert.False(t, hit)

		cache.Set(Key("get_sap_account", map[string]any{"email": "a@b.c"}), "SHUBENKOVV")

		result, hit := cache.Get(Key("get_sap_account", map[string]any{"email": "a@b.c"}))
		assert.True(t, hit)
		assert.Equal(t, "SHUBENKOVV", result)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("disabled policy never stores or serves", func(t *testing.T) {
		cache := NewResultCache(Policy{Enabled: false})

		cache.Set("k", "v")
		_, hit := cache.Get("k")
		assert.False(t, hit)
		assert.False(t, cache.Cacheable("any_tool"))
	})

	t.Run("excluded tools are not cacheable", func(t *testing.T) {
		cache := NewResultCache(Policy{Enabled: true, ExcludeTools: []string{"reset_sap_password"}})

		assert.False(t, cache.Cacheable("reset_sap_password"))
		assert.True(t, cache.Cacheable("get_sap_account"))
	})

	t.Run("expired entries miss", func(t *testing.T) {
		cache := NewResultCache(Policy{Enabled: true, TTL: time.Nanosecond})

		cache.Set("k", "v")
		time.Sleep(time.Millisecond)

		_, hit := cache.Get("k")
		assert.False(t, hit)
	})
}

func TestKey(t *testing.T) {
	t.Run("argument order does not matter", func(t *testing.T) {
		a := Key("t", map[string]any{"x": 1.0, "y": "z"})
		b := Key("t", map[string]any{"y": "z", "x": 1.0})
		assert.Equal(t, a, b)
	})

	t.Run("nil and empty arguments are equivalent", func(t *testing.T) {
		assert.Equal(t, Key("t", nil), Key("t", map[string]any{}))
	})

	t.Run("different tools never collide", func(t *testing.T) {
		assert.NotEqual(t, Key("a", map[string]any{}), Key("b", map[string]any{}))
	})

	t.Run("different arguments never collide", func(t *testing.T) {
		assert.NotEqual(t,
			Key("t", map[string]any{"email": "a@b.c"}),
			Key("t", map[string]any{"email": "d@e.f"}),
		)
	})
}
