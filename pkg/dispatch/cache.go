package dispatch

import (
	"encoding/json"
	"sync"
	"time"
)

// Policy controls tool result caching. The cache is process-wide and shared
// across sessions; that is only safe while every catalog tool is a pure
// read, so the policy is explicit configuration rather than a built-in
// assumption.
type Policy struct {
	// Enabled turns result caching on. Disabled means every request goes
	// to the remote tool.
	Enabled bool
	// TTL bounds entry lifetime. Zero means entries live for the process
	// lifetime.
	TTL time.Duration
	// ExcludeTools lists tools that must never be cached (side-effecting
	// tools).
	ExcludeTools []string
}

// DefaultPolicy caches everything for the process lifetime.
func DefaultPolicy() Policy {
	return Policy{Enabled: true}
}

type cacheEntry struct {
	result    string
	timestamp time.Time
}

// ResultCache maps canonical invocation keys to result text. A hit is
// indistinguishable from a fresh invocation; errors are never stored.
type ResultCache struct {
	entries map[string]*cacheEntry
	policy  Policy
	exclude map[string]struct{}
	mu      sync.RWMutex
}

// NewResultCache creates a cache with the given policy.
func NewResultCache(policy Policy) *ResultCache {
	exclude := make(map[string]struct{}, len(policy.ExcludeTools))
	for _, tool := range policy.ExcludeTools {
		exclude[tool] = struct{}{}
	}

	return &ResultCache{
		entries: make(map[string]*cacheEntry),
		policy:  policy,
		exclude: exclude,
	}
}

// Cacheable reports whether results for the tool may be cached at all.
func (rc *ResultCache) Cacheable(tool string) bool {
	if !rc.policy.Enabled {
		return false
	}
	_, excluded := rc.exclude[tool]
	return !excluded
}

// Get retrieves a cached result if present and not expired.
func (rc *ResultCache) Get(key string) (string, bool) {
	if !rc.policy.Enabled {
		return "", false
	}

	rc.mu.RLock()
	defer rc.mu.RUnlock()

	entry, exists := rc.entries[key]
	if !exists {
		return "", false
	}

	if rc.policy.TTL > 0 && time.Since(entry.timestamp) > rc.policy.TTL {
		return "", false
	}

	return entry.result, true
}

// Set stores a result.
func (rc *ResultCache) Set(key, result string) {
	if !rc.policy.Enabled {
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.entries[key] = &cacheEntry{
		result:    result,
		timestamp: time.Now(),
	}
}

// Size returns the number of entries in the cache.
func (rc *ResultCache) Size() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.entries)
}

// Key builds the canonical invocation identity for a tool call.
// encoding/json sorts map keys, so equal argument sets always produce the
// same key regardless of the order the model emitted them in.
func Key(tool string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		// Unmarshalable arguments never hit the cache path; fall back to
		// a key that cannot collide with a real one.
		return tool + "\x00?"
	}
	return tool + "\x00" + string(data)
}
