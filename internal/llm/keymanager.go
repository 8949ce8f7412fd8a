package llm

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cooldowns by error class. Rate limits are per-key with Gemini, so
// rotating to a fresh key restores throughput immediately.
const (
	rateLimitCooldown = 60 * time.Second
	quotaCooldown     = 10 * time.Minute
	invalidCooldown   = 24 * time.Hour
)

var rotatablePatterns = []string{
	"resource_exhausted",
	"rate_limit_exceeded",
	"quota",
	"rate limit",
	"too many requests",
	"429",
}

type keyState struct {
	key           string
	healthy       bool
	cooldownUntil time.Time
	errorCount    int
}

// KeyManager rotates across Gemini API keys, sidelining rate-limited keys
// for a cooldown period.
type KeyManager struct {
	mu      sync.Mutex
	keys    []*keyState
	current int
	logger  zerolog.Logger
}

// NewKeyManager loads the usable keys. Empty or implausibly short strings
// are dropped.
func NewKeyManager(keys []string, logger zerolog.Logger) *KeyManager {
	km := &KeyManager{logger: logger.With().Str("component", "key_manager").Logger()}
	seen := make(map[string]bool)
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if len(k) < 10 || seen[k] {
			continue
		}
		seen[k] = true
		km.keys = append(km.keys, &keyState{key: k, healthy: true})
	}
	if len(km.keys) == 0 {
		km.logger.Warn().Msg("no Gemini API keys configured")
	} else {
		km.logger.Info().Int("count", len(km.keys)).Msg("API keys loaded")
	}
	return km
}

// HasKeys reports whether at least one key was loaded.
func (km *KeyManager) HasKeys() bool { return len(km.keys) > 0 }

// TotalCount returns the number of loaded keys.
func (km *KeyManager) TotalCount() int { return len(km.keys) }

// CurrentKey returns a healthy key, or "" if all are cooling down.
func (km *KeyManager) CurrentKey() string {
	km.mu.Lock()
	defer km.mu.Unlock()
	km.restoreExpired()

	if km.current < len(km.keys) && km.keys[km.current].healthy {
		return km.keys[km.current].key
	}
	for i, ks := range km.keys {
		if ks.healthy {
			km.current = i
			return ks.key
		}
	}
	return ""
}

// Rotate sidelines the current key with a cooldown inferred from the error
// text and switches to the next healthy key. Returns "" when every key is
// exhausted.
func (km *KeyManager) Rotate(errMsg string) string {
	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.keys) == 0 {
		return ""
	}

	cur := km.keys[km.current]
	if cur.healthy {
		cooldown := rateLimitCooldown
		lower := strings.ToLower(errMsg)
		if strings.Contains(lower, "quota") {
			cooldown = quotaCooldown
		} else if strings.Contains(lower, "invalid") {
			cooldown = invalidCooldown
		}
		cur.healthy = false
		cur.cooldownUntil = time.Now().Add(cooldown)
		cur.errorCount++
		km.logger.Warn().
			Int("key_index", km.current+1).
			Str("cooldown", cooldown.String()).
			Msg("key rate limited, rotating")
	}

	km.restoreExpired()
	for i := 0; i < len(km.keys); i++ {
		candidate := (km.current + 1 + i) % len(km.keys)
		if km.keys[candidate].healthy {
			km.current = candidate
			return km.keys[candidate].key
		}
	}
	return ""
}

// HealthyCount returns the number of keys currently usable.
func (km *KeyManager) HealthyCount() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	km.restoreExpired()
	n := 0
	for _, ks := range km.keys {
		if ks.healthy {
			n++
		}
	}
	return n
}

// restoreExpired revives keys whose cooldown elapsed. Caller holds mu.
func (km *KeyManager) restoreExpired() {
	now := time.Now()
	for i, ks := range km.keys {
		if !ks.healthy && !ks.cooldownUntil.IsZero() && now.After(ks.cooldownUntil) {
			ks.healthy = true
			ks.cooldownUntil = time.Time{}
			km.logger.Info().Int("key_index", i+1).Msg("key cooldown expired, restored")
		}
	}
}

// isRotatable reports whether the error indicates a per-key rate limit that
// a different key can bypass. 503 is model overload, not key-specific.
func isRotatable(statusCode int, errMsg string) bool {
	if statusCode == 429 {
		return true
	}
	if statusCode == 503 {
		return false
	}
	lower := strings.ToLower(errMsg)
	for _, p := range rotatablePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
