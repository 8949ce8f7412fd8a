package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// EventDedup is a short-lived deduplication cache that prevents the same log
// line from entering the live window twice (e.g., when a relay forwards a
// message the origin host already sent, or the syslog listener and the API
// both receive the same line). Uses a hash of (source + severity + message
// prefix + originating process) with a configurable TTL.
type EventDedup struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
}

// NewEventDedup creates a dedup cache. TTL controls how long a hash is
// remembered. maxSize caps memory usage by evicting oldest entries.
func NewEventDedup(ttl time.Duration, maxSize int) *EventDedup {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 50000
	}
	d := &EventDedup{
		seen:    make(map[string]time.Time, maxSize/2),
		ttl:     ttl,
		maxSize: maxSize,
	}
	return d
}

// IsDuplicate returns true if this event was seen within the TTL window.
// If not a duplicate, it records the event hash. Event IDs and timestamps
// are excluded from the fingerprint: two deliveries of the same line get
// fresh IDs and near-identical but unequal receive times.
func (d *EventDedup) IsDuplicate(event Event) bool {
	hash := d.hash(event)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()

	// Check if seen and still within TTL
	if seenAt, ok := d.seen[hash]; ok {
		if now.Sub(seenAt) < d.ttl {
			return true
		}
	}

	// Record and evict if over capacity
	d.seen[hash] = now
	if len(d.seen) > d.maxSize {
		d.evictLocked(now)
	}

	return false
}

// hash produces a compact fingerprint of the event. Source + severity +
// first 256 bytes of the message + originating process catches duplicate
// log lines without being too expensive.
func (d *EventDedup) hash(event Event) string {
	h := sha256.New()
	h.Write([]byte(event.Source))
	h.Write([]byte{0})
	h.Write([]byte{byte(event.Severity)})
	h.Write([]byte{0})

	msg := event.Message
	if len(msg) > 256 {
		msg = msg[:256]
	}
	h.Write([]byte(msg))
	h.Write([]byte{0})

	if proc, ok := event.Attrs["process"]; ok {
		h.Write([]byte(proc))
	}

	return hex.EncodeToString(h.Sum(nil)[:16]) // 128-bit hash is plenty
}

// evictLocked removes entries older than TTL. Called when cache exceeds maxSize.
func (d *EventDedup) evictLocked(now time.Time) {
	for k, t := range d.seen {
		if now.Sub(t) >= d.ttl {
			delete(d.seen, k)
		}
	}
	// If still over capacity after TTL eviction, drop oldest half
	if len(d.seen) > d.maxSize {
		count := 0
		target := len(d.seen) / 2
		for k := range d.seen {
			delete(d.seen, k)
			count++
			if count >= target {
				break
			}
		}
	}
}

// StartCleanup runs a background goroutine that periodically evicts expired
// entries. Call the returned function to stop it.
func (d *EventDedup) StartCleanup(interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				d.mu.Lock()
				now := time.Now()
				for k, t := range d.seen {
					if now.Sub(t) >= d.ttl {
						delete(d.seen, k)
					}
				}
				d.mu.Unlock()
			}
		}
	}()
	return func() { close(done) }
}

// Size returns the current number of entries in the cache.
func (d *EventDedup) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
