package core

import (
	"sync"
)

// EventRingBuffer is a fixed-size ring buffer of recently ingested events.
// The serve loop feeds it from the bus so analysis requests without an
// explicit event set can run against the live window.
type EventRingBuffer struct {
	mu      sync.RWMutex
	events  []Event
	maxSize int
	pos     int
	full    bool
}

// NewEventRingBuffer creates a ring buffer that holds up to maxSize events.
func NewEventRingBuffer(maxSize int) *EventRingBuffer {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &EventRingBuffer{
		events:  make([]Event, maxSize),
		maxSize: maxSize,
	}
}

// Append adds an event, evicting the oldest when full.
func (b *EventRingBuffer) Append(ev Event) {
	b.mu.Lock()
	b.events[b.pos] = ev
	b.pos = (b.pos + 1) % b.maxSize
	if b.pos == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// Recent returns the most recent n events in insertion order.
func (b *EventRingBuffer) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total int
	if b.full {
		total = b.maxSize
	} else {
		total = b.pos
	}

	if n > total || n <= 0 {
		n = total
	}
	if n == 0 {
		return []Event{}
	}

	result := make([]Event, n)
	start := b.pos - n
	if start < 0 {
		start += b.maxSize
	}
	for i := 0; i < n; i++ {
		idx := (start + i) % b.maxSize
		result[i] = b.events[idx]
	}
	return result
}

// Len returns the number of buffered events.
func (b *EventRingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return b.maxSize
	}
	return b.pos
}
