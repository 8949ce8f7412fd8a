package core

import (
	"fmt"
	"testing"
	"time"
)

func dedupEvent(source, message string, sev Severity) Event {
	ev := NewEvent(time.Now(), sev, source, message)
	return ev
}

func TestEventDedup_NewEvent_NotDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	if d.IsDuplicate(dedupEvent("vpn-gw", "Failed password for admin", SeverityHigh)) {
		t.Error("first event should not be a duplicate")
	}
}

func TestEventDedup_SameLine_IsDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	// Two deliveries of the same line carry distinct IDs and timestamps
	d.IsDuplicate(dedupEvent("vpn-gw", "Failed password for admin", SeverityHigh))
	if !d.IsDuplicate(dedupEvent("vpn-gw", "Failed password for admin", SeverityHigh)) {
		t.Error("identical log line should be a duplicate")
	}
}

func TestEventDedup_DifferentSource_NotDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	d.IsDuplicate(dedupEvent("vpn-gw", "Failed password for admin", SeverityHigh))
	if d.IsDuplicate(dedupEvent("web-01", "Failed password for admin", SeverityHigh)) {
		t.Error("different source should not be a duplicate")
	}
}

func TestEventDedup_DifferentMessage_NotDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	d.IsDuplicate(dedupEvent("vpn-gw", "Failed password for admin", SeverityHigh))
	if d.IsDuplicate(dedupEvent("vpn-gw", "Failed password for root", SeverityHigh)) {
		t.Error("different message should not be a duplicate")
	}
}

func TestEventDedup_DifferentSeverity_NotDuplicate(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	d.IsDuplicate(dedupEvent("vpn-gw", "session opened", SeverityInfo))
	if d.IsDuplicate(dedupEvent("vpn-gw", "session opened", SeverityHigh)) {
		t.Error("different severity should not be a duplicate")
	}
}

func TestEventDedup_ProcessIncludedInHash(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	a := dedupEvent("vpn-gw", "session opened", SeverityInfo)
	a.Attrs = map[string]string{"process": "sshd"}
	b := dedupEvent("vpn-gw", "session opened", SeverityInfo)
	b.Attrs = map[string]string{"process": "sudo"}
	d.IsDuplicate(a)
	if d.IsDuplicate(b) {
		t.Error("different originating process should produce different hashes")
	}
}

func TestEventDedup_TTLExpiry(t *testing.T) {
	d := NewEventDedup(50*time.Millisecond, 1000)
	d.IsDuplicate(dedupEvent("vpn-gw", "Failed password", SeverityHigh))
	time.Sleep(100 * time.Millisecond)
	if d.IsDuplicate(dedupEvent("vpn-gw", "Failed password", SeverityHigh)) {
		t.Error("event should not be duplicate after TTL expiry")
	}
}

func TestEventDedup_MaxSizeEviction(t *testing.T) {
	d := NewEventDedup(10*time.Second, 10)
	// Fill beyond capacity
	for i := 0; i < 20; i++ {
		d.IsDuplicate(dedupEvent("host", fmt.Sprintf("line %d", i), SeverityInfo))
	}
	// Size should be capped
	if d.Size() > 15 { // some slack for eviction timing
		t.Errorf("cache size %d exceeds expected cap", d.Size())
	}
}

func TestEventDedup_StartCleanup(t *testing.T) {
	d := NewEventDedup(50*time.Millisecond, 1000)
	d.IsDuplicate(dedupEvent("host", "line", SeverityInfo))
	if d.Size() != 1 {
		t.Fatalf("expected size 1, got %d", d.Size())
	}

	stop := d.StartCleanup(50 * time.Millisecond)
	defer stop()

	time.Sleep(200 * time.Millisecond)
	if d.Size() != 0 {
		t.Errorf("expected size 0 after cleanup, got %d", d.Size())
	}
}

func TestEventDedup_Size(t *testing.T) {
	d := NewEventDedup(5*time.Second, 1000)
	if d.Size() != 0 {
		t.Errorf("expected size 0, got %d", d.Size())
	}
	d.IsDuplicate(dedupEvent("a", "x", SeverityInfo))
	d.IsDuplicate(dedupEvent("b", "y", SeverityInfo))
	if d.Size() != 2 {
		t.Errorf("expected size 2, got %d", d.Size())
	}
}
