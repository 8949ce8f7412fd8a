package ingest

import (
	"testing"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/rs/zerolog"
)

func TestParseSyslogRFC5424(t *testing.T) {
	raw := `<134>1 2025-06-15T10:30:00Z myhost myapp 1234 ID47 This is a test message`
	msg := parseSyslog(raw)
	if msg == nil {
		t.Fatal("expected non-nil message for RFC 5424 input")
	}
	// PRI 134 = facility 16 (local0), severity 6 (informational)
	if msg.Facility != 16 {
		t.Errorf("Facility = %d, want 16", msg.Facility)
	}
	if msg.Severity != 6 {
		t.Errorf("Severity = %d, want 6", msg.Severity)
	}
	if msg.Hostname != "myhost" {
		t.Errorf("Hostname = %q, want myhost", msg.Hostname)
	}
	if msg.AppName != "myapp" {
		t.Errorf("AppName = %q, want myapp", msg.AppName)
	}
	if msg.ProcID != "1234" {
		t.Errorf("ProcID = %q, want 1234", msg.ProcID)
	}
	if msg.Timestamp == nil {
		t.Error("expected non-nil Timestamp")
	}
}

func TestParseSyslogRFC3164(t *testing.T) {
	raw := `<38>Jun 15 10:30:00 vpn-gw sshd[1234]: Failed password for root from 1.2.3.4 port 22`
	msg := parseSyslog(raw)
	if msg == nil {
		t.Fatal("expected non-nil message for RFC 3164 input")
	}
	// PRI 38 = facility 4 (auth), severity 6 (informational)
	if msg.Facility != 4 {
		t.Errorf("Facility = %d, want 4", msg.Facility)
	}
	if msg.Hostname != "vpn-gw" {
		t.Errorf("Hostname = %q, want vpn-gw", msg.Hostname)
	}
	if msg.AppName != "sshd" {
		t.Errorf("AppName = %q, want sshd", msg.AppName)
	}
	if msg.ProcID != "1234" {
		t.Errorf("ProcID = %q, want 1234", msg.ProcID)
	}
	if msg.Message != "Failed password for root from 1.2.3.4 port 22" {
		t.Errorf("Message = %q", msg.Message)
	}
}

func TestParseSyslogBarePriority(t *testing.T) {
	raw := `<13>Some bare message without timestamp`
	msg := parseSyslog(raw)
	if msg == nil {
		t.Fatal("expected non-nil message for bare priority input")
	}
	// PRI 13 = facility 1 (user), severity 5 (notice)
	if msg.Facility != 1 {
		t.Errorf("Facility = %d, want 1", msg.Facility)
	}
	if msg.Severity != 5 {
		t.Errorf("Severity = %d, want 5", msg.Severity)
	}
	if msg.Message != "Some bare message without timestamp" {
		t.Errorf("Message = %q", msg.Message)
	}
}

func TestParseSyslogEmpty(t *testing.T) {
	if parseSyslog("") != nil {
		t.Error("expected nil for empty input")
	}
	if parseSyslog("   ") != nil {
		t.Error("expected nil for whitespace-only input")
	}
}

func TestParseSyslogUnparseable(t *testing.T) {
	// No angle brackets = no PRI = nil
	if parseSyslog("just some random text") != nil {
		t.Error("expected nil for unparseable input")
	}
}

func TestSyslogSeverityToCore(t *testing.T) {
	tests := []struct {
		syslogSev int
		want      core.Severity
	}{
		{0, core.SeverityCritical}, // emergency
		{1, core.SeverityCritical}, // alert
		{2, core.SeverityHigh},     // critical
		{3, core.SeverityHigh},     // error
		{4, core.SeverityMedium},   // warning
		{5, core.SeverityLow},      // notice
		{6, core.SeverityInfo},     // informational
		{7, core.SeverityInfo},     // debug
	}
	for _, tc := range tests {
		got := syslogSeverityToCore(tc.syslogSev)
		if got != tc.want {
			t.Errorf("syslogSeverityToCore(%d) = %v, want %v", tc.syslogSev, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if truncate("hello", 10) != "hello" {
		t.Error("short string should not be truncated")
	}
	if truncate("hello world", 5) != "hello..." {
		t.Errorf("truncate = %q, want %q", truncate("hello world", 5), "hello...")
	}
	if truncate("", 5) != "" {
		t.Error("empty string should stay empty")
	}
}

func TestNewSyslogServer(t *testing.T) {
	cfg := &core.SyslogConfig{
		Enabled:  true,
		Protocol: "udp",
		Host:     "127.0.0.1",
		Port:     1514,
	}
	s := NewSyslogServer(cfg, nil, zerolog.Nop())
	if s == nil {
		t.Fatal("expected non-nil SyslogServer")
	}
	if s.cfg != cfg {
		t.Error("cfg not stored correctly")
	}
}

func TestSyslogServerStopWithoutStart(t *testing.T) {
	cfg := &core.SyslogConfig{
		Enabled:  true,
		Protocol: "udp",
		Host:     "127.0.0.1",
		Port:     1514,
	}
	s := NewSyslogServer(cfg, nil, zerolog.Nop())
	// Should not panic
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() without Start() should not error: %v", err)
	}
}
