package ingest

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/rs/zerolog"
)

func testParser() *Parser {
	return NewParser(zerolog.Nop())
}

func TestParseJSONLines(t *testing.T) {
	input := strings.Join([]string{
		`{"timestamp": "2024-01-15 10:05:00", "level": "WARNING", "source": "vpn-gw", "message": "failed login for admin"}`,
		``,
		`{"@timestamp": "2024-01-15T10:04:00Z", "severity": "high", "host": "plc-7", "msg": "setpoint change on unit 3"}`,
	}, "\n")

	events, skipped, err := testParser().ParseJSONLines(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseJSONLines: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	// Sorted chronologically: the plc-7 record is one minute earlier.
	if events[0].Source != "plc-7" {
		t.Errorf("first event source = %q, want plc-7", events[0].Source)
	}
	if events[0].Severity != core.SeverityHigh {
		t.Errorf("severity = %v, want High", events[0].Severity)
	}
	if events[1].Severity != core.SeverityMedium {
		t.Errorf("severity = %v, want Medium (WARNING)", events[1].Severity)
	}
	if events[1].Message != "failed login for admin" {
		t.Errorf("message = %q", events[1].Message)
	}
	want := time.Date(2024, 1, 15, 10, 4, 0, 0, time.UTC)
	if !events[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", events[0].Timestamp, want)
	}
}

func TestParseJSONLinesSkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		`{not valid json`,
		`{"timestamp": "2024-01-15 10:00:00", "message": "ok"}`,
		`{"timestamp": "garbage", "message": "bad time"}`,
		`{"timestamp": "2024-01-15 10:01:00", "level": "INFO"}`,
	}, "\n")

	events, skipped, err := testParser().ParseJSONLines(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseJSONLines: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if skipped != 3 {
		t.Errorf("skipped = %d, want 3", skipped)
	}
	if events[0].Message != "ok" {
		t.Errorf("kept wrong event: %q", events[0].Message)
	}
}

func TestParseJSONLinesUnixTimestamps(t *testing.T) {
	input := `{"ts": 1705312800, "message": "seconds"}` + "\n" +
		`{"ts": 1705312800500, "message": "millis"}`

	events, skipped, err := testParser().ParseJSONLines(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseJSONLines: %v", err)
	}
	if skipped != 0 || len(events) != 2 {
		t.Fatalf("got %d events (%d skipped), want 2 (0 skipped)", len(events), skipped)
	}
	want := time.Unix(1705312800, 0).UTC()
	if !events[0].Timestamp.Equal(want) {
		t.Errorf("seconds timestamp = %v, want %v", events[0].Timestamp, want)
	}
	if !events[1].Timestamp.Equal(want.Add(500 * time.Millisecond)) {
		t.Errorf("millis timestamp = %v", events[1].Timestamp)
	}
}

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		`Timestamp,Severity,Host,Message`,
		`2024-01-15 10:00:00,ERROR,scada-hmi,unauthorized parameter modification`,
		`2024-01-15 10:01:00,INFO,scada-hmi,heartbeat ok`,
	}, "\n")

	events, skipped, err := testParser().ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Severity != core.SeverityHigh {
		t.Errorf("ERROR mapped to %v, want High", events[0].Severity)
	}
	if events[0].Source != "scada-hmi" {
		t.Errorf("source = %q", events[0].Source)
	}
}

func TestParseCSVMissingMessage(t *testing.T) {
	input := "timestamp,message\n2024-01-15 10:00:00,\n2024-01-15 10:01:00,fine"

	events, skipped, err := testParser().ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(events) != 1 || skipped != 1 {
		t.Fatalf("got %d events (%d skipped), want 1 (1 skipped)", len(events), skipped)
	}
}

func TestParsePlainTextSyslog(t *testing.T) {
	input := strings.Join([]string{
		"Jan 15 10:00:00 vpn-gw sshd[4412]: Failed password for admin from 203.0.113.50 port 22",
		"just some unstructured ERROR text",
	}, "\n")

	events, skipped, err := testParser().ParsePlainText(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParsePlainText: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	var syslogEv, plainEv core.Event
	for _, ev := range events {
		if ev.Source == "vpn-gw" {
			syslogEv = ev
		} else {
			plainEv = ev
		}
	}
	if syslogEv.Attrs["process"] != "sshd" {
		t.Errorf("process attr = %q, want sshd", syslogEv.Attrs["process"])
	}
	if syslogEv.Timestamp.Year() != time.Now().Year() {
		t.Errorf("syslog timestamp year = %d, want current year", syslogEv.Timestamp.Year())
	}
	if !strings.HasPrefix(syslogEv.Message, "Failed password") {
		t.Errorf("message = %q", syslogEv.Message)
	}
	if plainEv.Severity != core.SeverityHigh {
		t.Errorf("ERROR in plain line mapped to %v, want High", plainEv.Severity)
	}
	if plainEv.Source != "unknown" {
		t.Errorf("plain line source = %q, want unknown", plainEv.Source)
	}
}

func TestNormalizeErrorType(t *testing.T) {
	_, err := testParser().normalize(map[string]any{"timestamp": "2024-01-15 10:00:00"}, 7)
	var malformed *core.MalformedEventError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedEventError", err)
	}
	if malformed.Line != 7 {
		t.Errorf("line = %d, want 7", malformed.Line)
	}
}

func TestParseFileByExtension(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/audit.jsonl"
	content := `{"timestamp": "2024-01-15 10:00:00", "message": "hello"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	events, skipped, err := testParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(events) != 1 || skipped != 0 {
		t.Fatalf("got %d events (%d skipped), want 1 (0 skipped)", len(events), skipped)
	}
}
