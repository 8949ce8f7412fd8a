// ----------------------------------------------------------------------------
// parser.go — log file parsing into normalized events (JSONL, CSV, plain text)
// ----------------------------------------------------------------------------

package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/rs/zerolog"
)

// Parser reads log files in several common formats and normalizes each record
// into a core.Event. Malformed records are skipped and counted rather than
// aborting the whole file.
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a log parser.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{
		logger: logger.With().Str("component", "parser").Logger(),
	}
}

// timestampLayouts are tried in order when parsing string timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999Z07:00",
	"02/Jan/2006:15:04:05",
	"Jan _2 15:04:05",
	"2006-01-02",
}

// Field aliases accepted for each normalized column.
var (
	timestampKeys = []string{"timestamp", "time", "@timestamp", "ts"}
	levelKeys     = []string{"level", "severity", "log_level"}
	sourceKeys    = []string{"source", "host", "hostname"}
	messageKeys   = []string{"message", "msg", "raw_text"}
)

// syslogLineRe matches BSD-style syslog lines: "Jan  2 15:04:05 host proc[pid]: msg".
var syslogLineRe = regexp.MustCompile(
	`^(?P<timestamp>\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+` +
		`(?P<host>\S+)\s+` +
		`(?P<process>\S+?)(\[(?P<pid>\d+)\])?:\s+` +
		`(?P<message>.+)$`)

// logLevelRe picks log levels out of unstructured text.
var logLevelRe = regexp.MustCompile(`(?i)\b(DEBUG|INFO|WARN|WARNING|ERROR|CRITICAL|FATAL)\b`)

// ParseFile parses a log file, choosing the format from its extension
// (.csv, .json/.jsonl/.ndjson, anything else as plain text). It returns the
// parsed events and the number of malformed records skipped.
func (p *Parser) ParseFile(path string) ([]core.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return p.ParseCSV(f)
	case ".json", ".jsonl", ".ndjson":
		return p.ParseJSONLines(f)
	default:
		return p.ParsePlainText(f)
	}
}

// ParseJSONLines parses newline-delimited JSON records.
func (p *Parser) ParseJSONLines(r io.Reader) ([]core.Event, int, error) {
	var events []core.Event
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			p.skip(line, "invalid JSON")
			skipped++
			continue
		}

		ev, err := p.normalize(raw, line)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, skipped, fmt.Errorf("reading JSON lines: %w", err)
	}

	core.SortEvents(events)
	return events, skipped, nil
}

// ParseCSV parses a CSV file whose header row names the columns. Header names
// are matched case-insensitively against the field aliases.
func (p *Parser) ParseCSV(r io.Reader) ([]core.Event, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var events []core.Event
	skipped := 0
	line := 1

	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.skip(line, "malformed CSV row")
			skipped++
			continue
		}

		raw := make(map[string]any, len(header))
		for i, col := range record {
			if i < len(header) && header[i] != "" {
				raw[header[i]] = col
			}
		}

		ev, nerr := p.normalize(raw, line)
		if nerr != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}

	core.SortEvents(events)
	return events, skipped, nil
}

// ParsePlainText parses unstructured log lines. Syslog-shaped lines yield
// timestamp, host, and process fields; anything else becomes a bare message
// stamped with the current time.
func (p *Parser) ParsePlainText(r io.Reader) ([]core.Event, int, error) {
	var events []core.Event
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		raw := map[string]any{}
		if m := syslogLineRe.FindStringSubmatch(text); m != nil {
			raw["timestamp"] = m[syslogLineRe.SubexpIndex("timestamp")]
			raw["source"] = m[syslogLineRe.SubexpIndex("host")]
			raw["process"] = m[syslogLineRe.SubexpIndex("process")]
			raw["message"] = m[syslogLineRe.SubexpIndex("message")]
		} else {
			raw["message"] = text
		}

		if lm := logLevelRe.FindStringSubmatch(text); lm != nil {
			raw["level"] = strings.ToUpper(lm[1])
		}

		ev, err := p.normalize(raw, line)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, skipped, fmt.Errorf("reading plain text: %w", err)
	}

	core.SortEvents(events)
	return events, skipped, nil
}

// normalize maps a raw record onto a core.Event using the field aliases.
// Records with no message are malformed; records with no parseable timestamp
// get the current time.
func (p *Parser) normalize(raw map[string]any, line int) (core.Event, error) {
	msg := firstString(raw, messageKeys)
	if msg == "" {
		p.skip(line, "missing message field")
		return core.Event{}, &core.MalformedEventError{Line: line, Reason: "missing message field"}
	}

	source := firstString(raw, sourceKeys)
	if source == "" {
		source = "unknown"
	}

	ts := time.Now().UTC()
	if tsRaw := firstValue(raw, timestampKeys); tsRaw != nil {
		parsed, ok := parseTimestamp(tsRaw)
		if !ok {
			p.skip(line, "unparseable timestamp")
			return core.Event{}, &core.MalformedEventError{Line: line, Reason: "unparseable timestamp"}
		}
		ts = parsed.UTC()
	}

	ev := core.NewEvent(ts, core.ParseSeverity(firstString(raw, levelKeys)), source, msg)
	for _, key := range []string{"process", "user", "username", "pid"} {
		if v := asString(raw[key]); v != "" {
			if ev.Attrs == nil {
				ev.Attrs = make(map[string]string)
			}
			ev.Attrs[key] = v
		}
	}

	return ev, nil
}

// parseTimestamp accepts string timestamps in any known layout, plus numeric
// Unix seconds or milliseconds.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		if t > 1e12 {
			return time.UnixMilli(int64(t)), true
		}
		return time.Unix(int64(t), 0), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				// BSD syslog timestamps carry no year; assume the current one.
				if ts.Year() == 0 {
					ts = ts.AddDate(time.Now().Year(), 0, 0)
				}
				return ts, true
			}
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func (p *Parser) skip(line int, reason string) {
	p.logger.Warn().Int("line", line).Str("reason", reason).Msg("skipping malformed record")
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if v := asString(raw[k]); v != "" {
			return v
		}
	}
	return ""
}

func firstValue(raw map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return t.String()
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
