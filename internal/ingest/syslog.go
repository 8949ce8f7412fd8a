// ----------------------------------------------------------------------------
// syslog.go — live syslog ingestion (RFC 5424 / RFC 3164) over UDP and TCP
// ----------------------------------------------------------------------------

package ingest

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/rs/zerolog"
)

// SyslogServer listens for syslog messages over UDP and/or TCP, normalizes
// them into core.Events, and publishes them to the NATS event bus. Events
// published here land in the SENTINEL_EVENTS stream, where the serve loop
// picks them up for the live retrieval index.
type SyslogServer struct {
	cfg    *core.SyslogConfig
	bus    *core.EventBus
	dedup  *core.EventDedup
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	udpConn     *net.UDPConn
	tcpLn       net.Listener
	stopCleanup func()
}

// NewSyslogServer creates a syslog ingestion server.
func NewSyslogServer(cfg *core.SyslogConfig, bus *core.EventBus, logger zerolog.Logger) *SyslogServer {
	return &SyslogServer{
		cfg:    cfg,
		bus:    bus,
		dedup:  core.NewEventDedup(30*time.Second, 50000),
		logger: logger.With().Str("component", "syslog_ingest").Logger(),
	}
}

// Start begins listening for syslog messages.
func (s *SyslogServer) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	proto := strings.ToLower(s.cfg.Protocol)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	if proto == "udp" || proto == "both" {
		if err := s.startUDP(addr); err != nil {
			return fmt.Errorf("starting syslog UDP listener: %w", err)
		}
	}

	if proto == "tcp" || proto == "both" {
		if err := s.startTCP(addr); err != nil {
			return fmt.Errorf("starting syslog TCP listener: %w", err)
		}
	}

	s.stopCleanup = s.dedup.StartCleanup(time.Minute)

	s.logger.Info().Str("addr", addr).Str("protocol", proto).Msg("syslog ingestion started")
	return nil
}

// Stop shuts down the syslog server.
func (s *SyslogServer) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.udpConn != nil {
		s.udpConn.Close()
	}
	if s.tcpLn != nil {
		s.tcpLn.Close()
	}
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	s.logger.Info().Msg("syslog ingestion stopped")
	return nil
}

func (s *SyslogServer) startUDP(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolving UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening on UDP %s: %w", addr, err)
	}
	s.udpConn = conn

	go func() {
		buf := make([]byte, 65536)
		for {
			select {
			case <-s.ctx.Done():
				return
			default:
			}

			s.udpConn.SetReadDeadline(time.Now().Add(1 * time.Second))
			n, remoteAddr, err := s.udpConn.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Error().Err(err).Msg("UDP read error")
				continue
			}

			relay := ""
			if remoteAddr != nil {
				relay = remoteAddr.IP.String()
			}
			s.processMessage(string(buf[:n]), relay)
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("syslog UDP listener started")
	return nil
}

func (s *SyslogServer) startTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on TCP %s: %w", addr, err)
	}
	s.tcpLn = ln

	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			default:
			}

			conn, err := ln.Accept()
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Error().Err(err).Msg("TCP accept error")
				continue
			}

			go s.handleTCPConn(conn)
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("syslog TCP listener started")
	return nil
}

func (s *SyslogServer) handleTCPConn(conn net.Conn) {
	defer conn.Close()

	relay := ""
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		relay = addr.IP.String()
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 65536), 65536)

	for scanner.Scan() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		s.processMessage(scanner.Text(), relay)
	}

	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		s.logger.Debug().Err(err).Str("remote", relay).Msg("TCP connection read error")
	}
}

// processMessage normalizes a raw syslog line and publishes it to the bus.
func (s *SyslogServer) processMessage(raw string, relay string) {
	parsed := parseSyslog(raw)
	if parsed == nil {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		s.logger.Debug().Str("raw", truncate(trimmed, 200)).Msg("unparseable syslog message, forwarding as raw event")
		parsed = &syslogMessage{
			Severity: 6, // informational
			Facility: 1, // user
			Message:  trimmed,
		}
	}

	ts := time.Now().UTC()
	if parsed.Timestamp != nil {
		ts = parsed.Timestamp.UTC()
	}

	source := parsed.Hostname
	if source == "" {
		source = relay
	}
	if source == "" {
		source = "syslog"
	}

	event := core.NewEvent(ts, syslogSeverityToCore(parsed.Severity), source, parsed.Message)
	event.Attrs = map[string]string{
		"facility": strconv.Itoa(parsed.Facility),
	}
	if parsed.AppName != "" {
		event.Attrs["process"] = parsed.AppName
	}
	if parsed.ProcID != "" {
		event.Attrs["pid"] = parsed.ProcID
	}
	if relay != "" && relay != source {
		event.Attrs["relay"] = relay
	}

	// Relays re-deliver lines the origin host already sent
	if s.dedup.IsDuplicate(event) {
		s.logger.Debug().Str("source", source).Msg("dropping duplicate syslog line")
		return
	}

	if err := s.bus.PublishEvent(event); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish syslog event")
	}
}

// syslogMessage represents a parsed syslog message.
type syslogMessage struct {
	Facility  int
	Severity  int
	Timestamp *time.Time
	Hostname  string
	AppName   string
	ProcID    string
	MsgID     string
	Message   string
}

// RFC 5424 pattern: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID MSG
var rfc5424Re = regexp.MustCompile(`^<(\d{1,3})>(\d)\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)\s*(.*)$`)

// RFC 3164 pattern: <PRI>TIMESTAMP HOSTNAME MSG
var rfc3164Re = regexp.MustCompile(`^<(\d{1,3})>([A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(\S+)\s+(.*)$`)

// Bare priority pattern: <PRI>MSG
var barePriRe = regexp.MustCompile(`^<(\d{1,3})>(.+)$`)

func parseSyslog(raw string) *syslogMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	// Try RFC 5424 first
	if m := rfc5424Re.FindStringSubmatch(raw); m != nil {
		pri, _ := strconv.Atoi(m[1])
		msg := &syslogMessage{
			Facility: pri / 8,
			Severity: pri % 8,
			Hostname: m[4],
			AppName:  m[5],
			ProcID:   m[6],
			MsgID:    m[7],
			Message:  m[8],
		}
		if t, err := time.Parse(time.RFC3339, m[3]); err == nil {
			msg.Timestamp = &t
		}
		return msg
	}

	// Try RFC 3164
	if m := rfc3164Re.FindStringSubmatch(raw); m != nil {
		pri, _ := strconv.Atoi(m[1])
		msg := &syslogMessage{
			Facility: pri / 8,
			Severity: pri % 8,
			Hostname: m[3],
			Message:  m[4],
		}
		// Parse BSD-style timestamp (add current year)
		tsStr := fmt.Sprintf("%d %s", time.Now().Year(), m[2])
		if t, err := time.Parse("2006 Jan  2 15:04:05", tsStr); err == nil {
			msg.Timestamp = &t
		} else if t, err := time.Parse("2006 Jan 2 15:04:05", tsStr); err == nil {
			msg.Timestamp = &t
		}
		// Extract app name from message if present (e.g., "sshd[1234]: message")
		if idx := strings.Index(msg.Message, ":"); idx > 0 {
			appPart := msg.Message[:idx]
			if pidIdx := strings.Index(appPart, "["); pidIdx > 0 {
				msg.AppName = appPart[:pidIdx]
				msg.ProcID = strings.Trim(appPart[pidIdx:], "[]")
			} else {
				msg.AppName = appPart
			}
			msg.Message = strings.TrimSpace(msg.Message[idx+1:])
		}
		return msg
	}

	// Try bare priority
	if m := barePriRe.FindStringSubmatch(raw); m != nil {
		pri, _ := strconv.Atoi(m[1])
		return &syslogMessage{
			Facility: pri / 8,
			Severity: pri % 8,
			Message:  m[2],
		}
	}

	return nil
}

// syslogSeverityToCore maps syslog severity (0=emergency..7=debug) to core.Severity.
func syslogSeverityToCore(syslogSev int) core.Severity {
	switch {
	case syslogSev <= 1: // emergency, alert
		return core.SeverityCritical
	case syslogSev <= 3: // critical, error
		return core.SeverityHigh
	case syslogSev <= 4: // warning
		return core.SeverityMedium
	case syslogSev <= 5: // notice
		return core.SeverityLow
	default: // info, debug
		return core.SeverityInfo
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
