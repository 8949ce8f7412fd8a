package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/logsentinel-project/logsentinel/internal/correlate"
	"github.com/logsentinel-project/logsentinel/internal/mitre"
	"github.com/logsentinel-project/logsentinel/internal/orchestrate"
	"github.com/logsentinel-project/logsentinel/internal/pattern"
	"github.com/logsentinel-project/logsentinel/internal/report"
	"github.com/logsentinel-project/logsentinel/internal/retrieval"
)

// maxAnalyzeBody bounds the size of an analysis request body.
const maxAnalyzeBody = 10 << 20

// Server is the LogSentinel REST API server.
type Server struct {
	cfg       *core.Config
	library   *pattern.Library
	bus       *core.EventBus
	generator orchestrate.Generator
	live      *core.EventRingBuffer
	results   *resultStore
	version   string

	server *http.Server
	logger zerolog.Logger
}

// Options wires the server's collaborators. Bus, Generator, and Live may be
// nil; analysis then runs without result publishing, narrative synthesis, or
// the live event window.
type Options struct {
	Config    *core.Config
	Library   *pattern.Library
	Bus       *core.EventBus
	Generator orchestrate.Generator
	Live      *core.EventRingBuffer
	Version   string
}

// NewServer creates an API server.
func NewServer(opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       opts.Config,
		library:   opts.Library,
		bus:       opts.Bus,
		generator: opts.Generator,
		live:      opts.Live,
		results:   newResultStore(100),
		version:   opts.Version,
		logger:    logger.With().Str("component", "api_server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/v1/patterns", s.handlePatterns)
	mux.HandleFunc("/api/v1/techniques", s.handleTechniques)
	mux.HandleFunc("/api/v1/events", s.handleIngestEvent)
	mux.HandleFunc("/api/v1/results", s.handleResults)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/config", s.handleConfig)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/shutdown", s.handleShutdown)

	// Build middleware chain: CORS -> logging -> rate limit -> auth -> handler
	handler := corsMiddleware(
		loggingMiddleware(
			rateLimitMiddleware(
				authMiddleware(mux, opts.Config, s.logger),
				100, // 100 requests per second per IP
			),
			s.logger,
		),
		opts.Config.Server.CORSOrigins,
	)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Config.Server.Host, opts.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving the API.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server starting")
	if s.cfg.AuthEnabled() {
		s.logger.Info().Int("keys", len(s.cfg.Server.APIKeys)).Msg("API authentication enabled")
	} else {
		s.logger.Warn().Msg("API authentication disabled; set api_keys in config or LOGSENTINEL_API_KEY env var")
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	buffered := 0
	if s.live != nil {
		buffered = s.live.Len()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":           s.version,
		"status":            "running",
		"bus_connected":     s.bus != nil && s.bus.IsConnected(),
		"patterns_loaded":   s.library.Count(),
		"generator_enabled": s.generator != nil,
		"events_buffered":   buffered,
		"timestamp":         time.Now().UTC(),
	})
}

// handleAnalyze runs one analysis request to completion. The response is the
// full structured result, or a rendered markdown report with ?format=markdown.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orchestrate.Request
	limited := io.LimitReader(r.Body, maxAnalyzeBody)
	if err := json.NewDecoder(limited).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request JSON: " + err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	// No events in the request: analyze the live ingestion window instead.
	if len(req.Events) == 0 && s.live != nil {
		req.Events = s.live.Recent(0)
	}

	index := retrieval.NewIndex(req.Events, s.cfg.Retrieval.CacheSize, s.logger)
	matcher := correlate.NewMatcher(s.library, s.logger)
	orch := orchestrate.New(matcher, orchestrate.Options{
		Retriever:       index,
		Generator:       s.generator,
		MaxFollowups:    s.cfg.Analysis.MaxFollowups,
		FollowupWindow:  time.Duration(s.cfg.Analysis.FollowupWindowMinutes) * time.Minute,
		ExternalTimeout: time.Duration(s.cfg.Analysis.ExternalTimeoutSeconds) * time.Second,
		RetrievalK:      s.cfg.Retrieval.DefaultK,
	}, s.logger)

	result, err := orch.Analyze(r.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("analysis failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "analysis failed: " + err.Error()})
		return
	}

	s.results.Add(result)
	s.publishResult(result)

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, report.Markdown(result))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// publishResult pushes a completed result onto the bus for downstream
// consumers. Failures are logged, never surfaced to the API caller.
func (s *Server) publishResult(result *orchestrate.Result) {
	if s.bus == nil || !s.bus.IsConnected() {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal result for bus")
		return
	}
	if err := s.bus.PublishResult(result.RequestID, result.RiskLevel, payload); err != nil {
		s.logger.Error().Err(err).Str("request_id", result.RequestID).Msg("failed to publish result")
	}
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	patterns := make([]map[string]interface{}, 0)
	for _, def := range s.library.All() {
		patterns = append(patterns, map[string]interface{}{
			"name":         def.Name,
			"description":  def.Description,
			"stages":       len(def.Stages),
			"severity":     def.Severity,
			"techniques":   def.Techniques,
			"attack_stage": def.AttackStage,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"total":    len(patterns),
	})
}

func (s *Server) handleTechniques(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	techniques := mitre.AllTechniques()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"techniques": techniques,
		"total":      len(techniques),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Redact API keys from the response
	safeCfg := *s.cfg
	safeCfg.Server.APIKeys = nil
	safeCfg.Gemini.APIKeys = nil
	writeJSON(w, http.StatusOK, safeCfg)
}

// handleIngestEvent accepts a single normalized event and publishes it to the
// bus, where the serve loop feeds it into the live retrieval index.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.bus == nil || !s.bus.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event bus not connected"})
		return
	}

	var event core.Event
	limited := io.LimitReader(r.Body, 1<<20)
	if err := json.NewDecoder(limited).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event JSON: " + err.Error()})
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = "external"
	}

	if err := s.bus.PublishEvent(event); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to publish event"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"event_id": event.ID,
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "shutting_down",
		"message": "LogSentinel is shutting down gracefully",
	})
	go func() {
		time.Sleep(250 * time.Millisecond)
		s.logger.Info().Msg("shutdown requested via API")
		// Send SIGINT to self so the main signal handler performs full cleanup
		// (syslog stop, API server stop, bus close) in the correct order.
		p, err := os.FindProcess(os.Getpid())
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to find own process for shutdown signal")
			os.Exit(0)
		}
		if err := p.Signal(syscall.SIGINT); err != nil {
			s.logger.Error().Err(err).Msg("failed to send shutdown signal")
			os.Exit(0)
		}
	}()
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// authMiddleware enforces API key authentication on all endpoints except /health.
// Keys are read from config (server.api_keys) or env (LOGSENTINEL_API_KEY).
// If no keys are configured, all requests are allowed (open mode with warning logged on startup).
func authMiddleware(next http.Handler, cfg *core.Config, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always allow health checks without auth
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		// If no API keys configured, allow all (open mode)
		if !cfg.AuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		// Extract key from Authorization header: "Bearer <key>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			// Also check X-API-Key header as fallback
			authHeader = r.Header.Get("X-API-Key")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "missing authentication — provide Authorization: Bearer <key> or X-API-Key header",
				})
				return
			}
			// X-API-Key is the raw key
			if !cfg.ValidateAPIKey(authHeader) {
				logger.Warn().Str("path", r.URL.Path).Str("ip", r.RemoteAddr).Msg("invalid API key")
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		// Parse "Bearer <key>"
		key := authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			key = authHeader[7:]
		}

		if !cfg.ValidateAPIKey(key) {
			logger.Warn().Str("path", r.URL.Path).Str("ip", r.RemoteAddr).Msg("invalid API key")
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware implements a simple per-IP token bucket rate limiter.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    int
}

type tokenBucket struct {
	tokens    float64
	maxTokens float64
	lastTime  time.Time
}

func (b *tokenBucket) allow(rate float64) bool {
	now := time.Now()
	elapsed := now.Sub(b.lastTime).Seconds()
	b.lastTime = now
	b.tokens += elapsed * rate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func rateLimitMiddleware(next http.Handler, requestsPerSecond int) http.Handler {
	limiter := &ipLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    requestsPerSecond,
	}

	// Cleanup stale buckets every 5 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			limiter.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, bucket := range limiter.buckets {
				if bucket.lastTime.Before(cutoff) {
					delete(limiter.buckets, ip)
				}
			}
			limiter.mu.Unlock()
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting for health checks
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		ip := r.RemoteAddr
		if idx := strings.LastIndex(ip, ":"); idx != -1 {
			ip = ip[:idx]
		}

		limiter.mu.Lock()
		bucket, exists := limiter.buckets[ip]
		if !exists {
			bucket = &tokenBucket{
				tokens:    float64(requestsPerSecond),
				maxTokens: float64(requestsPerSecond * 2), // burst = 2x rate
				lastTime:  time.Now(),
			}
			limiter.buckets[ip] = bucket
		}
		allowed := bucket.allow(float64(requestsPerSecond))
		limiter.mu.Unlock()

		if !allowed {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded — try again shortly",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := "*"
		if len(allowedOrigins) > 0 {
			allowed = ""
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = origin
					break
				}
			}
			if allowed == "" {
				// Origin not in allow list — skip CORS headers
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if len(allowedOrigins) > 0 && allowedOrigins[0] != "*" {
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
