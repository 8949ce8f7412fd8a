// ---------------------------------------------------------------------------
// client.go — Gemini-backed text generation for analysis summaries. Calls
// run inside a circuit breaker; per-key rate limits trigger key rotation.
// ---------------------------------------------------------------------------

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Client generates analyst prose with the Gemini API. It satisfies the
// orchestration Generator interface.
type Client struct {
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	keys       *KeyManager
	url        string
	maxTokens  int
	logger     zerolog.Logger
}

// Config configures a Client.
type Config struct {
	Model     string
	BaseURL   string
	APIKeys   []string
	MaxTokens int
	Timeout   time.Duration
}

// NewClient creates a Gemini client. With no usable keys the client is
// still valid; every Generate call fails fast and callers degrade.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	log := logger.With().Str("component", "llm").Logger()
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "GeminiAPI",
			MaxRequests: 3,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		keys:      NewKeyManager(cfg.APIKeys, log),
		url:       fmt.Sprintf("%s/%s:generateContent", cfg.BaseURL, cfg.Model),
		maxTokens: cfg.MaxTokens,
		logger:    log,
	}
}

// Enabled reports whether at least one API key is loaded.
func (c *Client) Enabled() bool {
	return c.keys.HasKeys()
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig map[string]interface{} `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces text for the prompt context. Rate-limited keys rotate;
// repeated failures open the breaker so callers degrade immediately.
func (c *Client) Generate(ctx context.Context, promptContext string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: promptContext}}}},
		GenerationConfig: map[string]interface{}{
			"maxOutputTokens": c.maxTokens,
			"temperature":     0.1,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	maxAttempts := c.keys.TotalCount()
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxAttempts > 4 {
		maxAttempts = 4
	}

	result, cbErr := c.cb.Execute(func() (interface{}, error) {
		var lastErr error
		for attempt := 0; attempt < maxAttempts; attempt++ {
			apiKey := c.keys.CurrentKey()
			if apiKey == "" {
				return "", fmt.Errorf("no healthy API keys available")
			}

			text, retryable, err := c.callOnce(ctx, apiKey, body)
			if err == nil {
				return text, nil
			}
			if !retryable {
				return "", err
			}
			lastErr = err
			if c.keys.Rotate(err.Error()) == "" {
				return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
			}
		}
		return "", lastErr
	})
	if cbErr != nil {
		return "", cbErr
	}
	return result.(string), nil
}

// callOnce performs one HTTP round trip. The second return value reports
// whether rotating keys could help.
func (c *Client) callOnce(ctx context.Context, apiKey string, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"?key="+apiKey, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("calling Gemini API: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", false, fmt.Errorf("reading response: %w", err)
	}

	if isRotatable(resp.StatusCode, string(respBody)) {
		return "", true, fmt.Errorf("Gemini API rate limited (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("Gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gemResp geminiResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		return "", false, fmt.Errorf("parsing Gemini response: %w", err)
	}
	if gemResp.Error != nil {
		if isRotatable(gemResp.Error.Code, gemResp.Error.Message) {
			return "", true, fmt.Errorf("Gemini API error: %s", gemResp.Error.Message)
		}
		return "", false, fmt.Errorf("Gemini API error: %s", gemResp.Error.Message)
	}
	if len(gemResp.Candidates) == 0 || len(gemResp.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("empty response from Gemini")
	}
	return gemResp.Candidates[0].Content.Parts[0].Text, false, nil
}
