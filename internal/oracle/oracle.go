// Package oracle submits assembled transcripts to the LLM scoring
// endpoint and binds its answer to the active rubric revision. The
// oracle wraps its JSON in prose or markdown fences often enough that
// extraction is defensive: first balanced object wins.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chat-quality-go/internal/logger"
	"chat-quality-go/internal/rubric"
)

// HTTPDoer allows tests to fake the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls one chat-completions style endpoint.
type Client struct {
	apiURL      string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxElapsed  time.Duration
	retryWait   time.Duration
	httpClient  HTTPDoer
	mock        bool
	log         *logger.Logger
}

// Options configure a client beyond the required endpoint and key.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxElapsed  time.Duration
	RetryWait   time.Duration
	HTTPClient  HTTPDoer
	// Mock short-circuits the network and grants full marks, for
	// offline demos (USE_MOCK_ORACLE=true).
	Mock bool
}

// New builds a scoring client.
func New(apiURL, apiKey string, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "llama-3.3-70b-versatile"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1000
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 45 * time.Second
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 25 * time.Second}
	}
	return &Client{
		apiURL:      apiURL,
		apiKey:      apiKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		maxElapsed:  opts.MaxElapsed,
		retryWait:   opts.RetryWait,
		httpClient:  opts.HTTPClient,
		mock:        opts.Mock,
		log:         logger.New().WithComponent("oracle"),
	}
}

// Score submits one transcript against the rubric and returns the bound
// scorecard. Retries transient failures with exponential backoff; 4xx
// answers are permanent.
func (c *Client) Score(ctx context.Context, rb *rubric.Rubric, transcript string) (rubric.Scorecard, error) {
	if c.mock {
		c.log.Debug("mock oracle mode, granting full marks")
		return mockScorecard(rb), nil
	}
	if c.apiURL == "" || c.apiKey == "" {
		return rubric.Scorecard{}, fmt.Errorf("scoring oracle not configured")
	}

	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": rb.BuildPrompt(transcript)},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	data, _ := json.Marshal(reqBody)

	var card rubric.Scorecard
	var lastErr error

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.WithError(err).Warn("oracle request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			return backoff.Permanent(lastErr)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("oracle server error %d", resp.StatusCode)
			return lastErr
		}

		raw, err := decodeScores(body)
		if err != nil {
			lastErr = err
			return err
		}
		bound, err := rb.Bind(raw)
		if err != nil {
			lastErr = err
			return err
		}
		card = bound
		lastErr = nil
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return rubric.Scorecard{}, fmt.Errorf("oracle scoring failed: %w", lastErr)
	}
	return card, nil
}

// decodeScores pulls the first well-formed JSON object out of the
// completion, trying choices[0].message.content first and the raw body
// as a fallback.
func decodeScores(body []byte) (map[string]any, error) {
	if inner := contentFromChoices(body); inner != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(inner), &raw); err == nil {
			return raw, nil
		}
	}
	if fallback := ExtractJSON(string(body)); fallback != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(fallback), &raw); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("no parsable JSON in oracle output")
}

// contentFromChoices reads the openai-style choices[0].message.content.
func contentFromChoices(body []byte) string {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return ""
	}
	return ExtractJSON(parsed.Choices[0].Message.Content)
}

// ExtractJSON finds the first balanced JSON object in a string, after
// stripping the markdown fences models like to wrap answers in.
func ExtractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```yaml", "```text", "```", "`json", "`"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

// mockScorecard grants every point of the rubric, deterministic output
// for offline demos.
func mockScorecard(rb *rubric.Rubric) rubric.Scorecard {
	sc := rubric.Scorecard{RubricVersion: rb.Version, Observations: "Evaluación simulada"}
	for _, s := range rb.Sections {
		ss := rubric.SectionScore{Key: s.Key, Max: s.Max}
		for _, c := range s.Criteria {
			ss.Criteria = append(ss.Criteria, rubric.CriterionScore{Key: c.Key, Points: c.Max, Max: c.Max})
		}
		sc.Sections = append(sc.Sections, ss)
	}
	sc.Recompute()
	return sc
}
