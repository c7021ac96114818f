// Package ocr extracts text from chat image attachments through an
// external, language-tuned OCR service. Extraction is best-effort by
// contract: the client never surfaces an error, a failed call simply
// yields an empty string and the transcript falls back to a placeholder.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"chat-quality-go/internal/logger"
)

// HTTPDoer allows tests to fake the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls one OCR endpoint with a fixed recognition language.
type Client struct {
	endpoint   string
	language   string
	httpClient HTTPDoer
	mock       bool
	log        *logger.Logger
}

// Options configure a client beyond the required endpoint.
type Options struct {
	// Language defaults to Spanish, matching the chats this service
	// scores.
	Language   string
	HTTPClient HTTPDoer
	// Mock short-circuits the network and returns a fixed recognition,
	// for offline demos (USE_MOCK_OCR=true).
	Mock bool
}

// New builds a client.
func New(endpoint string, opts Options) *Client {
	if opts.Language == "" {
		opts.Language = "spa"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		language:   opts.Language,
		httpClient: opts.HTTPClient,
		mock:       opts.Mock,
		log:        logger.New().WithComponent("ocr"),
	}
}

type recognizeRequest struct {
	ImageURL string `json:"image_url"`
	Language string `json:"language"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// ExtractText returns the recognized text of an image, cleaned of blank
// lines, or "" when the image is unreadable or the service misbehaves.
func (c *Client) ExtractText(ctx context.Context, imageURL string) string {
	if c.mock {
		return "TEXTO SIMULADO DE IMAGEN"
	}
	if c.endpoint == "" || imageURL == "" {
		return ""
	}

	payload, _ := json.Marshal(recognizeRequest{ImageURL: imageURL, Language: c.language})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("ocr request failed")
		return ""
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		c.log.WithField("status", resp.StatusCode).Warn("ocr returned non-2xx")
		return ""
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.WithError(err).Warn("ocr response not decodable")
		return ""
	}
	return Clean(parsed.Text)
}

// Clean collapses the recognizer's line noise into one spaced line.
func Clean(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
