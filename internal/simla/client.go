// Package simla wraps the chat platform's bot API behind typed calls.
// The client carries no retry policy: pagination and scoring callers
// decide what a failed fetch means for their own loop.
package simla

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chat-quality-go/internal/logger"
	"chat-quality-go/internal/types"
)

const apiPrefix = "/api/bot/v1"

// HTTPDoer allows tests to fake the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError carries the platform's non-2xx answer.
type APIError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("simla: error %d: %s", e.Status, e.StatusText)
}

// Client issues authenticated GETs against one platform account.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPDoer
	log        *logger.Logger
}

// New builds a client for the given endpoint base URL and bot token.
func New(baseURL, token string, httpClient HTTPDoer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		log:        logger.New().WithComponent("simla"),
	}
}

// DialogFilter narrows GetDialogs. Zero values are omitted from the query.
type DialogFilter struct {
	Since   string // YYYY-MM-DD
	Until   string // YYYY-MM-DD
	UserID  int64
	Active  *bool
	Limit   int
	SinceID int64
	Offset  *int
}

// MessageFilter narrows GetMessagesByUser.
type MessageFilter struct {
	UserID  int64
	Since   string
	Until   string
	Limit   int
	SinceID int64
	Offset  *int
}

// GetChats lists chats ordered by recency.
func (c *Client) GetChats(ctx context.Context, limit, offset int) ([]types.Chat, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var out []types.Chat
	if err := c.getList(ctx, "/chats", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessages lists messages of one chat.
func (c *Client) GetMessages(ctx context.Context, chatID int64, limit int) ([]types.Message, error) {
	q := url.Values{}
	q.Set("chat_id", strconv.FormatInt(chatID, 10))
	q.Set("limit", strconv.Itoa(limit))
	var out []types.Message
	if err := c.getList(ctx, "/messages", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessagesByDialog lists messages of one dialog, which is the cheaper
// path when scoring a known dialog.
func (c *Client) GetMessagesByDialog(ctx context.Context, dialogID int64, limit int) ([]types.Message, error) {
	q := url.Values{}
	q.Set("dialog_id", strconv.FormatInt(dialogID, 10))
	q.Set("limit", strconv.Itoa(limit))
	var out []types.Message
	if err := c.getList(ctx, "/messages", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUsers lists active directory users.
func (c *Client) GetUsers(ctx context.Context, limit int) ([]types.User, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("active", "true")
	var out []types.User
	if err := c.getList(ctx, "/users", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDialogs lists dialogs matching the filter.
func (c *Client) GetDialogs(ctx context.Context, f DialogFilter) ([]types.Dialog, error) {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Since != "" {
		q.Set("since", f.Since)
	}
	if f.Until != "" {
		q.Set("until", f.Until)
	}
	if f.UserID != 0 {
		q.Set("user_id", strconv.FormatInt(f.UserID, 10))
	}
	if f.Active != nil {
		q.Set("active", strconv.FormatBool(*f.Active))
	}
	if f.SinceID != 0 {
		q.Set("since_id", strconv.FormatInt(f.SinceID, 10))
	}
	if f.Offset != nil {
		q.Set("offset", strconv.Itoa(*f.Offset))
	}
	var out []types.Dialog
	if err := c.getList(ctx, "/dialogs", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessagesByUser lists messages a directory user sent inside a date
// window, used to find dialogs a manager participated in.
func (c *Client) GetMessagesByUser(ctx context.Context, f MessageFilter) ([]types.Message, error) {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.UserID != 0 {
		q.Set("user_id", strconv.FormatInt(f.UserID, 10))
	}
	if f.Since != "" {
		q.Set("since", f.Since)
	}
	if f.Until != "" {
		q.Set("until", f.Until)
	}
	if f.SinceID != 0 {
		q.Set("since_id", strconv.FormatInt(f.SinceID, 10))
	}
	if f.Offset != nil {
		q.Set("offset", strconv.Itoa(*f.Offset))
	}
	var out []types.Message
	if err := c.getList(ctx, "/messages", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getList issues one GET and decodes an array body into target. A JSON
// body that is not an array (the platform answers objects on some edge
// conditions) decodes as an empty list rather than failing the caller.
func (c *Client) getList(ctx context.Context, path string, q url.Values, target any) error {
	u := c.baseURL + apiPrefix + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Bot-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("simla request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read simla response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.WithField("path", path).WithField("status", resp.StatusCode).Warn("simla returned non-2xx")
		return &APIError{Status: resp.StatusCode, StatusText: resp.Status, Body: strings.TrimSpace(string(body))}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || !strings.HasPrefix(trimmed, "[") {
		c.log.WithField("path", path).Debug("non-array body, treating as empty list")
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
