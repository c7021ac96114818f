package types

import (
	"strings"
	"time"

	"github.com/aarondl/null/v8"
)

// Responsible identifies the party assigned to a dialog. Type is "user"
// for human managers and "bot" for automated responders.
type Responsible struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// DisplayName prefers the full name, falling back to first name.
func (r Responsible) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.FirstName
}

// IsBot reports whether the responsible party is an automated responder.
func (r Responsible) IsBot() bool {
	return r.Type == "bot" || strings.Contains(strings.ToLower(r.DisplayName()), "bot")
}

// Dialog is one support conversation thread tracked by the platform.
// A dialog with a null closed_at is still open.
type Dialog struct {
	ID          int64        `json:"id"`
	ChatID      int64        `json:"chat_id"`
	CreatedAt   time.Time    `json:"created_at"`
	ClosedAt    null.Time    `json:"closed_at"`
	Responsible *Responsible `json:"responsible,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	IsActive    bool         `json:"is_active,omitempty"`
}

// Closed reports whether the dialog has been closed and is therefore
// eligible for quality scoring.
func (d Dialog) Closed() bool {
	return d.ClosedAt.Valid
}

// Customer is the client side of a chat.
type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Chat is the container the platform groups dialogs under. The listing
// endpoint returns the last dialog and last message inline, which is what
// date filtering and manager attribution key on.
type Chat struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Customer    *Customer `json:"customer,omitempty"`
	LastDialog  *Dialog   `json:"last_dialog,omitempty"`
	LastMessage *Message  `json:"last_message,omitempty"`
}

// ActivityAt is the timestamp used for date-window filtering: the last
// message time when present, the chat creation time otherwise.
func (c Chat) ActivityAt() time.Time {
	if c.LastMessage != nil && !c.LastMessage.CreatedAt.IsZero() {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// CustomerName returns the customer's name or a placeholder.
func (c Chat) CustomerName() string {
	if c.Customer != nil && c.Customer.Name != "" {
		return c.Customer.Name
	}
	return "Desconocido"
}

// From identifies a message sender.
type From struct {
	Type string `json:"type"` // customer | user | bot | system
	Name string `json:"name,omitempty"`
}

// Attachment is one media item carried by a message.
type Attachment struct {
	Type     string `json:"type,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Media is the inline media reference some message payloads carry.
type Media struct {
	URL string `json:"url,omitempty"`
}

// Message is immutable once fetched. Content is null for pure media
// messages; the platform has spelled the media reference several ways
// over time, so all known fields are kept.
type Message struct {
	ID          int64        `json:"id"`
	ChatID      int64        `json:"chat_id,omitempty"`
	Dialog      *Dialog      `json:"dialog,omitempty"`
	From        *From        `json:"from,omitempty"`
	Content     null.String  `json:"content"`
	Type        string       `json:"type,omitempty"`
	URL         string       `json:"url,omitempty"`
	Media       *Media       `json:"media,omitempty"`
	FileURL     string       `json:"file_url,omitempty"`
	File        *Media       `json:"file,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// FromType returns the sender type, defaulting to system when absent.
func (m Message) FromType() string {
	if m.From != nil && m.From.Type != "" {
		return m.From.Type
	}
	return "system"
}

// User is one entry of the remote user directory.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	IsActive  bool   `json:"is_active,omitempty"`
}

// FullName joins first and last name, trimming when either is empty.
func (u User) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Manager is a roster identity a dialog can be attributed to.
type Manager struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
