// Package transcript rebuilds a readable conversation from fetched
// messages. Messages arrive in accumulator order, so chronological
// ordering is restored here, at assembly time.
package transcript

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"chat-quality-go/internal/ocr"
	"chat-quality-go/internal/types"
)

// Assembler renders message lists into scoring transcripts. A nil OCR
// client disables image text extraction and media messages render as a
// bare placeholder.
type Assembler struct {
	OCR *ocr.Client
}

// Render produces one `[time] role: content` line per message, ordered
// ascending by creation time.
func (a Assembler) Render(ctx context.Context, messages []types.Message, agentName string) string {
	ordered := make([]types.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	lines := make([]string, 0, len(ordered))
	for _, m := range ordered {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			m.CreatedAt.Format("15:04:05"), RoleLabel(m, agentName), a.content(ctx, m)))
	}
	return strings.Join(lines, "\n")
}

// RoleLabel maps a sender type to the transcript speaker name.
func RoleLabel(m types.Message, agentName string) string {
	switch m.FromType() {
	case "customer":
		return "Cliente"
	case "bot":
		return "Bot"
	case "user":
		if m.From != nil && m.From.Name != "" {
			return m.From.Name
		}
		if agentName != "" {
			return agentName
		}
		return "Agente"
	default:
		return "Sistema"
	}
}

func (a Assembler) content(ctx context.Context, m types.Message) string {
	if m.Content.Valid && strings.TrimSpace(m.Content.String) != "" {
		return m.Content.String
	}
	url := MediaURL(m)
	if url == "" || a.OCR == nil {
		return "[media]"
	}
	if text := a.OCR.ExtractText(ctx, url); text != "" {
		return fmt.Sprintf("[Imagen con texto: %q]", text)
	}
	return "[Imagen sin texto legible]"
}

// MediaURL digs the image reference out of a message, trying every field
// spelling the platform has used.
func MediaURL(m types.Message) string {
	if m.Media != nil && m.Media.URL != "" {
		return m.Media.URL
	}
	if m.FileURL != "" {
		return m.FileURL
	}
	if m.File != nil && m.File.URL != "" {
		return m.File.URL
	}
	for _, att := range m.Attachments {
		if att.URL != "" && (att.Type == "image" || strings.HasPrefix(att.MimeType, "image/")) {
			return att.URL
		}
	}
	if m.Type == "image" && m.URL != "" {
		return m.URL
	}
	return ""
}
