package transcript

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aarondl/null/v8"

	"chat-quality-go/internal/ocr"
	"chat-quality-go/internal/types"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestRenderOrdersChronologicallyAndLabelsRoles(t *testing.T) {
	t.Parallel()

	msgs := []types.Message{
		{ID: 3, From: &types.From{Type: "user"}, Content: null.StringFrom("Su pedido está en camino"), CreatedAt: at(t, "2024-03-10 10:02:00")},
		{ID: 1, From: &types.From{Type: "customer"}, Content: null.StringFrom("Hola, quiero un pedido"), CreatedAt: at(t, "2024-03-10 10:00:00")},
		{ID: 2, From: &types.From{Type: "bot"}, Content: null.StringFrom("Bienvenido"), CreatedAt: at(t, "2024-03-10 10:01:00")},
	}

	got := Assembler{}.Render(context.Background(), msgs, "Laura")

	want := "[10:00:00] Cliente: Hola, quiero un pedido\n" +
		"[10:01:00] Bot: Bienvenido\n" +
		"[10:02:00] Laura: Su pedido está en camino"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderMediaWithoutOCRUsesPlaceholder(t *testing.T) {
	t.Parallel()

	msgs := []types.Message{
		{ID: 1, From: &types.From{Type: "customer"}, Media: &types.Media{URL: "http://img/a.png"}, CreatedAt: at(t, "2024-03-10 10:00:00")},
	}

	got := Assembler{}.Render(context.Background(), msgs, "")

	if !strings.Contains(got, "[media]") {
		t.Fatalf("expected [media] placeholder, got %q", got)
	}
}

type fixedOCR struct {
	body string
	code int
}

func (f fixedOCR) Do(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: f.code,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     make(http.Header),
	}, nil
}

func TestRenderImageWithRecognizedText(t *testing.T) {
	t.Parallel()

	client := ocr.New("http://ocr.local", ocr.Options{Language: "spa", HTTPClient: fixedOCR{code: http.StatusOK, body: `{"text":"PROMO 2x1"}`}})
	msgs := []types.Message{
		{ID: 1, From: &types.From{Type: "customer"}, FileURL: "http://img/promo.png", CreatedAt: at(t, "2024-03-10 10:00:00")},
	}

	got := Assembler{OCR: client}.Render(context.Background(), msgs, "")

	if !strings.Contains(got, `[Imagen con texto: "PROMO 2x1"]`) {
		t.Fatalf("got %q", got)
	}
}

func TestRenderImageWithEmptyOCRIsAnnotatedNotDropped(t *testing.T) {
	t.Parallel()

	client := ocr.New("http://ocr.local", ocr.Options{Language: "spa", HTTPClient: fixedOCR{code: http.StatusOK, body: `{"text":""}`}})
	// the dialog's only message: null content plus an image reference
	msgs := []types.Message{
		{ID: 1, From: &types.From{Type: "customer"}, Media: &types.Media{URL: "http://img/blur.png"}, CreatedAt: at(t, "2024-03-10 10:00:00")},
	}

	got := Assembler{OCR: client}.Render(context.Background(), msgs, "")

	if !strings.Contains(got, "[Imagen sin texto legible]") {
		t.Fatalf("got %q", got)
	}
	if strings.TrimSpace(got) == "" {
		t.Fatalf("transcript must not be empty")
	}
}

func TestMediaURLFieldSpellings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  types.Message
		want string
	}{
		{"media.url", types.Message{Media: &types.Media{URL: "u1"}}, "u1"},
		{"file_url", types.Message{FileURL: "u2"}, "u2"},
		{"file.url", types.Message{File: &types.Media{URL: "u3"}}, "u3"},
		{"attachment image", types.Message{Attachments: []types.Attachment{{Type: "document", URL: "skip"}, {MimeType: "image/png", URL: "u4"}}}, "u4"},
		{"typed image", types.Message{Type: "image", URL: "u5"}, "u5"},
		{"none", types.Message{Content: null.StringFrom("texto")}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MediaURL(tc.msg); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
