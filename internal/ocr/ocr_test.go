package ocr

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type fakeHTTPDoer struct {
	statusCode  int
	body        string
	err         error
	requestBody []byte
	lastCalled  bool
}

func (f *fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastCalled = true
	if req.Body != nil {
		f.requestBody, _ = io.ReadAll(req.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.statusCode,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     make(http.Header),
	}, nil
}

func TestExtractTextCleansRecognizedLines(t *testing.T) {
	doer := &fakeHTTPDoer{statusCode: http.StatusOK, body: `{"text":" PROMO \n\n  2x1 hoy \n"}`}
	c := New("http://ocr.local/recognize", Options{HTTPClient: doer})

	got := c.ExtractText(context.Background(), "http://img.local/a.png")
	if got != "PROMO 2x1 hoy" {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(string(doer.requestBody), `"language":"spa"`) {
		t.Fatalf("request missing default language: %s", doer.requestBody)
	}
}

func TestExtractTextNeverFails(t *testing.T) {
	cases := []struct {
		name string
		doer *fakeHTTPDoer
	}{
		{"transport error", &fakeHTTPDoer{err: io.ErrUnexpectedEOF}},
		{"server error", &fakeHTTPDoer{statusCode: http.StatusBadGateway, body: "boom"}},
		{"garbage body", &fakeHTTPDoer{statusCode: http.StatusOK, body: "<html>"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New("http://ocr.local/recognize", Options{Language: "spa", HTTPClient: tc.doer})
			if got := c.ExtractText(context.Background(), "http://img.local/a.png"); got != "" {
				t.Fatalf("got %q want empty string", got)
			}
		})
	}
}

func TestExtractTextWithoutEndpointIsEmpty(t *testing.T) {
	c := New("", Options{Language: "spa", HTTPClient: &fakeHTTPDoer{statusCode: http.StatusOK, body: `{"text":"x"}`}})
	if got := c.ExtractText(context.Background(), "http://img.local/a.png"); got != "" {
		t.Fatalf("got %q want empty string", got)
	}
}

func TestMockModeSkipsTheNetwork(t *testing.T) {
	doer := &fakeHTTPDoer{statusCode: http.StatusOK, body: `{"text":"real"}`}
	c := New("http://ocr.local/recognize", Options{HTTPClient: doer, Mock: true})

	got := c.ExtractText(context.Background(), "http://img.local/a.png")
	if got != "TEXTO SIMULADO DE IMAGEN" {
		t.Fatalf("got %q", got)
	}
	if doer.lastCalled {
		t.Fatalf("mock mode must not issue requests")
	}
}
