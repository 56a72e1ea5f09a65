package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, status int, content any) (*httptest.Server, *ChatCompletionRequest) {
	t.Helper()
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != completionsPath {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestSuggestRegions(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK,
		"```json\n{\"regions\": [{\"label\": \"nucleus\", \"confidence\": 0.7, \"box\": {\"x\": 0.2, \"y\": 0.2, \"w\": 0.1, \"h\": 0.1}}]}\n```")
	c, err := NewClient(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	s, err := c.SuggestRegions(context.Background(), "vlm", "find nuclei", "aGVsbG8=")
	if err != nil {
		t.Fatalf("SuggestRegions failed: %v", err)
	}
	if len(s.Regions) != 1 || s.Regions[0].Label != "nucleus" {
		t.Errorf("Unexpected suggestion %+v", s)
	}
	if got.Model != "vlm" || got.Stream {
		t.Errorf("Unexpected request %+v", got)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(got.Messages))
	}
	parts, ok := got.Messages[0].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Errorf("Expected text and image parts, got %v", got.Messages[0].Content)
	}
}

func TestSimpleQueryContentParts(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, []any{map[string]any{"type": "text", "text": "a slide"}})
	c, _ := NewClient(srv.URL)
	out, err := c.SimpleQuery(context.Background(), "vlm", "what is this", "")
	if err != nil || out != "a slide" {
		t.Errorf("Expected %q, got %q %v", "a slide", out, err)
	}
}

func TestServerError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusServiceUnavailable, nil)
	c, _ := NewClient(srv.URL)
	_, err := c.SimpleQuery(context.Background(), "vlm", "hi", "")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestNewClientValidatesURL(t *testing.T) {
	if _, err := NewClient("ftp://host"); err == nil {
		t.Error("Expected error for non-http URL")
	}
	c, err := NewClient("")
	if err != nil || c.baseURL != "http://localhost:8080" {
		t.Errorf("Expected default URL, got %v %v", c, err)
	}
}
