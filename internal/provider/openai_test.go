package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatSendsJSONObjectFormat(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"items":[]}`}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "gpt-4o-mini")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages:   []Message{{Role: "user", Content: "hello"}},
		JSONObject: true,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != `{"items":[]}` {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}

	rf, ok := captured["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("expected json_object response_format, got %v", captured["response_format"])
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Fatalf("expected default model fallback, got %v", captured["model"])
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL, "")
	if _, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}}); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}
