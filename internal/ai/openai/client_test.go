package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/spigell/ikimatch/internal/matching"
)

type chatRequest struct {
	Model          string `json:"model"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	}
}

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGenerator(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	return g
}

func TestGeneratorSendsJSONModeChat(t *testing.T) {
	var got chatRequest
	var auth string
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"matches": []}`))
	})

	out, err := g.GenerateContent(context.Background(), "rubric", "Search query")
	if err != nil {
		t.Fatalf("GenerateContent returned error: %v", err)
	}
	if out != `{"matches": []}` {
		t.Fatalf("unexpected output %q", out)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.Model != "test-model" {
		t.Fatalf("unexpected model %q", got.Model)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %+v", got.ResponseFormat)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestGeneratorClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      matching.Kind
		retryable bool
	}{
		{name: "server error", status: http.StatusBadGateway, kind: matching.KindTransport, retryable: true},
		{name: "rate limited", status: http.StatusTooManyRequests, kind: matching.KindTransport, retryable: true},
		{name: "payment required", status: http.StatusPaymentRequired, kind: matching.KindTransport, retryable: false},
		{name: "unauthorized", status: http.StatusUnauthorized, kind: matching.KindTransport, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			})

			_, err := g.GenerateContent(context.Background(), "sys", "msg")
			if matching.KindOf(err) != tt.kind {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if matching.IsRetryable(err) != tt.retryable {
				t.Fatalf("expected retryable=%v, got %v", tt.retryable, err)
			}
		})
	}
}

func TestGeneratorEmptyContentIsScoringFailure(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("   "))
	})

	_, err := g.GenerateContent(context.Background(), "sys", "msg")
	if matching.KindOf(err) != matching.KindScoring {
		t.Fatalf("expected scoring failure, got %v", err)
	}
}

func TestGeneratorUnreachableGatewayIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g, err := NewGenerator(Config{BaseURL: url, APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}

	_, err = g.GenerateContent(context.Background(), "sys", "msg")
	if matching.KindOf(err) != matching.KindTransport || !matching.IsRetryable(err) {
		t.Fatalf("expected retryable transport failure, got %v", err)
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(Config{}, nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}
