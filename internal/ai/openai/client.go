// Package openai implements the scoring backend against any OpenAI-compatible
// chat completions gateway.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/matching"
)

const (
	Provider     = "openai"
	defaultModel = "google/gemini-2.5-flash"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// HTTPTimeout bounds a single HTTP exchange. The scorer bounds the whole call.
	HTTPTimeout time.Duration
}

type model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Generator talks to a chat completions endpoint through langchaingo in JSON mode.
type Generator struct {
	llm    model
	model  string
	logger *zap.Logger
}

func NewGenerator(cfg Config, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: recordingTransport{base: http.DefaultTransport},
	}

	opts := []lcopenai.Option{
		lcopenai.WithToken(apiKey),
		lcopenai.WithModel(modelName),
		lcopenai.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, lcopenai.WithBaseURL(strings.TrimRight(base, "/")))
	}

	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return &Generator{llm: llm, model: modelName, logger: logger}, nil
}

func (g *Generator) Model() string { return g.model }

func (g *Generator) Provider() string { return Provider }

// GenerateContent sends the system instruction and message and returns the
// first choice's content.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	messages := make([]llms.MessageContent, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	status := &callStatus{}
	resp, err := g.llm.GenerateContent(withStatus(ctx, status), messages, llms.WithJSONMode())
	if err != nil {
		return "", g.classify(err, status)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", matching.ScoringError("gateway returned no choices", nil)
	}
	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", matching.ScoringError("gateway returned empty content", nil)
	}
	return content, nil
}

func (g *Generator) classify(err error, status *callStatus) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code, transportErr := status.get()
	switch {
	case transportErr != nil:
		var netErr net.Error
		if errors.As(transportErr, &netErr) && netErr.Timeout() {
			return matching.TransportError("gateway timed out", true, err)
		}
		return matching.TransportError("gateway unreachable", true, err)
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		g.logger.Debug("gateway temporary error", zap.Int("status_code", code))
		return matching.TransportError(fmt.Sprintf("gateway returned %d", code), true, err)
	case code >= 300:
		return matching.TransportError(fmt.Sprintf("gateway returned %d", code), false, err)
	case code >= 200:
		// 2xx with a body the client could not decode.
		return matching.ScoringError("gateway response could not be decoded", err)
	default:
		return matching.TransportError("gateway request failed", false, err)
	}
}

type statusKey struct{}

// callStatus captures what happened on the wire during one GenerateContent call.
type callStatus struct {
	mu   sync.Mutex
	code int
	err  error
}

func (s *callStatus) set(code int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.err = err
}

func (s *callStatus) get() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.err
}

func withStatus(ctx context.Context, status *callStatus) context.Context {
	return context.WithValue(ctx, statusKey{}, status)
}

type recordingTransport struct {
	base http.RoundTripper
}

func (t recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if status, ok := req.Context().Value(statusKey{}).(*callStatus); ok {
		if err != nil {
			status.set(0, err)
		} else {
			status.set(resp.StatusCode, nil)
		}
	}
	return resp, err
}
