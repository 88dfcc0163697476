// Package gemini implements the scoring backend on the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/ikimatch/internal/matching"
)

const (
	Provider     = "gemini"
	defaultModel = "gemini-2.5-flash"
	jsonMIMEType = "application/json"
	// Quota errors asking to wait longer than this are not worth a retry.
	maxQuotaDelay = 10 * time.Second
)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type sdkChats struct {
	chats *genai.Chats
}

func (s sdkChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := s.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator wraps the Google GenAI client to provide single-turn JSON completions.
type Generator struct {
	chats  chatCreator
	model  string
	logger *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{chats: sdkChats{chats: client.Chats}, model: model, logger: logger}, nil
}

// GenerateContent sends one message in a fresh chat and returns the textual answer.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: jsonMIMEType,
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", g.classify(err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", g.classify(err)
	}

	return responseText(resp)
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) Provider() string { return Provider }

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", matching.ScoringError("gemini api returned empty response", nil)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", matching.ScoringError("gemini blocked the prompt: "+string(resp.PromptFeedback.BlockReason), nil)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// Only the first candidate with content is used.
		if builder.Len() > 0 {
			break
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", matching.ScoringError("gemini api returned empty response", nil)
	}
	return output, nil
}

var retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?) ?(s|sec|secs|seconds?)\b`)

func (g *Generator) classify(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return matching.TransportError("gemini api unreachable", true, err)
		}
		return matching.TransportError("gemini request failed", false, err)
	}

	fields := []zap.Field{
		zap.Int("status_code", apiErr.Code),
		zap.String("status", apiErr.Status),
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if delay, ok := quotaDelay(apiErr.Message); ok && delay > maxQuotaDelay {
			g.logger.Warn("gemini quota exhausted", append(fields, zap.Duration("retry_after", delay))...)
			return matching.TransportError("gemini quota exhausted", false, err)
		}
		return matching.TransportError("gemini rate limited", true, err)
	case apiErr.Code >= 500, apiErr.Code == http.StatusRequestTimeout:
		g.logger.Debug("gemini temporary error", fields...)
		return matching.TransportError("gemini api unavailable", true, err)
	default:
		return matching.TransportError(fmt.Sprintf("gemini api error %d", apiErr.Code), false, err)
	}
}

func quotaDelay(message string) (time.Duration, bool) {
	m := retryDelayPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
