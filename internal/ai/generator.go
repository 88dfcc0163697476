// Package ai scores candidate summaries with a language model.
package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/ikimatch/internal/matching"
)

// Generator is a single-shot text generation backend. Implementations return
// *matching.Error values classifying transport and content failures.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
	Provider() string
}

//go:embed prompt.md
var systemPrompt string

// SystemPrompt returns the fixed scoring instruction.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

// BuildUserContent renders the query and candidates the way the model expects them.
func BuildUserContent(query string, candidates []matching.Summary) (string, error) {
	if candidates == nil {
		candidates = []matching.Summary{}
	}
	payload, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}
	return fmt.Sprintf("Search query: %q\n\nAvailable profiles:\n%s", query, payload), nil
}
