package ai

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/ikimatch/internal/matching"
)

const maxTopAttributes = 3

const documentSchema = `{
  "type": "object",
  "required": ["matches"],
  "properties": {
    "matches": {"type": "array"}
  }
}`

const judgmentSchema = `{
  "type": "object",
  "required": ["profile_id", "score", "explanation"],
  "properties": {
    "profile_id": {"type": "string", "minLength": 1},
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "explanation": {"type": "string", "pattern": "\\S"},
    "top_attributes": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

// Drop reasons reported for judgments that fail validation.
const (
	ReasonNotAnObject       = "not_an_object"
	ReasonInvalidProfileID  = "invalid_profile_id"
	ReasonInvalidScore      = "invalid_score"
	ReasonEmptyExplanation  = "invalid_explanation"
	ReasonInvalidAttributes = "invalid_top_attributes"
	ReasonInvalidItem       = "invalid_item"
)

var (
	documentLoader = gojsonschema.NewStringLoader(documentSchema)
	judgmentLoader = gojsonschema.NewStringLoader(judgmentSchema)
)

type rawJudgment struct {
	ProfileID     string      `json:"profile_id"`
	Score         json.Number `json:"score"`
	Explanation   string      `json:"explanation"`
	TopAttributes []string    `json:"top_attributes"`
}

// ParseJudgments validates a model response. A document that is not JSON or has
// no matches array fails with a scoring error. Individual judgments that fail
// validation, or reference ids outside known, are returned as dropped.
func ParseJudgments(raw string, known map[string]struct{}) ([]matching.Judgment, []matching.DroppedJudgment, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, nil, matching.ScoringError("empty response", nil)
	}

	result, err := gojsonschema.Validate(documentLoader, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, nil, matching.ScoringError("response is not valid JSON", err)
	}
	if !result.Valid() {
		return nil, nil, matching.ScoringError("response has the wrong shape", errors.New(describe(result.Errors())))
	}

	var doc struct {
		Matches []json.RawMessage `json:"matches"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, nil, matching.ScoringError("response has the wrong shape", err)
	}

	judgments := make([]matching.Judgment, 0, len(doc.Matches))
	var dropped []matching.DroppedJudgment

	for i, item := range doc.Matches {
		drop := func(id, reason string) {
			dropped = append(dropped, matching.DroppedJudgment{Index: i, ProfileID: id, Reason: reason})
		}

		res, err := gojsonschema.Validate(judgmentLoader, gojsonschema.NewBytesLoader(item))
		if err != nil {
			drop("", ReasonInvalidItem)
			continue
		}
		if !res.Valid() {
			drop(peekID(item), classify(res.Errors()))
			continue
		}

		var rj rawJudgment
		dec := json.NewDecoder(strings.NewReader(string(item)))
		dec.UseNumber()
		if err := dec.Decode(&rj); err != nil {
			drop(peekID(item), ReasonInvalidItem)
			continue
		}

		if _, ok := known[rj.ProfileID]; !ok {
			drop(rj.ProfileID, matching.ReasonUnknownProfile)
			continue
		}

		score, err := rj.Score.Float64()
		if err != nil {
			drop(rj.ProfileID, ReasonInvalidScore)
			continue
		}

		judgments = append(judgments, matching.Judgment{
			ProfileID:     rj.ProfileID,
			Score:         int(score),
			Explanation:   strings.TrimSpace(rj.Explanation),
			TopAttributes: sanitizeAttributes(rj.TopAttributes),
		})
	}

	return judgments, dropped, nil
}

func sanitizeAttributes(in []string) []string {
	out := make([]string, 0, min(len(in), maxTopAttributes))
	for _, attr := range in {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		out = append(out, attr)
		if len(out) == maxTopAttributes {
			break
		}
	}
	return out
}

// classify maps the first schema violation to a low-cardinality reason.
func classify(errs []gojsonschema.ResultError) string {
	if len(errs) == 0 {
		return ReasonInvalidItem
	}
	first := errs[0]
	field := first.Field()
	if first.Type() == "required" {
		if property, ok := first.Details()["property"].(string); ok {
			field = property
		}
	}

	switch {
	case field == "(root)":
		return ReasonNotAnObject
	case field == "profile_id":
		return ReasonInvalidProfileID
	case field == "score":
		return ReasonInvalidScore
	case field == "explanation":
		return ReasonEmptyExplanation
	case strings.HasPrefix(field, "top_attributes"):
		return ReasonInvalidAttributes
	default:
		return ReasonInvalidItem
	}
}

func describe(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

// peekID best-effort extracts profile_id from an invalid item for logging.
func peekID(item json.RawMessage) string {
	var probe struct {
		ProfileID any `json:"profile_id"`
	}
	if err := json.Unmarshal(item, &probe); err != nil {
		return ""
	}
	if id, ok := probe.ProfileID.(string); ok {
		return id
	}
	return ""
}

// extractJSON strips Markdown code fences some models wrap around JSON.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
