// Package matching ranks candidate profiles against a free-text search query.
//
// A search loads the requester's candidate pool, summarizes every candidate,
// asks a Scorer for judgments, then assembles the surviving judgments into a
// ranked list partitioned by score tier. Nothing is persisted between searches.
package matching

import "context"

// Summary is the bounded view of a profile that is sent to the scoring model.
// Every key is always present so the model sees one schema for all candidates.
type Summary struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Bio            string         `json:"bio"`
	Location       string         `json:"location"`
	Intent         []string       `json:"intent"`
	Availability   string         `json:"availability"`
	Background     string         `json:"background"`
	Ikigai         SummaryIkigai  `json:"ikigai"`
	Skills         []SummarySkill `json:"skills"`
	PortfolioCount int            `json:"portfolio_count"`
}

type SummaryIkigai struct {
	Love              string `json:"love"`
	Strength          string `json:"strength"`
	WorldNeed         string `json:"world_need"`
	PaidFor           string `json:"paid_for"`
	CareerAspirations string `json:"career_aspirations"`
}

type SummarySkill struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
	Years       *int   `json:"years"`
}

// Judgment is one validated relevance verdict for a candidate.
type Judgment struct {
	ProfileID     string   `json:"profile_id"`
	Score         int      `json:"score"`
	Explanation   string   `json:"explanation"`
	TopAttributes []string `json:"top_attributes"`
}

// DroppedJudgment records a judgment discarded as a data-quality issue.
type DroppedJudgment struct {
	Index     int
	ProfileID string
	Reason    string
}

// Scorer turns a query and candidate summaries into judgments.
// Implementations return *Error values of KindTransport or KindScoring.
type Scorer interface {
	Score(ctx context.Context, query string, candidates []Summary) ([]Judgment, error)
}

type SnapshotSkill struct {
	Name        string `json:"skill_name"`
	Proficiency string `json:"proficiency"`
}

// Snapshot is the minimal profile data returned alongside a match.
type Snapshot struct {
	ID            string          `json:"id"`
	FullName      string          `json:"full_name"`
	AvatarURL     string          `json:"avatar_url"`
	Bio           string          `json:"bio"`
	Location      string          `json:"location"`
	CurrentIntent []string        `json:"current_intent"`
	Availability  string          `json:"availability"`
	Skills        []SnapshotSkill `json:"skills"`
}

type RankedMatch struct {
	ProfileID     string   `json:"profile_id"`
	Score         int      `json:"score"`
	Explanation   string   `json:"explanation"`
	TopAttributes []string `json:"top_attributes"`
	Profile       Snapshot `json:"profile"`
}

// Result is the outcome of a successful search. Tiers partition Raw.
type Result struct {
	Raw   []RankedMatch `json:"matches"`
	Tiers Tiers         `json:"tiers"`
}
