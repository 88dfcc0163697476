package matching

import (
	"cmp"
	"slices"

	"github.com/spigell/ikimatch/internal/profiles"
)

const snapshotSkills = 3

// Reasons attached to DroppedJudgment.
const (
	ReasonUnknownProfile = "unknown_profile"
	ReasonBelowThreshold = "below_threshold"
	ReasonOutOfRange     = "score_out_of_range"
	ReasonDuplicate      = "duplicate"
)

// Assemble joins judgments to the pool and returns them ranked by score.
//
// Judgments for ids missing from the pool, scores outside [threshold, MaxScore]
// and lower-scored duplicates are dropped. Ties keep pool order. The threshold is
// never lower than MinScore. Assemble does not modify its inputs, so running it
// twice on the same input yields the same list.
func Assemble(judgments []Judgment, pool []*profiles.Profile, threshold int) ([]RankedMatch, []DroppedJudgment) {
	threshold = max(threshold, MinScore)

	position := make(map[string]int, len(pool))
	for i, p := range pool {
		if _, seen := position[p.ID]; !seen {
			position[p.ID] = i
		}
	}

	var dropped []DroppedJudgment
	best := make(map[string]int, len(judgments))
	kept := make([]Judgment, 0, len(judgments))

	for i, j := range judgments {
		drop := func(reason string) {
			dropped = append(dropped, DroppedJudgment{Index: i, ProfileID: j.ProfileID, Reason: reason})
		}

		if _, ok := position[j.ProfileID]; !ok {
			drop(ReasonUnknownProfile)
			continue
		}
		if j.Score > MaxScore || j.Score < 0 {
			drop(ReasonOutOfRange)
			continue
		}
		if j.Score < threshold {
			drop(ReasonBelowThreshold)
			continue
		}

		if at, ok := best[j.ProfileID]; ok {
			if j.Score > kept[at].Score {
				kept[at] = j
			}
			drop(ReasonDuplicate)
			continue
		}
		best[j.ProfileID] = len(kept)
		kept = append(kept, j)
	}

	slices.SortStableFunc(kept, func(a, b Judgment) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(position[a.ProfileID], position[b.ProfileID])
	})

	ranked := make([]RankedMatch, 0, len(kept))
	for _, j := range kept {
		ranked = append(ranked, RankedMatch{
			ProfileID:     j.ProfileID,
			Score:         j.Score,
			Explanation:   j.Explanation,
			TopAttributes: append([]string{}, j.TopAttributes...),
			Profile:       Snap(pool[position[j.ProfileID]]),
		})
	}

	return ranked, dropped
}

// Snap builds the caller-facing snapshot of a profile.
func Snap(p *profiles.Profile) Snapshot {
	s := Snapshot{
		ID:            p.ID,
		FullName:      p.FullName,
		AvatarURL:     p.AvatarURL,
		Bio:           p.Bio,
		Location:      p.Location,
		CurrentIntent: intents(p.Intents),
		Availability:  string(p.Availability),
		Skills:        make([]SnapshotSkill, 0, min(len(p.Skills), snapshotSkills)),
	}
	for i, skill := range p.Skills {
		if i == snapshotSkills {
			break
		}
		s.Skills = append(s.Skills, SnapshotSkill{Name: skill.Name, Proficiency: string(skill.Proficiency)})
	}
	return s
}
