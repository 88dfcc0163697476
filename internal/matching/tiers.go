package matching

type Tier string

const (
	TierPerfect   Tier = "perfect"
	TierStrong    Tier = "strong"
	TierPotential Tier = "potential"
)

const (
	PerfectScore = 90
	StrongScore  = 70
	// MinScore is the inclusion threshold. Anything below is never returned.
	MinScore = 50
	MaxScore = 100
)

// TierOf reports the tier for score and false when the score is below MinScore.
func TierOf(score int) (Tier, bool) {
	switch {
	case score >= PerfectScore:
		return TierPerfect, true
	case score >= StrongScore:
		return TierStrong, true
	case score >= MinScore:
		return TierPotential, true
	default:
		return "", false
	}
}

type Tiers struct {
	Perfect   []RankedMatch `json:"perfect"`
	Strong    []RankedMatch `json:"strong"`
	Potential []RankedMatch `json:"potential"`
}

// Len returns the total number of matches across tiers.
func (t Tiers) Len() int {
	return len(t.Perfect) + len(t.Strong) + len(t.Potential)
}

// Partition buckets raw by tier, keeping raw's order inside each tier.
// Entries below MinScore are ignored; Assemble never produces them.
func Partition(raw []RankedMatch) Tiers {
	tiers := Tiers{
		Perfect:   []RankedMatch{},
		Strong:    []RankedMatch{},
		Potential: []RankedMatch{},
	}
	for _, m := range raw {
		tier, ok := TierOf(m.Score)
		if !ok {
			continue
		}
		switch tier {
		case TierPerfect:
			tiers.Perfect = append(tiers.Perfect, m)
		case TierStrong:
			tiers.Strong = append(tiers.Strong, m)
		case TierPotential:
			tiers.Potential = append(tiers.Potential, m)
		}
	}
	return tiers
}
