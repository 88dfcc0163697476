package matching

import (
	"github.com/spigell/ikimatch/internal/profiles"
	"github.com/spigell/ikimatch/internal/utils"
)

// Rune limits applied to summary fields.
const (
	maxNameRunes       = 100
	maxBioRunes        = 500
	maxLocationRunes   = 100
	maxBackgroundRunes = 800
	maxIkigaiRunes     = 300
	maxSkillNameRunes  = 60
	maxSummarySkills   = 10
)

const truncatedSuffix = "..."

// Summarize projects a profile into the fixed summary field set.
func Summarize(p *profiles.Profile) Summary {
	s := Summary{
		ID:             p.ID,
		Name:           clip(p.FullName, maxNameRunes),
		Bio:            clip(p.Bio, maxBioRunes),
		Location:       clip(p.Location, maxLocationRunes),
		Intent:         intents(p.Intents),
		Availability:   string(p.Availability),
		Background:     clip(p.ProfessionalBackground, maxBackgroundRunes),
		Skills:         make([]SummarySkill, 0, min(len(p.Skills), maxSummarySkills)),
		PortfolioCount: p.PortfolioCount,
	}

	if p.Ikigai != nil {
		s.Ikigai = SummaryIkigai{
			Love:              clip(p.Ikigai.WhatYouLove, maxIkigaiRunes),
			Strength:          clip(p.Ikigai.WhatYoureGoodAt, maxIkigaiRunes),
			WorldNeed:         clip(p.Ikigai.WhatWorldNeeds, maxIkigaiRunes),
			PaidFor:           clip(p.Ikigai.WhatYouCanBePaidFor, maxIkigaiRunes),
			CareerAspirations: clip(p.Ikigai.CareerAspirations, maxIkigaiRunes),
		}
	}

	for i, skill := range p.Skills {
		if i == maxSummarySkills {
			break
		}
		var years *int
		if skill.YearsOfExperience != nil {
			y := *skill.YearsOfExperience
			years = &y
		}
		s.Skills = append(s.Skills, SummarySkill{
			Name:        clip(skill.Name, maxSkillNameRunes),
			Proficiency: string(skill.Proficiency),
			Years:       years,
		})
	}

	return s
}

// SummarizeAll keeps the pool order.
func SummarizeAll(pool []*profiles.Profile) []Summary {
	out := make([]Summary, 0, len(pool))
	for _, p := range pool {
		out = append(out, Summarize(p))
	}
	return out
}

func clip(s string, limit int) string {
	return utils.Truncate(utils.CollapseSpaces(s), limit, truncatedSuffix)
}

func intents(in []profiles.Intent) []string {
	out := make([]string, 0, len(in))
	for _, intent := range in {
		out = append(out, string(intent))
	}
	return out
}
