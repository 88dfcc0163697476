// Package profiles holds the read-only candidate records matched by ikimatch and
// the stores that load them from the backend that owns them.
package profiles

import (
	"time"
)

type Intent string

const (
	IntentCofounder  Intent = "cofounder"
	IntentTeamMember Intent = "team_member"
	IntentClient     Intent = "client"
	IntentMentor     Intent = "mentor"
	IntentAdvisor    Intent = "advisor"
	IntentInvestor   Intent = "investor"
)

type Availability string

const (
	AvailabilityFullTime Availability = "full_time"
	AvailabilityPartTime Availability = "part_time"
	AvailabilityFlexible Availability = "flexible"
	AvailabilityWeekends Availability = "weekends"
)

type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "beginner"
	ProficiencyIntermediate Proficiency = "intermediate"
	ProficiencyAdvanced     Proficiency = "advanced"
	ProficiencyExpert       Proficiency = "expert"
)

// Skill is one entry of a profile's ordered skill list.
type Skill struct {
	Name              string      `json:"skill_name" mapstructure:"skill_name"`
	Proficiency       Proficiency `json:"proficiency" mapstructure:"proficiency"`
	YearsOfExperience *int        `json:"years_of_experience" mapstructure:"years_of_experience"`
}

// Ikigai is the four-part self reflection plus the aspiration fields stored
// alongside it.
type Ikigai struct {
	WhatYouLove         string `json:"what_you_love" mapstructure:"what_you_love"`
	WhatYoureGoodAt     string `json:"what_youre_good_at" mapstructure:"what_youre_good_at"`
	WhatWorldNeeds      string `json:"what_world_needs" mapstructure:"what_world_needs"`
	WhatYouCanBePaidFor string `json:"what_you_can_be_paid_for" mapstructure:"what_you_can_be_paid_for"`
	CareerAspirations   string `json:"career_aspirations" mapstructure:"career_aspirations"`
	PurposeStatement    string `json:"purpose_statement" mapstructure:"purpose_statement"`
}

type Profile struct {
	ID                     string       `json:"id"`
	FullName               string       `json:"full_name"`
	AvatarURL              string       `json:"avatar_url"`
	Bio                    string       `json:"bio"`
	Location               string       `json:"location"`
	Email                  string       `json:"email"`
	Intents                []Intent     `json:"current_intent"`
	Availability           Availability `json:"availability"`
	ProfessionalBackground string       `json:"professional_background"`
	Ikigai                 *Ikigai      `json:"ikigai"`
	Skills                 []Skill      `json:"skills"`
	PortfolioCount         int          `json:"portfolio_count"`
	Searchable             bool         `json:"is_searchable"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// Profiles is an ordered collection of candidate records.
type Profiles struct {
	Items []*Profile
}

func (p *Profiles) Len() int {
	return len(p.Items)
}

func (p *Profiles) FindByID(id string) *Profile {
	for _, profile := range p.Items {
		if profile.ID == id {
			return profile
		}
	}
	return nil
}

func (p *Profiles) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, profile := range p.Items {
		ids = append(ids, profile.ID)
	}
	return ids
}

// Exclude removes every profile matching drop and returns the removed ids.
// Unlike a swap-delete it keeps the remaining profiles in their original order.
func (p *Profiles) Exclude(drop func(*Profile) bool) []string {
	var excluded []string
	kept := p.Items[:0]
	for _, profile := range p.Items {
		if profile == nil || drop(profile) {
			if profile != nil {
				excluded = append(excluded, profile.ID)
			}
			continue
		}
		kept = append(kept, profile)
	}
	for i := len(kept); i < len(p.Items); i++ {
		p.Items[i] = nil
	}
	p.Items = kept
	return excluded
}
