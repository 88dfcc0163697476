package profiles

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// row mirrors a profiles row with its embedded relations as returned by the
// REST backend (and stored in fixture files).
type row struct {
	ID                     string    `mapstructure:"id"`
	FullName               string    `mapstructure:"full_name"`
	AvatarURL              string    `mapstructure:"avatar_url"`
	Bio                    string    `mapstructure:"bio"`
	Location               string    `mapstructure:"location"`
	Email                  string    `mapstructure:"email"`
	CurrentIntent          []string  `mapstructure:"current_intent"`
	Availability           string    `mapstructure:"availability"`
	ProfessionalBackground string    `mapstructure:"professional_background"`
	IsSearchable           bool      `mapstructure:"is_searchable"`
	UpdatedAt              time.Time `mapstructure:"updated_at"`
	// One-to-one embeds come back as an object, older clients asked for a list.
	IkigaiResponses any     `mapstructure:"ikigai_responses"`
	Skills          []Skill `mapstructure:"skills"`
	PortfolioItems  []struct {
		Count int `mapstructure:"count"`
	} `mapstructure:"portfolio_items"`
}

// DecodeRows converts generic JSON rows into profiles, keeping their order.
func DecodeRows(items []any) ([]*Profile, error) {
	var rows []row
	if err := decode(items, &rows); err != nil {
		return nil, fmt.Errorf("decode profile rows: %w", err)
	}

	result := make([]*Profile, 0, len(rows))
	for _, r := range rows {
		ikigai, err := decodeIkigai(r.IkigaiResponses)
		if err != nil {
			return nil, fmt.Errorf("decode ikigai for profile %s: %w", r.ID, err)
		}

		intents := make([]Intent, 0, len(r.CurrentIntent))
		for _, intent := range r.CurrentIntent {
			intents = append(intents, Intent(intent))
		}

		portfolio := 0
		for _, item := range r.PortfolioItems {
			portfolio += item.Count
		}

		result = append(result, &Profile{
			ID:                     r.ID,
			FullName:               r.FullName,
			AvatarURL:              r.AvatarURL,
			Bio:                    r.Bio,
			Location:               r.Location,
			Email:                  r.Email,
			Intents:                intents,
			Availability:           Availability(r.Availability),
			ProfessionalBackground: r.ProfessionalBackground,
			Ikigai:                 ikigai,
			Skills:                 r.Skills,
			PortfolioCount:         portfolio,
			Searchable:             r.IsSearchable,
			UpdatedAt:              r.UpdatedAt,
		})
	}

	return result, nil
}

func decodeIkigai(raw any) (*Ikigai, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		return decodeIkigai(v[0])
	default:
		var ikigai Ikigai
		if err := decode(v, &ikigai); err != nil {
			return nil, err
		}
		return &ikigai, nil
	}
}

func decode(input, output any) error {
	cfg := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:     output,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
