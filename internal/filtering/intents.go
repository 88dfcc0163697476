package filtering

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/profiles"
)

var knownIntents = map[profiles.Intent]struct{}{
	profiles.IntentCofounder:  {},
	profiles.IntentTeamMember: {},
	profiles.IntentClient:     {},
	profiles.IntentMentor:     {},
	profiles.IntentAdvisor:    {},
	profiles.IntentInvestor:   {},
}

type intentsFilter struct {
	intents map[profiles.Intent]struct{}
}

// NewIntents creates a filter that keeps only profiles declaring at least one
// of the configured intents. With no intents configured it keeps everything.
func NewIntents() Filter {
	return &intentsFilter{}
}

func (f *intentsFilter) Name() string { return "intents" }

func (f *intentsFilter) Disable(string) {}

func (f *intentsFilter) IsEnabled() bool { return true }

func (f *intentsFilter) Validate(cfg *Config) error {
	f.intents = nil
	if cfg == nil || len(cfg.Intents) == 0 {
		return nil
	}

	f.intents = make(map[profiles.Intent]struct{}, len(cfg.Intents))
	for _, raw := range cfg.Intents {
		intent := profiles.Intent(strings.TrimSpace(strings.ToLower(raw)))
		if _, ok := knownIntents[intent]; !ok {
			return fmt.Errorf("unknown intent %q", raw)
		}
		f.intents[intent] = struct{}{}
	}
	return nil
}

func (f *intentsFilter) Apply(_ context.Context, deps Deps, p *profiles.Profiles) (*profiles.Profiles, Step, error) {
	initial := p.Len()
	if len(f.intents) == 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	excluded := p.Exclude(func(profile *profiles.Profile) bool {
		for _, intent := range profile.Intents {
			if _, ok := f.intents[intent]; ok {
				return false
			}
		}
		return true
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding profiles without a wanted intent",
			zap.Strings("excluded_profiles", excluded),
			zap.Int("profiles_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}

func (f *intentsFilter) Status() Status {
	details := map[string]string{}
	if len(f.intents) > 0 {
		names := make([]string, 0, len(f.intents))
		for intent := range f.intents {
			names = append(names, string(intent))
		}
		slices.Sort(names)
		details["intents"] = strings.Join(names, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
