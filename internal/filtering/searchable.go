package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/profiles"
)

type searchableFilter struct{}

// NewSearchable creates a filter that removes profiles hidden from search.
func NewSearchable() Filter {
	return &searchableFilter{}
}

func (f *searchableFilter) Name() string { return "searchable" }

func (f *searchableFilter) Disable(string) {}

func (f *searchableFilter) IsEnabled() bool { return true }

func (f *searchableFilter) Validate(*Config) error { return nil }

func (f *searchableFilter) Apply(_ context.Context, deps Deps, p *profiles.Profiles) (*profiles.Profiles, Step, error) {
	initial := p.Len()
	excluded := p.Exclude(func(profile *profiles.Profile) bool { return !profile.Searchable })
	if deps.Logger != nil && len(excluded) > 0 {
		// The store is expected to filter these already.
		deps.Logger.Warn("store returned non-searchable profiles",
			zap.Strings("excluded_profiles", excluded),
			zap.Int("profiles_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}

type requesterFilter struct{}

// NewRequester creates a filter that removes the requester's own profile.
func NewRequester() Filter {
	return &requesterFilter{}
}

func (f *requesterFilter) Name() string { return "requester" }

func (f *requesterFilter) Disable(string) {}

func (f *requesterFilter) IsEnabled() bool { return true }

func (f *requesterFilter) Validate(*Config) error { return nil }

func (f *requesterFilter) Apply(_ context.Context, deps Deps, p *profiles.Profiles) (*profiles.Profiles, Step, error) {
	initial := p.Len()
	if deps.RequesterID == "" {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	excluded := p.Exclude(func(profile *profiles.Profile) bool { return profile.ID == deps.RequesterID })

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}
