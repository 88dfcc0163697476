package filtering

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/profiles"
)

type excludeFileFilter struct {
	disabled bool
	reason   string
	path     string
}

// NewExcludeFile creates a filter that removes profiles listed in the moderation file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

// Apply rereads the file on every call so `ikimatch exclude` takes effect without a restart.
func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, p *profiles.Profiles) (*profiles.Profiles, Step, error) {
	initial := p.Len()
	if f.path == "" {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	excluded, err := profiles.GetExcludedProfilesFromFile(f.path)
	if err != nil {
		return p, Step{}, fmt.Errorf("getting excluded profiles from file: %w", err)
	}

	ids := excluded.IDs()
	removed := p.Exclude(func(profile *profiles.Profile) bool { return slices.Contains(ids, profile.ID) })
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding profiles based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_profiles", removed),
			zap.Int("profiles_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(removed), Left: p.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
