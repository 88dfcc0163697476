package filtering

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ikimatch/internal/profiles"
)

func pool(items ...*profiles.Profile) *profiles.Profiles {
	return &profiles.Profiles{Items: items}
}

func ids(p *profiles.Profiles) string {
	return strings.Join(p.IDs(), ",")
}

func TestRunPreservesOrderAndLogsSteps(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	deps := Deps{Logger: zap.New(core), RequesterID: "me"}

	p := pool(
		&profiles.Profile{ID: "a", Searchable: true},
		&profiles.Profile{ID: "me", Searchable: true},
		&profiles.Profile{ID: "b", Searchable: false},
		&profiles.Profile{ID: "c", Searchable: true},
	)

	steps := []Filter{NewSearchable(), NewRequester()}
	if err := Validate(&Config{}, steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	got, err := Run(context.Background(), deps, steps, p)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ids(got) != "a,c" {
		t.Fatalf("expected a,c got %s", ids(got))
	}

	entries := logs.FilterMessage("filter step").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 step logs, got %d", len(entries))
	}
	first := entries[0].ContextMap()
	if first["name"] != "searchable" || first["initial"] != int64(4) || first["dropped"] != int64(1) || first["left"] != int64(3) {
		t.Fatalf("unexpected first step fields: %v", first)
	}
	if logs.FilterMessage("store returned non-searchable profiles").Len() != 1 {
		t.Fatalf("expected a warning about non-searchable profiles")
	}
}

func TestIntentsFilter(t *testing.T) {
	p := pool(
		&profiles.Profile{ID: "a", Intents: []profiles.Intent{profiles.IntentMentor}},
		&profiles.Profile{ID: "b", Intents: []profiles.Intent{profiles.IntentInvestor, profiles.IntentCofounder}},
		&profiles.Profile{ID: "c"},
	)

	steps := []Filter{NewIntents()}
	if err := Validate(&Config{Intents: []string{" Cofounder ", "advisor"}}, steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	got, err := Run(context.Background(), Deps{}, steps, p)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ids(got) != "b" {
		t.Fatalf("expected b got %s", ids(got))
	}

	status := Describe(steps)[0]
	if status.Details["intents"] != "advisor,cofounder" {
		t.Fatalf("unexpected status details %v", status.Details)
	}
}

func TestIntentsFilterRejectsUnknownIntent(t *testing.T) {
	err := Validate(&Config{Intents: []string{"friend"}}, []Filter{NewIntents()})
	if err == nil || !strings.Contains(err.Error(), "intents") {
		t.Fatalf("expected prefixed validation error, got %v", err)
	}
}

func TestIntentsFilterWithoutConfigKeepsAll(t *testing.T) {
	steps := []Filter{NewIntents()}
	if err := Validate(nil, steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	got, err := Run(context.Background(), Deps{}, steps, pool(&profiles.Profile{ID: "a"}, &profiles.Profile{ID: "b"}))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ids(got) != "a,b" {
		t.Fatalf("expected a,b got %s", ids(got))
	}
}

func writeExcludeFile(t *testing.T, ids ...string) string {
	t.Helper()
	list := &profiles.ExcludedProfiles{}
	for _, id := range ids {
		list.Add(id, "test")
	}
	path := filepath.Join(t.TempDir(), "excluded.json")
	data, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestExcludeFileFilter(t *testing.T) {
	path := writeExcludeFile(t, "b", "zzz")

	steps := []Filter{NewExcludeFile()}
	if err := Validate(&Config{ExcludeFile: path}, steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	got, err := Run(context.Background(), Deps{}, steps, pool(
		&profiles.Profile{ID: "a"}, &profiles.Profile{ID: "b"}, &profiles.Profile{ID: "c"},
	))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ids(got) != "a,c" {
		t.Fatalf("expected a,c got %s", ids(got))
	}
}

func TestExcludeFileFilterDisabled(t *testing.T) {
	path := writeExcludeFile(t, "a")

	steps := Default()
	DisableByName(steps, "exclude_file", "flag is set")
	if err := Validate(&Config{ExcludeFile: path}, steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	got, err := Run(context.Background(), Deps{}, steps, pool(&profiles.Profile{ID: "a", Searchable: true}))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ids(got) != "a" {
		t.Fatalf("disabled exclude_file must keep a, got %s", ids(got))
	}

	for _, status := range Describe(steps) {
		if status.Name == "exclude_file" {
			if status.Enabled || status.Reason != "flag is set" {
				t.Fatalf("unexpected status %+v", status)
			}
			return
		}
	}
	t.Fatalf("exclude_file status missing")
}

func TestExcludeFileFilterBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []Filter{NewExcludeFile()}
	if err := Validate(&Config{ExcludeFile: path}, steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	_, err := Run(context.Background(), Deps{}, steps, pool(&profiles.Profile{ID: "a"}))
	if err == nil || !strings.HasPrefix(err.Error(), "exclude_file:") {
		t.Fatalf("expected exclude_file error, got %v", err)
	}
}
