package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
		{
			name:   "counts runes not bytes",
			input:  "привет мир",
			limit:  6,
			expect: "привет...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestTruncateKeepsWhitespaceAndDisablesOnZero(t *testing.T) {
	if got := Truncate(" abc ", 0, "…"); got != " abc " {
		t.Fatalf("expected untouched input, got %q", got)
	}
	if got := Truncate("abcdef", 3, "…"); got != "abc…" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestCollapseSpaces(t *testing.T) {
	if got := CollapseSpaces("  loves\n\tsustainable   tech "); got != "loves sustainable tech" {
		t.Fatalf("unexpected collapse result: %q", got)
	}
}
