package gate

import "testing"

func TestKeywordMatcher_Match(t *testing.T) {
	tests := []struct {
		name      string
		scopeItem string
		childText string
		want      bool
	}{
		{
			name:      "two shared significant tokens",
			scopeItem: "generate weekly meal plans",
			childText: "Meal planning produces a weekly schedule",
			want:      true,
		},
		{
			name:      "one shared token is not enough",
			scopeItem: "export plans to external calendars",
			childText: "Produce shopping lists from a meal plan",
			want:      false,
		},
		{
			name:      "stopwords do not count",
			scopeItem: "the system must support all users",
			childText: "users can use the system",
			want:      false,
		},
		{
			name:      "plural and singular forms match",
			scopeItem: "store recipes",
			childText: "a recipe store with search",
			want:      true,
		},
		{
			name:      "short scope item needs all its tokens",
			scopeItem: "pantry",
			childText: "track pantry inventory",
			want:      true,
		},
		{
			name:      "empty scope item never matches",
			scopeItem: "",
			childText: "anything at all",
			want:      false,
		},
		{
			name:      "case and punctuation are ignored",
			scopeItem: "Shopping-Lists: weekly",
			childText: "weekly shopping lists",
			want:      true,
		},
	}

	m := KeywordMatcher{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Match(tt.scopeItem, tt.childText); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.scopeItem, tt.childText, got, tt.want)
			}
		})
	}
}

func TestKeywordMatcher_MinShared(t *testing.T) {
	strict := KeywordMatcher{MinShared: 3}
	if strict.Match("generate weekly meal plans", "weekly meal schedule") {
		t.Error("MinShared=3 matched on two shared tokens")
	}
	if !strict.Match("generate weekly meal plans", "generate the weekly meal schedule") {
		t.Error("MinShared=3 did not match on three shared tokens")
	}
}
