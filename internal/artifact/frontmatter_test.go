package artifact

import (
	"strings"
	"testing"
	"time"

	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/errors"
)

func sampleTasksDoc() *Document {
	return &Document{
		IdeaID:      "auth-service",
		Type:        TypeTasks,
		GeneratedAt: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		Tasks: []Task{
			{
				ID:        domain.TaskID("TASK-001"),
				FeatureID: domain.FeatureID("FEAT-001"),
				EpicID:    domain.EpicID("EPIC-001"),
				Title:     "Define session token format",
				Release:   domain.ReleaseMVP,
				Priority:  domain.PriorityP0,
				Estimate:  domain.EstimateS,
			},
			{
				ID:           domain.TaskID("TASK-002"),
				FeatureID:    domain.FeatureID("FEAT-001"),
				EpicID:       domain.EpicID("EPIC-001"),
				Title:        "Implement token issuance",
				Dependencies: []domain.TaskID{"TASK-001"},
				Release:      domain.ReleaseMVP,
				Priority:     domain.PriorityP0,
				Estimate:     domain.EstimateM,
			},
		},
		Body: "# Tasks\n\nDerived rendering, not authoritative.\n",
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	doc := sampleTasksDoc()

	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\n") {
		t.Errorf("encoded document must open with front-matter delimiter:\n%s", data)
	}

	got, err := Decode(data, "tasks.md")
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.IdeaID != doc.IdeaID || got.Type != doc.Type {
		t.Errorf("header mismatch: %+v", got)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(got.Tasks))
	}
	if got.Tasks[1].Dependencies[0] != domain.TaskID("TASK-001") {
		t.Errorf("dependency lost in round trip: %+v", got.Tasks[1])
	}
	if !strings.Contains(got.Body, "not authoritative") {
		t.Errorf("body lost in round trip: %q", got.Body)
	}
}

func TestDecode_MissingDelimiters(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "no front matter", input: "# Just markdown\n"},
		{name: "unclosed front matter", input: "---\nidea_id: x\nartifact_type: tasks\n"},
		{name: "empty file", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input), "broken.md")
			if err == nil {
				t.Fatal("Decode() expected error")
			}
			if !errors.IsParse(err) {
				t.Errorf("expected a parse error, got %v", err)
			}
		})
	}
}

func TestDecode_InvalidYAML(t *testing.T) {
	input := "---\nidea_id: [unclosed\n---\n"
	_, err := Decode([]byte(input), "broken.md")
	if !errors.IsParse(err) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestDecode_ReferentialInvariants(t *testing.T) {
	doc := sampleTasksDoc()
	doc.Tasks[1].Dependencies[0] = "TASK-099" // not in document

	data, err := Encode(doc)
	if err == nil {
		// Encode validates nothing; Decode must reject.
		if _, err := Decode(data, "tasks.md"); err == nil {
			t.Fatal("Decode() should reject unresolved dependency")
		}
	}
}

func TestDecode_BodyOptional(t *testing.T) {
	doc := sampleTasksDoc()
	doc.Body = ""

	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Decode(data, "tasks.md")
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Body != "" {
		t.Errorf("body should be empty, got %q", got.Body)
	}
}
