package generate

import (
	"context"
	"testing"
	"time"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/domain"
)

func TestCommandGenerator_RoundTrip(t *testing.T) {
	doc := &artifact.Document{
		IdeaID:      "meal-planner",
		Type:        artifact.TypeEpics,
		GeneratedAt: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		Epics: []artifact.Epic{{
			ID:       domain.EpicID("EPIC-001"),
			Title:    "Recipe management",
			Outcome:  "Store and edit recipes",
			Release:  domain.ReleaseMVP,
			Priority: domain.PriorityP0,
		}},
	}
	encoded, err := artifact.Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	// A generator that ignores its input and emits a fixed document.
	g := &CommandGenerator{Command: "cat <<'EOF'\n" + string(encoded) + "EOF\n#"}
	got, err := g.Generate(context.Background(), StageInput{
		IdeaID: "meal-planner",
		Stage:  artifact.TypeEpics,
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(got.Epics) != 1 || got.Epics[0].ID != "EPIC-001" {
		t.Errorf("Generate() = %+v", got)
	}
}

func TestCommandGenerator_WrongStageRejected(t *testing.T) {
	doc := &artifact.Document{
		IdeaID:      "meal-planner",
		Type:        artifact.TypeConcept,
		GeneratedAt: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		Concept:     &artifact.ConceptSummary{Title: "Recipe Planner", Capabilities: []string{"store recipes"}},
	}
	encoded, err := artifact.Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	g := &CommandGenerator{Command: "cat <<'EOF'\n" + string(encoded) + "EOF\n#"}
	if _, err := g.Generate(context.Background(), StageInput{Stage: artifact.TypeEpics}); err == nil {
		t.Fatal("Generate() accepted a document of the wrong stage")
	}
}

func TestCommandGenerator_FailingCommand(t *testing.T) {
	g := &CommandGenerator{Command: "exit 9 ;"}
	if _, err := g.Generate(context.Background(), StageInput{Stage: artifact.TypeEpics}); err == nil {
		t.Fatal("Generate() swallowed a command failure")
	}
}

func TestStatic(t *testing.T) {
	s := &Static{Docs: map[artifact.Type]*artifact.Document{
		artifact.TypeEpics: {Type: artifact.TypeEpics},
	}}
	got, err := s.Generate(context.Background(), StageInput{IdeaID: "meal-planner", Stage: artifact.TypeEpics})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got.IdeaID != "meal-planner" {
		t.Errorf("IdeaID = %q", got.IdeaID)
	}
	if _, err := s.Generate(context.Background(), StageInput{Stage: artifact.TypeTasks}); err == nil {
		t.Fatal("Generate() for a missing stage succeeded")
	}
}
