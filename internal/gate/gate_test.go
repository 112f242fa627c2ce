package gate

import (
	"strings"
	"testing"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/domain"
)

func testConcept() *artifact.ConceptSummary {
	return &artifact.ConceptSummary{
		Title:   "Recipe Planner",
		Summary: "Plan weekly meals from stored recipes",
		Capabilities: []string{
			"store and edit recipes",
			"generate weekly meal plans",
			"produce shopping lists from a meal plan",
			"track pantry inventory levels",
			"export plans to external calendars",
		},
		Invariants: []string{"recipe history is never deleted"},
		Exclusions: []string{"payment processing and billing"},
	}
}

func testEpics() []artifact.Epic {
	return []artifact.Epic{
		{
			ID: domain.EpicID("EPIC-001"), Title: "Recipe management",
			Outcome: "Store, edit and organize recipes",
			InScope: []string{"store recipes with ingredients", "edit recipe details"},
			Release: domain.ReleaseMVP, Priority: domain.PriorityP0,
		},
		{
			ID: domain.EpicID("EPIC-002"), Title: "Meal planning",
			Outcome: "Generate weekly meal plans from stored recipes",
			InScope: []string{"generate weekly meal plans"},
			Release: domain.ReleaseMVP, Priority: domain.PriorityP0,
		},
		{
			ID: domain.EpicID("EPIC-003"), Title: "Shopping lists",
			Outcome: "Produce shopping lists from a meal plan",
			Release: domain.ReleaseMVP, Priority: domain.PriorityP1,
		},
		{
			ID: domain.EpicID("EPIC-004"), Title: "Pantry tracking",
			Outcome: "Track pantry inventory levels over time",
			Release: domain.ReleaseV1, Priority: domain.PriorityP1,
		},
		{
			ID: domain.EpicID("EPIC-005"), Title: "Notifications",
			Outcome: "Remind cooks about planned meals",
			Release: domain.ReleaseLater, Priority: domain.PriorityP2,
		},
	}
}

func TestCheckEpics_UnmappedCapabilityWarns(t *testing.T) {
	// Five epics, but nothing covers the calendar export capability.
	report := CheckEpics(testConcept(), testEpics(), Options{})

	if report.Verdict != VerdictPassWithWarnings {
		t.Fatalf("Verdict = %s, want %s; findings: %+v", report.Verdict, VerdictPassWithWarnings, report.Findings)
	}
	counts := report.Counts()
	if counts[FindingCoverageGap] != 1 {
		t.Errorf("CoverageGap count = %d, want 1; findings: %+v", counts[FindingCoverageGap], report.Findings)
	}
	var gap Finding
	for _, f := range report.Findings {
		if f.Kind == FindingCoverageGap {
			gap = f
		}
	}
	if gap.Severity != SeverityWarning {
		t.Errorf("gap severity = %s, want %s", gap.Severity, SeverityWarning)
	}
	if !strings.Contains(gap.Detail, "MISSING") || !strings.Contains(gap.Detail, "calendar") {
		t.Errorf("gap detail = %q", gap.Detail)
	}

	covered := report.Coverage["generate weekly meal plans"]
	if len(covered) == 0 {
		t.Error("meal plan capability has no coverage entry")
	}
}

func TestCheckEpics_FullCoveragePasses(t *testing.T) {
	concept := testConcept()
	concept.Capabilities = concept.Capabilities[:4]
	epics := testEpics()[:4]

	report := CheckEpics(concept, epics, Options{})
	if report.Verdict != VerdictPass {
		t.Fatalf("Verdict = %s, want %s; findings: %+v", report.Verdict, VerdictPass, report.Findings)
	}
	if len(report.Findings) != 0 {
		t.Errorf("Findings = %+v, want none", report.Findings)
	}
}

func TestCheckEpics_ExclusionViolationFails(t *testing.T) {
	epics := testEpics()
	epics[4].InScope = []string{"payment processing for premium billing plans"}

	report := CheckEpics(testConcept(), epics, Options{})
	if report.Verdict != VerdictFail {
		t.Fatalf("Verdict = %s, want %s", report.Verdict, VerdictFail)
	}
	counts := report.Counts()
	if counts[FindingInvariantViolation] != 1 {
		t.Errorf("InvariantViolation count = %d, want 1; findings: %+v", counts[FindingInvariantViolation], report.Findings)
	}
}

func TestCheckFeatures_OrphanFeatureFails(t *testing.T) {
	features := []artifact.Feature{
		{
			ID: domain.FeatureID("FEAT-001"), EpicID: domain.EpicID("EPIC-001"),
			Title: "Recipe editor", Outcome: "Store recipes with ingredients and edit recipe details",
			Release: domain.ReleaseMVP, Priority: domain.PriorityP0,
		},
		{
			ID: domain.FeatureID("FEAT-002"), EpicID: domain.EpicID("EPIC-099"),
			Title: "Ghost feature", Outcome: "References an epic nobody wrote",
			Release: domain.ReleaseMVP, Priority: domain.PriorityP0,
		},
	}

	report := CheckFeatures(testConcept(), testEpics()[:1], features, Options{})
	if report.Verdict != VerdictFail {
		t.Fatalf("Verdict = %s, want %s; findings: %+v", report.Verdict, VerdictFail, report.Findings)
	}
	var defect Finding
	for _, f := range report.Findings {
		if f.Kind == FindingMetadataDefect {
			defect = f
		}
	}
	if defect.ChildRef != "FEAT-002" || defect.ParentRef != "EPIC-099" {
		t.Errorf("defect refs = %q -> %q", defect.ChildRef, defect.ParentRef)
	}
	if report.Ownership["FEAT-002"] != "EPIC-099" {
		t.Errorf("Ownership[FEAT-002] = %q", report.Ownership["FEAT-002"])
	}
}

func TestCheckFeatures_OverlapAcrossEpicsWarns(t *testing.T) {
	epics := testEpics()[:3]
	// One in_scope item, claimed by features under three different epics.
	epics[0].InScope = []string{"generate shopping lists automatically"}
	epics[1].InScope = nil
	epics[2].InScope = nil

	features := []artifact.Feature{
		{ID: domain.FeatureID("FEAT-001"), EpicID: domain.EpicID("EPIC-001"), Title: "List builder", Outcome: "generate shopping lists from the plan", Release: domain.ReleaseMVP, Priority: domain.PriorityP0},
		{ID: domain.FeatureID("FEAT-002"), EpicID: domain.EpicID("EPIC-002"), Title: "Plan lists", Outcome: "generate shopping lists weekly", Release: domain.ReleaseMVP, Priority: domain.PriorityP0},
		{ID: domain.FeatureID("FEAT-003"), EpicID: domain.EpicID("EPIC-003"), Title: "Smart lists", Outcome: "generate shopping lists on demand", Release: domain.ReleaseMVP, Priority: domain.PriorityP1},
	}

	report := CheckFeatures(nil, epics, features, Options{})
	if report.Counts()[FindingOverlap] != 1 {
		t.Fatalf("Overlap count = %d, want 1; findings: %+v", report.Counts()[FindingOverlap], report.Findings)
	}
	if report.Verdict != VerdictPassWithWarnings {
		t.Errorf("Verdict = %s, want %s", report.Verdict, VerdictPassWithWarnings)
	}
}

func TestCheckTasks_EpicMismatchFails(t *testing.T) {
	features := []artifact.Feature{
		{
			ID: domain.FeatureID("FEAT-001"), EpicID: domain.EpicID("EPIC-001"),
			Title: "Recipe editor", Outcome: "Edit recipes",
			AcceptanceCriteria: []string{"saving a recipe persists its ingredients"},
			Release:            domain.ReleaseMVP, Priority: domain.PriorityP0,
		},
	}
	tasks := []artifact.Task{
		{
			ID: domain.TaskID("TASK-001"), FeatureID: domain.FeatureID("FEAT-001"),
			EpicID: domain.EpicID("EPIC-002"), Title: "Persist recipe ingredients",
			Description: "saving a recipe persists its ingredients to storage",
			Release:     domain.ReleaseMVP, Priority: domain.PriorityP0, Estimate: domain.EstimateS,
		},
	}

	report := CheckTasks(nil, features, tasks, Options{})
	if report.Verdict != VerdictFail {
		t.Fatalf("Verdict = %s, want %s; findings: %+v", report.Verdict, VerdictFail, report.Findings)
	}
	counts := report.Counts()
	if counts[FindingMetadataDefect] != 1 {
		t.Errorf("MetadataDefect count = %d, want 1", counts[FindingMetadataDefect])
	}
}

func TestCheckLayer_DispatchesByType(t *testing.T) {
	upstream := map[artifact.Type]*artifact.Document{
		artifact.TypeConcept: {Type: artifact.TypeConcept, Concept: testConcept()},
	}
	doc := &artifact.Document{Type: artifact.TypeEpics, Epics: testEpics()}

	report := CheckLayer(doc, upstream, Options{})
	if report.Layer != "epics" {
		t.Errorf("Layer = %q, want epics", report.Layer)
	}
	if report.Verdict != VerdictPassWithWarnings {
		t.Errorf("Verdict = %s, want %s", report.Verdict, VerdictPassWithWarnings)
	}
}

func TestPatch_MovesOffendingBulletOutOfScope(t *testing.T) {
	epics := testEpics()
	epics[4].InScope = []string{"payment processing for premium billing plans", "send meal reminders"}
	doc := &artifact.Document{Type: artifact.TypeEpics, Epics: epics}

	report := CheckEpics(testConcept(), doc.Epics, Options{AllowPatch: true})
	if report.Verdict != VerdictFail {
		t.Fatalf("Verdict = %s, want %s", report.Verdict, VerdictFail)
	}

	if !Patch(doc, report, nil) {
		t.Fatal("Patch() = false, want true")
	}
	patched := doc.Epics[4]
	if len(patched.InScope) != 1 || patched.InScope[0] != "send meal reminders" {
		t.Errorf("InScope = %v", patched.InScope)
	}
	if len(patched.OutOfScope) != 1 || !strings.Contains(patched.OutOfScope[0], "payment") {
		t.Errorf("OutOfScope = %v", patched.OutOfScope)
	}
	if patched.ID != domain.EpicID("EPIC-005") {
		t.Errorf("patch renumbered the epic: %s", patched.ID)
	}

	// A second run on the patched document no longer trips the exclusion.
	again := CheckEpics(testConcept(), doc.Epics, Options{})
	if again.Counts()[FindingInvariantViolation] != 0 {
		t.Errorf("patched document still violates: %+v", again.Findings)
	}
}
