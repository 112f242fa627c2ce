package gate

import (
	"strings"

	"github.com/planforge/planforge/internal/artifact"
)

// CheckEpics validates an epics document against its concept: every
// concept capability must be covered by at least one epic, no capability
// may be claimed by too many epics, and no epic may absorb scope the
// concept excludes or protects with an invariant.
func CheckEpics(concept *artifact.ConceptSummary, epics []artifact.Epic, opts Options) *Report {
	var parents []scopeItem
	var invariants []string
	if concept != nil {
		for _, capability := range concept.Capabilities {
			parents = append(parents, scopeItem{parentID: "concept", text: capability})
		}
		invariants = append(append(invariants, concept.Invariants...), concept.Exclusions...)
	}

	parentIDs := map[string]bool{"concept": true}
	children := make([]childItem, 0, len(epics))
	for _, e := range epics {
		children = append(children, childItem{
			id:       e.ID.String(),
			parentID: "concept",
			group:    e.ID.String(),
			text:     epicText(e),
		})
	}

	return check("epics", parents, parentIDs, children, invariants, opts)
}

// CheckFeatures validates a features document against its epics. Parent
// scope is each epic's in_scope bullets; every feature must name an
// existing epic; concept invariants and exclusions still apply.
func CheckFeatures(concept *artifact.ConceptSummary, epics []artifact.Epic, features []artifact.Feature, opts Options) *Report {
	var parents []scopeItem
	parentIDs := make(map[string]bool, len(epics))
	for _, e := range epics {
		parentIDs[e.ID.String()] = true
		for _, item := range e.InScope {
			parents = append(parents, scopeItem{parentID: e.ID.String(), text: item})
		}
	}

	children := make([]childItem, 0, len(features))
	for _, f := range features {
		children = append(children, childItem{
			id:       f.ID.String(),
			parentID: f.EpicID.String(),
			group:    f.EpicID.String(),
			text:     featureText(f),
		})
	}

	var invariants []string
	if concept != nil {
		invariants = append(append(invariants, concept.Invariants...), concept.Exclusions...)
	}
	return check("features", parents, parentIDs, children, invariants, opts)
}

// CheckTasks validates a tasks document against its features. Parent
// scope is each feature's acceptance criteria. A task whose epic_id
// disagrees with its feature's epic is a metadata defect on top of the
// generic ownership check.
func CheckTasks(concept *artifact.ConceptSummary, features []artifact.Feature, tasks []artifact.Task, opts Options) *Report {
	var parents []scopeItem
	parentIDs := make(map[string]bool, len(features))
	featureEpic := make(map[string]string, len(features))
	for _, f := range features {
		parentIDs[f.ID.String()] = true
		featureEpic[f.ID.String()] = f.EpicID.String()
		for _, crit := range f.AcceptanceCriteria {
			parents = append(parents, scopeItem{parentID: f.ID.String(), text: crit})
		}
	}

	children := make([]childItem, 0, len(tasks))
	for _, t := range tasks {
		children = append(children, childItem{
			id:       t.ID.String(),
			parentID: t.FeatureID.String(),
			group:    t.FeatureID.String(),
			text:     taskText(t),
		})
	}

	var invariants []string
	if concept != nil {
		invariants = append(append(invariants, concept.Invariants...), concept.Exclusions...)
	}
	report := check("tasks", parents, parentIDs, children, invariants, opts)

	for _, t := range tasks {
		want, ok := featureEpic[t.FeatureID.String()]
		if ok && t.EpicID.String() != want {
			report.Findings = append(report.Findings, Finding{
				Kind:          FindingMetadataDefect,
				Severity:      SeverityCritical,
				ChildRef:      t.ID.String(),
				ParentRef:     t.FeatureID.String(),
				Detail:        t.ID.String() + " declares epic " + t.EpicID.String() + " but its feature belongs to " + want,
				SuggestedEdit: "set epic_id of " + t.ID.String() + " to " + want,
			})
		}
	}
	if report.CriticalCount() > 0 {
		report.Verdict = VerdictFail
	}
	return report
}

// CheckLayer dispatches on the document's artifact type, resolving the
// upstream layers from the given documents.
func CheckLayer(doc *artifact.Document, upstream map[artifact.Type]*artifact.Document, opts Options) *Report {
	concept := conceptOf(upstream)
	switch doc.Type {
	case artifact.TypeEpics:
		return CheckEpics(concept, doc.Epics, opts)
	case artifact.TypeFeatures:
		var epics []artifact.Epic
		if up, ok := upstream[artifact.TypeEpics]; ok {
			epics = up.Epics
		}
		return CheckFeatures(concept, epics, doc.Features, opts)
	case artifact.TypeTasks:
		var features []artifact.Feature
		if up, ok := upstream[artifact.TypeFeatures]; ok {
			features = up.Features
		}
		return CheckTasks(concept, features, doc.Tasks, opts)
	default:
		return &Report{
			Layer:     doc.Type.String(),
			Verdict:   VerdictPass,
			Coverage:  map[string][]string{},
			Ownership: map[string]string{},
		}
	}
}

func conceptOf(upstream map[artifact.Type]*artifact.Document) *artifact.ConceptSummary {
	if up, ok := upstream[artifact.TypeConcept]; ok {
		return up.Concept
	}
	return nil
}

// Patch applies the minimal mechanical edit the gate is allowed to
// make: for each invariant violation, move the offending in_scope
// bullet of the named child to out_of_scope. IDs, ordering and all
// other fields are untouched. It returns whether anything changed.
// Patch never invents scope, so coverage gaps are left for a human.
func Patch(doc *artifact.Document, report *Report, m Matcher) bool {
	if m == nil {
		m = KeywordMatcher{}
	}
	changed := false
	for _, f := range report.Findings {
		if f.Kind != FindingInvariantViolation {
			continue
		}
		switch doc.Type {
		case artifact.TypeEpics:
			for i := range doc.Epics {
				if doc.Epics[i].ID.String() != f.ChildRef {
					continue
				}
				if moveOffendingBullets(&doc.Epics[i].InScope, &doc.Epics[i].OutOfScope, f.ParentRef, m) {
					changed = true
				}
			}
		case artifact.TypeFeatures:
			for i := range doc.Features {
				if doc.Features[i].ID.String() != f.ChildRef {
					continue
				}
				if moveOffendingBullets(&doc.Features[i].InScope, &doc.Features[i].OutOfScope, f.ParentRef, m) {
					changed = true
				}
			}
		}
	}
	return changed
}

func moveOffendingBullets(in *[]string, out *[]string, offendingText string, m Matcher) bool {
	var kept []string
	moved := false
	for _, bullet := range *in {
		if m.Match(offendingText, bullet) {
			*out = append(*out, bullet)
			moved = true
			continue
		}
		kept = append(kept, bullet)
	}
	if moved {
		*in = kept
	}
	return moved
}

func epicText(e artifact.Epic) string {
	parts := []string{e.Title, e.Outcome, e.Description}
	parts = append(parts, e.InScope...)
	return strings.Join(parts, " ")
}

func featureText(f artifact.Feature) string {
	parts := []string{f.Title, f.Outcome}
	parts = append(parts, f.AcceptanceCriteria...)
	parts = append(parts, f.InScope...)
	return strings.Join(parts, " ")
}

func taskText(t artifact.Task) string {
	parts := []string{t.Title, t.Description}
	parts = append(parts, t.AcceptanceCriteria...)
	return strings.Join(parts, " ")
}
