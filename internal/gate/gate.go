// Package gate certifies each planning layer against its parent layer
// before downstream stages consume it: coverage of parent scope,
// non-overlap between siblings, referential metadata, and compliance
// with the concept's invariants and exclusions.
package gate

import (
	"fmt"
	"sort"
	"strings"
)

// FindingKind classifies a gate finding.
type FindingKind string

// Finding kinds
const (
	FindingCoverageGap        FindingKind = "CoverageGap"
	FindingOverlap            FindingKind = "Overlap"
	FindingMetadataDefect     FindingKind = "MetadataDefect"
	FindingInvariantViolation FindingKind = "InvariantViolation"
)

// Severity classifies how a finding affects the verdict.
type Severity string

// Severities
const (
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// Verdict is the gate's overall judgment of a layer.
type Verdict string

// Verdicts
const (
	VerdictPass             Verdict = "PASS"
	VerdictPassWithWarnings Verdict = "PASS_WITH_WARNINGS"
	VerdictFail             Verdict = "FAIL"
)

// Finding is one itemized defect with a minimal suggested edit. The
// gate never invents scope and never renumbers IDs.
type Finding struct {
	Kind          FindingKind
	Severity      Severity
	ParentRef     string
	ChildRef      string
	Detail        string
	SuggestedEdit string
}

// Report is the structured output of one gate run.
type Report struct {
	Layer    string
	Verdict  Verdict
	Findings []Finding

	// Coverage maps each parent scope item to the children that cover it.
	Coverage map[string][]string
	// Ownership maps each child to its declared parent.
	Ownership map[string]string
}

// Counts tallies findings by kind.
func (r *Report) Counts() map[FindingKind]int {
	counts := make(map[FindingKind]int)
	for _, f := range r.Findings {
		counts[f.Kind]++
	}
	return counts
}

// CriticalCount returns the number of critical findings.
func (r *Report) CriticalCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Summary renders a one-line digest for logs and events.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: %s (%d findings, %d critical)",
		r.Layer, r.Verdict, len(r.Findings), r.CriticalCount())
}

// Render formats the whole report as a markdown document for
// persisting alongside a run's artifacts.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Validation: %s\n\nVerdict: %s\n", r.Layer, r.Verdict)
	if len(r.Findings) > 0 {
		b.WriteString("\n## Findings\n\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Severity, f.Kind, f.Detail)
			if f.SuggestedEdit != "" {
				fmt.Fprintf(&b, "  - fix: %s\n", f.SuggestedEdit)
			}
		}
	}
	if len(r.Coverage) > 0 {
		b.WriteString("\n## Coverage\n\n")
		items := make([]string, 0, len(r.Coverage))
		for item := range r.Coverage {
			items = append(items, item)
		}
		sort.Strings(items)
		for _, item := range items {
			covered := strings.Join(r.Coverage[item], ", ")
			if covered == "" {
				covered = "MISSING"
			}
			fmt.Fprintf(&b, "- %s: %s\n", item, covered)
		}
	}
	return b.String()
}

// Warnings renders the findings as provenance warning strings.
func (r *Report) Warnings() []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, fmt.Sprintf("%s [%s] %s", f.Kind, f.Severity, f.Detail))
	}
	return out
}

// scopeItem is one parent text unit the children must cover.
type scopeItem struct {
	parentID string
	text     string
}

// childItem is one downstream record with its matchable text. group is
// the unit overlap is judged across: the child's owning epic for
// features, the owning feature for tasks, the epic itself at the epic
// layer.
type childItem struct {
	id       string
	parentID string
	group    string
	text     string
}

// Options configures a gate run.
type Options struct {
	// Matcher is the coverage heuristic. Nil means KeywordMatcher{}.
	Matcher Matcher

	// OverlapThreshold is the number of distinct parents a single scope
	// item may match before it is flagged as an overlap candidate.
	// Zero means the default of 2.
	OverlapThreshold int

	// AllowPatch enables emission of a patched document with minimal
	// ID-preserving edits. Without it the gate only reports.
	AllowPatch bool
}

func (o Options) matcher() Matcher {
	if o.Matcher == nil {
		return KeywordMatcher{}
	}
	return o.Matcher
}

func (o Options) overlapThreshold() int {
	if o.OverlapThreshold <= 0 {
		return 2
	}
	return o.OverlapThreshold
}

// check runs the generic layer algorithm: coverage, ownership,
// invariant compliance, verdict.
func check(layer string, parents []scopeItem, parentIDs map[string]bool, children []childItem, invariants []string, opts Options) *Report {
	m := opts.matcher()
	report := &Report{
		Layer:     layer,
		Coverage:  make(map[string][]string),
		Ownership: make(map[string]string),
	}

	// 1. Coverage and overlap per parent scope item.
	for _, item := range parents {
		var covered []string
		matchedGroups := make(map[string]bool)
		for _, child := range children {
			if m.Match(item.text, child.text) {
				covered = append(covered, child.id)
				matchedGroups[child.group] = true
			}
		}
		sort.Strings(covered)
		report.Coverage[item.text] = covered

		if len(covered) == 0 {
			report.Findings = append(report.Findings, Finding{
				Kind:      FindingCoverageGap,
				Severity:  SeverityWarning,
				ParentRef: item.parentID,
				Detail:    fmt.Sprintf("scope item %q of %s is MISSING: no child covers it", item.text, item.parentID),
				SuggestedEdit: fmt.Sprintf("extend an existing child of %s to cover %q, or record the gap; do not invent new scope",
					item.parentID, item.text),
			})
		} else if len(matchedGroups) > opts.overlapThreshold() {
			report.Findings = append(report.Findings, Finding{
				Kind:      FindingOverlap,
				Severity:  SeverityWarning,
				ParentRef: item.parentID,
				Detail: fmt.Sprintf("scope item %q matches children under %d different parents; likely duplicated ownership",
					item.text, len(matchedGroups)),
				SuggestedEdit: "narrow the overlapping children so exactly one parent owns this scope",
			})
		}
	}

	// 2. Ownership: every child must reference an existing parent.
	for _, child := range children {
		report.Ownership[child.id] = child.parentID
		if !parentIDs[child.parentID] {
			report.Findings = append(report.Findings, Finding{
				Kind:          FindingMetadataDefect,
				Severity:      SeverityCritical,
				ChildRef:      child.id,
				ParentRef:     child.parentID,
				Detail:        fmt.Sprintf("%s references parent %s which does not exist", child.id, child.parentID),
				SuggestedEdit: fmt.Sprintf("point %s at an existing parent ID; IDs are never renumbered", child.id),
			})
		}
	}

	// 3. Concept invariants and exclusions against each child.
	for _, invariant := range invariants {
		for _, child := range children {
			if m.Match(invariant, child.text) {
				report.Findings = append(report.Findings, Finding{
					Kind:      FindingInvariantViolation,
					Severity:  SeverityCritical,
					ParentRef: invariant,
					ChildRef:  child.id,
					Detail: fmt.Sprintf("%s appears to take on excluded or invariant-protected scope: %q",
						child.id, invariant),
					SuggestedEdit: fmt.Sprintf("move the conflicting bullet of %s to out_of_scope", child.id),
				})
			}
		}
	}

	// 4. Verdict.
	switch {
	case report.CriticalCount() > 0:
		report.Verdict = VerdictFail
	case len(report.Findings) > 0:
		report.Verdict = VerdictPassWithWarnings
	default:
		report.Verdict = VerdictPass
	}
	return report
}
