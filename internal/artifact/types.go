package artifact

import (
	"time"

	"github.com/planforge/planforge/internal/domain"
)

// Type identifies an artifact type within an idea's namespace.
type Type string

// Artifact types, one per pipeline stage output
const (
	TypeConcept      Type = "concept"
	TypeEpics        Type = "epics"
	TypeFeatures     Type = "features"
	TypeTasks        Type = "tasks"
	TypeWorkPackages Type = "workpackages"
)

// KnownTypes lists all artifact types in pipeline order
var KnownTypes = []Type{TypeConcept, TypeEpics, TypeFeatures, TypeTasks, TypeWorkPackages}

// Valid reports whether t is a known artifact type
func (t Type) Valid() bool {
	for _, k := range KnownTypes {
		if t == k {
			return true
		}
	}
	return false
}

// String returns the string representation
func (t Type) String() string { return string(t) }

// ConceptSummary is the root planning document for an idea. Its
// capabilities seed epic extraction; its invariants and exclusions are
// enforced downstream by the validation gate.
type ConceptSummary struct {
	Title        string   `yaml:"title"`
	Summary      string   `yaml:"summary,omitempty"`
	Capabilities []string `yaml:"capabilities"`
	Invariants   []string `yaml:"invariants,omitempty"`
	Exclusions   []string `yaml:"exclusions,omitempty"`
}

// Epic is a subsystem-level outcome. IDs are stable and sequential and
// are never renumbered once created.
type Epic struct {
	ID           domain.EpicID        `yaml:"id"`
	Title        string               `yaml:"title"`
	Outcome      string               `yaml:"outcome"`
	Description  string               `yaml:"description,omitempty"`
	InScope      []string             `yaml:"in_scope,omitempty"`
	OutOfScope   []string             `yaml:"out_of_scope,omitempty"`
	KeyArtifacts []string             `yaml:"key_artifacts,omitempty"`
	Dependencies []domain.EpicID      `yaml:"dependencies,omitempty"`
	Release      domain.ReleaseTarget `yaml:"release_target"`
	Priority     domain.Priority      `yaml:"priority"`
	Tags         []string             `yaml:"tags,omitempty"`
}

// Feature is a user-visible slice of an epic.
type Feature struct {
	ID                 domain.FeatureID     `yaml:"id"`
	EpicID             domain.EpicID        `yaml:"epic_id"`
	Title              string               `yaml:"title"`
	Outcome            string               `yaml:"outcome"`
	AcceptanceCriteria []string             `yaml:"acceptance_criteria,omitempty"`
	InScope            []string             `yaml:"in_scope,omitempty"`
	OutOfScope         []string             `yaml:"out_of_scope,omitempty"`
	Dependencies       []domain.FeatureID   `yaml:"dependencies,omitempty"`
	Release            domain.ReleaseTarget `yaml:"release_target"`
	Priority           domain.Priority      `yaml:"priority"`
	Tags               []string             `yaml:"tags,omitempty"`
}

// Task is a 1-2 day unit of work. epic_id always matches the parent
// feature's epic.
type Task struct {
	ID                 domain.TaskID        `yaml:"id"`
	FeatureID          domain.FeatureID     `yaml:"feature_id"`
	EpicID             domain.EpicID        `yaml:"epic_id"`
	Title              string               `yaml:"title"`
	Description        string               `yaml:"description,omitempty"`
	AcceptanceCriteria []string             `yaml:"acceptance_criteria,omitempty"`
	Dependencies       []domain.TaskID      `yaml:"dependencies,omitempty"`
	Release            domain.ReleaseTarget `yaml:"release_target"`
	Priority           domain.Priority      `yaml:"priority"`
	Estimate           domain.Estimate      `yaml:"estimate"`
	Tags               []string             `yaml:"tags,omitempty"`
}

// Blocker describes why a work package stopped and what unblocks it.
type Blocker struct {
	Reason     string    `yaml:"reason"`
	Needed     string    `yaml:"needed"`
	RecordedAt time.Time `yaml:"recorded_at"`
}

// WorkPackage is a size-bounded, dependency-respecting batch of tasks
// scheduled and executed as one unit. Created by the scheduler,
// exclusively mutated by the lifecycle controller thereafter.
type WorkPackage struct {
	ID             domain.WorkPackageID `yaml:"id"`
	IdeaID         string               `yaml:"idea_id"`
	Status         domain.WPStatus      `yaml:"status"`
	Tasks          []domain.TaskID      `yaml:"tasks"`
	Goal           string               `yaml:"goal"`
	Dependencies   []string             `yaml:"dependencies,omitempty"`
	PlanDocRef     string               `yaml:"plan_doc_ref,omitempty"`
	VerifyCommands []string             `yaml:"verify_commands,omitempty"`
	StartedAt      *time.Time           `yaml:"started_at,omitempty"`
	CompletedAt    *time.Time           `yaml:"completed_at,omitempty"`
	Blocker        *Blocker             `yaml:"blocker,omitempty"`
}

// Points returns the total estimate points of the package's tasks given
// the task set it draws from.
func (wp *WorkPackage) Points(tasks map[domain.TaskID]Task) int {
	total := 0
	for _, id := range wp.Tasks {
		if t, ok := tasks[id]; ok {
			total += t.Estimate.Points()
		}
	}
	return total
}

// Contains reports whether the package holds the given task.
func (wp *WorkPackage) Contains(id domain.TaskID) bool {
	for _, t := range wp.Tasks {
		if t == id {
			return true
		}
	}
	return false
}

// Document is one versioned artifact: a structured front-matter block
// (the parsed source of truth) plus a derived human-readable rendering.
type Document struct {
	IdeaID      string    `yaml:"idea_id"`
	Type        Type      `yaml:"artifact_type"`
	RunID       string    `yaml:"run_id,omitempty"`
	GeneratedAt time.Time `yaml:"generated_at"`

	Concept      *ConceptSummary `yaml:"concept,omitempty"`
	Epics        []Epic          `yaml:"epics,omitempty"`
	Features     []Feature       `yaml:"features,omitempty"`
	Tasks        []Task          `yaml:"tasks,omitempty"`
	WorkPackages []WorkPackage   `yaml:"workpackages,omitempty"`

	// Body is the derived rendering. Never authoritative.
	Body string `yaml:"-"`
}

// TaskIndex returns the document's tasks keyed by ID.
func (d *Document) TaskIndex() map[domain.TaskID]Task {
	idx := make(map[domain.TaskID]Task, len(d.Tasks))
	for _, t := range d.Tasks {
		idx[t.ID] = t
	}
	return idx
}

// FeatureIndex returns the document's features keyed by ID.
func (d *Document) FeatureIndex() map[domain.FeatureID]Feature {
	idx := make(map[domain.FeatureID]Feature, len(d.Features))
	for _, f := range d.Features {
		idx[f.ID] = f
	}
	return idx
}

// EpicIndex returns the document's epics keyed by ID.
func (d *Document) EpicIndex() map[domain.EpicID]Epic {
	idx := make(map[domain.EpicID]Epic, len(d.Epics))
	for _, e := range d.Epics {
		idx[e.ID] = e
	}
	return idx
}
