package artifact

import (
	"fmt"

	"github.com/planforge/planforge/internal/domain"
)

// Validate checks the Epic against domain rules
func (e *Epic) Validate() error {
	if err := e.ID.Validate(); err != nil {
		return fmt.Errorf("invalid epic ID: %w", err)
	}
	if e.Title == "" {
		return fmt.Errorf("epic %s: title cannot be empty", e.ID)
	}
	if err := e.Release.Validate(); err != nil {
		return fmt.Errorf("epic %s: %w", e.ID, err)
	}
	if err := e.Priority.Validate(); err != nil {
		return fmt.Errorf("epic %s: %w", e.ID, err)
	}
	for i, dep := range e.Dependencies {
		if err := dep.Validate(); err != nil {
			return fmt.Errorf("epic %s: dependency at index %d: %w", e.ID, i, err)
		}
	}
	return nil
}

// Validate checks the Feature against domain rules
func (f *Feature) Validate() error {
	if err := f.ID.Validate(); err != nil {
		return fmt.Errorf("invalid feature ID: %w", err)
	}
	if err := f.EpicID.Validate(); err != nil {
		return fmt.Errorf("feature %s: invalid epic ID: %w", f.ID, err)
	}
	if f.Title == "" {
		return fmt.Errorf("feature %s: title cannot be empty", f.ID)
	}
	if err := f.Release.Validate(); err != nil {
		return fmt.Errorf("feature %s: %w", f.ID, err)
	}
	if err := f.Priority.Validate(); err != nil {
		return fmt.Errorf("feature %s: %w", f.ID, err)
	}
	for i, dep := range f.Dependencies {
		if err := dep.Validate(); err != nil {
			return fmt.Errorf("feature %s: dependency at index %d: %w", f.ID, i, err)
		}
	}
	return nil
}

// Validate checks the Task against domain rules
func (t *Task) Validate() error {
	if err := t.ID.Validate(); err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}
	if err := t.FeatureID.Validate(); err != nil {
		return fmt.Errorf("task %s: invalid feature ID: %w", t.ID, err)
	}
	if err := t.EpicID.Validate(); err != nil {
		return fmt.Errorf("task %s: invalid epic ID: %w", t.ID, err)
	}
	if t.Title == "" {
		return fmt.Errorf("task %s: title cannot be empty", t.ID)
	}
	if err := t.Release.Validate(); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	if err := t.Priority.Validate(); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	if err := t.Estimate.Validate(); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	for i, dep := range t.Dependencies {
		if err := dep.Validate(); err != nil {
			return fmt.Errorf("task %s: dependency at index %d: %w", t.ID, i, err)
		}
	}
	return nil
}

// Validate checks the WorkPackage against domain rules
func (wp *WorkPackage) Validate() error {
	if err := wp.ID.Validate(); err != nil {
		return fmt.Errorf("invalid work package ID: %w", err)
	}
	if wp.IdeaID == "" {
		return fmt.Errorf("work package %s: idea ID cannot be empty", wp.ID)
	}
	if err := wp.Status.Validate(); err != nil {
		return fmt.Errorf("work package %s: %w", wp.ID, err)
	}
	if len(wp.Tasks) == 0 {
		return fmt.Errorf("work package %s: must contain at least one task", wp.ID)
	}
	seen := make(map[domain.TaskID]bool, len(wp.Tasks))
	for _, id := range wp.Tasks {
		if err := id.Validate(); err != nil {
			return fmt.Errorf("work package %s: %w", wp.ID, err)
		}
		if seen[id] {
			return fmt.Errorf("work package %s: duplicate task %s", wp.ID, id)
		}
		seen[id] = true
	}
	return nil
}

// Validate checks the document's structured block for internal
// consistency: IDs are well formed and unique, references resolve, and
// every task's epic matches its parent feature's epic.
func (d *Document) Validate() error {
	if d.IdeaID == "" {
		return fmt.Errorf("document idea ID cannot be empty")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("unknown artifact type %q", d.Type)
	}

	switch d.Type {
	case TypeConcept:
		if d.Concept == nil {
			return fmt.Errorf("concept document must carry a concept summary")
		}
		if d.Concept.Title == "" {
			return fmt.Errorf("concept title cannot be empty")
		}
	case TypeEpics:
		return d.validateEpics()
	case TypeFeatures:
		return d.validateFeatures()
	case TypeTasks:
		return d.validateTasks()
	case TypeWorkPackages:
		return d.validateWorkPackages()
	}
	return nil
}

func (d *Document) validateEpics() error {
	seen := make(map[domain.EpicID]bool, len(d.Epics))
	for i := range d.Epics {
		e := &d.Epics[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("epic at index %d: %w", i, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate epic ID %s at index %d", e.ID, i)
		}
		seen[e.ID] = true
	}
	for i := range d.Epics {
		for _, dep := range d.Epics[i].Dependencies {
			if !seen[dep] {
				return fmt.Errorf("epic %s depends on unknown epic %s", d.Epics[i].ID, dep)
			}
		}
	}
	return nil
}

func (d *Document) validateFeatures() error {
	seen := make(map[domain.FeatureID]bool, len(d.Features))
	for i := range d.Features {
		f := &d.Features[i]
		if err := f.Validate(); err != nil {
			return fmt.Errorf("feature at index %d: %w", i, err)
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate feature ID %s at index %d", f.ID, i)
		}
		seen[f.ID] = true
	}
	for i := range d.Features {
		for _, dep := range d.Features[i].Dependencies {
			if !seen[dep] {
				return fmt.Errorf("feature %s depends on unknown feature %s", d.Features[i].ID, dep)
			}
		}
	}
	return nil
}

func (d *Document) validateTasks() error {
	seen := make(map[domain.TaskID]bool, len(d.Tasks))
	for i := range d.Tasks {
		t := &d.Tasks[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task at index %d: %w", i, err)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task ID %s at index %d", t.ID, i)
		}
		seen[t.ID] = true
	}
	for i := range d.Tasks {
		for _, dep := range d.Tasks[i].Dependencies {
			if !seen[dep] {
				return fmt.Errorf("task %s depends on unknown task %s", d.Tasks[i].ID, dep)
			}
		}
	}
	return nil
}

func (d *Document) validateWorkPackages() error {
	seen := make(map[domain.WorkPackageID]bool, len(d.WorkPackages))
	assigned := make(map[domain.TaskID]domain.WorkPackageID)
	for i := range d.WorkPackages {
		wp := &d.WorkPackages[i]
		if err := wp.Validate(); err != nil {
			return fmt.Errorf("work package at index %d: %w", i, err)
		}
		if seen[wp.ID] {
			return fmt.Errorf("duplicate work package ID %s at index %d", wp.ID, i)
		}
		seen[wp.ID] = true
		for _, taskID := range wp.Tasks {
			if owner, ok := assigned[taskID]; ok {
				return fmt.Errorf("task %s assigned to both %s and %s", taskID, owner, wp.ID)
			}
			assigned[taskID] = wp.ID
		}
	}
	return nil
}

// CheckTaskEpicConsistency verifies every task's epic_id equals its
// parent feature's epic_id against a features document.
func CheckTaskEpicConsistency(tasks *Document, features *Document) error {
	featureIdx := features.FeatureIndex()
	for i := range tasks.Tasks {
		t := &tasks.Tasks[i]
		f, ok := featureIdx[t.FeatureID]
		if !ok {
			return fmt.Errorf("task %s references unknown feature %s", t.ID, t.FeatureID)
		}
		if f.EpicID != t.EpicID {
			return fmt.Errorf("task %s carries epic %s but its feature %s belongs to epic %s",
				t.ID, t.EpicID, t.FeatureID, f.EpicID)
		}
	}
	return nil
}
