// Package schedule turns the validated task layer into work packages.
// Selection is deterministic: release target, then priority, then
// epic/feature grouping, then estimate, with IDs as the final tie
// breaker. Packaging is greedy under a point budget and cohesion rules,
// and the global index enforces that no task lands in two packages.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/depgraph"
	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/index"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/provenance"
)

// Filters narrows task selection. Zero values mean no filtering.
type Filters struct {
	Release  domain.ReleaseTarget
	Priority domain.Priority
	Epic     domain.EpicID
}

func (f Filters) admits(t artifact.Task) bool {
	if f.Release != "" && t.Release != f.Release {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Epic != "" && t.EpicID != f.Epic {
		return false
	}
	return true
}

// Options bounds work-package formation.
type Options struct {
	// MaxBatches caps how many packages one queue-work call may form.
	// Zero means the default of 4.
	MaxBatches int
	// MinPoints is the preferred lower bound per package. A package may
	// still close under it when nothing else fits. Zero means 4.
	MinPoints int
	// MaxPoints is the hard upper bound per package. Zero means 8.
	MaxPoints int
	// MinTasks is the preferred lower bound on tasks per package. A
	// package may still close under it when nothing else fits. Zero
	// means 1.
	MinTasks int
	// MaxTasks is the hard upper bound on tasks per package. Zero means 5.
	MaxTasks int
	// VerifyCommands seeds each new package's verification commands.
	VerifyCommands []string
}

func (o Options) maxBatches() int {
	if o.MaxBatches <= 0 {
		return 4
	}
	return o.MaxBatches
}

func (o Options) minPoints() int {
	if o.MinPoints <= 0 {
		return 4
	}
	return o.MinPoints
}

func (o Options) maxPoints() int {
	if o.MaxPoints <= 0 {
		return 8
	}
	return o.MaxPoints
}

func (o Options) minTasks() int {
	if o.MinTasks <= 0 {
		return 1
	}
	return o.MinTasks
}

func (o Options) maxTasks() int {
	if o.MaxTasks <= 0 {
		return 5
	}
	return o.MaxTasks
}

// Result is the outcome of one queue-work call.
type Result struct {
	Packages      []artifact.WorkPackage
	Unschedulable map[domain.TaskID]string
	Warnings      []string
	// Diagnostic explains an empty result: why nothing was eligible.
	Diagnostic string
}

// Scheduler forms work packages from the validated task layer.
type Scheduler struct {
	store  *artifact.Store
	idx    *index.Index
	logger *log.Logger
	opts   Options
}

// New creates a scheduler over the given store and index.
func New(store *artifact.Store, idx *index.Index, logger *log.Logger, opts Options) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{store: store, idx: idx, logger: logger, opts: opts}
}

// SelectEligibleTasks returns the idea's unassigned, unblocked tasks in
// scheduling order, plus the tasks that cannot be scheduled and why.
// Tasks whose dependencies are not yet satisfied are not in either
// list; they become eligible as their dependencies are packaged.
func (s *Scheduler) SelectEligibleTasks(ideaID string, f Filters) ([]artifact.Task, map[domain.TaskID]string, error) {
	doc, err := s.store.GetLatest(ideaID, artifact.TypeTasks)
	if err != nil {
		return nil, nil, err
	}
	graph, err := depgraph.Build(doc.Tasks)
	if err != nil {
		return nil, nil, err
	}
	assigned, err := s.idx.AssignedTasks(ideaID)
	if err != nil {
		return nil, nil, err
	}

	eligibleIDs, unschedulable := graph.Eligible(nil, assigned)
	var tasks []artifact.Task
	for _, id := range eligibleIDs {
		t, _ := graph.Task(id)
		if f.admits(t) {
			tasks = append(tasks, t)
		}
	}
	sortTasks(tasks)
	return tasks, unschedulable, nil
}

// sortTasks orders tasks by release rank, priority rank, epic and
// feature grouping, estimate ascending, then ID.
func sortTasks(tasks []artifact.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Release.Rank() != b.Release.Rank() {
			return a.Release.Rank() < b.Release.Rank()
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.EpicID != b.EpicID {
			return a.EpicID < b.EpicID
		}
		if a.FeatureID != b.FeatureID {
			return a.FeatureID < b.FeatureID
		}
		if a.Estimate.Rank() != b.Estimate.Rank() {
			return a.Estimate.Rank() < b.Estimate.Rank()
		}
		return a.ID < b.ID
	})
}

// FormWorkPackages selects eligible tasks and groups them into work
// packages under the point budget, writing each package to the global
// index and the new set to the artifact store. Returns an empty result
// with a diagnostic when nothing is eligible.
func (s *Scheduler) FormWorkPackages(ideaID string, f Filters) (*Result, error) {
	doc, err := s.store.GetLatest(ideaID, artifact.TypeTasks)
	if err != nil {
		return nil, err
	}
	graph, err := depgraph.Build(doc.Tasks)
	if err != nil {
		return nil, err
	}
	assigned, err := s.idx.AssignedTasks(ideaID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	eligibleIDs, unschedulable := graph.Eligible(nil, assigned)
	result.Unschedulable = unschedulable

	var pool []artifact.Task
	for _, id := range eligibleIDs {
		t, _ := graph.Task(id)
		if f.admits(t) {
			pool = append(pool, t)
		}
	}
	// Tasks whose dependencies are unpackaged but themselves packagable
	// join the pool too; closure is checked per batch as it fills.
	for _, t := range doc.Tasks {
		if !f.admits(t) {
			continue
		}
		if _, taken := assigned[t.ID]; taken {
			continue
		}
		if _, bad := unschedulable[t.ID]; bad {
			continue
		}
		if !containsTask(pool, t.ID) {
			pool = append(pool, t)
		}
	}
	sortTasks(pool)

	if len(pool) == 0 {
		result.Diagnostic = emptyDiagnostic(unschedulable, assigned)
		s.logger.Info("no work to queue", "idea_id", ideaID, "diagnostic", result.Diagnostic)
		s.appendEvent(ideaID, result)
		return result, nil
	}

	scheduled := make(map[domain.TaskID]struct{})
	remaining := pool
	for len(remaining) > 0 && len(result.Packages) < s.opts.maxBatches() {
		batch := s.fillBatch(graph, remaining, scheduled, assigned)
		if len(batch) == 0 {
			// Everything left is waiting on tasks that are not in any
			// batch yet and cannot be pulled in. Stop rather than spin.
			for _, t := range remaining {
				result.Unschedulable[t.ID] = "dependencies not satisfiable within this run"
			}
			break
		}

		wp, warnings, err := s.commitBatch(ideaID, graph, batch)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)
		if wp != nil {
			result.Packages = append(result.Packages, *wp)
			for _, id := range wp.Tasks {
				scheduled[id] = struct{}{}
				assigned[id] = domain.StatusQueued
			}
		}
		remaining = removeTasks(remaining, batch)
	}

	if len(result.Packages) > 0 {
		if err := s.writePackagesDoc(ideaID, result.Packages); err != nil {
			return nil, err
		}
		if err := s.updateManifest(ideaID, result.Packages); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("manifest update failed: %v", err))
		}
	} else if result.Diagnostic == "" {
		result.Diagnostic = "no package could be formed from the eligible tasks"
	}
	s.appendEvent(ideaID, result)
	return result, nil
}

// appendEvent records the queue-work outcome in the idea's provenance
// log. Unschedulable tasks land as event warnings so the reason a task
// never got packaged survives the run.
func (s *Scheduler) appendEvent(ideaID string, result *Result) {
	events, err := s.store.EventLog(ideaID)
	if err != nil {
		s.logger.WithError(err).Warn("queue-work event not recorded", "idea_id", ideaID)
		return
	}
	event := provenance.NewEvent("batch-scheduler", "queue-work").
		WithInputs(string(artifact.TypeTasks)).
		WithCount("packages", len(result.Packages)).
		WithCount("unschedulable", len(result.Unschedulable))
	for _, wp := range result.Packages {
		event.WithOutputs(wp.ID.String())
	}
	for _, w := range result.Warnings {
		event.WithWarning(w)
	}
	ids := make([]domain.TaskID, 0, len(result.Unschedulable))
	for id := range result.Unschedulable {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		event.WithWarning(fmt.Sprintf("%s not schedulable: %s", id, result.Unschedulable[id]))
	}
	if result.Diagnostic != "" {
		event.WithWarning(result.Diagnostic)
	}
	if err := events.Append(event); err != nil {
		s.logger.WithError(err).Warn("queue-work event not recorded", "idea_id", ideaID)
	}
}

// fillBatch greedily accumulates tasks under the point and task-count
// budgets,
// preferring one feature, then one epic, and never admitting a task
// whose dependencies are not satisfied by this batch, an earlier
// package, or assigned non-blocked work.
func (s *Scheduler) fillBatch(graph *depgraph.Graph, remaining []artifact.Task, scheduled map[domain.TaskID]struct{}, assigned map[domain.TaskID]domain.WPStatus) []artifact.Task {
	satisfied := func(id domain.TaskID, inBatch map[domain.TaskID]struct{}) bool {
		pool := make(map[domain.TaskID]struct{}, len(inBatch)+len(scheduled))
		for t := range inBatch {
			pool[t] = struct{}{}
		}
		for t := range scheduled {
			pool[t] = struct{}{}
		}
		return graph.DependenciesSatisfiedWithin(id, pool, assigned)
	}

	// Seed with the first task whose dependencies are already met.
	var seed *artifact.Task
	for i := range remaining {
		if satisfied(remaining[i].ID, nil) {
			seed = &remaining[i]
			break
		}
	}
	if seed == nil {
		return nil
	}

	batch := []artifact.Task{*seed}
	inBatch := map[domain.TaskID]struct{}{seed.ID: {}}
	points := seed.Estimate.Points()

	admit := func(t artifact.Task) bool {
		if _, in := inBatch[t.ID]; in {
			return false
		}
		if len(batch) >= s.opts.maxTasks() {
			return false
		}
		if points+t.Estimate.Points() > s.opts.maxPoints() {
			return false
		}
		if !satisfied(t.ID, inBatch) {
			return false
		}
		batch = append(batch, t)
		inBatch[t.ID] = struct{}{}
		points += t.Estimate.Points()
		return true
	}

	// Same feature first. Loop to a fixpoint so a task admitted late
	// can unblock an earlier one that depends on it.
	for progressed := true; progressed; {
		progressed = false
		for _, t := range remaining {
			if t.FeatureID == seed.FeatureID && admit(t) {
				progressed = true
			}
		}
	}
	// Widen to the epic only while the batch is under its preferred
	// minimums; packages should not straddle epics just to pad points.
	underMin := func() bool {
		return points < s.opts.minPoints() || len(batch) < s.opts.minTasks()
	}
	for progressed := underMin(); progressed; {
		progressed = false
		for _, t := range remaining {
			if points >= s.opts.maxPoints() || len(batch) >= s.opts.maxTasks() {
				break
			}
			if t.EpicID == seed.EpicID && admit(t) {
				progressed = true
			}
		}
		if !underMin() {
			break
		}
	}

	return orderByDependency(graph, batch)
}

// orderByDependency orders a batch so every task follows its in-batch
// dependencies, keeping selection order among peers.
func orderByDependency(graph *depgraph.Graph, batch []artifact.Task) []artifact.Task {
	inBatch := make(map[domain.TaskID]struct{}, len(batch))
	for _, t := range batch {
		inBatch[t.ID] = struct{}{}
	}
	emitted := make(map[domain.TaskID]struct{}, len(batch))
	ordered := make([]artifact.Task, 0, len(batch))
	for len(ordered) < len(batch) {
		progressed := false
		for _, t := range batch {
			if _, done := emitted[t.ID]; done {
				continue
			}
			ready := true
			for _, dep := range graph.Dependencies(t.ID) {
				if _, in := inBatch[dep]; !in {
					continue
				}
				if _, done := emitted[dep]; !done {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, t)
				emitted[t.ID] = struct{}{}
				progressed = true
			}
		}
		if !progressed {
			// In-batch cycle; the graph layer reports those, keep
			// selection order for whatever remains.
			for _, t := range batch {
				if _, done := emitted[t.ID]; !done {
					ordered = append(ordered, t)
					emitted[t.ID] = struct{}{}
				}
			}
		}
	}
	return ordered
}

// commitBatch allocates an ID and records the package in the index,
// retrying once against a moved index before giving the batch up with a
// warning. A nil package with warnings means the batch was abandoned.
func (s *Scheduler) commitBatch(ideaID string, graph *depgraph.Graph, batch []artifact.Task) (*artifact.WorkPackage, []string, error) {
	wpID, err := s.idx.NextWorkPackageID()
	if err != nil {
		return nil, nil, err
	}

	taskIDs := make([]domain.TaskID, len(batch))
	points := 0
	for i, t := range batch {
		taskIDs[i] = t.ID
		points += t.Estimate.Points()
	}

	wp := &artifact.WorkPackage{
		ID:             wpID,
		IdeaID:         ideaID,
		Status:         domain.StatusQueued,
		Tasks:          taskIDs,
		Goal:           batchGoal(batch),
		Dependencies:   externalDependencies(graph, batch),
		VerifyCommands: s.opts.VerifyCommands,
	}
	if hash, err := s.store.HashLatest(ideaID, artifact.TypeTasks); err == nil {
		wp.PlanDocRef = hash
	}

	rec := index.PackageRecord{
		ID:     wpID,
		IdeaID: ideaID,
		Status: domain.StatusQueued,
		Goal:   wp.Goal,
		Tasks:  taskIDs,
		Points: points,
	}

	for attempt := 0; attempt < 2; attempt++ {
		gen, err := s.idx.Generation()
		if err != nil {
			return nil, nil, err
		}
		err = s.idx.RecordPackage(rec, gen)
		if err == nil {
			s.logger.Info("work package queued",
				"idea_id", ideaID, "wp_id", wpID.String(), "tasks", len(taskIDs), "points", points)
			return wp, nil, nil
		}
		if code, ok := errors.Code(err); ok && code == errors.ErrCodeSchedIndexConflict {
			if attempt == 0 {
				s.logger.Warn("index moved during packaging, retrying once", "wp_id", wpID.String())
				continue
			}
			break
		}
		if errors.IsDuplicateAssignment(err) {
			warning := fmt.Sprintf("batch %s abandoned: %v", wpID, err)
			s.logger.Warn("batch abandoned", "wp_id", wpID.String(), "cause", err.Error())
			return nil, []string{warning}, nil
		}
		return nil, nil, err
	}
	warning := fmt.Sprintf("batch %s abandoned: index kept moving during packaging", wpID)
	return nil, []string{warning}, nil
}

// writePackagesDoc appends the new packages to the idea's workpackages
// artifact, creating it on first use.
func (s *Scheduler) writePackagesDoc(ideaID string, packages []artifact.WorkPackage) error {
	doc, err := s.store.GetLatest(ideaID, artifact.TypeWorkPackages)
	if err != nil {
		if !errors.IsNotFound(err) {
			return err
		}
		doc = &artifact.Document{IdeaID: ideaID, Type: artifact.TypeWorkPackages}
	}
	doc.WorkPackages = append(doc.WorkPackages, packages...)
	doc.GeneratedAt = time.Now().UTC()
	runID := doc.GeneratedAt.Format("20060102-150405")
	doc.RunID = runID

	if err := s.store.PutLatest(ideaID, artifact.TypeWorkPackages, doc); err != nil {
		return err
	}
	return s.store.PutRun(ideaID, artifact.TypeWorkPackages, runID, doc)
}

func (s *Scheduler) updateManifest(ideaID string, packages []artifact.WorkPackage) error {
	recs, err := s.store.Manifest(ideaID).ReadSection("workpackages")
	if err != nil {
		recs = nil
	}
	now := time.Now().UTC().Format("2006-01-02")
	for _, wp := range packages {
		recs = append(recs, provenanceRecord(wp, now))
	}
	_, err = s.store.Manifest(ideaID).UpdateSection("workpackages", recs)
	return err
}

// batchGoal derives a one-line goal from the batch's common ground.
func batchGoal(batch []artifact.Task) string {
	feature := batch[0].FeatureID
	sameFeature := true
	for _, t := range batch[1:] {
		if t.FeatureID != feature {
			sameFeature = false
			break
		}
	}
	if sameFeature {
		return fmt.Sprintf("complete %d task(s) of %s", len(batch), feature)
	}
	return fmt.Sprintf("complete %d task(s) of %s", len(batch), batch[0].EpicID)
}

// externalDependencies lists the batch's dependencies that live outside
// it, for the package record.
func externalDependencies(graph *depgraph.Graph, batch []artifact.Task) []string {
	inBatch := make(map[domain.TaskID]struct{}, len(batch))
	for _, t := range batch {
		inBatch[t.ID] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, t := range batch {
		for _, dep := range graph.Dependencies(t.ID) {
			if _, in := inBatch[dep]; in {
				continue
			}
			if _, dup := seen[dep.String()]; dup {
				continue
			}
			seen[dep.String()] = struct{}{}
			out = append(out, dep.String())
		}
	}
	sort.Strings(out)
	return out
}

func emptyDiagnostic(unschedulable map[domain.TaskID]string, assigned map[domain.TaskID]domain.WPStatus) string {
	switch {
	case len(unschedulable) > 0:
		return fmt.Sprintf("no eligible tasks: %d task(s) unschedulable, %d already assigned", len(unschedulable), len(assigned))
	case len(assigned) > 0:
		return fmt.Sprintf("no eligible tasks: all %d matching task(s) are already assigned to work packages", len(assigned))
	default:
		return "no eligible tasks match the given filters"
	}
}

func provenanceRecord(wp artifact.WorkPackage, date string) provenance.ManifestRecord {
	return provenance.ManifestRecord{
		ID:          wp.ID.String(),
		Status:      wp.Status.String(),
		LastUpdated: date,
	}
}

func containsTask(tasks []artifact.Task, id domain.TaskID) bool {
	for _, t := range tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func removeTasks(tasks []artifact.Task, drop []artifact.Task) []artifact.Task {
	dropped := make(map[domain.TaskID]struct{}, len(drop))
	for _, t := range drop {
		dropped[t.ID] = struct{}{}
	}
	var out []artifact.Task
	for _, t := range tasks {
		if _, gone := dropped[t.ID]; !gone {
			out = append(out, t)
		}
	}
	return out
}
