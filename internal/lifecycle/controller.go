// Package lifecycle advances work packages through their state
// machine. Queued work starts, runs its tasks one at a time, and only
// becomes Done once every task finished and verification passed.
// Failures block the package with a recorded reason instead of losing
// state, and blocked work restarts only on explicit operator resume.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/index"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/provenance"
)

// TaskRunner performs one task of an in-progress work package. The
// controller retries a failed task exactly once before blocking the
// package.
type TaskRunner interface {
	Run(ctx context.Context, wp *artifact.WorkPackage, taskID domain.TaskID) error
}

// TaskRunnerFunc adapts a function to TaskRunner.
type TaskRunnerFunc func(ctx context.Context, wp *artifact.WorkPackage, taskID domain.TaskID) error

// Run implements TaskRunner.
func (f TaskRunnerFunc) Run(ctx context.Context, wp *artifact.WorkPackage, taskID domain.TaskID) error {
	return f(ctx, wp, taskID)
}

// Controller owns every work-package mutation after scheduling.
type Controller struct {
	store    *artifact.Store
	idx      *index.Index
	runner   TaskRunner
	verifier Verifier
	logger   *log.Logger
	now      func() time.Time
}

// New creates a controller. A nil runner means tasks are assumed done
// by an external workflow and only verification gates completion.
func New(store *artifact.Store, idx *index.Index, runner TaskRunner, verifier Verifier, logger *log.Logger) *Controller {
	if verifier == nil {
		verifier = &CommandVerifier{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		store:    store,
		idx:      idx,
		runner:   runner,
		verifier: verifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SelectNext starts the next work package: the explicit ID when given,
// otherwise the oldest Queued package. At most one package per idea may
// be in progress; starting a second fails without touching anything.
// Blocked packages never start here, only through Resume.
func (c *Controller) SelectNext(ideaID string, explicit domain.WorkPackageID) (*artifact.WorkPackage, error) {
	busy, err := c.idx.InProgress(ideaID)
	if err != nil {
		return nil, err
	}
	if busy != nil {
		return nil, errors.New(errors.ErrCodeLifecycleBusy,
			fmt.Sprintf("work package %s is already in progress for idea %s", busy.ID, ideaID)).
			WithSuggestion("finish or block the in-progress package before starting another")
	}

	var wpID domain.WorkPackageID
	if explicit != "" {
		wpID = explicit
	} else {
		queued, err := c.idx.PackagesByStatus(ideaID, domain.StatusQueued)
		if err != nil {
			return nil, err
		}
		if len(queued) == 0 {
			return nil, errors.New(errors.ErrCodeLifecycleTransition,
				fmt.Sprintf("no queued work packages for idea %s", ideaID)).
				WithSuggestion("run queue-work to form packages from eligible tasks")
		}
		wpID = queued[0].ID
	}

	var started *artifact.WorkPackage
	err = c.updatePackage(ideaID, wpID, func(wp *artifact.WorkPackage) error {
		if !wp.Status.CanTransitionTo(domain.StatusInProgress) || wp.Status == domain.StatusBlocked {
			return errors.NewTransitionError(wp.ID.String(), wp.Status.String(), domain.StatusInProgress.String())
		}
		now := c.now()
		wp.Status = domain.StatusInProgress
		wp.StartedAt = &now
		started = wp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := c.idx.UpdateStatus(wpID, domain.StatusInProgress); err != nil {
		return nil, err
	}
	if err := c.setTaskStatuses(ideaID, started.Tasks, domain.StatusInProgress.String()); err != nil {
		c.logger.WithError(err).Warn("manifest task update failed", "wp_id", wpID.String())
	}
	if started.PlanDocRef != "" {
		if hash, err := c.store.HashLatest(ideaID, artifact.TypeTasks); err == nil && hash != started.PlanDocRef {
			c.logger.Warn("tasks document changed since this package was formed",
				"wp_id", wpID.String(), "expected_hash", started.PlanDocRef, "latest_hash", hash)
		}
	}
	c.logger.Info("work package started", "idea_id", ideaID, "wp_id", wpID.String())
	return started, nil
}

// Run executes the package's tasks in order. A failing task gets one
// automatic retry; a second failure blocks the package and the
// remaining tasks are not attempted. Cancellation is honored between
// tasks only, so the package is always left in its last fully committed
// state. Returns the set of completed tasks.
func (c *Controller) Run(ctx context.Context, ideaID string, wp *artifact.WorkPackage) (map[domain.TaskID]bool, error) {
	completed := make(map[domain.TaskID]bool, len(wp.Tasks))
	if c.runner == nil {
		for _, id := range wp.Tasks {
			completed[id] = true
		}
		return completed, nil
	}

	for _, taskID := range wp.Tasks {
		if err := ctx.Err(); err != nil {
			return completed, err
		}

		err := c.runner.Run(ctx, wp, taskID)
		if err != nil {
			c.logger.WithError(err).Warn("task failed, retrying once",
				"wp_id", wp.ID.String(), "task_id", taskID.String())
			err = c.runner.Run(ctx, wp, taskID)
		}
		if err != nil {
			blocker := &artifact.Blocker{
				Reason:     fmt.Sprintf("task %s failed twice: %v", taskID, err),
				Needed:     fmt.Sprintf("fix task %s, then resume %s", taskID, wp.ID),
				RecordedAt: c.now(),
			}
			if berr := c.Block(ideaID, wp.ID, blocker); berr != nil {
				return completed, berr
			}
			return completed, err
		}
		completed[taskID] = true
		c.logger.Info("task completed", "wp_id", wp.ID.String(), "task_id", taskID.String())
	}
	return completed, nil
}

// CompleteIfVerified moves an in-progress package to Done, but only
// when every task completed and every verify command passed. A
// verification failure or timeout blocks the package instead; no
// partially completed package is ever marked Done.
func (c *Controller) CompleteIfVerified(ctx context.Context, ideaID string, wp *artifact.WorkPackage, completed map[domain.TaskID]bool) error {
	for _, taskID := range wp.Tasks {
		if !completed[taskID] {
			return errors.New(errors.ErrCodeLifecycleTransition,
				fmt.Sprintf("work package %s cannot complete: task %s is unfinished", wp.ID, taskID))
		}
	}

	if err := c.verifier.Verify(ctx, wp); err != nil {
		// An operator interrupt is not a verification verdict. The
		// package stays InProgress so a rerun picks up exactly where
		// the last committed state left it.
		if ctx.Err() == context.Canceled {
			c.logger.Warn("verification interrupted", "wp_id", wp.ID.String())
			return ctx.Err()
		}
		needed := "make the verification commands pass, then resume"
		if errors.IsTimeout(err) {
			needed = "raise the verification timeout or speed up the checks, then resume"
		}
		blocker := &artifact.Blocker{
			Reason:     fmt.Sprintf("verification failed: %v", err),
			Needed:     needed,
			RecordedAt: c.now(),
		}
		if berr := c.Block(ideaID, wp.ID, blocker); berr != nil {
			return berr
		}
		return err
	}

	err := c.updatePackage(ideaID, wp.ID, func(p *artifact.WorkPackage) error {
		if !p.Status.CanTransitionTo(domain.StatusDone) {
			return errors.NewTransitionError(p.ID.String(), p.Status.String(), domain.StatusDone.String())
		}
		now := c.now()
		p.Status = domain.StatusDone
		p.CompletedAt = &now
		p.Blocker = nil
		return nil
	})
	if err != nil {
		return err
	}
	if err := c.idx.UpdateStatus(wp.ID, domain.StatusDone); err != nil {
		return err
	}
	if err := c.setTaskStatuses(ideaID, wp.Tasks, domain.StatusDone.String()); err != nil {
		c.logger.WithError(err).Warn("manifest task update failed", "wp_id", wp.ID.String())
	}
	c.logger.Info("work package done", "idea_id", ideaID, "wp_id", wp.ID.String())
	c.appendEvent(ideaID, provenance.NewEvent("lifecycle-controller", "complete-work").
		WithOutputs(wp.ID.String()).
		WithCount("tasks", len(wp.Tasks)))
	return nil
}

// Block moves an in-progress package to Blocked with the given reason.
// Task manifest entries keep their InProgress status; nothing is marked
// Done.
func (c *Controller) Block(ideaID string, wpID domain.WorkPackageID, blocker *artifact.Blocker) error {
	err := c.updatePackage(ideaID, wpID, func(wp *artifact.WorkPackage) error {
		if !wp.Status.CanTransitionTo(domain.StatusBlocked) {
			return errors.NewTransitionError(wp.ID.String(), wp.Status.String(), domain.StatusBlocked.String())
		}
		wp.Status = domain.StatusBlocked
		wp.Blocker = blocker
		return nil
	})
	if err != nil {
		return err
	}
	if err := c.idx.UpdateStatus(wpID, domain.StatusBlocked); err != nil {
		return err
	}
	c.logger.Warn("work package blocked",
		"idea_id", ideaID, "wp_id", wpID.String(), "reason", blocker.Reason, "needed", blocker.Needed)
	c.appendEvent(ideaID, provenance.NewEvent("lifecycle-controller", "block-work").
		WithOutputs(wpID.String()).
		WithWarning(blocker.Reason))
	return nil
}

// Resume restarts a blocked package. This is the only path out of
// Blocked, and it is always an explicit operator action. The
// one-in-progress guard applies here too.
func (c *Controller) Resume(ideaID string, wpID domain.WorkPackageID) (*artifact.WorkPackage, error) {
	busy, err := c.idx.InProgress(ideaID)
	if err != nil {
		return nil, err
	}
	if busy != nil {
		return nil, errors.New(errors.ErrCodeLifecycleBusy,
			fmt.Sprintf("work package %s is already in progress for idea %s", busy.ID, ideaID))
	}

	var resumed *artifact.WorkPackage
	err = c.updatePackage(ideaID, wpID, func(wp *artifact.WorkPackage) error {
		if wp.Status != domain.StatusBlocked {
			return errors.NewTransitionError(wp.ID.String(), wp.Status.String(), domain.StatusInProgress.String()).
				WithSuggestion("resume applies only to blocked work packages")
		}
		wp.Status = domain.StatusInProgress
		wp.Blocker = nil
		resumed = wp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := c.idx.UpdateStatus(wpID, domain.StatusInProgress); err != nil {
		return nil, err
	}
	c.logger.Info("work package resumed", "idea_id", ideaID, "wp_id", wpID.String())
	c.appendEvent(ideaID, provenance.NewEvent("lifecycle-controller", "resume-work").
		WithOutputs(wpID.String()))
	return resumed, nil
}

// Execute is the full run-work flow: start the next (or named) package,
// run its tasks, and complete it if verification passes.
func (c *Controller) Execute(ctx context.Context, ideaID string, explicit domain.WorkPackageID) (*artifact.WorkPackage, error) {
	wp, err := c.SelectNext(ideaID, explicit)
	if err != nil {
		return nil, err
	}
	completed, err := c.Run(ctx, ideaID, wp)
	if err != nil {
		return wp, err
	}
	if err := c.CompleteIfVerified(ctx, ideaID, wp, completed); err != nil {
		return wp, err
	}
	return wp, nil
}

// updatePackage loads the workpackages artifact, applies mutate to the
// named package, and writes the document back. The write is what makes
// the transition durable; failures leave the previous state intact.
func (c *Controller) updatePackage(ideaID string, wpID domain.WorkPackageID, mutate func(*artifact.WorkPackage) error) error {
	doc, err := c.store.GetLatest(ideaID, artifact.TypeWorkPackages)
	if err != nil {
		return err
	}
	found := -1
	for i := range doc.WorkPackages {
		if doc.WorkPackages[i].ID == wpID {
			found = i
			break
		}
	}
	if found < 0 {
		return errors.New(errors.ErrCodeArtifactNotFound,
			fmt.Sprintf("work package %s is not in idea %s", wpID, ideaID)).
			WithSuggestion("check the ID against the status command")
	}
	if err := mutate(&doc.WorkPackages[found]); err != nil {
		return err
	}
	return c.store.PutLatest(ideaID, artifact.TypeWorkPackages, doc)
}

// setTaskStatuses updates the tasks section of the idea's manifest.
// Release and priority come from the task records when available.
func (c *Controller) setTaskStatuses(ideaID string, taskIDs []domain.TaskID, status string) error {
	manifest := c.store.Manifest(ideaID)
	records, err := manifest.ReadSection("tasks")
	if err != nil {
		records = nil
	}

	byID := make(map[string]int, len(records))
	for i, rec := range records {
		byID[rec.ID] = i
	}

	var taskMeta map[domain.TaskID]artifact.Task
	if doc, err := c.store.GetLatest(ideaID, artifact.TypeTasks); err == nil {
		taskMeta = doc.TaskIndex()
	}

	today := c.now().Format("2006-01-02")
	for _, id := range taskIDs {
		rec := provenanceTaskRecord(id, status, today, taskMeta)
		if i, ok := byID[id.String()]; ok {
			records[i] = rec
		} else {
			records = append(records, rec)
		}
	}
	_, err = manifest.UpdateSection("tasks", records)
	return err
}

// appendEvent best-effort records a lifecycle transition in the idea's
// provenance log. Transitions are already durable through the artifact
// store, so a log failure warns instead of failing the operation.
func (c *Controller) appendEvent(ideaID string, event *provenance.Event) {
	events, err := c.store.EventLog(ideaID)
	if err != nil {
		c.logger.WithError(err).Warn("lifecycle event not recorded", "idea_id", ideaID)
		return
	}
	if err := events.Append(event); err != nil {
		c.logger.WithError(err).Warn("lifecycle event not recorded", "idea_id", ideaID)
	}
}

func provenanceTaskRecord(id domain.TaskID, status, date string, meta map[domain.TaskID]artifact.Task) provenance.ManifestRecord {
	rec := provenance.ManifestRecord{
		ID:          id.String(),
		Status:      status,
		LastUpdated: date,
	}
	if t, ok := meta[id]; ok {
		rec.ReleaseTarget = t.Release.String()
		rec.Priority = t.Priority.String()
	}
	return rec
}
