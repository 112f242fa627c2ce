package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/gate"
	"github.com/planforge/planforge/internal/provenance"
)

var validateCmd = &cobra.Command{
	Use:   "validate <layer> <idea-id>",
	Short: "Re-run the validation gate on a stored layer",
	Long: `Check a stored layer against its parent layer: coverage of parent
scope, sibling overlap, referential metadata, and the concept's
invariants and exclusions.

Layers: epics, features, tasks.

Exit code 2 signals a FAIL verdict; warnings alone exit 0.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		return runValidate(app, args[0], args[1])
	},
}

func runValidate(app *app, layer, ideaID string) error {
	stage := artifact.Type(layer)
	if _, ok := stageUpstream[stage]; !ok {
		return errors.New(errors.ErrCodeArtifactParse,
			fmt.Sprintf("unknown layer %q", layer)).
			WithSuggestion("valid layers are epics, features and tasks")
	}

	doc, err := app.store.GetLatest(ideaID, stage)
	if err != nil {
		return err
	}
	upstream := make(map[artifact.Type]*artifact.Document)
	for _, t := range stageUpstream[stage] {
		up, err := app.store.GetLatest(ideaID, t)
		if err != nil {
			return err
		}
		upstream[t] = up
	}

	report := gate.CheckLayer(doc, upstream, gate.Options{})
	printReport(report)
	runID := time.Now().UTC().Format("20060102-150405")
	persistReport(app, ideaID, stage, runID, report)
	if report.Verdict == gate.VerdictFail {
		return errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("%s layer failed validation: %d critical finding(s)", stage, report.CriticalCount()))
	}
	return nil
}

// persistReport writes the gate report into the run's history and
// records the verdict as a provenance event.
func persistReport(app *app, ideaID string, stage artifact.Type, runID string, report *gate.Report) {
	name := fmt.Sprintf("validation-%s.md", stage)
	if err := app.store.PutRunFile(ideaID, runID, name, []byte(report.Render())); err != nil {
		app.logger.WithError(err).Warn("validation report not persisted", "stage", stage.String())
	}

	event := provenance.NewEvent("validation-gate", "validate").
		WithInputs(ideaID, stage.String()).
		WithOutputs(name).
		WithCount("findings", len(report.Findings)).
		WithCount("critical", report.CriticalCount())
	for _, w := range report.Warnings() {
		event.WithWarning(w)
	}
	if report.Verdict == gate.VerdictFail {
		event.Failed()
	}
	if events, err := app.store.EventLog(ideaID); err == nil {
		if err := events.Append(event); err != nil {
			app.logger.WithError(err).Warn("validate event not recorded", "idea_id", ideaID)
		}
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
