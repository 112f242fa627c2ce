package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/gate"
	"github.com/planforge/planforge/internal/generate"
	"github.com/planforge/planforge/internal/provenance"
)

var (
	flagConceptFile string
	flagGenerator   string
	flagGuidance    string
	flagAllowPatch  bool
)

var initCmd = &cobra.Command{
	Use:   "init <idea-id>",
	Short: "Create an idea from a concept document",
	Long: `Import a concept summary as the root artifact of a new idea.

The concept file is a front-matter document carrying the idea's title,
capabilities, invariants and exclusions. Everything downstream is
derived from it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		return runInit(app, args[0], flagConceptFile)
	},
}

var extractEpicsCmd = &cobra.Command{
	Use:   "extract-epics <idea-id>",
	Short: "Generate the epic layer from the concept",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunE(artifact.TypeEpics),
}

var extractFeaturesCmd = &cobra.Command{
	Use:   "extract-features <idea-id>",
	Short: "Generate the feature layer from the epics",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunE(artifact.TypeFeatures),
}

var buildTasksCmd = &cobra.Command{
	Use:   "build-tasks <idea-id>",
	Short: "Generate the task layer from the features",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunE(artifact.TypeTasks),
}

// stageUpstream names the artifacts each stage requires before it runs.
var stageUpstream = map[artifact.Type][]artifact.Type{
	artifact.TypeEpics:    {artifact.TypeConcept},
	artifact.TypeFeatures: {artifact.TypeConcept, artifact.TypeEpics},
	artifact.TypeTasks:    {artifact.TypeConcept, artifact.TypeEpics, artifact.TypeFeatures},
}

func stageRunE(stage artifact.Type) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		return app.withIdeaLock(args[0], func() error {
			return runStage(cmd, app, args[0], stage)
		})
	}
}

func runInit(app *app, ideaID, conceptPath string) error {
	if conceptPath == "" {
		return errors.New(errors.ErrCodeFileNotFound, "no concept file given").
			WithSuggestion("pass --concept <file> with a front-matter concept document")
	}
	data, err := os.ReadFile(conceptPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed,
			fmt.Sprintf("cannot read concept file %s", conceptPath), err)
	}
	doc, err := artifact.Decode(data, conceptPath)
	if err != nil {
		return err
	}
	if doc.Type != artifact.TypeConcept {
		return errors.New(errors.ErrCodeArtifactParse,
			fmt.Sprintf("%s holds a %s document, expected a concept", conceptPath, doc.Type))
	}
	doc.IdeaID = ideaID

	return app.withIdeaLock(ideaID, func() error {
		if err := putStage(app, ideaID, artifact.TypeConcept, doc); err != nil {
			return err
		}
		app.logger.Info("idea created", "idea_id", ideaID, "title", doc.Concept.Title)
		fmt.Printf("Idea %s created from %s\n", ideaID, conceptPath)
		return nil
	})
}

// runStage is the shared extract flow: load required upstream layers,
// call the generator, gate the result against its parent layer, and
// persist it with a run snapshot and manifest rows. A FAIL verdict
// aborts without persisting unless --allow-patch could mend it.
func runStage(cmd *cobra.Command, app *app, ideaID string, stage artifact.Type) error {
	upstream := make(map[artifact.Type]*artifact.Document)
	for _, t := range stageUpstream[stage] {
		doc, err := app.store.GetLatest(ideaID, t)
		if err != nil {
			return err
		}
		upstream[t] = doc
	}

	gen, err := resolveGenerator(app)
	if err != nil {
		return err
	}
	doc, err := gen.Generate(cmd.Context(), generate.StageInput{
		IdeaID:   ideaID,
		Stage:    stage,
		Upstream: upstream,
		Guidance: flagGuidance,
	})
	if err != nil {
		return err
	}

	report := gate.CheckLayer(doc, upstream, gate.Options{AllowPatch: flagAllowPatch})
	if report.Verdict == gate.VerdictFail && flagAllowPatch {
		if gate.Patch(doc, report, nil) {
			report = gate.CheckLayer(doc, upstream, gate.Options{})
		}
	}
	printReport(report)
	if report.Verdict == gate.VerdictFail {
		return errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("%s layer failed validation: %d critical finding(s)", stage, report.CriticalCount())).
			WithSuggestion("fix the findings above and rerun, or rerun with --allow-patch")
	}

	if err := putStage(app, ideaID, stage, doc); err != nil {
		return err
	}
	persistReport(app, ideaID, stage, doc.RunID, report)
	fmt.Printf("%s layer written for %s (%s)\n", stage, ideaID, report.Verdict)
	return nil
}

// putStage persists one stage output: immutable run snapshot, latest
// pointer, and the stage's manifest section.
func putStage(app *app, ideaID string, stage artifact.Type, doc *artifact.Document) error {
	doc.GeneratedAt = time.Now().UTC()
	if doc.RunID == "" {
		doc.RunID = doc.GeneratedAt.Format("20060102-150405")
	}
	if err := app.store.PutRun(ideaID, stage, doc.RunID, doc); err != nil {
		return err
	}
	if err := app.store.PutLatest(ideaID, stage, doc); err != nil {
		return err
	}
	if err := updateStageManifest(app, ideaID, stage, doc); err != nil {
		app.logger.WithError(err).Warn("manifest update failed", "stage", stage.String())
	}
	return nil
}

func updateStageManifest(app *app, ideaID string, stage artifact.Type, doc *artifact.Document) error {
	var records []provenance.ManifestRecord
	date := doc.GeneratedAt.Format("2006-01-02")
	switch stage {
	case artifact.TypeEpics:
		for _, e := range doc.Epics {
			records = append(records, provenance.ManifestRecord{
				ID: e.ID.String(), Status: "Planned",
				ReleaseTarget: e.Release.String(), Priority: e.Priority.String(),
				LastUpdated: date, LastRunID: doc.RunID,
			})
		}
	case artifact.TypeFeatures:
		for _, f := range doc.Features {
			records = append(records, provenance.ManifestRecord{
				ID: f.ID.String(), Status: "Planned",
				ReleaseTarget: f.Release.String(), Priority: f.Priority.String(),
				LastUpdated: date, LastRunID: doc.RunID,
			})
		}
	case artifact.TypeTasks:
		for _, t := range doc.Tasks {
			records = append(records, provenance.ManifestRecord{
				ID: t.ID.String(), Status: "Planned",
				ReleaseTarget: t.Release.String(), Priority: t.Priority.String(),
				LastUpdated: date, LastRunID: doc.RunID,
			})
		}
	default:
		return nil
	}
	_, err := app.store.Manifest(ideaID).UpdateSection(stage.String(), records)
	return err
}

func resolveGenerator(app *app) (generate.Generator, error) {
	command := app.cfg.Generator.Command
	if flagGenerator != "" {
		command = flagGenerator
	}
	if command == "" {
		return nil, errors.New(errors.ErrCodeArtifactNotFound, "no generator command configured").
			WithSuggestion("set generator.command in config.yaml or pass --generator")
	}
	return &generate.CommandGenerator{Command: command}, nil
}

func printReport(r *gate.Report) {
	fmt.Printf("validation %s\n", r.Summary())
	for _, f := range r.Findings {
		fmt.Printf("  [%s] %s: %s\n", f.Severity, f.Kind, f.Detail)
		if f.SuggestedEdit != "" {
			fmt.Printf("      fix: %s\n", f.SuggestedEdit)
		}
	}
}

func init() {
	initCmd.Flags().StringVar(&flagConceptFile, "concept", "", "path to the concept front-matter document")

	for _, c := range []*cobra.Command{extractEpicsCmd, extractFeaturesCmd, buildTasksCmd} {
		c.Flags().StringVar(&flagGenerator, "generator", "", "generator command (overrides config)")
		c.Flags().StringVar(&flagGuidance, "guidance", "", "free-text guidance passed to the generator")
		c.Flags().BoolVar(&flagAllowPatch, "allow-patch", false, "apply minimal ID-preserving fixes to failing scope")
	}

	rootCmd.AddCommand(initCmd, extractEpicsCmd, extractFeaturesCmd, buildTasksCmd)
}
