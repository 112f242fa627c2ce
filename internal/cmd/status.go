package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status <idea-id>",
	Short: "Show an idea's pipeline and work-package state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		return runStatus(app, args[0])
	},
}

func runStatus(app *app, ideaID string) error {
	fmt.Printf("Idea: %s\n\nLayers:\n", ideaID)
	for _, t := range artifact.KnownTypes {
		doc, err := app.store.GetLatest(ideaID, t)
		switch {
		case errors.IsNotFound(err):
			fmt.Printf("  %-13s absent\n", t)
			continue
		case err != nil:
			return err
		}
		fmt.Printf("  %-13s %d record(s), generated %s\n",
			t, layerCount(doc), doc.GeneratedAt.Format("2006-01-02 15:04"))
	}

	packages, err := app.idx.Packages(ideaID)
	if err != nil {
		return err
	}
	if len(packages) == 0 {
		fmt.Println("\nNo work packages.")
		return nil
	}

	counts := make(map[domain.WPStatus]int)
	fmt.Println("\nWork packages:")
	for _, wp := range packages {
		counts[wp.Status]++
		fmt.Printf("  %s  %-10s  %d task(s)  %s\n", wp.ID, wp.Status, len(wp.Tasks), wp.Goal)
	}
	fmt.Printf("\n%d total: %d queued, %d in progress, %d blocked, %d done\n",
		len(packages), counts[domain.StatusQueued], counts[domain.StatusInProgress],
		counts[domain.StatusBlocked], counts[domain.StatusDone])

	if events, err := app.store.EventLog(ideaID); err == nil {
		if n, err := events.Len(); err == nil {
			fmt.Printf("Provenance: %d event(s) at %s\n", n, events.Path())
		}
	}
	return nil
}

func layerCount(doc *artifact.Document) int {
	switch doc.Type {
	case artifact.TypeConcept:
		if doc.Concept != nil {
			return 1
		}
		return 0
	case artifact.TypeEpics:
		return len(doc.Epics)
	case artifact.TypeFeatures:
		return len(doc.Features)
	case artifact.TypeTasks:
		return len(doc.Tasks)
	case artifact.TypeWorkPackages:
		return len(doc.WorkPackages)
	}
	return 0
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
