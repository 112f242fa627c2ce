package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/schedule"
)

var (
	flagFilterRelease  string
	flagFilterPriority string
	flagFilterEpic     string
)

var queueWorkCmd = &cobra.Command{
	Use:   "queue-work <idea-id>",
	Short: "Form work packages from eligible tasks",
	Long: `Select eligible, unassigned, unblocked tasks in deterministic order
and group them into work packages under the configured point budget
(S=1, M=2, L=4). Each package lands in the global index, which
guarantees a task never belongs to two packages.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		return app.withIdeaLock(args[0], func() error {
			return runQueueWork(app, args[0])
		})
	},
}

func runQueueWork(app *app, ideaID string) error {
	scheduler := schedule.New(app.store, app.idx, app.logger, schedule.Options{
		MaxBatches:     app.cfg.Scheduler.MaxBatches,
		MinPoints:      app.cfg.Scheduler.MinPoints,
		MaxPoints:      app.cfg.Scheduler.MaxPoints,
		MinTasks:       app.cfg.Scheduler.MinTasks,
		MaxTasks:       app.cfg.Scheduler.MaxTasks,
		VerifyCommands: app.cfg.Verify.Commands,
	})

	result, err := scheduler.FormWorkPackages(ideaID, schedule.Filters{
		Release:  domain.ReleaseTarget(flagFilterRelease),
		Priority: domain.Priority(flagFilterPriority),
		Epic:     domain.EpicID(flagFilterEpic),
	})
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	if len(result.Packages) == 0 {
		fmt.Printf("No work packages formed: %s\n", result.Diagnostic)
		for id, reason := range result.Unschedulable {
			fmt.Printf("  %s: %s\n", id, reason)
		}
		return nil
	}

	for _, wp := range result.Packages {
		fmt.Printf("%s  %d task(s)  %s\n", wp.ID, len(wp.Tasks), wp.Goal)
		for _, t := range wp.Tasks {
			fmt.Printf("    %s\n", t)
		}
	}
	fmt.Printf("%d work package(s) queued for %s\n", len(result.Packages), ideaID)
	return nil
}

func init() {
	queueWorkCmd.Flags().StringVar(&flagFilterRelease, "release", "", "only tasks with this release target (MVP, V1, Full, Later)")
	queueWorkCmd.Flags().StringVar(&flagFilterPriority, "priority", "", "only tasks with this priority (P0, P1, P2)")
	queueWorkCmd.Flags().StringVar(&flagFilterEpic, "epic", "", "only tasks under this epic")
	rootCmd.AddCommand(queueWorkCmd)
}
