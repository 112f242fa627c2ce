package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/lifecycle"
)

var runWorkCmd = &cobra.Command{
	Use:   "run-work <idea-id> [wp-id]",
	Short: "Execute the next (or named) queued work package",
	Long: `Start a queued work package, run its verification commands, and mark
it Done on success. Verification failure or timeout blocks the package
with a recorded reason instead of losing state.

At most one work package per idea is in progress at a time.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		var explicit domain.WorkPackageID
		if len(args) > 1 {
			explicit = domain.WorkPackageID(args[1])
		}
		return app.withIdeaLock(args[0], func() error {
			controller := newController(app)
			wp, err := controller.Execute(cmd.Context(), args[0], explicit)
			if err != nil {
				if wp != nil {
					fmt.Printf("%s did not complete: %v\n", wp.ID, err)
				}
				return err
			}
			fmt.Printf("%s done: %s\n", wp.ID, wp.Goal)
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <idea-id> <wp-id>",
	Short: "Restart a blocked work package",
	Long: `Move a blocked work package back to in progress and run it again.
This is the only way out of Blocked; nothing resumes automatically.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		return app.withIdeaLock(args[0], func() error {
			controller := newController(app)
			wp, err := controller.Resume(args[0], domain.WorkPackageID(args[1]))
			if err != nil {
				return err
			}
			completed, err := controller.Run(cmd.Context(), args[0], wp)
			if err != nil {
				return err
			}
			if err := controller.CompleteIfVerified(cmd.Context(), args[0], wp, completed); err != nil {
				return err
			}
			fmt.Printf("%s done: %s\n", wp.ID, wp.Goal)
			return nil
		})
	},
}

func newController(app *app) *lifecycle.Controller {
	verifier := &lifecycle.CommandVerifier{Timeout: app.cfg.VerifyTimeout()}
	return lifecycle.New(app.store, app.idx, nil, verifier, app.logger)
}

func init() {
	rootCmd.AddCommand(runWorkCmd, resumeCmd)
}
