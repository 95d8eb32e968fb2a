package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"atpkiosk/models"
	"atpkiosk/services/jobstatus"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Follow a print job until it completes or fails",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var stepMarks = map[models.StepState]string{
	models.StepDone:    "[x]",
	models.StepActive:  "[>]",
	models.StepPending: "[ ]",
	models.StepFailed:  "[!]",
}

func printSteps(w io.Writer, steps []models.Step) {
	for _, s := range steps {
		fmt.Fprintf(w, "  %s %-10s %s\n", stepMarks[s.State], s.Label, s.Description)
	}
}

// stepTracker remembers the last non-failed status so a failure can be
// placed on the step it interrupted.
type stepTracker struct {
	last models.JobStatus
}

func (t *stepTracker) observe(st models.JobStatus) []models.Step {
	steps := jobstatus.Steps(st, t.last)
	if st != models.JobFailed {
		t.last = st
	}
	return steps
}

func runStatus(cmd *cobra.Command, args []string) error {
	svcs, err := buildServices()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var (
		tracker stepTracker
		final   models.JobStatus
	)
	h := svcs.poller.Start(ctx, args[0], func(st models.JobStatus) {
		fmt.Fprintf(out, "Status: %s\n", st)
		printSteps(out, tracker.observe(st))
		final = st
	})
	h.Wait()

	switch final {
	case models.JobFailed:
		return fmt.Errorf("print job %s failed", args[0])
	case models.JobCompleted:
		return nil
	}
	return ctx.Err()
}
