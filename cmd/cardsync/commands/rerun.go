package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/query"
)

// RerunCmd restarts the pipeline for a job.
var RerunCmd = &cobra.Command{
	Use:   "rerun <job-id>",
	Short: "Restart the pipeline for a job",
	Long: `Rerun a job from the beginning. The server resets the job's
status and reprocesses its uploaded files.

Example:
  cardsync rerun JB_1234`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRerun(cmd, args[0])
	},
}

func runRerun(cmd *cobra.Command, jobID string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	result, err := e.dispatcher.Dispatch(ctx, query.RerunJob{JobID: jobID})
	if err != nil {
		return err
	}

	if result.Job != nil {
		pterm.Success.Printf("Job %s rerun requested, status now %s\n",
			result.Job.JobID, result.Job.JobStatus)
		return nil
	}
	pterm.Success.Printf("Job %s rerun requested\n", jobID)
	return nil
}
