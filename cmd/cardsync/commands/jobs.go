package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/pipeline"
	"github.com/toppsdigital/cardsync/query"
)

// JobsCmd lists pipeline jobs.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List pipeline jobs",
	Long: `List content pipeline jobs, newest first.

Filters:
  --mine              Only jobs created by the configured user
  --status in-progress   Jobs still moving through the pipeline
  --status completed     Finished jobs only

Examples:
  cardsync jobs
  cardsync jobs --mine --status in-progress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mine, _ := cmd.Flags().GetBool("mine")
		status, _ := cmd.Flags().GetString("status")
		return runJobs(cmd, mine, status)
	},
}

func init() {
	JobsCmd.Flags().Bool("mine", false, "Only my jobs")
	JobsCmd.Flags().String("status", "", "Status filter: in-progress or completed")
}

func runJobs(cmd *cobra.Command, mine bool, status string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	data, err := e.engine.Get(ctx, query.SelectorJobs, query.Options{
		Mine:         mine,
		StatusFilter: status,
		NoPolling:    true,
	})
	if err != nil {
		return err
	}

	jobs, _ := data.([]pipeline.Job)
	if len(jobs) == 0 {
		pterm.Info.Println("No jobs found")
		return nil
	}

	for _, job := range jobs {
		printJobRow(job)
	}
	pterm.Printf("\n%d jobs\n", len(jobs))
	return nil
}
