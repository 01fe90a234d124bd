package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/pipeline"
	"github.com/toppsdigital/cardsync/query"
)

// WatchCmd follows jobs live until every one of them finishes.
var WatchCmd = &cobra.Command{
	Use:   "watch <job-id> [job-id...]",
	Short: "Follow jobs until they complete",
	Long: `Poll the given jobs and print every status change as it
happens. Exits when all jobs reach a terminal state, or on Ctrl-C.

Example:
  cardsync watch JB_1234 JB_5678`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args)
	},
}

func runWatch(cmd *cobra.Command, jobIDs []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e.engine.Start()
	defer e.engine.Stop()

	type update struct {
		jobID string
		entry cache.Entry
	}
	updates := make(chan update, len(jobIDs)*4)

	for _, jobID := range jobIDs {
		sub, err := e.engine.Watch(query.SelectorJobDetails, query.Options{
			JobID: jobID,
			Page:  "job-details",
		})
		if err != nil {
			return err
		}
		defer sub.Close()

		jobID := jobID
		go func(sub *query.Subscription) {
			for entry := range sub.Updates() {
				select {
				case updates <- update{jobID: jobID, entry: entry}:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}

	pterm.Info.Printf("Watching %d job(s)\n", len(jobIDs))

	lastStatus := make(map[string]pipeline.JobStatus)
	terminal := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				pterm.Println()
				pterm.Info.Println("Stopped")
				return nil
			}
			return ctx.Err()
		case u := <-updates:
			if u.entry.Err != nil {
				pterm.Warning.Printf("%s: fetch failed: %v\n", u.jobID, u.entry.Err)
				continue
			}
			job, ok := u.entry.Data.(pipeline.Job)
			if !ok {
				continue
			}
			if lastStatus[job.JobID] != job.JobStatus {
				lastStatus[job.JobID] = job.JobStatus
				pterm.Printf("%-14s  %s\n", job.JobID, statusColor(job.JobStatus))
			}
			if job.JobStatus.IsTerminal() && !terminal[job.JobID] {
				terminal[job.JobID] = true
				if len(terminal) == len(jobIDs) {
					pterm.Success.Println("All jobs finished")
					return nil
				}
			}
		}
	}
}
