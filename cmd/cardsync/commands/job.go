package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/pipeline"
	"github.com/toppsdigital/cardsync/query"
)

// JobCmd shows one job in detail.
var JobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show one pipeline job",
	Long: `Show a job's status and metadata, optionally with per-file
progress and asset configurations.

Examples:
  cardsync job JB_1234
  cardsync job JB_1234 --files
  cardsync job JB_1234 --assets`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetBool("files")
		assets, _ := cmd.Flags().GetBool("assets")
		return runJob(cmd, args[0], files, assets)
	},
}

func init() {
	JobCmd.Flags().Bool("files", false, "Include per-file progress")
	JobCmd.Flags().Bool("assets", false, "Include asset configurations")
}

func runJob(cmd *cobra.Command, jobID string, includeFiles, includeAssets bool) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	data, err := e.engine.Get(ctx, query.SelectorJobDetails, query.Options{
		JobID:         jobID,
		IncludeFiles:  includeFiles,
		IncludeAssets: includeAssets,
		NoPolling:     true,
	})
	if err != nil {
		if errors.IsNotFoundError(err) {
			return errors.Newf("job %s not found", jobID)
		}
		return err
	}

	job, ok := data.(pipeline.Job)
	if !ok {
		return errors.New("unexpected job detail payload")
	}

	printJobDetail(job)

	if includeFiles {
		printFileGroups(job.ContentPipelineFiles)
	}
	if includeAssets {
		printAssets(job.Assets)
	}
	return nil
}
