package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/pipeline"
	"github.com/toppsdigital/cardsync/query"
)

// DownloadCmd prints a folder download link for a finished job.
var DownloadCmd = &cobra.Command{
	Use:   "download <job-id>",
	Short: "Print a folder download link",
	Long: `Request a presigned download link for a job's output folder.
A still-valid cached link is reused rather than minting a new one.

Example:
  cardsync download JB_1234`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd, args[0])
	},
}

func runDownload(cmd *cobra.Command, jobID string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	data, err := e.engine.Get(ctx, query.SelectorDownloadURL, query.Options{
		JobID:     jobID,
		NoPolling: true,
	})
	if err != nil {
		return err
	}

	info, ok := data.(pipeline.DownloadURLInfo)
	if !ok {
		return nil
	}

	pterm.Println(info.URL)
	if !info.ExpiresAt.IsZero() {
		pterm.Info.Printf("Expires %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}
