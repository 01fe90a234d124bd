package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/cmd/cardsync/commands"
	"github.com/toppsdigital/cardsync/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cardsync",
	Short: "cardsync - physical card pipeline job console",
	Long: `cardsync - job console for the physical-to-digital card pipeline.

Tracks extraction and generation jobs through the content pipeline,
keeping a live local cache of jobs, files, and asset configurations.

Available commands:
  jobs      - List pipeline jobs
  job       - Show one job in detail
  watch     - Follow jobs live until they finish
  serve     - Start the WebSocket push server for browser consoles
  download  - Print a fresh folder download link
  rerun     - Restart the pipeline for a job

Examples:
  cardsync jobs --mine                 # My jobs only
  cardsync job JB_1234 --files         # Job with per-file progress
  cardsync watch JB_1234 JB_5678       # Follow two jobs to completion
  cardsync serve                       # Push server for the browser UI`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose, _ := cmd.Flags().GetCount("verbose"); verbose > 0 {
			logger.SetVerbose()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")
	rootCmd.PersistentFlags().String("config", "", "Path to a cardsync.toml config file")

	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DownloadCmd)
	rootCmd.AddCommand(commands.RerunCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
