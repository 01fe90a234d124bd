package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/toppsdigital/cardsync/pipeline"
)

// statusColor picks a terminal color for a job status.
func statusColor(status pipeline.JobStatus) string {
	switch {
	case status == pipeline.StatusCompleted:
		return pterm.Green(string(status))
	case status.IsFailed():
		return pterm.Red(string(status))
	case status == pipeline.StatusGenerating, status == pipeline.StatusExtracting:
		return pterm.LightCyan(string(status))
	default:
		return pterm.Yellow(string(status))
	}
}

// printJobRow renders one list row.
func printJobRow(job pipeline.Job) {
	created := job.CreatedAt
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		created = t.Local().Format("2006-01-02 15:04")
	}
	desc := job.Description
	if len(desc) > 40 {
		desc = desc[:37] + "..."
	}
	pterm.Printf("%-14s  %-20s  %-16s  %s\n",
		job.JobID,
		statusColor(job.JobStatus),
		pterm.Gray(created),
		desc)
}

// printJobDetail renders a full job view.
func printJobDetail(job pipeline.Job) {
	pterm.Printf("%s  %s\n", pterm.LightMagenta(job.JobID), statusColor(job.JobStatus))
	if job.Description != "" {
		pterm.Printf("  description:   %s\n", job.Description)
	}
	if job.SourceFolder != "" {
		pterm.Printf("  source folder: %s\n", job.SourceFolder)
	}
	if job.UserName != "" {
		pterm.Printf("  owner:         %s\n", job.UserName)
	}
	pterm.Printf("  created:       %s\n", job.CreatedAt)
	pterm.Printf("  last updated:  %s\n", job.LastUpdated)
	if len(job.Files) > 0 {
		pterm.Printf("  files:         %d\n", len(job.Files))
	}
	if job.DownloadURL != "" {
		pterm.Printf("  download:      %s\n", job.DownloadURL)
	}
}

// printFileGroups renders per-file extraction and generation progress.
func printFileGroups(groups []pipeline.FileGroup) {
	if len(groups) == 0 {
		pterm.Info.Println("No files recorded for this job yet")
		return
	}
	for _, group := range groups {
		pterm.Printf("\n%s\n", pterm.LightCyan(group.Filename))
		for name, orig := range group.OriginalFiles {
			pterm.Printf("  pdf %-32s %-10s %s\n", name, orig.CardType, fileStatusColor(orig.Status))
		}
		for name, ext := range group.ExtractedFiles {
			pterm.Printf("  layer %-30s %-10s %s\n", name, ext.LayerType, fileStatusColor(ext.Status))
		}
		for name, asset := range group.FireflyAssets {
			pterm.Printf("  asset %-30s %-10s %s\n", name, asset.CardType, fileStatusColor(asset.Status))
		}
	}
}

func fileStatusColor(status pipeline.FileStatus) string {
	switch status {
	case pipeline.FileStatusUploaded:
		return pterm.Green(string(status))
	case pipeline.FileStatusFailed:
		return pterm.Red(string(status))
	default:
		return pterm.Yellow(string(status))
	}
}

// printAssets renders a job's asset configurations.
func printAssets(assets map[string]pipeline.AssetConfig) {
	if len(assets) == 0 {
		pterm.Info.Println("No asset configurations yet")
		return
	}
	for id, asset := range assets {
		parts := []string{string(asset.Type)}
		if asset.Layer != "" {
			parts = append(parts, "layer="+asset.Layer)
		}
		if asset.Chrome != "" {
			parts = append(parts, "chrome="+asset.Chrome)
		}
		if asset.VFX != "" {
			parts = append(parts, "vfx="+asset.VFX)
		}
		if len(asset.SpotColorPairs) > 0 {
			parts = append(parts, fmt.Sprintf("pairs=%d", len(asset.SpotColorPairs)))
		}
		if asset.OneOfOneWP {
			parts = append(parts, "1of1")
		}
		pterm.Printf("  %-12s %s\n", id, strings.Join(parts, "  "))
	}
}
