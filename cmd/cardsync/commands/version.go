package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/version"
)

// VersionCmd prints build information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		pterm.Println(info.String())
		pterm.Printf("  go:       %s\n", info.GoVersion)
		pterm.Printf("  platform: %s\n", info.Platform)
	},
}
