package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kobzevvv/vibe-sec/internal/gate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and catalog version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vibesec %s (catalog %s)\n", Version, gate.CatalogVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
