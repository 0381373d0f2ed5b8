package cmd

import (
	"fmt"

	"github.com/Shopify/ghostrouter"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ghostrouter %s\n", ghostrouter.VersionString)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
