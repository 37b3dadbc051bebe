package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by the build via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the moneytree version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("moneytree", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
