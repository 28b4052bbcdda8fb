package main

import (
	"fmt"

	"github.com/goliatone/go-jackson"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jackson %s\n", jackson.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
