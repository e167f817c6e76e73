package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print boxfs version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("boxfs v%v\n", version)
	},
}
