package main

import (
	"fmt"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	findCmd.SetHelpTemplate(`
Usage:
  boxfs find -c [container] [pattern]

Patterns use glob syntax by default, prefix with "regex:" for a
regular expression.

Options:
  -h [--help]		show help information
`)

	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "find paths matching a pattern",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		if len(args) != 1 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}

		boxfs, err := openContainer(true)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		paths, err := boxfs.Find(args[0])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		for _, path := range paths {
			fmt.Println(path)
		}
	},
}
