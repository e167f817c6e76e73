package main

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	mvCmd.SetHelpTemplate(`
Usage:
  boxfs mv -c [container] [src] [dst]

Options:
  -f			replace an existing destination
  -h [--help]		show help information
`)

	rootCmd.AddCommand(mvCmd)

	mvCmd.Flags().BoolP("force", "f", false, "replace an existing destination")
}

var mvCmd = &cobra.Command{
	Use:   "mv",
	Short: "move or rename a file or directory",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		if len(args) != 2 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}
		force, _ := cmd.Flags().GetBool("force")

		boxfs, err := openContainer(false)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		if err := boxfs.Move(args[0], args[1], force); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}
