package main

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	rmCmd.SetHelpTemplate(`
Usage:
  boxfs rm -c [container] [path]

Options:
  -r			remove directories recursively
  -h [--help]		show help information
`)

	rootCmd.AddCommand(rmCmd)

	rmCmd.Flags().BoolP("recursive", "r", false, "remove directories recursively")
}

var rmCmd = &cobra.Command{
	Use:   "rm",
	Short: "remove a file or directory",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		if len(args) != 1 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}
		recursive, _ := cmd.Flags().GetBool("recursive")

		boxfs, err := openContainer(false)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		if recursive {
			err = boxfs.RemoveAll(args[0])
		} else {
			err = boxfs.Remove(args[0])
		}
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}
