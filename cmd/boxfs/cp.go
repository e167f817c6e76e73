package main

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	cpCmd.SetHelpTemplate(`
Usage:
  boxfs cp -c [container] [src] [dst]

Options:
  -h [--help]		show help information
`)

	rootCmd.AddCommand(cpCmd)
}

var cpCmd = &cobra.Command{
	Use:   "cp",
	Short: "copy a file inside the container",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		if len(args) != 2 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}

		boxfs, err := openContainer(false)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		if err := boxfs.Copy(args[0], args[1]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}
