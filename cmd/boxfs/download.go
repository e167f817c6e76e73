package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	downloadCmd.SetHelpTemplate(`
Usage:
  boxfs download -c [container] [container path] [host path]

Options:
  -h [--help]		show help information
`)

	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "copy a file out of the container",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		if len(args) != 2 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}

		boxfs, err := openContainer(true)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		data, err := boxfs.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		if err := os.WriteFile(args[1], data, 0644); err != nil {
			log.Fatalf("Error writing %v: %v", args[1], err)
		}
		log.Infof("downloaded %v bytes to %v", len(data), args[1])
	},
}
