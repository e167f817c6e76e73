package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	uploadCmd.SetHelpTemplate(`
Usage:
  boxfs upload -c [container] [host path] [container path]

Options:
  -h [--help]		show help information
`)

	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "copy a host file into the container",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		if len(args) != 2 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Error reading %v: %v", args[0], err)
		}

		boxfs, err := openContainer(false)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		if err := boxfs.WriteFile(args[1], data); err != nil {
			log.Fatalf("Error: %v", err)
		}
		log.Infof("uploaded %v bytes to %v", len(data), args[1])
	},
}
