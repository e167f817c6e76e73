package main

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	mkdirCmd.SetHelpTemplate(`
Usage:
  boxfs mkdir -c [container] [path]

Options:
  -p			create missing parent directories
  -h [--help]		show help information
`)

	rootCmd.AddCommand(mkdirCmd)

	mkdirCmd.Flags().BoolP("parents", "p", false, "create missing parent directories")
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir",
	Short: "create a directory",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		if len(args) != 1 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}
		parents, _ := cmd.Flags().GetBool("parents")

		boxfs, err := openContainer(false)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		if parents {
			err = boxfs.MkdirAll(args[0])
		} else {
			err = boxfs.Mkdir(args[0])
		}
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}
