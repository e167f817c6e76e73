package main

import (
	"fmt"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	listCmd.SetHelpTemplate(`
Usage:
  boxfs ls -c [container] [path]

Options:
  -h [--help]			show help information
`)

	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "ls",
	Short: "list files and directories",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		path := "/"
		if len(args) > 1 {
			log.Error("wrong arguments number")
			cmd.Usage()
			return
		}
		if len(args) == 1 {
			path = args[0]
		}

		boxfs, err := openContainer(true)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		entries, err := boxfs.ReadDir(path)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		for _, entry := range entries {
			typ := "file"
			if entry.IsDir {
				typ = "dir"
			}
			fmt.Printf("%-5s %10d %s\n", typ, entry.Size, entry.Name)
		}
	},
}
