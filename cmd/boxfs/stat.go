package main

import (
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	statCmd.SetHelpTemplate(`
Usage:
  boxfs stat -c [container] [path]

Options:
  -h [--help]		show help information
`)

	rootCmd.AddCommand(statCmd)
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "show file or directory attributes",
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

		info, err := boxfs.Stat(args[0])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		typ := "file"
		if info.IsDir() {
			typ = "directory"
		}
		fmt.Printf("Name:     %v\n", info.Name())
		fmt.Printf("Type:     %v\n", typ)
		fmt.Printf("Size:     %v\n", info.Size())
		fmt.Printf("Created:  %v\n", info.CreatedAt().Format(time.RFC3339))
		fmt.Printf("Modified: %v\n", info.ModTime().Format(time.RFC3339))
		fmt.Printf("Accessed: %v\n", info.AccessedAt().Format(time.RFC3339))
	},
}
