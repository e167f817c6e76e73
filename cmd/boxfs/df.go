package main

import (
	"fmt"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

func init() {
	dfCmd.SetHelpTemplate(`
Usage:
  boxfs df -c [container]

Options:
  -h [--help]		show help information
`)

	rootCmd.AddCommand(dfCmd)
}

var dfCmd = &cobra.Command{
	Use:   "df",
	Short: "show container space usage",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		boxfs, err := openContainer(true)
		if err != nil {
			log.Fatalf("Error opening container: %v", err)
		}
		defer boxfs.Close()

		stats, err := boxfs.Stats()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		blockSize := uint64(stats.BlockSize)
		fmt.Printf("Block size:    %v\n", stats.BlockSize)
		fmt.Printf("Total blocks:  %v (%v bytes)\n", stats.TotalBlocks, stats.TotalBlocks*blockSize)
		fmt.Printf("Used blocks:   %v (%v bytes)\n", stats.UsedBlocks, stats.UsedBlocks*blockSize)
		fmt.Printf("Free blocks:   %v (%v bytes)\n", stats.FreeBlocks, stats.FreeBlocks*blockSize)
		fmt.Printf("Largest free:  %v blocks\n", stats.LargestFree)
		fmt.Printf("Inodes:        %v\n", stats.Inodes)
	},
}
