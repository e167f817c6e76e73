package main

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parasource/boxfs/boxfs/container"
	"github.com/parasource/boxfs/boxfs/fs"
)

func init() {
	createCmd.SetHelpTemplate(`
Usage:
  boxfs create -c [container] --blocks [n]

Options:
  --blocks			total number of data blocks
  --block-size			block size in bytes, a power of two
  -h [--help]			show help information
`)

	rootCmd.AddCommand(createCmd)

	createCmd.Flags().Uint64("blocks", 0, "total number of data blocks")
	createCmd.Flags().Uint32("block-size", container.DefaultBlockSize, "block size in bytes")
	viper.BindPFlag("blocks", createCmd.Flags().Lookup("blocks"))
	viper.BindPFlag("block-size", createCmd.Flags().Lookup("block-size"))
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "create a new container",
	Run: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.Default)
		log.SetLevel(log.InfoLevel)

		v := viper.GetViper()
		path := v.GetString("container")
		if path == "" {
			log.Error("no container specified, use --container or BOXFS_CONTAINER")
			cmd.Usage()
			return
		}
		blocks := v.GetUint64("blocks")
		if blocks == 0 {
			log.Error("--blocks is required")
			cmd.Usage()
			return
		}

		boxfs, err := fs.Open(path, fs.Options{
			Create:      true,
			BlockSize:   v.GetUint32("block-size"),
			TotalBlocks: blocks,
		})
		if err != nil {
			log.Fatalf("Error creating container: %v", err)
		}
		defer boxfs.Close()

		log.Infof("created container %v with %v blocks of %v bytes", path, blocks, boxfs.BlockSize())
	},
}
