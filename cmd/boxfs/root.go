package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parasource/boxfs/boxfs/fs"
)

var configDefaults = map[string]interface{}{
	"container": "",
}

func init() {
	rootCmd.PersistentFlags().StringP("container", "c", "", "path to the container file")
	viper.BindPFlag("container", rootCmd.PersistentFlags().Lookup("container"))
	viper.BindEnv("container", "BOXFS_CONTAINER")

	for k, v := range configDefaults {
		viper.SetDefault(k, v)
	}
}

var rootCmd = &cobra.Command{
	Use:   "boxfs",
	Short: "single-container filesystem tool",
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return err
	}

	return nil
}

// openContainer opens the container named by the --container flag or
// the BOXFS_CONTAINER variable.
func openContainer(readOnly bool) (*fs.FileSystem, error) {
	path := viper.GetViper().GetString("container")
	if path == "" {
		return nil, errors.New("no container specified, use --container or BOXFS_CONTAINER")
	}
	return fs.Open(path, fs.Options{ReadOnly: readOnly})
}
