package main

import (
	"github.com/opsys/blockfs/cfg"
	"github.com/spf13/cobra"
)

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	if bindErr == nil {
		bindErr = cfg.BindFsFlags(rootCmd.PersistentFlags())
	}
}
