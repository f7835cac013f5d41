package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arlow/armature/pkg/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Model cache maintenance",
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the model cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CacheDir)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		cache, err := model.OpenCache(cfg.CacheDir, log)
		if err != nil {
			return err
		}
		defer cache.Close()

		if err := cache.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cfg.CacheDir)
		return nil
	},
}
