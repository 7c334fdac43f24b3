package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInvalidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "invalidate <tag>",
		Short: "Invalidate the images behind a tag and their descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvalidate(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	return cmd
}

func runInvalidate(cmd *cobra.Command, configPath, tag string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	count, err := newOrchestrator(cfg, gormDB).InvalidateTag(tag)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d images.\n", count)
	return nil
}
