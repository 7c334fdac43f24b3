package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	var configPath string
	var owner string
	var tag string

	cmd := &cobra.Command{
		Use:   "rebuild <hash>",
		Short: "Resubmit the build that produced an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd, configPath, args[0], owner, tag)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	cmd.Flags().StringVar(&owner, "owner", "", "task owner (defaults to the configured owner)")
	cmd.Flags().StringVar(&tag, "tag", "", "override the tag for the rebuilt image")
	return cmd
}

func runRebuild(cmd *cobra.Command, configPath, hash, owner, tag string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	params := map[string]interface{}{}
	if tag != "" {
		params["tag"] = tag
	}
	if owner == "" {
		owner = cfg.Owner
	}

	taskID, err := newOrchestrator(cfg, gormDB).SubmitRebuild(params, hash, owner)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Submitted rebuild task %d\n", taskID)
	return nil
}
