package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMoveCmd() *cobra.Command {
	var configPath string
	var owner string
	var source string
	var target string
	var tags []string

	cmd := &cobra.Command{
		Use:   "move <hash>",
		Short: "Copy an image's tags between registries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(cmd, configPath, args[0], owner, source, target, tags)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	cmd.Flags().StringVar(&owner, "owner", "", "task owner (defaults to the configured owner)")
	cmd.Flags().StringVar(&source, "source-registry", "", "registry to pull from")
	cmd.Flags().StringVar(&target, "target-registry", "", "registry to push to")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to move (repeatable)")
	cmd.MarkFlagRequired("source-registry")
	cmd.MarkFlagRequired("target-registry")
	cmd.MarkFlagRequired("tag")
	return cmd
}

func runMove(cmd *cobra.Command, configPath, hash, owner, source, target string, tags []string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	params := map[string]interface{}{
		"source_registry": source,
		"target_registry": target,
		"tags":            toInterfaces(tags),
	}
	if owner == "" {
		owner = cfg.Owner
	}

	taskID, err := newOrchestrator(cfg, gormDB).SubmitMove(params, hash, owner)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Submitted move task %d\n", taskID)
	return nil
}
