package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type buildFlags struct {
	configPath        string
	owner             string
	gitURL            string
	tag               string
	gitCommit         string
	gitPath           string
	gitDockerfilePath string
	parentRegistry    string
	targetRegistries  []string
	repos             []string
}

func newBuildCmd() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Submit an image build",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	cmd.Flags().StringVar(&flags.owner, "owner", "", "task owner (defaults to the configured owner)")
	cmd.Flags().StringVar(&flags.gitURL, "git-url", "", "git repository to build from")
	cmd.Flags().StringVar(&flags.tag, "tag", "", "tag for the built image")
	cmd.Flags().StringVar(&flags.gitCommit, "git-commit", "", "commit or ref to build (defaults to HEAD)")
	cmd.Flags().StringVar(&flags.gitPath, "git-path", "", "build context directory inside the repository")
	cmd.Flags().StringVar(&flags.gitDockerfilePath, "git-dockerfile-path", "", "path to the Dockerfile inside the repository")
	cmd.Flags().StringVar(&flags.parentRegistry, "parent-registry", "", "registry to pull the parent image from")
	cmd.Flags().StringSliceVar(&flags.targetRegistries, "target-registry", nil, "registry to push the built image to (repeatable)")
	cmd.Flags().StringSliceVar(&flags.repos, "repo", nil, "extra RPM repo to enable during the build (repeatable)")
	cmd.MarkFlagRequired("git-url")
	cmd.MarkFlagRequired("tag")
	return cmd
}

func runBuild(cmd *cobra.Command, flags buildFlags) error {
	cfg, gormDB, err := connectFromConfig(flags.configPath)
	if err != nil {
		return err
	}

	params := map[string]interface{}{
		"git_url": flags.gitURL,
		"tag":     flags.tag,
	}
	if flags.gitCommit != "" {
		params["git_commit"] = flags.gitCommit
	}
	if flags.gitPath != "" {
		params["git_path"] = flags.gitPath
	}
	if flags.gitDockerfilePath != "" {
		params["git_dockerfile_path"] = flags.gitDockerfilePath
	}
	if flags.parentRegistry != "" {
		params["parent_registry"] = flags.parentRegistry
	}
	if len(flags.targetRegistries) > 0 {
		params["target_registries"] = toInterfaces(flags.targetRegistries)
	}
	if len(flags.repos) > 0 {
		params["repos"] = toInterfaces(flags.repos)
	}

	owner := flags.owner
	if owner == "" {
		owner = cfg.Owner
	}

	taskID, err := newOrchestrator(cfg, gormDB).SubmitBuild(params, owner)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Submitted build task %d\n", taskID)
	return nil
}

// toInterfaces widens a string slice for storage in JSON task payloads.
func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
