package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/slipway/internal/task"
)

func newTasksCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List build and move tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	cmd.AddCommand(newTaskShowCmd())
	return cmd
}

func runTasksList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	tasks, err := task.List(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	hw := hashWidth()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tOWNER\tCREATED\tFINISHED\tIMAGE")
	for _, t := range tasks {
		img := "-"
		if t.Image != nil {
			img = truncate(t.Image.Hash, hw)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Kind, t.Status, t.Owner,
			formatTime(t.CreatedAt), formatTimePtr(t.FinishedAt), img)
	}
	w.Flush()
	return nil
}

func newTaskShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	return cmd
}

func runTaskShow(cmd *cobra.Command, configPath, arg string) error {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("task id must be numeric, got %q", arg)
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	t, err := task.Get(gormDB, uint(id))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %d\n", t.ID)
	fmt.Fprintf(out, "Kind:      %s\n", t.Kind)
	fmt.Fprintf(out, "Status:    %s\n", t.Status)
	fmt.Fprintf(out, "Owner:     %s\n", t.Owner)
	if t.BuildEnv != "" {
		fmt.Fprintf(out, "Buildroot: %s\n", t.BuildEnv)
	}
	if t.ExternalJobID != "" {
		fmt.Fprintf(out, "Job:       %s\n", t.ExternalJobID)
	}
	fmt.Fprintf(out, "Created:   %s\n", formatTime(t.CreatedAt))
	if t.FinishedAt != nil {
		fmt.Fprintf(out, "Finished:  %s\n", formatTime(*t.FinishedAt))
	}
	if t.Image != nil {
		fmt.Fprintf(out, "Image:     %s\n", t.Image.Hash)
	}
	if t.Payload != "" {
		fmt.Fprintf(out, "\nRequest:\n%s\n", t.Payload)
	}
	if t.Log != "" {
		fmt.Fprintf(out, "\nLog:\n%s\n", t.Log)
	}
	return nil
}
