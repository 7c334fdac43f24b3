package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/slipway/internal/image"
)

func newImagesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "images",
		Short: "List tracked images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImagesList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	cmd.AddCommand(newImageShowCmd())
	return cmd
}

func runImagesList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	imgs, err := image.List(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(imgs) == 0 {
		fmt.Fprintln(out, "No images found.")
		return nil
	}

	hw := hashWidth()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tSTATUS\tINVALID\tPARENT\tTAGS")
	for _, img := range imgs {
		parent := "-"
		if img.ParentHash != nil {
			parent = truncate(*img.ParentHash, hw)
		}
		invalid := "no"
		if img.Invalidated {
			invalid = "yes"
		}
		tags, err := image.TagNames(gormDB, img.Hash)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(img.Hash, hw), img.Status, invalid, parent, strings.Join(tags, ","))
	}
	w.Flush()
	return nil
}

func newImageShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <hash>",
		Short: "Show image details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImageShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	return cmd
}

func runImageShow(cmd *cobra.Command, configPath, hash string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	img, err := image.Get(gormDB, hash)
	if err != nil {
		return err
	}
	tags, err := image.TagNames(gormDB, hash)
	if err != nil {
		return err
	}
	packages, err := image.OrderedPackages(gormDB, hash)
	if err != nil {
		return err
	}
	children, err := image.Children(gormDB, hash)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Hash:        %s\n", img.Hash)
	fmt.Fprintf(out, "Status:      %s\n", img.Status)
	fmt.Fprintf(out, "Invalidated: %t\n", img.Invalidated)
	if img.ParentHash != nil {
		fmt.Fprintf(out, "Parent:      %s\n", *img.ParentHash)
	}
	if img.TaskID != nil {
		fmt.Fprintf(out, "Task:        %d\n", *img.TaskID)
	}
	if len(tags) > 0 {
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(tags, ", "))
	}
	if len(children) > 0 {
		fmt.Fprintf(out, "Children:    %s\n", strings.Join(children, ", "))
	}
	if len(packages) > 0 {
		fmt.Fprintf(out, "\nPackages (%d):\n", len(packages))
		for _, p := range packages {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return nil
}
