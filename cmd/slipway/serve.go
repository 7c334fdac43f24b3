package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/slipway/internal/api"
	"github.com/zulandar/slipway/internal/builder"
	"github.com/zulandar/slipway/internal/config"
	"github.com/zulandar/slipway/internal/db"
	"github.com/zulandar/slipway/internal/gitref"
	"github.com/zulandar/slipway/internal/notify"
	"github.com/zulandar/slipway/internal/notify/discord"
	"github.com/zulandar/slipway/internal/notify/slack"
	"github.com/zulandar/slipway/internal/queue"
	"github.com/zulandar/slipway/internal/web"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the build service",
		Long:  "Starts the JSON API, the web UI (on the next port up), the worker runner, and the digest scheduler when configured. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Slipway config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := newOrchestrator(cfg, gormDB)
	if cfg.GitHub.Token != "" {
		orch.Pinner = gitref.New(cfg.GitHub.Token)
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		return err
	}
	var notifier *notify.Notifier
	if adapter != nil {
		notifier = &notify.Notifier{DB: gormDB, Adapter: adapter}
		defer adapter.Close()
	}

	runner := &queue.Runner{
		DB: gormDB,
		Exec: &builder.Docker{
			Bin:             cfg.Builder.DockerBin,
			LintBin:         cfg.Builder.LintBin,
			ResultsRegistry: cfg.Builder.ResultsRegistry,
		},
		Notify:       notifier,
		Slots:        cfg.Worker.Slots,
		PollInterval: time.Duration(cfg.Worker.PollInterval) * time.Second,
	}

	out := cmd.OutOrStdout()
	errCh := make(chan error, 4)
	go func() {
		errCh <- api.Start(ctx, api.StartOpts{
			DB:              gormDB,
			Orchestrator:    orch,
			Owner:           cfg.Owner,
			ResultsRegistry: cfg.Builder.ResultsRegistry,
			Port:            cfg.Listen.Port,
			Out:             out,
		})
	}()
	go func() {
		errCh <- web.Start(ctx, web.StartOpts{DB: gormDB, Port: cfg.Listen.Port + 1, Out: out})
	}()
	go func() {
		errCh <- runner.Run(ctx)
	}()
	if notifier != nil && cfg.Notify.DigestSchedule != "" {
		go func() {
			errCh <- notifier.RunDigestSchedule(ctx, cfg.Notify.DigestSchedule)
		}()
	}

	err = <-errCh
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newAdapter(cfg *config.Config) (notify.Adapter, error) {
	switch cfg.Notify.Platform {
	case "":
		return nil, nil
	case "slack":
		return slack.New(slack.AdapterOpts{Token: cfg.Notify.Token, ChannelID: cfg.Notify.Channel})
	case "discord":
		return discord.New(discord.AdapterOpts{Token: cfg.Notify.Token, ChannelID: cfg.Notify.Channel})
	default:
		return nil, fmt.Errorf("unknown notify platform %q", cfg.Notify.Platform)
	}
}
