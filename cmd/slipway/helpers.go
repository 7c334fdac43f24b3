package main

import (
	"fmt"

	"github.com/zulandar/slipway/internal/config"
	"github.com/zulandar/slipway/internal/db"
	"github.com/zulandar/slipway/internal/queue"
	"github.com/zulandar/slipway/internal/submit"
	"gorm.io/gorm"
)

const defaultConfigPath = "slipway.yaml"

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, gormDB, nil
}

// newOrchestrator wires the orchestrator against the local durable queue.
func newOrchestrator(cfg *config.Config, gormDB *gorm.DB) *submit.Orchestrator {
	return &submit.Orchestrator{
		DB:         gormDB,
		Queue:      &queue.Store{DB: gormDB},
		BuildImage: cfg.Builder.BuildImage,
	}
}
