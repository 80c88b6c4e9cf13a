// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/littleci/littleci/lib/clock"
	"github.com/littleci/littleci/lib/config"
	"github.com/littleci/littleci/lib/datadir"
	"github.com/littleci/littleci/lib/engine"
	"github.com/littleci/littleci/lib/notify"
	"github.com/littleci/littleci/lib/outputlog"
	"github.com/littleci/littleci/lib/store"
)

// installation is an opened data directory: the store, the output
// logs and an engine over them. Management commands use the engine's
// registry and query operations without calling Run.
type installation struct {
	config *config.Config
	dir    datadir.Dir
	store  *store.Store
	output *outputlog.Store
	engine *engine.Engine
	logger *slog.Logger
}

// installationOptions are set by serve only.
type installationOptions struct {
	notifier   *notify.Notifier
	registerer prometheus.Registerer
}

func openInstallation(cfg *config.Config, logger *slog.Logger, options installationOptions) (*installation, error) {
	dir, err := datadir.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	jobStore, err := store.Open(store.Config{
		Path:   dir.DatabasePath(),
		Clock:  clock.Real(),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	output, err := outputlog.New(dir.JobsDir())
	if err != nil {
		return nil, errors.Join(err, jobStore.Close())
	}

	jobEngine, err := engine.New(engine.Config{
		Store:           jobStore,
		Output:          output,
		RepositoriesDir: dir.RepositoriesDir(),
		Notifier:        options.notifier,
		Workers:         cfg.Engine.Workers,
		PollInterval:    cfg.Engine.PollInterval,
		CancelGrace:     cfg.Engine.CancelGrace,
		ShutdownTimeout: cfg.Engine.ShutdownTimeout,
		Shell:           cfg.Engine.Shell,
		Registerer:      options.registerer,
		Clock:           clock.Real(),
		Logger:          logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating engine: %w", err), jobStore.Close())
	}

	return &installation{
		config: cfg,
		dir:    dir,
		store:  jobStore,
		output: output,
		engine: jobEngine,
		logger: logger,
	}, nil
}

func (i *installation) Close() error {
	return i.store.Close()
}
