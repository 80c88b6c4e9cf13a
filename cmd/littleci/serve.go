// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/littleci/littleci/lib/admin"
	"github.com/littleci/littleci/lib/auth"
	"github.com/littleci/littleci/lib/cli"
	"github.com/littleci/littleci/lib/clock"
	"github.com/littleci/littleci/lib/config"
	"github.com/littleci/littleci/lib/datadir"
	"github.com/littleci/littleci/lib/httpapi"
	"github.com/littleci/littleci/lib/notify"
	"github.com/littleci/littleci/lib/service"
	"github.com/littleci/littleci/lib/version"
)

func serveCommand(streams cli.IO) *cli.Command {
	var params ConfigFlags
	return &cli.Command{
		Name:    "serve",
		Summary: "Run the server",
		Description: `Run the HTTP API, the build workers and the admin socket until
interrupted. The data directory is locked while the server runs.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("serve", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args); err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			logger, err := commandLogger(streams, cfg, "serve", slog.LevelDebug)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, logger, nil)
		},
	}
}

// serve runs the server until ctx is cancelled. ready, when non-nil,
// receives the HTTP listen address once both listeners are up.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready chan<- string) error {
	dir, err := datadir.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	lock, err := dir.Lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	notifier := notify.New(notify.Config{SiteURL: cfg.SiteURL, Logger: logger})
	defer notifier.Wait()

	install, err := openInstallation(cfg, logger, installationOptions{notifier: notifier, registerer: registry})
	if err != nil {
		return err
	}
	defer install.Close()

	mode, err := auth.ParseMode(cfg.Authentication)
	if err != nil {
		return err
	}
	public, private, generated, err := auth.LoadOrGenerateKeypair(dir.KeysDir())
	if err != nil {
		return fmt.Errorf("loading token signing key: %w", err)
	}
	if generated {
		logger.Info("generated token signing key", "dir", dir.KeysDir())
	}
	authority, err := auth.NewAuthority(auth.Config{
		Mode:          mode,
		Users:         install.store,
		PublicKey:     public,
		PrivateKey:    private,
		TokenLifetime: cfg.Tokens.Lifetime,
		Clock:         clock.Real(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if mode == auth.ModeSimple {
		users, err := install.store.CountUsers(ctx)
		if err != nil {
			return err
		}
		if users == 0 {
			logger.Warn("no users exist, so nobody can log in; create one with 'littleci user add'")
		}
	}

	handler, err := httpapi.NewHandler(httpapi.Config{
		Engine:    install.engine,
		Authority: authority,
		Gatherer:  registry,
		Info: httpapi.ServerInfo{
			SiteURL:        cfg.SiteURL,
			Authentication: string(mode),
			Workers:        cfg.Engine.Workers,
			Version:        version.Info(),
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Listeners open only once the workers run.
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- install.engine.Run(ctx)
	}()
	if err := awaitReady(install.engine.Ready(), engineDone); err != nil {
		cancel()
		<-engineDone
		return err
	}

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.ListenAddress(),
		Handler: handler,
		Logger:  logger,
	})
	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	socketServer := service.NewSocketServer(cfg.AdminSocket, logger)
	admin.Register(socketServer, install.engine)
	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	startErr := awaitReady(httpServer.Ready(), httpDone)
	if startErr == nil {
		startErr = awaitReady(socketServer.Ready(), socketDone)
	}
	if startErr != nil {
		cancel()
	} else {
		logger.Info("littleci running",
			"version", version.Info(),
			"address", httpServer.Addr().String(),
			"admin_socket", cfg.AdminSocket,
			"data_dir", dir.Root(),
			"workers", cfg.Engine.Workers,
			"authentication", string(mode),
		)
		if ready != nil {
			ready <- httpServer.Addr().String()
		}
		<-ctx.Done()
		logger.Info("shutting down")
	}

	// Listeners stop first; the engine then waits for running builds
	// up to its shutdown timeout.
	var errs []error
	if startErr != nil {
		errs = append(errs, startErr)
	}
	for _, done := range []chan error{httpDone, socketDone, engineDone} {
		if err := <-done; err != nil && !errors.Is(err, startErr) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// awaitReady waits for a component to become ready. One that fails to
// start returns first; its error is put back on done for the shutdown
// drain and returned.
func awaitReady(ready <-chan struct{}, done chan error) error {
	select {
	case <-ready:
		return nil
	case err := <-done:
		done <- err
		if err == nil {
			err = errors.New("stopped before it was ready")
		}
		return err
	}
}
