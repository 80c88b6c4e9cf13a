// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/littleci/littleci/lib/clock"
	"github.com/littleci/littleci/lib/notify"
	"github.com/littleci/littleci/lib/outputlog"
	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// Defaults for Config fields left zero.
const (
	DefaultWorkers         = 1
	DefaultPollInterval    = 2 * time.Second
	DefaultCancelGrace     = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultShell           = "/bin/sh"
)

// Config holds the parameters of an Engine.
type Config struct {
	// Store is the job and repository store. Required.
	Store *store.Store

	// Output stores job output. Required.
	Output *outputlog.Store

	// RepositoriesDir is the parent of default working directories:
	// a repository without working_dir builds in
	// <RepositoriesDir>/<slug>, created on first use. Required.
	RepositoriesDir string

	// Notifier delivers repository webhooks. Optional.
	Notifier *notify.Notifier

	Workers         int
	PollInterval    time.Duration
	CancelGrace     time.Duration
	ShutdownTimeout time.Duration

	// Shell runs the repository command as "<Shell> -c <run>".
	Shell string

	// HostEnvironment is the base environment of every build.
	// Defaults to os.Environ() at construction.
	HostEnvironment []string

	// Registerer receives the engine's metrics. Defaults to a private
	// registry.
	Registerer prometheus.Registerer

	Clock  clock.Clock
	Logger *slog.Logger
}

// Engine schedules and executes jobs.
type Engine struct {
	config        Config
	store         *store.Store
	output        *outputlog.Store
	authenticator *trigger.Authenticator
	metrics       *metrics
	clock         clock.Clock
	logger        *slog.Logger

	// wake has one slot per worker. Enqueue does a non-blocking send
	// so a burst of triggers wakes at most every worker once.
	wake chan struct{}

	mu sync.Mutex

	// runs is the run table: jobs executing in this process.
	runs map[string]*run

	// pendingCancels holds running jobs whose cancellation arrived
	// before their worker registered them.
	pendingCancels map[string]struct{}

	// started is set once Run begins.
	started bool

	// ready is closed once orphans are reconciled and workers run.
	ready chan struct{}
}

// run is one entry of the run table.
type run struct {
	job        store.Job
	repository store.Repository
	startedAt  time.Time
	cancel     context.CancelFunc

	// cancelRequested distinguishes a cancellation from a shutdown
	// abandoning the job. Guarded by Engine.mu.
	cancelRequested bool
}

// New validates cfg and returns an Engine. Call Run to start workers.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: Store is required")
	}
	if cfg.Output == nil {
		return nil, fmt.Errorf("engine: Output is required")
	}
	if cfg.RepositoriesDir == "" {
		return nil, fmt.Errorf("engine: RepositoriesDir is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("engine: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("engine: Logger is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = DefaultCancelGrace
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Shell == "" {
		cfg.Shell = DefaultShell
	}
	if cfg.HostEnvironment == nil {
		cfg.HostEnvironment = os.Environ()
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}

	return &Engine{
		config:         cfg,
		store:          cfg.Store,
		output:         cfg.Output,
		authenticator:  trigger.NewAuthenticator(cfg.Store),
		metrics:        newMetrics(cfg.Registerer),
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		wake:           make(chan struct{}, cfg.Workers),
		runs:           make(map[string]*run),
		pendingCancels: make(map[string]struct{}),
		ready:          make(chan struct{}),
	}, nil
}

// Run reconciles orphaned jobs, starts the worker pool and blocks
// until ctx is cancelled and the pool has shut down. It returns an
// error only if startup fails.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine: Run called twice")
	}
	e.started = true
	e.mu.Unlock()

	if err := e.reconcileOrphans(ctx); err != nil {
		return err
	}

	// Jobs run under jobsCtx, not ctx: a shutdown stops claiming
	// immediately but lets running jobs finish until the timeout.
	jobsCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()

	var workers sync.WaitGroup
	for index := range e.config.Workers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			e.work(ctx, jobsCtx, index)
		}()
	}
	e.logger.Info("engine started",
		"workers", e.config.Workers,
		"poll_interval", e.config.PollInterval,
	)
	close(e.ready)

	<-ctx.Done()
	e.logger.Info("engine stopping", "running_jobs", e.runningCount())

	finished := make(chan struct{})
	go func() {
		workers.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-e.clock.After(e.config.ShutdownTimeout):
		e.logger.Warn("shutdown timeout reached, abandoning running jobs",
			"running_jobs", e.runningCount(),
			"timeout", e.config.ShutdownTimeout,
		)
		abandon()
		<-finished
	}

	if e.config.Notifier != nil {
		e.config.Notifier.Wait()
	}
	e.logger.Info("engine stopped")
	return nil
}

// Ready is closed once Run has reconciled orphaned jobs and started
// the workers. If startup fails, Run returns the error and Ready stays
// open.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Wake nudges idle workers to claim immediately.
func (e *Engine) Wake() {
	for range e.config.Workers {
		select {
		case e.wake <- struct{}{}:
		default:
			return
		}
	}
}

// reconcileOrphans fails jobs a previous process left running.
func (e *Engine) reconcileOrphans(ctx context.Context) error {
	orphans, err := e.store.ReconcileOrphans(ctx)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	for _, job := range orphans {
		note := fmt.Sprintf("\nlittleci: build was interrupted: the server stopped while it was running (exit code %d)\n", store.ExitOrphaned)
		if err := e.output.Append(job.ID, note); err != nil {
			e.logger.Error("writing orphan note", "job", job.ID, "error", err)
		}
		repository, err := e.store.Repository(ctx, job.RepositoryID)
		if err != nil {
			e.logger.Error("loading repository of orphaned job", "job", job.ID, "error", err)
			continue
		}
		e.metrics.finished.WithLabelValues(repository.Slug, string(job.Status)).Inc()
		e.notify(repository, job)
	}
	return nil
}

func (e *Engine) notify(repository store.Repository, job store.Job) {
	if e.config.Notifier != nil {
		e.config.Notifier.JobChanged(repository, job)
	}
}

func (e *Engine) runningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}
