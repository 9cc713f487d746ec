package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/FleetSync/config"
	"github.com/BearBump/FleetSync/internal/bootstrap"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/BearBump/FleetSync/internal/services/scheduler"
	"github.com/BearBump/FleetSync/internal/services/syncer"
	"github.com/pkg/errors"
)

type scheduleRepo interface {
	scheduler.Repository
	EnsureSchedules(ctx context.Context, ownerIDs []string, firstAt time.Time) error
	RequestSync(ctx context.Context, ownerID string) error
}

type syncRunner interface {
	scheduler.Runner
	Stats() syncer.Stats
}

type workerRuntime struct {
	repo    scheduleRepo
	runner  syncRunner
	closeFn func()
}

type workerFactories struct {
	newRuntime func(ctx context.Context, cfg *config.Config) (workerRuntime, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newRuntime: func(ctx context.Context, cfg *config.Config) (workerRuntime, error) {
			d, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return workerRuntime{}, err
			}
			// расписание живёт только в postgres (FOR UPDATE SKIP LOCKED)
			if d.Postgres == nil {
				d.Close()
				return workerRuntime{}, errors.Wrap(models.ErrConfiguration, "sync-worker requires postgres storage")
			}
			return workerRuntime{repo: d.Postgres, runner: d.Syncer, closeFn: d.Close}, nil
		},
	}
}

func plannerConfig(cfg *config.Config) scheduler.PlannerConfig {
	f := cfg.FleetSync
	return scheduler.PlannerConfig{
		Interval: config.Seconds(f.WorkerSyncIntervalSeconds),
		Backoff1: config.Seconds(f.WorkerBackoff1Seconds),
		Backoff2: config.Seconds(f.WorkerBackoff2Seconds),
		Backoff3: config.Seconds(f.WorkerBackoff3Seconds),
		Backoff4: config.Seconds(f.WorkerBackoff4Seconds),
	}
}

// RunSyncWorker registers configured owners and runs the timer and the ops server until ctx is done.
func RunSyncWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	rt, err := f.newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	if rt.closeFn != nil {
		defer rt.closeFn()
	}

	if len(cfg.FleetSync.Owners) > 0 {
		if err := rt.repo.EnsureSchedules(ctx, cfg.FleetSync.Owners, time.Now().UTC()); err != nil {
			return errors.Wrap(err, "ensure schedules")
		}
		slog.Info("owners registered for periodic sync", "count", len(cfg.FleetSync.Owners))
	}

	fs := cfg.FleetSync
	sch := scheduler.New(rt.repo, rt.runner).
		WithSettings(
			config.Seconds(fs.WorkerPollIntervalSeconds),
			fs.WorkerBatchSize,
			fs.WorkerConcurrency,
			config.Seconds(fs.WorkerLeaseSeconds),
		).
		WithPlanner(plannerConfig(cfg))

	httpOpts.scheduler = sch
	httpOpts.repo = rt.repo
	httpOpts.syncer = rt.runner
	httpOpts.cfg = cfg

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, httpOpts)
	}()

	schErr := make(chan error, 1)
	go func() {
		schErr <- sch.Run(ctx)
	}()

	select {
	case err := <-httpErr:
		return err
	case err := <-schErr:
		return err
	}
}
