// Package jobs runs the periodic maintenance tasks: purging expired API keys
// and reconciling balances.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	locker Locker
	log    *zap.Logger
}

// NewScheduler builds a cron scheduler in loc. locker may be nil when a
// single instance runs the jobs.
func NewScheduler(loc *time.Location, locker Locker, log *zap.Logger) *Scheduler {
	log = log.With(zap.String("service", "jobs"))
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker: locker,
		log:    log,
	}
}

func (s *Scheduler) Add(job Job) error {
	_, err := s.cron.AddFunc(job.Schedule, func() {
		//nolint:errcheck
		s.RunJob(context.Background(), job)
	})
	if err != nil {
		return err
	}
	s.log.Info("Job scheduled", zap.String("job", job.Name), zap.String("schedule", job.Schedule))
	return nil
}

// RunJob runs job once under the lock. A lock held elsewhere means another
// instance is running it, so the run is skipped without error.
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	log := s.log.With(zap.String("job", job.Name))

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, job.Name)
		if err != nil {
			log.Info("Job skipped, lock is held", zap.Error(err))
			return nil
		}
		defer unlock()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Error("Job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return err
	}
	log.Info("Job finished", zap.Duration("took", time.Since(start)))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever is
// first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(kv []any) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, zap.Any(key, kv[i+1]))
	}
	return out
}
