package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/auth"
	"github.com/gdg-garage/sputnik-ledger/internal/handlers"
	"github.com/gdg-garage/sputnik-ledger/internal/notifier"
	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

func commandServe() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "with-cron", Usage: "also run the scheduled jobs in this process"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signalContext(c)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var wg sync.WaitGroup
			if !a.distributed() {
				w, closeSenders, err := a.worker()
				if err != nil {
					return err
				}
				defer closeSenders()
				wg.Add(1)
				go func() {
					defer wg.Done()
					//nolint:errcheck
					w.Run(ctx)
				}()
			}

			if c.Bool("with-cron") {
				s, err := a.scheduler()
				if err != nil {
					return err
				}
				s.Start()
				defer s.Stop(context.Background())
			}

			authHandler := auth.NewAuthHandler(a.cfg, a.db, a.log)
			r := chi.NewRouter()
			handlers.RegisterRoutes(r, handlers.Handlers{
				Auth:         authHandler,
				Achievements: handlers.NewAchievementHandler(a.achievements, a.log),
				Ranking:      handlers.NewRankingHandler(a.ranking, a.log),
				Profile:      handlers.NewProfileHandler(a.db, a.log),
				APIKeys:      handlers.NewAPIKeyHandler(a.db),
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%s", a.cfg.Port),
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				//nolint:errcheck
				srv.Shutdown(shutdownCtx)
			}()

			a.log.Info("Starting server", zap.String("port", a.cfg.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start server: %w", err)
			}
			wg.Wait()
			return nil
		},
	}
}

func commandWorker() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "deliver queued notifications",
		Action: func(c *cli.Context) error {
			ctx, stop := signalContext(c)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.distributed() {
				return cli.Exit("worker needs REDIS_URL: the in-memory queue is only drained by serve", 1)
			}

			w, closeSenders, err := a.worker()
			if err != nil {
				return err
			}
			defer closeSenders()

			if q, ok := a.queue.(*notifier.RedisQueue); ok {
				n, err := q.Restore(ctx)
				if err != nil {
					return fmt.Errorf("failed to restore in-flight notifications: %w", err)
				}
				if n > 0 {
					a.log.Warn("Restored notifications left in flight", zap.Int("count", n))
				}
			}

			a.log.Info("Starting notification worker")
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func commandCron() *cli.Command {
	return &cli.Command{
		Name:  "cron",
		Usage: "run the scheduled maintenance jobs",
		Action: func(c *cli.Context) error {
			ctx, stop := signalContext(c)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.scheduler()
			if err != nil {
				return err
			}
			s.Start()
			a.log.Info("Start cronjob")

			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			s.Stop(stopCtx)
			return nil
		},
	}
}

func commandReconcile() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "compare balances with active award rewards once and report drift",
		Action: func(c *cli.Context) error {
			a, err := bootstrap(c.Context)
			if err != nil {
				return err
			}
			defer a.close()

			drifts, err := a.achievements.Reconcile(c.Context)
			if err != nil {
				return err
			}
			for _, d := range drifts {
				fmt.Fprintf(c.App.Writer, "%s\tbalance=%d\texpected=%d\tdelta=%+d\n", d.UserID, d.Balance, d.Expected, d.Delta())
			}
			if len(drifts) > 0 {
				return cli.Exit(fmt.Sprintf("%d balances drifted", len(drifts)), 1)
			}
			fmt.Fprintln(c.App.Writer, "no drift")
			return nil
		},
	}
}
