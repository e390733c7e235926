package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/gym-sniper/internal/daemon"
	"github.com/example/gym-sniper/internal/notify"
	"github.com/example/gym-sniper/internal/scheduler"
	"github.com/example/gym-sniper/internal/snipe"
)

func newDaemonCmd(opts *globalOptions) *cobra.Command {
	var (
		recurring bool
		migrateUp bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Work the snipe queue, optionally alongside the recurring targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			repo, closeDB, err := a.openHistory(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer closeDB()

			q, err := a.openQueue()
			if err != nil {
				return err
			}

			n, flush := a.notifier(ctx)
			defer flush()

			s := snipe.New(a.client, a.attemptLoop(n), a.clock, a.log)
			s.Timing = a.cfg.Timing()

			d := daemon.New(q, a.client, s, a.clock, a.log)
			d.Config = a.cfg.Daemon()
			if repo != nil {
				d.History = repo
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return d.Run(gctx) })

			if recurring {
				sch, err := a.scheduler(n)
				if err != nil {
					return err
				}
				if repo != nil {
					sch.History = repo
				}
				// The queue keeps being worked when the recurring side stops.
				g.Go(func() error {
					if err := sch.Run(gctx); err != nil {
						a.log.Error("scheduler stopped: %v", err)
					}
					return nil
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&recurring, "recurring", false, "also book the [[targets]] from the config as they open")
	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (when DATABASE_URL is set)")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

func newScheduleCmd(opts *globalOptions) *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Book the recurring [[targets]] from the config as their windows open",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			repo, closeDB, err := a.openHistory(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer closeDB()

			n, flush := a.notifier(ctx)
			defer flush()

			sch, err := a.scheduler(n)
			if err != nil {
				return err
			}
			if repo != nil {
				sch.History = repo
			}
			return sch.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (when DATABASE_URL is set)")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

func (a *app) scheduler(n notify.Notifier) (*scheduler.Scheduler, error) {
	targets, err := a.cfg.ScheduleTargets()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no [[targets]] configured")
	}
	s := scheduler.New(a.client, a.attemptLoop(n), targets, a.clock, a.log)
	s.Interval = a.cfg.ScheduleInterval()
	return s, nil
}
