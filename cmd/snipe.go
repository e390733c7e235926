package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/gym-sniper/internal/history"
	"github.com/example/gym-sniper/internal/snipe"
)

func newSnipeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snipe CLASS_ID",
		Short: "Wait in the foreground for a class's booking window and book it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClassID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			repo, closeDB, err := a.openHistory(ctx, false)
			if err != nil {
				a.log.Warning("history disabled: %v", err)
				repo, closeDB = nil, func() {}
			}
			defer closeDB()

			n, flush := a.notifier(ctx)
			defer flush()

			s := snipe.New(a.client, a.attemptLoop(n), a.clock, a.log)
			s.Timing = a.cfg.Timing()

			started := a.clock.Now()
			res, err := s.Snipe(ctx, id)
			if ctx.Err() != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "snipe cancelled")
				return nil
			}
			if repo != nil {
				run := history.Run{
					ID:         uuid.New(),
					ClassID:    id,
					ClassName:  res.Slot.Name,
					ClassTime:  res.Slot.StartTime,
					Source:     history.SourceCLI,
					Outcome:    history.OutcomeBooked,
					Attempts:   res.Outcome.Attempts,
					StartedAt:  started,
					FinishedAt: a.clock.Now(),
				}
				switch {
				case err != nil:
					run.Outcome, run.Error = history.OutcomeFailed, history.StrPtr(err.Error())
				case res.Held:
					run.Outcome = history.OutcomeHeld
				}
				if rerr := repo.Record(ctx, run); rerr != nil {
					a.log.Warning("could not record history: %v", rerr)
				}
			}
			if err != nil {
				return err
			}
			if res.Held {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already yours\n", res.Slot.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "booked %s after %d attempt(s)\n", res.Slot.Name, res.Outcome.Attempts)
			}
			return nil
		},
	}
}
