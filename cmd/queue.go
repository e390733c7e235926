package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/gym-sniper/internal/queue"
)

func newQueueCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the snipe queue worked by the daemon",
	}
	cmd.AddCommand(newQueueAddCmd(opts))
	cmd.AddCommand(newQueueRemoveCmd(opts))
	cmd.AddCommand(newQueueListCmd(opts))
	return cmd
}

func newQueueAddCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add CLASS_ID",
		Short: "Queue a class to be booked when its window opens",
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
			q, err := a.openQueue()
			if err != nil {
				return err
			}
			d, err := a.client.GetSlotDetails(context.Background(), id)
			if err != nil {
				return err
			}
			if d.Status.Held() {
				return fmt.Errorf("%s (id %d) is already %s", d.Name, d.ID, d.Status)
			}

			e := queue.NewEntry(d.Slot, a.clock.Now())
			if err := q.Add(e); err != nil {
				return fmt.Errorf("cannot queue %s: %w", e, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s, booking window opens %s (in %s)\n",
				e, e.BookingWindow.Format(listTime), humanDuration(e.BookingWindow.Sub(a.clock.Now())))
			return nil
		},
	}
}

func newQueueRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove CLASS_ID",
		Aliases: []string{"rm"},
		Short:   "Remove a class from the queue",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClassID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			q, err := a.openQueue()
			if err != nil {
				return err
			}
			removed, err := q.Remove(id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("class %d is not in the queue", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed class %d from the queue\n", id)
			return nil
		},
	}
}

func newQueueListCmd(opts *globalOptions) *cobra.Command {
	var (
		all    bool
		output string
	)
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List queued snipes, earliest window first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			q, err := a.openQueue()
			if err != nil {
				return err
			}
			entries := q.Pending()
			if all {
				entries = q.Entries()
			}
			return writeEntries(cmd.OutOrStdout(), output, entries, a.clock.Now())
		},
	}
	c.Flags().BoolVar(&all, "all", false, "include completed and failed entries")
	c.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return c
}
