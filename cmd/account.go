package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/gym-sniper/internal/booking"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the configured credentials by logging in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			sess, err := a.client.Login(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "login ok for %s (session valid until %s)\n",
				a.cfg.Credentials.Email, sess.ExpiresAt.Format("15:04"))
			return nil
		},
	}
}

func newClassesCmd(opts *globalOptions) *cobra.Command {
	var (
		days    int
		trainer string
	)
	c := &cobra.Command{
		Use:   "classes",
		Short: "List classes in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			slots, err := a.client.ListAvailableSlots(context.Background(), days)
			if err != nil {
				return err
			}
			return writeSlots(cmd.OutOrStdout(), filterTrainer(slots, trainer))
		},
	}
	c.Flags().IntVar(&days, "days", 7, "number of days to show")
	c.Flags().StringVar(&trainer, "trainer", "", "only classes whose trainer name contains this")
	return c
}

func newBookingsCmd(opts *globalOptions) *cobra.Command {
	var days int
	c := &cobra.Command{
		Use:   "bookings",
		Short: "List your booked and waitlisted classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			details, err := a.client.Bookings(context.Background(), days)
			if err != nil {
				return err
			}
			return writeBookings(cmd.OutOrStdout(), details)
		},
	}
	c.Flags().IntVar(&days, "days", booking.CatalogDays(), "number of days to look ahead")
	return c
}

func newBookCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "book CLASS_ID",
		Short: "Book a class right now (single attempt)",
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
			t, err := a.client.ReserveSlot(context.Background(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "booked %s at %s\n", t.Name, t.StartTime.Format(listTime))
			return nil
		},
	}
}

func newCancelCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel CLASS_ID",
		Short: "Cancel a booking",
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
			if err := a.client.CancelReservation(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled booking for class %d\n", id)
			return nil
		},
	}
}
