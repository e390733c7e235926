package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/gym-sniper/internal/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gymsniper",
		Short:         "Books gym classes the moment their booking window opens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")

	opts := &globalOptions{configPath: &configPath}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newCredsCmd())
	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newClassesCmd(opts))
	root.AddCommand(newBookingsCmd(opts))
	root.AddCommand(newBookCmd(opts))
	root.AddCommand(newCancelCmd(opts))
	root.AddCommand(newSnipeCmd(opts))
	root.AddCommand(newQueueCmd(opts))
	root.AddCommand(newDaemonCmd(opts))
	root.AddCommand(newScheduleCmd(opts))
	root.AddCommand(newHistoryCmd(opts))

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
