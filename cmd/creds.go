package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/gym-sniper/internal/credstore"
)

// newCredsCmd manages the keyring password. It does not load the config, so
// it works before a password is configured anywhere.
func newCredsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Store the gym password in the OS keyring",
	}

	set := &cobra.Command{
		Use:   "set EMAIL",
		Short: "Save a password for EMAIL (read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			pw, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := credstore.New().Set(args[0], pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password saved for %s\n", args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Remove the stored password for EMAIL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := credstore.New().Delete(args[0])
			if errors.Is(err, credstore.ErrNotFound) {
				return fmt.Errorf("no password stored for %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password removed for %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password")
	}
	return pw, nil
}
