package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"twmediadl/pkg/auth"
	"twmediadl/pkg/ui"
)

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API credentials in the system keychain",
		Long: `Manage the four OAuth1 credentials in the system keychain.

Environment variables and .env files take precedence over stored values, so
the keychain is only consulted for credentials that are not set elsewhere.`,
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Prompt for credentials and store them",
		Long: `Prompt for CONSUMER_KEY, CONSUMER_SECRET, ACCESS_TOKEN and ACCESS_SECRET
and store them in the system keychain. Input is hidden when reading from a
terminal. Leave a value empty to keep what is already stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthSet(cmd.InOrStdin(), cmd.ErrOrStderr(), credentialStore)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which credentials are stored",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runAuthStatus(credentialStore)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthClear(credentialStore)
		},
	}

	authCmd.AddCommand(setCmd, statusCmd, clearCmd)
	return authCmd
}

func runAuthSet(in io.Reader, prompt io.Writer, store auth.Store) error {
	reader := bufio.NewReader(in)
	stored := 0

	for _, key := range auth.CredentialKeys {
		fmt.Fprintf(prompt, "%s: ", key)
		value, err := readSecret(in, prompt, reader)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if value == "" {
			continue
		}
		if err := store.Set(key, value); err != nil {
			return err
		}
		stored++
	}

	ui.PrintSuccess(fmt.Sprintf("Stored %d credential(s) in the keychain", stored))
	return nil
}

func runAuthStatus(store auth.Store) {
	for _, key := range auth.CredentialKeys {
		value, err := store.Get(key)
		if err != nil {
			ui.PrintInfo(key, "not stored")
			continue
		}
		ui.PrintInfo(key, auth.Mask(value))
	}
}

func runAuthClear(store auth.Store) error {
	for _, key := range auth.CredentialKeys {
		if err := store.Delete(key); err != nil {
			return err
		}
	}
	ui.PrintSuccess("Stored credentials removed")
	return nil
}

// readSecret reads one line, without echo when in is a terminal
func readSecret(in io.Reader, prompt io.Writer, reader *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
