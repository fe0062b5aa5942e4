package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	errs "twmediadl/pkg/errors"
	"twmediadl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd downloads media when called without a subcommand
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "twmediadl",
		Short: "Download images, gifs and videos from a user's likes and timeline",
		Long: `twmediadl walks a user's liked tweets and/or timeline and downloads every
image, gif and video it finds.

Files are stored under {output}/{likes|timeline}/{uploader}/ and mirrored into
{output}/{likes|timeline}/__all__/. Each category keeps a ledger of downloaded
URLs so that later runs only fetch what is new.

Credentials are read from the environment (CONSUMER_KEY, CONSUMER_SECRET,
ACCESS_TOKEN, ACCESS_SECRET), from .env files, from a YAML config file, or from
the system keychain (see 'twmediadl auth set').`,
		Example: `  # Download likes and timeline media of the TWITTER_ID user
  twmediadl

  # Only the likes of a given user id
  twmediadl --user 783214 --source likes

  # Timeline of a screen name
  twmediadl -u @jack -s timeline`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.SetNoColor(noColor)
			ui.SetQuietMode(quiet)

			if cmd.Name() != "version" && cmd.Name() != "help" {
				ui.PrintLogo()
			}
		},
		RunE: runDownload,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.twmediadl.yaml, ./.twmediadl.yml or $HOME/.config/twmediadl/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "target user id or screen name (default is TWITTER_ID)")
	cmd.Flags().StringVarP(&sourceFlag, "source", "s", "both", "what to download: likes, timeline or both")

	cmd.SetVersionTemplate(`twmediadl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(newAuthCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on fatal errors
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(describe(err))
		os.Exit(1)
	}
}

// describe turns fatal errors into a hint the user can act on
func describe(err error) string {
	var missing *errs.MissingCredentialError
	var noTarget *errs.NoTargetUserError
	switch {
	case errors.As(err, &missing):
		return fmt.Sprintf("%v\nSet them in the environment or .env, or run 'twmediadl auth set'", missing)
	case errors.As(err, &noTarget):
		return noTarget.Error()
	default:
		return err.Error()
	}
}
