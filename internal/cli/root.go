// Package cli implements the xrayradar command.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/xrayradar/xrayradar-go"
)

// NewRootCommand returns the xrayradar command with all subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "xrayradar",
		Short:         "Check xrayradar client configuration and send test events",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "Options file (.json, .yaml or .yml)")
	root.PersistentFlags().String("dsn", "", "DSN, overrides the options file and "+xrayradar.EnvDsn)
	root.PersistentFlags().String("auth-token", "", "Auth token, overrides the options file and "+xrayradar.EnvAuthToken)
	root.PersistentFlags().Bool("debug", false, "Print SDK debug output to stderr")

	root.AddCommand(newCheckCommand(), newSendCommand())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadOptions reads the options file, if any, and applies flag overrides.
// Environment variables are consulted later by xrayradar.NewTracker.
func loadOptions(cmd *cobra.Command) (xrayradar.ClientOptions, error) {
	var options xrayradar.ClientOptions
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := xrayradar.LoadOptionsFile(path)
		if err != nil {
			return options, err
		}
		options = loaded
	}
	if dsn, _ := flags.GetString("dsn"); dsn != "" {
		options.Dsn = dsn
	}
	if token, _ := flags.GetString("auth-token"); token != "" {
		options.AuthToken = token
	}
	if debug, _ := flags.GetBool("debug"); debug {
		options.Debug = true
		options.DebugWriter = cmd.ErrOrStderr()
	}
	return options, nil
}
