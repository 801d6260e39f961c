package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xrayradar/xrayradar-go"
)

// errNoDsn is returned by check when events would be discarded.
var errNoDsn = errors.New("no DSN configured, events would be discarded")

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print it with credentials masked",
		Long: "Loads the options file and the XRAYRADAR_* environment variables, validates\n" +
			"them the way the client does at startup and prints the result.",
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	options, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	tracker, err := xrayradar.NewTracker(options)
	if err != nil {
		return err
	}
	defer tracker.Close()

	resolved := tracker.Options()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dsn:          %s\n", displayDsn(resolved.Dsn))
	fmt.Fprintf(out, "environment:  %s\n", resolved.Environment)
	fmt.Fprintf(out, "release:      %s\n", resolved.Release)
	fmt.Fprintf(out, "sample rate:  %g\n", resolved.SampleRate)
	fmt.Fprintf(out, "send PII:     %t\n", resolved.SendDefaultPII)
	fmt.Fprintf(out, "transport:    %T\n", tracker.Transport())

	if resolved.Dsn == "" {
		return errNoDsn
	}
	if _, err := xrayradar.NewDsn(resolved.Dsn); err != nil {
		return err
	}
	return nil
}

func displayDsn(raw string) string {
	if raw == "" {
		return "(none)"
	}
	return xrayradar.RedactDsn(raw)
}
