package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xrayradar/xrayradar-go"
)

func newSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Capture a test message and wait for its delivery",
		Args:  cobra.NoArgs,
		RunE:  runSend,
	}
	cmd.Flags().StringP("message", "m", "xrayradar test event", "Message to capture")
	cmd.Flags().StringP("level", "l", string(xrayradar.LevelInfo), "Level: debug, info, warning, error or fatal")
	cmd.Flags().Duration("timeout", 5*time.Second, "How long to wait for delivery")
	return cmd
}

func runSend(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	message, _ := flags.GetString("message")
	rawLevel, _ := flags.GetString("level")
	timeout, _ := flags.GetDuration("timeout")

	level, ok := xrayradar.ParseLevel(rawLevel)
	if !ok {
		return fmt.Errorf("unknown level %q", rawLevel)
	}

	options, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	tracker, err := xrayradar.NewTracker(options)
	if err != nil {
		return err
	}
	defer tracker.Close()

	if _, isNull := tracker.Transport().(xrayradar.NullTransport); isNull {
		return errNoDsn
	}

	eventID := tracker.CaptureMessage(message, xrayradar.WithLevel(level))
	if eventID == nil {
		return errors.New("event was dropped before sending")
	}
	if !tracker.Flush(timeout) {
		return fmt.Errorf("event %s not delivered within %s", *eventID, timeout)
	}
	if discarded := tracker.Stats().Discarded; len(discarded) > 0 {
		return fmt.Errorf("event %s was not accepted: %v", *eventID, discarded)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent event %s to %s\n", *eventID, xrayradar.RedactDsn(tracker.Options().Dsn))
	return nil
}
