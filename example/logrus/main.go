package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xrayradar/xrayradar-go"
	xrayradarlogrus "github.com/xrayradar/xrayradar-go/logrus"
)

func main() {
	logger := logrus.New()

	// Log DEBUG and higher level logs to STDERR.
	logger.Level = logrus.DebugLevel
	logger.Out = os.Stderr
	logger.SetReportCaller(true)

	tracker, err := xrayradar.NewTracker(xrayradar.ClientOptions{
		Transport: xrayradar.NewDebugTransport(os.Stdout),
	})
	if err != nil {
		panic(err)
	}
	defer tracker.Close()

	// INFO and WARNING entries become breadcrumbs.
	infoLevel := logrus.InfoLevel
	logger.AddHook(xrayradarlogrus.New(xrayradarlogrus.Options{
		Tracker:              tracker,
		Level:                &infoLevel,
		CaptureAsBreadcrumbs: true,
	}))
	// ERROR and higher become events. Both hooks see errors, so the event
	// carries its own entry as the last breadcrumb.
	errorLevel := logrus.ErrorLevel
	logger.AddHook(xrayradarlogrus.New(xrayradarlogrus.Options{
		Tracker: tracker,
		Level:   &errorLevel,
	}))

	// Fatal calls os.Exit(1), which skips deferred calls.
	logrus.RegisterExitHandler(func() { tracker.Flush(5 * time.Second) })

	logger.Infof("Application has started")
	logger.WithField("logger", "app.cache").Warn("cache is cold")
	logger.WithError(os.ErrPermission).Error("oh no!")
	logger.Fatalf("can't continue...")
}
