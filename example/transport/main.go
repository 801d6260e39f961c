package main

import (
	"fmt"
	"os"
	"time"

	"github.com/xrayradar/xrayradar-go"
)

func main() {
	tracker, err := xrayradar.NewTracker(xrayradar.ClientOptions{
		Dsn:       "https://definitelyincorrect@oiasaskjd.io/42",
		AuthToken: "example-token",
		QueueSize: 5,
		TransportObserver: func(err *xrayradar.TransportError) {
			fmt.Fprintf(os.Stderr, "=> delivery failed: %v\n", err)
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer tracker.Close()

	for i := 1; i < 10; i++ {
		tracker.CaptureMessage(fmt.Sprintf("Event #%d", i))
	}

	fmt.Println("=> Flushing transport queue")
	if tracker.Flush(2 * time.Second) {
		fmt.Println("=> All queued events handled")
	} else {
		fmt.Println("=> Flush timeout reached")
	}
	fmt.Printf("=> %+v\n", tracker.Stats())
}
