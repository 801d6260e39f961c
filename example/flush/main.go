package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/xrayradar/xrayradar-go"
)

func main() {
	_, err := xrayradar.Init(xrayradar.ClientOptions{
		Dsn:       "https://definitelyincorrect@oiasaskjd.io/42",
		AuthToken: "example-token",
		Debug:     true,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer xrayradar.Close()

	xrayradar.CaptureMessage("Event #1")
	xrayradar.CaptureMessage("Event #2")
	xrayradar.CaptureMessage("Event #3")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		xrayradar.CaptureMessage("Event #4")
		xrayradar.CaptureMessage("Event #5")
	}()
	wg.Wait()

	fmt.Println("=> Flushing transport queue")

	if xrayradar.Flush(2 * time.Second) {
		fmt.Println("=> All queued events handled")
	} else {
		fmt.Println("=> Flush timeout reached")
	}
}
