package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/xrayradar/xrayradar-go"
	xrayradarhttp "github.com/xrayradar/xrayradar-go/http"
)

type handler struct{}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if tracker := xrayradar.GetTrackerFromContext(r.Context()); tracker != nil {
		tracker.CaptureMessage(
			"User provided unwanted query string, but we recovered just fine",
			xrayradar.WithExtra("unwantedQuery", r.URL.RawQuery),
			xrayradar.WithContext(r.Context()),
		)
	}
}

func run() error {
	_, err := xrayradar.Init(xrayradar.ClientOptions{
		// DebugTransport prints events instead of sending them.
		Transport:      xrayradar.NewDebugTransport(nil),
		SendDefaultPII: false,
		BeforeSend: func(event *xrayradar.Event) (*xrayradar.Event, error) {
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags["example"] = "http"
			return event, nil
		},
		Debug: true,
	})
	if err != nil {
		return err
	}
	defer xrayradar.Close()
	defer xrayradar.Flush(2 * time.Second)

	xrayradarHandler := xrayradarhttp.New(xrayradarhttp.Options{
		Repanic: false,
	})

	http.Handle("/", xrayradarHandler.Handle(&handler{}))
	http.Handle("/foo", xrayradarHandler.HandleFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("y tho")
	}))
	http.Handle("/bar", xrayradarHandler.HandleFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))

	log.Print("Listening and serving HTTP on :3000")
	return http.ListenAndServe(":3000", nil)
}

func main() {
	// run does not call log.Fatal so that its deferred calls execute.
	log.Fatal(run())
}
