package xrayradarhttp_test

import (
	"net/http"
	"time"

	"github.com/xrayradar/xrayradar-go"
	xrayradarhttp "github.com/xrayradar/xrayradar-go/http"
)

func Example() {
	// Initialize the tracker once in the main function.
	// xrayradar.Init(...)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		tracker := xrayradar.GetTrackerFromContext(r.Context())
		if _, err := http.Get("example.com"); err != nil {
			tracker.CaptureException(err, xrayradar.WithContext(r.Context()))
		}
	})

	handler := xrayradarhttp.New(xrayradarhttp.Options{}).Handle(http.DefaultServeMux)

	server := http.Server{
		Addr:              ":0",
		ReadHeaderTimeout: 3 * time.Second,
		Handler:           handler,
	}
	server.ListenAndServe()
}
