package main

import (
	"net/http"
	"os"

	"github.com/urfave/negroni/v3"

	"github.com/xrayradar/xrayradar-go"
	xrayradarnegroni "github.com/xrayradar/xrayradar-go/negroni"
)

func main() {
	_, _ = xrayradar.Init(xrayradar.ClientOptions{
		Dsn:       os.Getenv(xrayradar.EnvDsn),
		AuthToken: os.Getenv(xrayradar.EnvAuthToken),
		Debug:     true,
	})
	defer xrayradar.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		panic("y tho")
	})

	// negroni.Classic includes a Recovery, so re-panic after reporting.
	n := negroni.Classic()
	n.Use(xrayradarnegroni.New(xrayradarnegroni.Options{
		Repanic:         true,
		WaitForDelivery: true,
	}))
	n.UseHandler(mux)

	_ = http.ListenAndServe(":3000", n)
}
