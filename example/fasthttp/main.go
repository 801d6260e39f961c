package main

import (
	"fmt"
	"os"

	"github.com/valyala/fasthttp"

	"github.com/xrayradar/xrayradar-go"
	xrayradarfasthttp "github.com/xrayradar/xrayradar-go/fasthttp"
)

func main() {
	tracker, err := xrayradar.NewTracker(xrayradar.ClientOptions{
		Transport: xrayradar.NewDebugTransport(os.Stdout),
	})
	if err != nil {
		panic(err)
	}
	defer tracker.Close()

	handler := xrayradarfasthttp.New(xrayradarfasthttp.Options{Tracker: tracker})

	fmt.Println("Listening and serving HTTP on :3000")
	if err := fasthttp.ListenAndServe(":3000", handler.Handle(func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/foo":
			panic("y tho")
		default:
			if t := xrayradarfasthttp.GetTrackerFromContext(ctx); t != nil {
				t.AddBreadcrumb(&xrayradar.Breadcrumb{Message: "rendering index"})
				t.CaptureMessage("Index visited")
			}
			ctx.SetStatusCode(fasthttp.StatusOK)
		}
	})); err != nil {
		panic(err)
	}
}
