package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/xrayradar/xrayradar-go"
	xrayradarfiber "github.com/xrayradar/xrayradar-go/fiber"
)

func main() {
	_, _ = xrayradar.Init(xrayradar.ClientOptions{
		Transport: xrayradar.NewDebugTransport(os.Stdout),
		BeforeSend: func(event *xrayradar.Event) (*xrayradar.Event, error) {
			if event.Request != nil {
				fmt.Println("request:", event.Request.Method, event.Request.URL)
			}
			return event, nil
		},
	})
	defer xrayradar.Close()

	app := fiber.New()
	app.Use(xrayradarfiber.New(xrayradarfiber.Options{}))

	app.Get("/", func(ctx *fiber.Ctx) error {
		if tracker := xrayradarfiber.GetTrackerFromContext(ctx); tracker != nil {
			tracker.CaptureMessage(
				"User provided unwanted query string, but we recovered just fine",
				xrayradar.WithExtra("unwantedQuery", string(ctx.Request().URI().QueryString())),
			)
		}
		return ctx.SendStatus(fiber.StatusOK)
	})
	app.Get("/foo", func(ctx *fiber.Ctx) error {
		panic("test panic")
	})

	fmt.Println("Listening and serving HTTP on :3000")
	if err := app.Listen(":3000"); err != nil {
		log.Fatalln(err)
	}
}
