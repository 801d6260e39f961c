package main

import (
	"errors"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/xrayradar/xrayradar-go"
	xrayradargin "github.com/xrayradar/xrayradar-go/gin"
)

func main() {
	_, _ = xrayradar.Init(xrayradar.ClientOptions{
		Dsn:       os.Getenv(xrayradar.EnvDsn),
		AuthToken: os.Getenv(xrayradar.EnvAuthToken),
		Debug:     true,
	})
	defer xrayradar.Close()

	r := gin.Default()
	r.Use(xrayradargin.New(xrayradargin.Options{
		Repanic:         true,
		WaitForDelivery: true,
		CaptureErrors:   true,
	}))
	r.GET("/", func(c *gin.Context) {
		panic("y tho")
	})
	r.GET("/error", func(c *gin.Context) {
		_ = c.Error(errors.New("handler failed"))
		c.Status(500)
	})
	_ = r.Run(":3000")
}
