package main

import (
	"errors"
	"os"
	"time"

	"github.com/xrayradar/xrayradar-go"
)

func fooErr() {
	barErr()
}

func barErr() {
	bazErr()
}

func bazErr() {
	panic(errors.New("Sorry with error :("))
}

func fooMsg() {
	barMsg()
}

func barMsg() {
	bazMsg()
}

func bazMsg() {
	panic("Sorry with message :(")
}

func main() {
	_, _ = xrayradar.Init(xrayradar.ClientOptions{
		Transport:      xrayradar.NewDebugTransport(os.Stdout),
		SendDefaultPII: true,
	})
	defer xrayradar.Close()

	xrayradar.SetExtra("oristhis", "justfantasy")
	xrayradar.SetTag("isthis", "reallife")
	xrayradar.SetUser(xrayradar.User{ID: "1337"})

	func() {
		defer xrayradar.Recover()
		fooErr()
	}()

	func() {
		defer xrayradar.Recover()
		fooMsg()
	}()

	xrayradar.Flush(5 * time.Second)
}
