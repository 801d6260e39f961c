// xrayradar validates client configuration and sends test events.
package main

import "github.com/xrayradar/xrayradar-go/internal/cli"

func main() {
	cli.Execute()
}
