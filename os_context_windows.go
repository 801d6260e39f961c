//go:build windows

package xrayradar

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

func osContext() map[string]interface{} {
	ctx := map[string]interface{}{
		"name": runtime.GOOS,
	}
	major, minor, build := windows.RtlGetNtVersionNumbers()
	ctx["version"] = fmt.Sprintf("%d.%d.%d", major, minor, build)
	return ctx
}
