//go:build !windows

package xrayradar

import (
	"bytes"
	"runtime"

	"golang.org/x/sys/unix"
)

func osContext() map[string]interface{} {
	ctx := map[string]interface{}{
		"name": runtime.GOOS,
	}

	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		return ctx
	}

	ctx["version"] = cString(name.Release[:])
	ctx["kernel_version"] = cString(name.Version[:])
	ctx["machine"] = cString(name.Machine[:])
	return ctx
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
