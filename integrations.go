package xrayradar

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Integration names reported in SdkInfo.
const (
	integrationModules     = "Modules"
	integrationEnvironment = "Environment"
	integrationRequest     = "Request"
)

var (
	modulesOnce  sync.Once
	modulesCache map[string]string
)

// loadedModules returns the module inventory of the running binary. The
// result is computed once and shared; callers must not modify it.
func loadedModules() map[string]string {
	modulesOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		modulesCache = extractModules(info)
	})
	return modulesCache
}

func extractModules(info *debug.BuildInfo) map[string]string {
	modules := make(map[string]string, len(info.Deps)+1)
	if info.Main.Path != "" {
		modules[info.Main.Path] = moduleVersion(info.Main)
	}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			modules[dep.Path] = moduleVersion(*dep.Replace)
			continue
		}
		modules[dep.Path] = moduleVersion(*dep)
	}
	return modules
}

func moduleVersion(m debug.Module) string {
	if m.Version == "" || m.Version == "(devel)" {
		return "(devel)"
	}
	return strings.TrimPrefix(m.Version, "v")
}

var (
	environmentOnce  sync.Once
	environmentCache map[string]map[string]interface{}
)

// defaultContexts describes the host. The returned maps are fresh copies.
func defaultContexts() map[string]map[string]interface{} {
	environmentOnce.Do(func() {
		environmentCache = map[string]map[string]interface{}{
			"device": {
				"arch":    runtime.GOARCH,
				"num_cpu": runtime.NumCPU(),
			},
			"os": osContext(),
			"runtime": {
				"name":    "go",
				"version": runtime.Version(),
			},
		}
	})

	out := make(map[string]map[string]interface{}, len(environmentCache))
	for kind, fields := range environmentCache {
		out[kind] = cloneMap(fields)
	}
	return out
}
