package xrayradar

import (
	"go/build"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

const (
	unknown      = "unknown"
	sdkModule    = "github.com/xrayradar/xrayradar-go"
	maxCallDepth = 100
)

// Stacktrace holds frames in call order: the outermost caller first and the
// frame that raised the error last.
type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

// Frame is a single stack frame.
type Frame struct {
	Function string                 `json:"function,omitempty"`
	Module   string                 `json:"module,omitempty"`
	Filename string                 `json:"filename,omitempty"`
	AbsPath  string                 `json:"abs_path,omitempty"`
	Lineno   int                    `json:"lineno,omitempty"`
	InApp    bool                   `json:"in_app"`
	Vars     map[string]interface{} `json:"vars,omitempty"`
}

// FrameMatcher reports whether a frame belongs to the SDK itself.
type FrameMatcher func(frame Frame) bool

// IsSDKFrame is the default FrameMatcher. A frame belongs to the SDK when its
// package lives under the SDK module path, unless it comes from a test file.
func IsSDKFrame(frame Frame) bool {
	if !strings.HasPrefix(frame.Module, sdkModule) {
		return false
	}
	return !strings.HasSuffix(frame.Module, "_test") && !strings.HasSuffix(frame.AbsPath, "_test.go")
}

// NewStacktrace returns the stack of the caller, without SDK frames.
func NewStacktrace() *Stacktrace {
	return newStacktrace(IsSDKFrame, false)
}

func newStacktrace(isSDK FrameMatcher, fromPanic bool) *Stacktrace {
	pcs := make([]uintptr, maxCallDepth)
	n := runtime.Callers(1, pcs)
	if n == 0 {
		return nil
	}

	frames := extractFrames(pcs[:n])
	if fromPanic {
		frames = trimPanicFrames(frames)
	}
	frames = filterFrames(frames, isSDK)
	if len(frames) == 0 {
		return nil
	}
	return &Stacktrace{Frames: frames}
}

// ExtractStacktrace returns the stack recorded inside err by
// github.com/pkg/errors, github.com/pingcap/errors or
// github.com/go-errors/errors. It returns nil for other errors.
func ExtractStacktrace(err error) *Stacktrace {
	method := extractReflectedStacktraceMethod(err)
	if !method.IsValid() {
		return nil
	}
	pcs := extractPcs(method)
	if len(pcs) == 0 {
		return nil
	}
	frames := filterFrames(extractFrames(pcs), IsSDKFrame)
	if len(frames) == 0 {
		return nil
	}
	return &Stacktrace{Frames: frames}
}

func extractReflectedStacktraceMethod(err error) reflect.Value {
	if err == nil {
		return reflect.Value{}
	}
	errValue := reflect.ValueOf(err)

	// https://github.com/go-errors/errors
	if method := errValue.MethodByName("StackFrames"); method.IsValid() {
		return method
	}

	// https://github.com/pkg/errors
	if method := errValue.MethodByName("StackTrace"); method.IsValid() {
		return method
	}

	// https://github.com/pingcap/errors
	if method := errValue.MethodByName("GetStackTracer"); method.IsValid() && method.Type().NumIn() == 0 && method.Type().NumOut() == 1 {
		stacktracer := method.Call(nil)[0]
		if stacktracer.Kind() == reflect.Interface && stacktracer.IsNil() {
			return reflect.Value{}
		}
		if stackTrace := stacktracer.MethodByName("StackTrace"); stackTrace.IsValid() {
			return stackTrace
		}
	}

	return reflect.Value{}
}

func extractPcs(method reflect.Value) []uintptr {
	if method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return nil
	}
	stacktrace := method.Call(nil)[0]
	if stacktrace.Kind() != reflect.Slice {
		return nil
	}

	pcs := make([]uintptr, 0, stacktrace.Len())
	for i := 0; i < stacktrace.Len(); i++ {
		pc := stacktrace.Index(i)
		switch pc.Kind() {
		case reflect.Uintptr:
			pcs = append(pcs, uintptr(pc.Uint()))
		case reflect.Struct:
			for _, fieldName := range []string{"ProgramCounter", "PC"} {
				field := pc.FieldByName(fieldName)
				if field.IsValid() && field.Kind() == reflect.Uintptr {
					pcs = append(pcs, uintptr(field.Uint()))
					break
				}
			}
		}
	}
	return pcs
}

// extractFrames resolves pcs, which are innermost first, into frames in
// call order.
func extractFrames(pcs []uintptr) []Frame {
	var frames []Frame
	callersFrames := runtime.CallersFrames(pcs)
	for {
		callerFrame, more := callersFrames.Next()
		frames = append(frames, NewFrame(callerFrame))
		if !more {
			break
		}
	}

	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

// trimPanicFrames drops the frames above the innermost runtime.gopanic so
// the stack ends at the statement that panicked.
func trimPanicFrames(frames []Frame) []Frame {
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Module == "runtime" && frames[i].Function == "gopanic" {
			return frames[:i]
		}
	}
	return frames
}

func filterFrames(frames []Frame, isSDK FrameMatcher) []Frame {
	filtered := make([]Frame, 0, len(frames))
	for _, frame := range frames {
		// Skip Go internal frames.
		if frame.Module == "runtime" || frame.Module == "testing" {
			continue
		}
		if isSDK != nil && isSDK(frame) {
			continue
		}
		filtered = append(filtered, frame)
	}
	return filtered
}

// NewFrame assembles a stacktrace frame out of runtime.Frame.
func NewFrame(f runtime.Frame) Frame {
	function := f.Function
	var module string
	if function != "" {
		module, function = splitQualifiedFunctionName(function)
	} else {
		function = unknown
	}

	abspath := f.File
	filename := shortPath(abspath)
	if abspath == "" {
		abspath, filename = unknown, unknown
	}

	frame := Frame{
		AbsPath:  abspath,
		Filename: filename,
		Lineno:   f.Line,
		Module:   module,
		Function: function,
	}
	frame.InApp = isInAppFrame(frame)
	return frame
}

// splitQualifiedFunctionName splits a package path-qualified function name into
// package name and function name. Such qualified names are found in
// runtime.Frame.Function values.
func splitQualifiedFunctionName(name string) (pkg string, fun string) {
	pkg = packageName(name)
	if len(pkg) > 0 {
		fun = name[len(pkg)+1:]
	} else {
		fun = name
	}
	return
}

func packageName(name string) string {
	if strings.HasPrefix(name, "type:") || strings.HasPrefix(name, "go.") || strings.HasPrefix(name, "type.") {
		return ""
	}

	pathend := strings.LastIndex(name, "/")
	if pathend < 0 {
		pathend = 0
	}

	if i := strings.Index(name[pathend:], "."); i != -1 {
		return name[:pathend+i]
	}
	return ""
}

var goRoot = filepath.ToSlash(build.Default.GOROOT)

// shortPath trims the machine specific prefix off a source path so that
// fingerprints are stable across hosts.
func shortPath(path string) string {
	path = filepath.ToSlash(path)
	if goRoot != "" && strings.HasPrefix(path, goRoot+"/src/") {
		return strings.TrimPrefix(path, goRoot+"/src/")
	}
	if i := strings.LastIndex(path, "/pkg/mod/"); i >= 0 {
		return path[i+len("/pkg/mod/"):]
	}
	if i := strings.LastIndex(path, "/vendor/"); i >= 0 {
		return path[i+len("/vendor/"):]
	}
	dir, file := filepath.Split(path)
	if dir == "" {
		return file
	}
	return filepath.Base(strings.TrimSuffix(dir, "/")) + "/" + file
}

func isInAppFrame(frame Frame) bool {
	if frame.Module == "main" {
		return true
	}
	if strings.HasPrefix(frame.AbsPath, goRoot) || strings.Contains(frame.AbsPath, "/pkg/mod/") ||
		strings.Contains(frame.AbsPath, "/vendor/") || strings.Contains(frame.Module, "vendor") {
		return false
	}
	return !IsSDKFrame(frame)
}
