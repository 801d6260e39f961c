// Package logging holds what the log adapters share: logger-name filtering
// and the choice between recording a console breadcrumb and capturing an
// event.
package logging

import (
	"net/http"
	"strings"

	"github.com/xrayradar/xrayradar-go"
)

// Field keys with a meaning beyond plain extra data.
const (
	FieldLogger      = "logger"
	FieldRequest     = "request"
	FieldUser        = "user"
	FieldFingerprint = "fingerprint"
)

// Filter selects records by logger name. An empty Include matches every
// logger; Exclude entries must match exactly.
type Filter struct {
	include string
	exclude map[string]struct{}
}

func NewFilter(include string, exclude []string) Filter {
	f := Filter{include: include}
	if len(exclude) > 0 {
		f.exclude = make(map[string]struct{}, len(exclude))
		for _, name := range exclude {
			f.exclude[name] = struct{}{}
		}
	}
	return f
}

func (f Filter) Allows(logger string) bool {
	if _, ok := f.exclude[logger]; ok {
		return false
	}
	return strings.HasPrefix(logger, f.include)
}

// Record is a log entry in adapter-neutral form.
type Record struct {
	Logger   string
	Level    xrayradar.Level
	Message  string
	Err      error
	Fields   map[string]interface{}
	Function string
	Line     int
}

// Module returns the package path of the logging function.
func (r Record) Module() string {
	fn := r.Function
	slash := strings.LastIndex(fn, "/")
	if dot := strings.Index(fn[slash+1:], "."); dot >= 0 {
		return fn[:slash+1+dot]
	}
	return fn
}

func (r Record) source() map[string]interface{} {
	data := map[string]interface{}{"logger": r.Logger}
	if r.Function != "" {
		data["module"] = r.Module()
		data["funcName"] = r.Function
	}
	if r.Line != 0 {
		data["lineno"] = r.Line
	}
	return data
}

// Breadcrumb describes r as a console breadcrumb.
func (r Record) Breadcrumb() *xrayradar.Breadcrumb {
	data := r.source()
	for k, v := range r.Fields {
		if _, taken := data[k]; !taken {
			data[k] = v
		}
	}
	if r.Err != nil {
		data["error"] = r.Err.Error()
	}
	return &xrayradar.Breadcrumb{
		Type:     xrayradar.BreadcrumbTypeConsole,
		Category: r.Logger,
		Message:  r.Message,
		Level:    r.Level,
		Data:     data,
	}
}

// Emit hands r to tracker: as a breadcrumb when asBreadcrumb is set,
// otherwise as an exception event if an error is attached and as a message
// event if not. The returned id is nil for breadcrumbs and dropped events.
func Emit(tracker *xrayradar.Tracker, r Record, asBreadcrumb bool) *xrayradar.EventID {
	if asBreadcrumb {
		tracker.AddBreadcrumb(r.Breadcrumb())
		return nil
	}

	extra := make(map[string]interface{}, len(r.Fields)+4)
	opts := []xrayradar.CaptureOption{
		xrayradar.WithLevel(r.Level),
		xrayradar.WithLogger(r.Logger),
	}
	for k, v := range r.Fields {
		switch value := v.(type) {
		case *http.Request:
			if k == FieldRequest {
				opts = append(opts, xrayradar.WithRequest(value))
				continue
			}
		case xrayradar.User:
			if k == FieldUser {
				opts = append(opts, xrayradar.WithUser(value))
				continue
			}
		case *xrayradar.User:
			if k == FieldUser && value != nil {
				opts = append(opts, xrayradar.WithUser(*value))
				continue
			}
		case []string:
			if k == FieldFingerprint {
				opts = append(opts, xrayradar.WithFingerprint(value...))
				continue
			}
		}
		extra[k] = v
	}
	for k, v := range r.source() {
		if k != "logger" {
			extra[k] = v
		}
	}
	opts = append(opts, xrayradar.WithExtras(extra))

	if r.Err != nil {
		opts = append(opts, xrayradar.WithMessage(r.Message))
		return tracker.CaptureException(r.Err, opts...)
	}
	return tracker.CaptureMessage(r.Message, opts...)
}

// Error carries an error that reached the logger only as text.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }
