package xrayradarslog

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/xrayradar/xrayradar-go"
	"github.com/xrayradar/xrayradar-go/internal/logging"
)

// defaultLogger names records that carry no "logger" attribute.
const defaultLogger = "slog"

var errorKeys = map[string]struct{}{
	"error": {},
	"err":   {},
}

func mapLevel(level slog.Level) xrayradar.Level {
	switch {
	case level >= LevelFatal:
		return xrayradar.LevelFatal
	case level >= slog.LevelError:
		return xrayradar.LevelError
	case level >= slog.LevelWarn:
		return xrayradar.LevelWarning
	case level >= slog.LevelInfo:
		return xrayradar.LevelInfo
	default:
		return xrayradar.LevelDebug
	}
}

func convert(handlerAttrs []slog.Attr, groups []string, record *slog.Record) logging.Record {
	r := logging.Record{
		Logger:  defaultLogger,
		Level:   mapLevel(record.Level),
		Message: record.Message,
		Fields:  make(map[string]interface{}),
	}
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		r.Function = frame.Function
		r.Line = frame.Line
	}

	for _, attr := range appendRecordAttrs(handlerAttrs, groups, record) {
		attr.Value = attr.Value.Resolve()
		if attr.Equal(slog.Attr{}) {
			continue
		}
		k, v := attr.Key, attr.Value
		if _, ok := errorKeys[k]; ok && r.Err == nil {
			if err, ok := v.Any().(error); ok {
				r.Err = err
				continue
			}
		}
		switch {
		case k == logging.FieldLogger && v.Kind() == slog.KindString:
			r.Logger = v.String()
		case k == logging.FieldUser && v.Kind() == slog.KindGroup:
			r.Fields[k] = groupToUser(v.Group())
		case k == logging.FieldRequest && v.Kind() == slog.KindAny:
			if req, ok := v.Any().(*http.Request); ok {
				r.Fields[k] = req
			} else {
				r.Fields[k] = v.Any()
			}
		case v.Kind() == slog.KindGroup:
			putGroup(r.Fields, k, attrsToMap(v.Group()))
		default:
			r.Fields[k] = v.Any()
		}
	}
	return r
}

func groupToUser(attrs []slog.Attr) xrayradar.User {
	var user xrayradar.User
	for _, attr := range attrs {
		value := attr.Value.Resolve().String()
		switch attr.Key {
		case "id":
			user.ID = value
		case "email":
			user.Email = value
		case "ip_address":
			user.IPAddress = value
		case "username":
			user.Username = value
		case "name":
			user.Name = value
		default:
			if user.Data == nil {
				user.Data = make(map[string]string)
			}
			user.Data[attr.Key] = value
		}
	}
	return user
}

func attrsToMap(attrs []slog.Attr) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for _, attr := range attrs {
		v := attr.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			putGroup(out, attr.Key, attrsToMap(v.Group()))
			continue
		}
		out[attr.Key] = v.Any()
	}
	return out
}

// putGroup stores group under key, merging it into a group already there.
// Every record attribute arrives wrapped in the open groups on its own, so
// the same group key is seen many times.
func putGroup(dst map[string]interface{}, key string, group map[string]interface{}) {
	existing, ok := dst[key].(map[string]interface{})
	if !ok {
		dst[key] = group
		return
	}
	for k, v := range group {
		if sub, ok := v.(map[string]interface{}); ok {
			putGroup(existing, k, sub)
			continue
		}
		existing[k] = v
	}
}

// appendRecordAttrs returns the handler attributes followed by the record
// attributes, the latter nested in the open groups.
func appendRecordAttrs(attrs []slog.Attr, groups []string, record *slog.Record) []slog.Attr {
	out := make([]slog.Attr, len(attrs), len(attrs)+record.NumAttrs())
	copy(out, attrs)
	record.Attrs(func(attr slog.Attr) bool {
		for i := len(groups) - 1; i >= 0; i-- {
			attr = slog.Group(groups[i], attr)
		}
		out = append(out, attr)
		return true
	})
	return out
}

// appendAttrsToGroup adds attrs to the innermost of the open groups.
func appendAttrsToGroup(groups []string, actualAttrs []slog.Attr, newAttrs ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(actualAttrs), len(actualAttrs)+len(newAttrs))
	copy(out, actualAttrs)
	if len(groups) == 0 {
		return append(out, newAttrs...)
	}
	for i := range out {
		attr := out[i]
		if attr.Key == groups[0] && attr.Value.Kind() == slog.KindGroup {
			out[i] = slog.Group(groups[0], toAnySlice(appendAttrsToGroup(groups[1:], attr.Value.Group(), newAttrs...))...)
			return out
		}
	}
	nested := newAttrs
	for i := len(groups) - 1; i >= 0; i-- {
		nested = []slog.Attr{slog.Group(groups[i], toAnySlice(nested)...)}
	}
	return append(out, nested...)
}

func toAnySlice(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, attr := range attrs {
		out[i] = attr
	}
	return out
}
