package protocol

import (
	"bytes"
	"errors"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// TruncatedSuffix marks a message that had to be shortened to fit the payload limit.
const TruncatedSuffix = "... (truncated)"

const (
	maxBreadcrumbs = 100
	maxFrames      = 50
	maxValueLength = 1024
)

// ErrPayloadTooLarge is returned when even the minimal event does not fit.
var ErrPayloadTooLarge = errors.New("payload exceeds size limit after truncation")

// reducer shrinks the document in place and reports whether it changed anything.
type reducer struct {
	name   string
	apply  func(doc map[string]interface{}) bool
	repeat bool
}

// The order matters: large, low-value substructures go first; the fields
// used for grouping and identification (event_id, level, message,
// fingerprint, top exception frame) are only touched by the final fallbacks.
var reducers = []reducer{
	{name: "frame vars", apply: stripFrameVars},
	{name: "breadcrumb data", apply: stripBreadcrumbData},
	{name: "breadcrumb cap", apply: func(doc map[string]interface{}) bool { return capBreadcrumbs(doc, maxBreadcrumbs) }},
	{name: "frame cap", apply: func(doc map[string]interface{}) bool { return capFrames(doc, maxFrames) }},
	{name: "modules", apply: dropKeys("modules")},
	{name: "extra", apply: dropKeys("extra")},
	{name: "contexts", apply: dropKeys("contexts")},
	{name: "request body", apply: dropNested("request", "data")},
	{name: "request headers", apply: dropNested("request", "headers")},
	{name: "breadcrumbs", apply: halveBreadcrumbs, repeat: true},
	{name: "frames", apply: halveFrames, repeat: true},
	{name: "exception chain", apply: keepFirstException},
	{name: "metadata", apply: dropKeys("tags", "user", "request", "logger", "server_name", "release", "environment", "sdk")},
	{name: "long values", apply: shortenValues},
}

// Truncate shrinks an encoded event to at most limit bytes while keeping it
// a valid JSON object. It returns the input unchanged when it already fits.
func Truncate(payload []byte, limit int) ([]byte, bool, error) {
	if limit <= 0 || len(payload) <= limit {
		return payload, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, false, err
	}

	for _, r := range reducers {
		for r.apply(doc) {
			data, err := json.Marshal(doc)
			if err != nil {
				return nil, false, err
			}
			if len(data) <= limit {
				return data, true, nil
			}
			if !r.repeat {
				break
			}
		}
	}

	return truncateMessage(doc, limit)
}

func truncateMessage(doc map[string]interface{}, limit int) ([]byte, bool, error) {
	for {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, false, err
		}
		if len(data) <= limit {
			return data, true, nil
		}
		msg, _ := doc["message"].(string)
		msg = trimSuffix(msg)
		if msg == "" {
			return data, true, ErrPayloadTooLarge
		}
		keep := len(msg) - (len(data) - limit) - len(TruncatedSuffix)
		if keep < 0 {
			keep = 0
		}
		doc["message"] = cutUTF8(msg, keep) + TruncatedSuffix
	}
}

func trimSuffix(msg string) string {
	if len(msg) >= len(TruncatedSuffix) && msg[len(msg)-len(TruncatedSuffix):] == TruncatedSuffix {
		return msg[:len(msg)-len(TruncatedSuffix)]
	}
	return msg
}

func cutUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func exceptionValues(doc map[string]interface{}) []interface{} {
	exc, ok := asMap(doc["exception"])
	if !ok {
		return nil
	}
	values, _ := asSlice(exc["values"])
	return values
}

func eachStacktrace(doc map[string]interface{}, fn func(st map[string]interface{}) bool) bool {
	changed := false
	for _, v := range exceptionValues(doc) {
		value, ok := asMap(v)
		if !ok {
			continue
		}
		st, ok := asMap(value["stacktrace"])
		if !ok {
			continue
		}
		if fn(st) {
			changed = true
		}
	}
	return changed
}

func stripFrameVars(doc map[string]interface{}) bool {
	return eachStacktrace(doc, func(st map[string]interface{}) bool {
		frames, _ := asSlice(st["frames"])
		changed := false
		for _, f := range frames {
			if frame, ok := asMap(f); ok {
				if _, has := frame["vars"]; has {
					delete(frame, "vars")
					changed = true
				}
			}
		}
		return changed
	})
}

func stripBreadcrumbData(doc map[string]interface{}) bool {
	crumbs, _ := asSlice(doc["breadcrumbs"])
	changed := false
	for _, c := range crumbs {
		if crumb, ok := asMap(c); ok {
			if _, has := crumb["data"]; has {
				delete(crumb, "data")
				changed = true
			}
		}
	}
	return changed
}

// capBreadcrumbs keeps the newest n breadcrumbs.
func capBreadcrumbs(doc map[string]interface{}, n int) bool {
	crumbs, ok := asSlice(doc["breadcrumbs"])
	if !ok || len(crumbs) <= n {
		return false
	}
	doc["breadcrumbs"] = crumbs[len(crumbs)-n:]
	return true
}

func halveBreadcrumbs(doc map[string]interface{}) bool {
	crumbs, ok := asSlice(doc["breadcrumbs"])
	if !ok || len(crumbs) == 0 {
		return false
	}
	if len(crumbs) == 1 {
		delete(doc, "breadcrumbs")
		return true
	}
	return capBreadcrumbs(doc, len(crumbs)/2)
}

// capFrames keeps the n innermost frames. Frames are in call order, so the
// frame that raised is last.
func capFrames(doc map[string]interface{}, n int) bool {
	return eachStacktrace(doc, func(st map[string]interface{}) bool {
		frames, ok := asSlice(st["frames"])
		if !ok || len(frames) <= n {
			return false
		}
		st["frames"] = frames[len(frames)-n:]
		return true
	})
}

func halveFrames(doc map[string]interface{}) bool {
	return eachStacktrace(doc, func(st map[string]interface{}) bool {
		frames, ok := asSlice(st["frames"])
		if !ok || len(frames) <= 1 {
			return false
		}
		st["frames"] = frames[len(frames)-len(frames)/2:]
		return true
	})
}

func keepFirstException(doc map[string]interface{}) bool {
	exc, ok := asMap(doc["exception"])
	if !ok {
		return false
	}
	values, ok := asSlice(exc["values"])
	if !ok || len(values) <= 1 {
		return false
	}
	exc["values"] = values[:1]
	return true
}

// shortenValues cuts exception values and breadcrumb messages longer than
// maxValueLength.
func shortenValues(doc map[string]interface{}) bool {
	changed := false
	for _, v := range exceptionValues(doc) {
		if value, ok := asMap(v); ok && shortenField(value, "value") {
			changed = true
		}
	}
	crumbs, _ := asSlice(doc["breadcrumbs"])
	for _, c := range crumbs {
		if crumb, ok := asMap(c); ok && shortenField(crumb, "message") {
			changed = true
		}
	}
	return changed
}

func shortenField(m map[string]interface{}, key string) bool {
	s, ok := m[key].(string)
	if !ok || len(s) <= maxValueLength+len(TruncatedSuffix) {
		return false
	}
	m[key] = cutUTF8(s, maxValueLength) + TruncatedSuffix
	return true
}

func dropKeys(keys ...string) func(doc map[string]interface{}) bool {
	return func(doc map[string]interface{}) bool {
		changed := false
		for _, k := range keys {
			if _, ok := doc[k]; ok {
				delete(doc, k)
				changed = true
			}
		}
		return changed
	}
}

func dropNested(parent, key string) func(doc map[string]interface{}) bool {
	return func(doc map[string]interface{}) bool {
		m, ok := asMap(doc[parent])
		if !ok {
			return false
		}
		if _, has := m[key]; !has {
			return false
		}
		delete(m, key)
		return true
	}
}
