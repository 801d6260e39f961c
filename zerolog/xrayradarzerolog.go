// Package xrayradarzerolog provides a zerolog.LevelWriter that reports log
// events to an xrayradar Tracker.
package xrayradarzerolog

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/xrayradar/xrayradar-go"
	"github.com/xrayradar/xrayradar-go/internal/logging"
)

// ErrFlushTimeout is returned by Close when pending events were not
// delivered in time.
var ErrFlushTimeout = errors.New("xrayradarzerolog: flush timeout")

// defaultLogger names events that carry no "logger" field.
const defaultLogger = "zerolog"

var levels = map[zerolog.Level]xrayradar.Level{
	zerolog.TraceLevel: xrayradar.LevelDebug,
	zerolog.DebugLevel: xrayradar.LevelDebug,
	zerolog.InfoLevel:  xrayradar.LevelInfo,
	zerolog.WarnLevel:  xrayradar.LevelWarning,
	zerolog.ErrorLevel: xrayradar.LevelError,
	zerolog.FatalLevel: xrayradar.LevelFatal,
	zerolog.PanicLevel: xrayradar.LevelFatal,
}

var (
	_ zerolog.LevelWriter = (*Writer)(nil)
	_ io.Closer           = (*Writer)(nil)
)

type Options struct {
	// Tracker receives the events. When nil, xrayradar.CurrentTracker is
	// used at write time.
	Tracker *xrayradar.Tracker
	// Level is the least severe level handled. Defaults to zerolog.WarnLevel.
	Level *zerolog.Level
	// Logger restricts the writer to events whose "logger" field starts
	// with this prefix.
	Logger string
	// ExcludeLoggers lists logger names that are never reported.
	ExcludeLoggers []string
	// CaptureAsBreadcrumbs records events as console breadcrumbs instead of
	// sending them.
	CaptureAsBreadcrumbs bool
	// FlushTimeout bounds the flush done after fatal events and on Close.
	// Defaults to 3 seconds.
	FlushTimeout time.Duration
}

// Writer decodes zerolog's JSON output. Use it alone or next to another
// writer through zerolog.MultiLevelWriter.
type Writer struct {
	tracker       *xrayradar.Tracker
	minLevel      zerolog.Level
	filter        logging.Filter
	asBreadcrumbs bool
	flushTimeout  time.Duration
}

func New(opts Options) *Writer {
	w := &Writer{
		tracker:       opts.Tracker,
		minLevel:      zerolog.WarnLevel,
		filter:        logging.NewFilter(opts.Logger, opts.ExcludeLoggers),
		asBreadcrumbs: opts.CaptureAsBreadcrumbs,
		flushTimeout:  3 * time.Second,
	}
	if opts.Level != nil {
		w.minLevel = *opts.Level
	}
	if opts.FlushTimeout != 0 {
		w.flushTimeout = opts.FlushTimeout
	}
	return w
}

func (w *Writer) currentTracker() *xrayradar.Tracker {
	if w.tracker != nil {
		return w.tracker
	}
	return xrayradar.CurrentTracker()
}

// Write reads the level from the "level" field of p.
func (w *Writer) Write(p []byte) (int, error) {
	var probe struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(p, &probe); err != nil {
		return len(p), nil
	}
	level, err := zerolog.ParseLevel(probe.Level)
	if err != nil {
		return len(p), nil
	}
	return w.WriteLevel(level, p)
}

// WriteLevel never fails: undecodable or filtered events are skipped.
func (w *Writer) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	n := len(p)
	mapped, ok := levels[level]
	if !ok || level < w.minLevel {
		return n, nil
	}
	tracker := w.currentTracker()
	if tracker == nil {
		return n, nil
	}
	record, ok := parseRecord(p)
	if !ok || !w.filter.Allows(record.Logger) {
		return n, nil
	}
	record.Level = mapped

	logging.Emit(tracker, record, w.asBreadcrumbs)
	// Fatal is followed by os.Exit.
	if mapped == xrayradar.LevelFatal && !w.asBreadcrumbs {
		tracker.Flush(w.flushTimeout)
	}
	return n, nil
}

// Close flushes pending events.
func (w *Writer) Close() error {
	tracker := w.currentTracker()
	if tracker == nil {
		return nil
	}
	if !tracker.Flush(w.flushTimeout) {
		return ErrFlushTimeout
	}
	return nil
}

func parseRecord(p []byte) (logging.Record, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(p, &fields); err != nil {
		return logging.Record{}, false
	}

	record := logging.Record{
		Logger: defaultLogger,
		Fields: make(map[string]interface{}, len(fields)),
	}
	for k, raw := range fields {
		switch k {
		case zerolog.LevelFieldName, zerolog.TimestampFieldName:
		case zerolog.MessageFieldName:
			record.Message = unquote(raw)
		case zerolog.ErrorFieldName:
			record.Err = &logging.Error{Message: unquote(raw)}
		case zerolog.CallerFieldName:
			record.Line = callerLine(unquote(raw))
		case logging.FieldLogger:
			if name := unquote(raw); name != "" {
				record.Logger = name
			}
		case logging.FieldUser:
			var user xrayradar.User
			if err := json.Unmarshal(raw, &user); err == nil {
				record.Fields[k] = user
			} else {
				record.Fields[k] = decode(raw)
			}
		case logging.FieldFingerprint:
			var fingerprint []string
			if err := json.Unmarshal(raw, &fingerprint); err == nil {
				record.Fields[k] = fingerprint
			} else {
				record.Fields[k] = decode(raw)
			}
		default:
			record.Fields[k] = decode(raw)
		}
	}
	return record, true
}

func decode(raw json.RawMessage) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func unquote(raw json.RawMessage) string {
	if s, ok := decode(raw).(string); ok {
		return s
	}
	return string(raw)
}

// callerLine extracts the line from zerolog's default "file:line" caller.
func callerLine(caller string) int {
	i := strings.LastIndexByte(caller, ':')
	if i < 0 {
		return 0
	}
	line, err := strconv.Atoi(caller[i+1:])
	if err != nil {
		return 0
	}
	return line
}
