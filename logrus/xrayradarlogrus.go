// Package xrayradarlogrus provides a Logrus hook that reports log entries to
// an xrayradar Tracker, either as events or as console breadcrumbs.
package xrayradarlogrus

import (
	"github.com/sirupsen/logrus"

	"github.com/xrayradar/xrayradar-go"
	"github.com/xrayradar/xrayradar-go/internal/logging"
)

// defaultLogger names entries that carry no "logger" field.
const defaultLogger = "logrus"

var levelMap = map[logrus.Level]xrayradar.Level{
	logrus.TraceLevel: xrayradar.LevelDebug,
	logrus.DebugLevel: xrayradar.LevelDebug,
	logrus.InfoLevel:  xrayradar.LevelInfo,
	logrus.WarnLevel:  xrayradar.LevelWarning,
	logrus.ErrorLevel: xrayradar.LevelError,
	logrus.FatalLevel: xrayradar.LevelFatal,
	logrus.PanicLevel: xrayradar.LevelFatal,
}

type Options struct {
	// Tracker receives the entries. When nil, the tracker on the entry's
	// context is used, then xrayradar.CurrentTracker.
	Tracker *xrayradar.Tracker
	// Level is the least severe level handled. Defaults to logrus.WarnLevel.
	Level *logrus.Level
	// Logger restricts the hook to entries whose "logger" field starts with
	// this prefix.
	Logger string
	// ExcludeLoggers lists logger names that are never reported.
	ExcludeLoggers []string
	// CaptureAsBreadcrumbs records entries as console breadcrumbs instead of
	// sending them as events.
	CaptureAsBreadcrumbs bool
}

// Hook is a logrus.Hook. Configure it before logging starts.
type Hook struct {
	tracker       *xrayradar.Tracker
	levels        []logrus.Level
	filter        logging.Filter
	asBreadcrumbs bool
}

var _ logrus.Hook = (*Hook)(nil)

func New(opts Options) *Hook {
	minLevel := logrus.WarnLevel
	if opts.Level != nil {
		minLevel = *opts.Level
	}
	var levels []logrus.Level
	for _, level := range logrus.AllLevels {
		if level <= minLevel {
			levels = append(levels, level)
		}
	}
	return &Hook{
		tracker:       opts.Tracker,
		levels:        levels,
		filter:        logging.NewFilter(opts.Logger, opts.ExcludeLoggers),
		asBreadcrumbs: opts.CaptureAsBreadcrumbs,
	}
}

func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

// Fire reports entry. Entries the tracker drops are not an error for logrus.
func (h *Hook) Fire(entry *logrus.Entry) error {
	tracker := h.trackerFor(entry)
	if tracker == nil {
		return nil
	}
	record := entryToRecord(entry)
	if !h.filter.Allows(record.Logger) {
		return nil
	}
	logging.Emit(tracker, record, h.asBreadcrumbs)
	return nil
}

func (h *Hook) trackerFor(entry *logrus.Entry) *xrayradar.Tracker {
	if h.tracker != nil {
		return h.tracker
	}
	if entry.Context != nil {
		if tracker := xrayradar.GetTrackerFromContext(entry.Context); tracker != nil {
			return tracker
		}
	}
	return xrayradar.CurrentTracker()
}

func entryToRecord(entry *logrus.Entry) logging.Record {
	record := logging.Record{
		Logger:  defaultLogger,
		Level:   levelMap[entry.Level],
		Message: entry.Message,
		Fields:  make(map[string]interface{}, len(entry.Data)),
	}
	for k, v := range entry.Data {
		switch k {
		case logging.FieldLogger:
			if name, ok := v.(string); ok && name != "" {
				record.Logger = name
				continue
			}
		case logrus.ErrorKey:
			if err, ok := v.(error); ok {
				record.Err = err
				continue
			}
		}
		record.Fields[k] = v
	}
	if entry.Caller != nil {
		record.Function = entry.Caller.Function
		record.Line = entry.Caller.Line
	}
	return record
}
