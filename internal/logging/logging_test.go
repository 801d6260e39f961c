package logging

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/xrayradar/xrayradar-go"
	"github.com/xrayradar/xrayradar-go/internal/testutils"
)

func newTracker(t *testing.T) (*xrayradar.Tracker, *xrayradar.MockTransport) {
	t.Helper()
	transport := &xrayradar.MockTransport{}
	tracker, err := xrayradar.NewTracker(xrayradar.ClientOptions{
		Transport:      transport,
		DisableModules: true,
		SendDefaultPII: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tracker.Close)
	return tracker, transport
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name    string
		include string
		exclude []string
		logger  string
		want    bool
	}{
		{"no rules", "", nil, "anything", true},
		{"prefix match", "app", nil, "app.db", true},
		{"prefix mismatch", "app", nil, "lib.db", false},
		{"excluded", "", []string{"app.noisy"}, "app.noisy", false},
		{"exclude is exact", "", []string{"app"}, "app.db", true},
		{"exclude wins over include", "app", []string{"app.db"}, "app.db", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutils.AssertEqual(t, NewFilter(tt.include, tt.exclude).Allows(tt.logger), tt.want)
		})
	}
}

func TestRecordModule(t *testing.T) {
	tests := []struct{ function, want string }{
		{"github.com/acme/shop/billing.(*Service).Charge", "github.com/acme/shop/billing"},
		{"github.com/acme/shop/billing.Charge.func1", "github.com/acme/shop/billing"},
		{"main.main", "main"},
		{"", ""},
	}
	for _, tt := range tests {
		testutils.AssertEqual(t, Record{Function: tt.function}.Module(), tt.want, "function %q", tt.function)
	}
}

func TestBreadcrumb(t *testing.T) {
	crumb := Record{
		Logger:   "app.db",
		Level:    xrayradar.LevelWarning,
		Message:  "slow query",
		Err:      errors.New("deadline"),
		Fields:   map[string]interface{}{"table": "users", "logger": "ignored"},
		Function: "github.com/acme/shop/db.Query",
		Line:     42,
	}.Breadcrumb()

	testutils.AssertEqual(t, crumb.Type, xrayradar.BreadcrumbTypeConsole)
	testutils.AssertEqual(t, crumb.Category, "app.db")
	testutils.AssertEqual(t, crumb.Level, xrayradar.LevelWarning)
	testutils.AssertEqual(t, crumb.Data, map[string]interface{}{
		"logger":   "app.db",
		"module":   "github.com/acme/shop/db",
		"funcName": "github.com/acme/shop/db.Query",
		"lineno":   42,
		"table":    "users",
		"error":    "deadline",
	})
}

func TestEmitMessage(t *testing.T) {
	tracker, transport := newTracker(t)

	id := Emit(tracker, Record{
		Logger:  "app",
		Level:   xrayradar.LevelWarning,
		Message: "disk almost full",
		Fields: map[string]interface{}{
			"free":           "2%",
			FieldRequest:     httptest.NewRequest("GET", "http://example.com/upload", nil),
			FieldUser:        &xrayradar.User{ID: "9"},
			FieldFingerprint: []string{"disk"},
		},
	}, false)

	testutils.AssertTrue(t, id != nil, "event id")
	event := transport.LastEvent()
	testutils.AssertEqual(t, event.Message, "disk almost full")
	testutils.AssertEqual(t, event.Level, xrayradar.LevelWarning)
	testutils.AssertEqual(t, event.Logger, "app")
	testutils.AssertEqual(t, event.Extra["free"], "2%")
	testutils.AssertEqual(t, event.Fingerprint, []string{"disk"})
	testutils.AssertEqual(t, event.User.ID, "9")
	testutils.AssertEqual(t, event.Request.URL, "http://example.com/upload")
	_, hasRequest := event.Extra[FieldRequest]
	testutils.AssertFalse(t, hasRequest)
	testutils.AssertEqual(t, len(event.Exception), 0)
}

func TestEmitException(t *testing.T) {
	tracker, transport := newTracker(t)

	Emit(tracker, Record{Logger: "app", Level: xrayradar.LevelError, Message: "write failed", Err: &Error{Message: "disk full"}}, false)

	event := transport.LastEvent()
	testutils.AssertEqual(t, event.Message, "write failed")
	testutils.AssertEqual(t, event.Exception[0].Value, "disk full")
	testutils.AssertEqual(t, event.Exception[0].Type, "*logging.Error")
}

func TestEmitBreadcrumb(t *testing.T) {
	tracker, transport := newTracker(t)

	id := Emit(tracker, Record{Logger: "app", Level: xrayradar.LevelInfo, Message: "opened settings"}, true)
	testutils.AssertTrue(t, id == nil)
	testutils.AssertEqual(t, len(transport.Events()), 0)

	tracker.CaptureMessage("boom")
	event := transport.LastEvent()
	testutils.AssertEqual(t, len(event.Breadcrumbs), 1)
	testutils.AssertNotEqual(t, event.Breadcrumbs[0].Timestamp.IsZero(), true)
}
