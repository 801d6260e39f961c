package xrayradarhttp_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrayradar/xrayradar-go"
	xrayradarhttp "github.com/xrayradar/xrayradar-go/http"
)

func newTracker(t *testing.T) (*xrayradar.Tracker, *xrayradar.MockTransport) {
	t.Helper()
	transport := &xrayradar.MockTransport{}
	tracker, err := xrayradar.NewTracker(xrayradar.ClientOptions{
		Transport:      transport,
		DisableModules: true,
	})
	require.NoError(t, err)
	t.Cleanup(tracker.Close)
	return tracker, transport
}

func TestHandleCapturesPanic(t *testing.T) {
	tracker, transport := newTracker(t)
	handler := xrayradarhttp.New(xrayradarhttp.Options{Tracker: tracker}).Handle(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("handler exploded")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "http://shop.example.com/panic?token=1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() { handler.ServeHTTP(rec, req) })

	event := transport.LastEvent()
	require.NotNil(t, event)
	assert.Equal(t, xrayradar.LevelFatal, event.Level)
	assert.Equal(t, "handler exploded", event.Message)
	require.NotNil(t, event.Request)
	assert.Equal(t, "http://shop.example.com/panic", event.Request.URL)
	assert.Equal(t, http.MethodGet, event.Request.Method)
	assert.NotContains(t, event.Request.Headers, "Authorization")

	require.Len(t, event.Breadcrumbs, 1)
	crumb := event.Breadcrumbs[0]
	assert.Equal(t, xrayradar.BreadcrumbTypeHTTP, crumb.Type)
	assert.Equal(t, "GET http://shop.example.com/panic", crumb.Message)
}

func TestHandleExposesTrackerOnContext(t *testing.T) {
	tracker, transport := newTracker(t)
	handler := xrayradarhttp.New(xrayradarhttp.Options{Tracker: tracker}).HandleFunc(
		func(w http.ResponseWriter, r *http.Request) {
			xrayradar.GetTrackerFromContext(r.Context()).CaptureException(
				errors.New("lookup failed"),
				xrayradar.WithContext(r.Context()),
			)
			w.WriteHeader(http.StatusAccepted)
		},
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	event := transport.LastEvent()
	require.NotNil(t, event)
	assert.Equal(t, "lookup failed", event.Message)
	assert.Equal(t, http.MethodPost, event.Request.Method)
}

func TestHandleClearsBreadcrumbsPerRequest(t *testing.T) {
	tracker, transport := newTracker(t)
	handler := xrayradarhttp.New(xrayradarhttp.Options{Tracker: tracker}).HandleFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/capture" {
				tracker.CaptureMessage("second request")
			}
		},
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/first", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/capture", nil))

	event := transport.LastEvent()
	require.NotNil(t, event)
	require.Len(t, event.Breadcrumbs, 1)
	assert.Contains(t, event.Breadcrumbs[0].Message, "/capture")
}

func TestHandleRepanic(t *testing.T) {
	tracker, transport := newTracker(t)
	handler := xrayradarhttp.New(xrayradarhttp.Options{
		Tracker:         tracker,
		Repanic:         true,
		WaitForDelivery: true,
	}).Handle(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("again")
	}))

	assert.PanicsWithValue(t, "again", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Len(t, transport.Events(), 1)
}

func TestHandleWithoutTracker(t *testing.T) {
	xrayradar.Close()
	handler := xrayradarhttp.New(xrayradarhttp.Options{}).HandleFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, xrayradar.HasTrackerOnContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
