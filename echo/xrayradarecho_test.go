package xrayradarecho_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrayradar/xrayradar-go"
	xrayradarecho "github.com/xrayradar/xrayradar-go/echo"
)

func newTracker(t *testing.T) (*xrayradar.Tracker, *xrayradar.MockTransport) {
	t.Helper()
	transport := &xrayradar.MockTransport{}
	tracker, err := xrayradar.NewTracker(xrayradar.ClientOptions{Transport: transport, DisableModules: true})
	require.NoError(t, err)
	t.Cleanup(tracker.Close)
	return tracker, transport
}

func TestIntegrationPanic(t *testing.T) {
	tracker, transport := newTracker(t)
	e := echo.New()
	e.Use(xrayradarecho.New(xrayradarecho.Options{Tracker: tracker}))
	e.GET("/panic", func(c echo.Context) error {
		panic("test")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/panic", nil))

	event := transport.LastEvent()
	require.NotNil(t, event)
	assert.Equal(t, xrayradar.LevelFatal, event.Level)
	assert.Equal(t, "test", event.Message)
	assert.Equal(t, http.MethodGet, event.Request.Method)
	require.Len(t, event.Breadcrumbs, 1)
}

func TestIntegrationRepanicReachesEchoRecover(t *testing.T) {
	tracker, transport := newTracker(t)
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = c.NoContent(http.StatusInternalServerError)
				}
			}()
			return next(c)
		}
	})
	e.Use(xrayradarecho.New(xrayradarecho.Options{Tracker: tracker, Repanic: true}))
	e.GET("/panic", func(c echo.Context) error { panic("again") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, transport.Events(), 1)
}

func TestIntegrationCaptureErrors(t *testing.T) {
	tracker, transport := newTracker(t)
	e := echo.New()
	e.Use(xrayradarecho.New(xrayradarecho.Options{Tracker: tracker, CaptureErrors: true}))
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "no such order")
	})
	e.GET("/broken", func(c echo.Context) error {
		return errors.New("database unreachable")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Empty(t, transport.Events())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, transport.Events(), 1)
	assert.Equal(t, "database unreachable", transport.LastEvent().Message)
}

func TestGetTrackerFromContext(t *testing.T) {
	tracker, _ := newTracker(t)
	e := echo.New()
	e.Use(xrayradarecho.New(xrayradarecho.Options{Tracker: tracker}))

	var got *xrayradar.Tracker
	e.GET("/", func(c echo.Context) error {
		got = xrayradarecho.GetTrackerFromContext(c)
		return c.NoContent(http.StatusOK)
	})
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Same(t, tracker, got)
	assert.Nil(t, xrayradarecho.GetTrackerFromContext(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())))
}
