package xrayradar

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrayradar/xrayradar-go/internal/testutils"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDsn, EnvEnvironment, EnvRelease, EnvServerName, EnvSampleRate, EnvSendDefaultPII, EnvAuthToken, EnvDebug} {
		t.Setenv(key, "")
	}
}

func setupTrackerTest(t *testing.T, modify func(*ClientOptions)) (*Tracker, *MockTransport) {
	t.Helper()
	clearEnv(t)
	transport := &MockTransport{}
	options := ClientOptions{
		Transport:      transport,
		DisableModules: true,
	}
	if modify != nil {
		modify(&options)
	}
	tracker, err := NewTracker(options)
	require.NoError(t, err)
	t.Cleanup(tracker.Close)
	return tracker, transport
}

func TestCaptureExceptionHandsEventToTransport(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)

	id := tracker.CaptureException(errors.New("payment declined"))

	require.NotNil(t, id)
	event := transport.LastEvent()
	require.NotNil(t, event)
	assert.Equal(t, *id, event.EventID)
	assert.Equal(t, LevelError, event.Level)
	assert.Equal(t, "payment declined", event.Message)
	require.Len(t, event.Exception, 1)
	assert.Equal(t, "*errors.errorString", event.Exception[0].Type)
	assert.Equal(t, "development", event.Environment)
}

func TestCaptureExceptionNilIsNoop(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)

	assert.Nil(t, tracker.CaptureException(nil))
	assert.Empty(t, transport.Events())
	assert.Equal(t, int64(0), tracker.Stats().Captured)
}

func TestCaptureMessageOptions(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	tracker.SetTag("region", "eu")

	id := tracker.CaptureMessage("cache cold",
		WithLevel(LevelWarning),
		WithTags(map[string]string{"region": "us"}),
		WithExtra("hits", 0),
		WithLogger("cache"),
		WithFingerprint("cache", "cold"),
	)

	require.NotNil(t, id)
	event := transport.LastEvent()
	assert.Equal(t, LevelWarning, event.Level)
	assert.Equal(t, "cache cold", event.Message)
	assert.Equal(t, "us", event.Tags["region"])
	assert.Equal(t, 0, event.Extra["hits"])
	assert.Equal(t, "cache", event.Logger)
	assert.Equal(t, []string{"cache", "cold"}, event.Fingerprint)
}

func TestCaptureDefaultsToInfoForMessages(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	tracker.CaptureMessage("hello")
	assert.Equal(t, LevelInfo, transport.LastEvent().Level)
}

func TestCaptureAfterCloseIsNoop(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	tracker.Close()

	assert.True(t, tracker.Closed())
	assert.True(t, transport.IsClosed())
	assert.Nil(t, tracker.CaptureException(errors.New("late")))
	assert.Nil(t, tracker.CaptureMessage("late"))
	tracker.AddBreadcrumb(&Breadcrumb{Message: "late"})
	tracker.SetTag("k", "v")
	assert.True(t, tracker.Flush(time.Millisecond))
	assert.Empty(t, transport.Events())

	// Close twice is fine.
	tracker.Close()
}

func TestEventFilter(t *testing.T) {
	t.Run("modifies", func(t *testing.T) {
		tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
			o.BeforeSend = func(event *Event) (*Event, error) {
				event.Tags = map[string]string{"filtered": "yes"}
				return event, nil
			}
		})
		require.NotNil(t, tracker.CaptureMessage("m"))
		assert.Equal(t, "yes", transport.LastEvent().Tags["filtered"])
	})

	t.Run("drops on nil", func(t *testing.T) {
		tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
			o.BeforeSend = func(*Event) (*Event, error) { return nil, nil }
		})
		assert.Nil(t, tracker.CaptureMessage("m"))
		assert.Empty(t, transport.Events())
		assert.Equal(t, int64(1), tracker.Stats().Discarded["before_send"])
	})

	t.Run("drops on error", func(t *testing.T) {
		tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
			o.BeforeSend = func(event *Event) (*Event, error) { return event, errors.New("filter broke") }
		})
		assert.Nil(t, tracker.CaptureMessage("m"))
		assert.Empty(t, transport.Events())
		assert.Equal(t, int64(1), tracker.Stats().Discarded["event_filter_error"])
	})

	t.Run("drops on panic", func(t *testing.T) {
		tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
			o.BeforeSend = func(*Event) (*Event, error) { panic("filter panicked") }
		})
		assert.NotPanics(t, func() {
			assert.Nil(t, tracker.CaptureMessage("m"))
		})
		assert.Empty(t, transport.Events())
		assert.Equal(t, int64(1), tracker.Stats().Discarded["event_filter_error"])
	})
}

func TestIgnoreErrors(t *testing.T) {
	tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
		o.IgnoreErrors = []string{"^context canceled$", "broken pipe"}
	})

	assert.Nil(t, tracker.CaptureException(context.Canceled))
	assert.Nil(t, tracker.CaptureException(errors.New("write: broken pipe")))
	assert.NotNil(t, tracker.CaptureException(errors.New("disk full")))
	assert.Len(t, transport.Events(), 1)
	assert.Equal(t, int64(2), tracker.Stats().Discarded["ignored"])
}

func TestIgnoreErrorsMatchesMessagesAndPanics(t *testing.T) {
	tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
		o.IgnoreErrors = []string{"^healthcheck", "broken pipe"}
	})

	assert.Nil(t, tracker.CaptureMessage("healthcheck ok"))
	assert.Nil(t, tracker.Recover("write: broken pipe"))
	assert.NotNil(t, tracker.CaptureMessage("user signed up"))
	assert.NotNil(t, tracker.Recover("index out of range"))
	assert.Len(t, transport.Events(), 2)
	assert.Equal(t, int64(2), tracker.Stats().Discarded["ignored"])
}

func TestSampleRateZeroFromConfig(t *testing.T) {
	clearEnv(t)
	zero := 0.0
	options, err := FileConfig{SampleRate: &zero}.Options()
	require.NoError(t, err)
	transport := &MockTransport{}
	options.Transport = transport

	tracker, err := NewTracker(options)
	require.NoError(t, err)
	defer tracker.Close()

	for i := 0; i < 20; i++ {
		assert.Nil(t, tracker.CaptureMessage("m"))
	}
	assert.Empty(t, transport.Events())
	stats := tracker.Stats()
	assert.Equal(t, int64(20), stats.Captured)
	assert.Equal(t, int64(20), stats.Discarded["sample_rate"])
}

func TestSampleRateFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSampleRate, "0.25")
	tracker, err := NewTracker(ClientOptions{Transport: &MockTransport{}})
	require.NoError(t, err)
	defer tracker.Close()
	assert.Equal(t, 0.25, tracker.Options().SampleRate)
}

func TestTransportErrorMeansNoID(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	transport.Err = ErrTransportQueueFull

	assert.Nil(t, tracker.CaptureMessage("m"))
	stats := tracker.Stats()
	assert.Equal(t, int64(1), stats.Captured)
	assert.Equal(t, int64(0), stats.HandedOff)
}

func TestNewTrackerConfigurationErrors(t *testing.T) {
	tests := map[string]ClientOptions{
		"sample rate above one": {SampleRate: 1.5},
		"negative sample rate":  {SampleRate: -0.1},
		"NaN sample rate":       {SampleRate: math.NaN()},
		"negative breadcrumbs":  {MaxBreadcrumbs: -1},
		"negative timeout":      {Timeout: -time.Second},
		"bad ignore pattern":    {IgnoreErrors: []string{"("}},
		"negative queue size":   {QueueSize: -1},
	}
	for name, options := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			options.Transport = &MockTransport{}
			tracker, err := NewTracker(options)
			assert.Nil(t, tracker)
			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestNewTrackerInvalidSampleRateEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSampleRate, "often")
	_, err := NewTracker(ClientOptions{Transport: &MockTransport{}})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, EnvSampleRate, cfgErr.Field)
}

func TestNewTrackerNaNSampleRateEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSampleRate, "NaN")
	tracker, err := NewTracker(ClientOptions{Transport: &MockTransport{}})
	assert.Nil(t, tracker)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SampleRate", cfgErr.Field)
}

func TestNewTrackerWithoutDsnDiscards(t *testing.T) {
	for _, dsn := range []string{"", "not a dsn", "ftp://key@host/1", "https://host.example.com/"} {
		clearEnv(t)
		tracker, err := NewTracker(ClientOptions{Dsn: dsn})
		require.NoError(t, err, dsn)
		assert.IsType(t, NullTransport{}, tracker.Transport(), dsn)
		assert.NotNil(t, tracker.CaptureMessage("discarded"), dsn)
		tracker.Close()
	}
}

func TestNewTrackerRequiresAuthToken(t *testing.T) {
	clearEnv(t)
	_, err := NewTracker(ClientOptions{Dsn: "https://collector.example.com/42"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "AuthToken", cfgErr.Field)
}

func TestNewTrackerReadsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEnvironment, "staging")
	t.Setenv(EnvRelease, "shop@2.0.0")
	t.Setenv(EnvServerName, "web-7")
	t.Setenv(EnvSendDefaultPII, "true")

	tracker, err := NewTracker(ClientOptions{Transport: &MockTransport{}})
	require.NoError(t, err)
	defer tracker.Close()

	options := tracker.Options()
	assert.Equal(t, "staging", options.Environment)
	assert.Equal(t, "shop@2.0.0", options.Release)
	assert.Equal(t, "web-7", options.ServerName)
	assert.True(t, options.SendDefaultPII)
	assert.Equal(t, 1.0, options.SampleRate)
	assert.Equal(t, 100, options.MaxBreadcrumbs)
}

func TestRecover(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)

	var id *EventID
	func() {
		defer func() {
			if r := recover(); r != nil {
				id = tracker.Recover(r)
			}
		}()
		panic("nil map write")
	}()

	require.NotNil(t, id)
	event := transport.LastEvent()
	assert.Equal(t, LevelFatal, event.Level)
	require.Len(t, event.Exception, 1)
	assert.Equal(t, "panic", event.Exception[0].Type)
	assert.Equal(t, "nil map write", event.Exception[0].Value)

	frame := lastFrame(t, event.Exception[0].Stacktrace)
	assert.Equal(t, "TestRecover.func1", frame.Function)

	assert.Nil(t, tracker.Recover(nil))
}

func TestRecoverError(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	tracker.Recover(errors.New("exploded"))

	event := transport.LastEvent()
	require.NotNil(t, event)
	assert.Equal(t, "*errors.errorString", event.Exception[0].Type)
	assert.Equal(t, LevelFatal, event.Level)
}

func TestBreadcrumbsAttached(t *testing.T) {
	tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
		o.MaxBreadcrumbs = 2
		o.BeforeBreadcrumb = func(b *Breadcrumb) *Breadcrumb {
			if b.Category == "noise" {
				return nil
			}
			b.Data = map[string]interface{}{"seen": true}
			return b
		}
	})

	tracker.AddBreadcrumb(&Breadcrumb{Message: "one"})
	tracker.AddBreadcrumb(&Breadcrumb{Message: "noise", Category: "noise"})
	tracker.AddBreadcrumb(&Breadcrumb{Message: "two"})
	tracker.AddBreadcrumb(&Breadcrumb{Message: "three"})
	tracker.CaptureMessage("m")

	crumbs := transport.LastEvent().Breadcrumbs
	require.Len(t, crumbs, 2)
	assert.Equal(t, "two", crumbs[0].Message)
	assert.Equal(t, "three", crumbs[1].Message)
	assert.Equal(t, true, crumbs[1].Data["seen"])

	tracker.ClearBreadcrumbs()
	tracker.CaptureMessage("m")
	assert.Empty(t, transport.LastEvent().Breadcrumbs)
}

func TestBeforeBreadcrumbPanicIsContained(t *testing.T) {
	tracker, transport := setupTrackerTest(t, func(o *ClientOptions) {
		o.BeforeBreadcrumb = func(b *Breadcrumb) *Breadcrumb {
			if b.Category == "bad" {
				panic("hook failure")
			}
			return b
		}
	})

	assert.NotPanics(t, func() {
		tracker.AddBreadcrumb(&Breadcrumb{Message: "dropped", Category: "bad"})
	})
	tracker.AddBreadcrumb(&Breadcrumb{Message: "kept"})
	require.NotNil(t, tracker.CaptureMessage("m"))

	crumbs := transport.LastEvent().Breadcrumbs
	require.Len(t, crumbs, 1)
	assert.Equal(t, "kept", crumbs[0].Message)
}

func TestDisableBreadcrumbs(t *testing.T) {
	tracker, transport := setupTrackerTest(t, func(o *ClientOptions) { o.DisableBreadcrumbs = true })
	tracker.AddBreadcrumb(&Breadcrumb{Message: "one"})
	tracker.CaptureMessage("m")
	assert.Empty(t, transport.LastEvent().Breadcrumbs)
}

func TestCaptureWithRequestOnContext(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/cart?session=1", nil)
	r.Header.Set("Authorization", "Bearer secret")
	ctx := context.WithValue(context.Background(), RequestContextKey, r)

	tracker.CaptureMessage("m", WithContext(ctx))

	request := transport.LastEvent().Request
	require.NotNil(t, request)
	assert.Equal(t, "http://shop.example.com/cart", request.URL)
	assert.Equal(t, http.MethodGet, request.Method)
	assert.NotContains(t, request.Headers, "Authorization")
}

func TestCaptureWithUserRequiresPII(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	tracker.SetUser(User{ID: "1"})
	tracker.CaptureMessage("m")
	assert.Nil(t, transport.LastEvent().User)

	tracker, transport = setupTrackerTest(t, func(o *ClientOptions) { o.SendDefaultPII = true })
	tracker.SetUser(User{ID: "1"})
	tracker.CaptureMessage("m", WithUser(User{ID: "2"}))
	assert.Equal(t, "2", transport.LastEvent().User.ID)
}

func TestTrackerScopeSetters(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)
	tracker.SetTags(map[string]string{"a": "1"})
	tracker.SetExtra("x", "y")
	tracker.SetExtras(map[string]interface{}{"z": 1})
	tracker.SetContext("app", map[string]interface{}{"name": "shop"})
	tracker.SetRequest(&Request{URL: "http://example.com/a?b=c", Method: "GET"})

	tracker.CaptureMessage("m")
	event := transport.LastEvent()
	assert.Equal(t, "1", event.Tags["a"])
	assert.Equal(t, "y", event.Extra["x"])
	assert.Equal(t, 1, event.Extra["z"])
	assert.Equal(t, "shop", event.Contexts["app"]["name"])
	assert.Equal(t, "http://example.com/a", event.Request.URL)
}

func TestConcurrentCapture(t *testing.T) {
	tracker, transport := setupTrackerTest(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.SetTag("k", "v")
			tracker.AddBreadcrumb(&Breadcrumb{Message: "b"})
			tracker.CaptureMessage("m")
		}()
	}
	wg.Wait()

	assert.Len(t, transport.Events(), 20)
	assert.Equal(t, int64(20), tracker.Stats().HandedOff)
}

func TestTrackerOnContext(t *testing.T) {
	tracker, _ := setupTrackerTest(t, nil)
	ctx := SetTrackerOnContext(context.Background(), tracker)

	assert.True(t, HasTrackerOnContext(ctx))
	assert.Same(t, tracker, GetTrackerFromContext(ctx))
	assert.False(t, HasTrackerOnContext(context.Background()))
}

func TestDeliveryOverHTTP(t *testing.T) {
	clearEnv(t)
	collector := testutils.NewCollector()
	defer collector.Close()

	tracker, err := NewTracker(ClientOptions{
		Dsn:            collector.DSN("42"),
		AuthToken:      "secret-token",
		DisableModules: true,
	})
	require.NoError(t, err)
	defer tracker.Close()

	id := tracker.CaptureException(errors.New("checkout failed"))
	require.NotNil(t, id)
	require.True(t, tracker.Flush(testutils.FlushTimeout()))

	deliveries := collector.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "secret-token", deliveries[0].Header.Get("X-Xrayradar-Token"))
	assert.Equal(t, "application/json", deliveries[0].Header.Get("Content-Type"))
	assert.Equal(t, string(*id), deliveries[0].Payload["event_id"])

	exception, ok := deliveries[0].Payload["exception"].(map[string]interface{})
	require.True(t, ok)
	values, ok := exception["values"].([]interface{})
	require.True(t, ok)
	assert.Len(t, values, 1)
}

func TestDeliveryRetriesServerErrors(t *testing.T) {
	clearEnv(t)
	collector := testutils.NewCollector()
	collector.Status = func(n int) int {
		if n < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	}
	defer collector.Close()

	tracker, err := NewTracker(ClientOptions{
		Dsn:            collector.DSN("42"),
		AuthToken:      "token",
		RetryBackoff:   time.Millisecond,
		DisableModules: true,
	})
	require.NoError(t, err)
	defer tracker.Close()

	require.NotNil(t, tracker.CaptureMessage("flaky collector"))
	require.True(t, tracker.Flush(testutils.FlushTimeout()))

	assert.Equal(t, 3, collector.Attempts())
	assert.Len(t, collector.Deliveries(), 1)
}

func TestDeliveryAuthFailureReachesObserver(t *testing.T) {
	clearEnv(t)
	collector := testutils.NewCollector()
	collector.Status = func(int) int { return http.StatusNotFound }
	defer collector.Close()

	var mu sync.Mutex
	var observed []*TransportError
	tracker, err := NewTracker(ClientOptions{
		Dsn:            collector.DSN("missing-project"),
		AuthToken:      "token",
		RetryBackoff:   time.Millisecond,
		DisableModules: true,
		TransportObserver: func(err *TransportError) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, err)
		},
	})
	require.NoError(t, err)
	defer tracker.Close()

	id := tracker.CaptureMessage("goes nowhere")
	require.NotNil(t, id)
	require.True(t, tracker.Flush(testutils.FlushTimeout()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 1)
	assert.Equal(t, ErrorKindAuth, observed[0].Kind)
	assert.Equal(t, http.StatusNotFound, observed[0].StatusCode)
	assert.Equal(t, 1, observed[0].Attempts)
	assert.Equal(t, string(*id), observed[0].EventID)
	assert.Equal(t, 1, collector.Attempts())
	assert.Equal(t, int64(1), tracker.Stats().Discarded["auth_error"])
}
