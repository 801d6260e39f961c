package xrayradar

import (
	"crypto/x509"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Environment variables consulted when the corresponding option is empty.
const (
	EnvDsn            = "XRAYRADAR_DSN"
	EnvEnvironment    = "XRAYRADAR_ENVIRONMENT"
	EnvRelease        = "XRAYRADAR_RELEASE"
	EnvServerName     = "XRAYRADAR_SERVER_NAME"
	EnvSampleRate     = "XRAYRADAR_SAMPLE_RATE"
	EnvSendDefaultPII = "XRAYRADAR_SEND_DEFAULT_PII"
	EnvAuthToken      = "XRAYRADAR_AUTH_TOKEN"
	EnvDebug          = "XRAYRADAR_DEBUG"
)

const (
	defaultEnvironment     = "development"
	defaultMaxBreadcrumbs  = 100
	defaultMaxErrorDepth   = 10
	defaultTimeout         = 10 * time.Second
	defaultMaxPayloadSize  = 100000
	defaultQueueSize       = 100
	defaultMaxAttempts     = 3
	defaultRetryBackoff    = time.Second
	defaultMaxRetryBackoff = 30 * time.Second
	defaultShutdownTimeout = 2 * time.Second
)

// EventFilter is called once for every event that passed sampling. It may
// return a modified event, or nil to drop it. An error or a panic drops the
// event as well.
type EventFilter func(event *Event) (*Event, error)

// ClientOptions configures a Tracker. Zero values select defaults; empty
// string options fall back to their XRAYRADAR_* environment variable.
type ClientOptions struct {
	// Dsn tells the SDK where to send events. With an empty or malformed
	// DSN the tracker still works but discards everything.
	Dsn string
	// AuthToken is sent in the X-Xrayradar-Token header. Required when the
	// DSN is usable and no custom Transport is set.
	AuthToken string
	// Debug prints SDK diagnostics to DebugWriter (stderr by default).
	Debug       bool
	DebugWriter io.Writer

	Environment string
	Release     string
	ServerName  string

	// SampleRate is the fraction of events sent, in [0, 1]. Zero means
	// unset and falls back to XRAYRADAR_SAMPLE_RATE, then 1.0.
	SampleRate float64
	// SendDefaultPII includes user fields, client IPs, query strings and
	// frame locals in events.
	SendDefaultPII bool

	// MaxBreadcrumbs is the capacity of the breadcrumb buffer. 0 selects
	// 100; use DisableBreadcrumbs to keep none.
	MaxBreadcrumbs     int
	DisableBreadcrumbs bool
	// MaxErrorDepth limits how many wrapped causes are reported.
	MaxErrorDepth int
	// IgnoreErrors is a list of regular expressions matched against the
	// error message. Matching errors are not captured.
	IgnoreErrors []string

	BeforeSend       EventFilter
	BeforeBreadcrumb func(breadcrumb *Breadcrumb) *Breadcrumb
	// FrameMatcher decides which stack frames belong to the SDK and are
	// skipped when computing fingerprints.
	FrameMatcher FrameMatcher

	// DisableModules omits the loaded module inventory from events.
	DisableModules bool

	// Transport replaces the default HTTP transport.
	Transport Transport
	// TransportObserver receives every delivery failure of the default
	// HTTP transport. It is called from the delivery goroutine.
	TransportObserver func(err *TransportError)

	// Timeout bounds a single delivery attempt.
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxPayloadSize     int
	QueueSize          int
	MaxAttempts        int
	RetryBackoff       time.Duration
	MaxRetryBackoff    time.Duration
	ShutdownTimeout    time.Duration
	CompressPayload    bool

	HTTPClient    *http.Client
	HTTPTransport http.RoundTripper
	HTTPProxy     string
	HTTPSProxy    string
	CaCerts       *x509.CertPool

	// sampleRateSet marks a SampleRate of zero as explicit.
	sampleRateSet bool
}

func (options *ClientOptions) validate() error {
	if !validSampleRate(options.SampleRate) {
		return &ConfigurationError{Field: "SampleRate", Value: options.SampleRate, Reason: "must be between 0.0 and 1.0"}
	}
	if options.MaxBreadcrumbs < 0 {
		return &ConfigurationError{Field: "MaxBreadcrumbs", Value: options.MaxBreadcrumbs, Reason: "must be non-negative"}
	}
	if options.MaxErrorDepth < 0 {
		return &ConfigurationError{Field: "MaxErrorDepth", Value: options.MaxErrorDepth, Reason: "must be non-negative"}
	}
	if options.Timeout < 0 {
		return &ConfigurationError{Field: "Timeout", Value: options.Timeout, Reason: "must be positive"}
	}
	if options.MaxPayloadSize < 0 {
		return &ConfigurationError{Field: "MaxPayloadSize", Value: options.MaxPayloadSize, Reason: "must be positive"}
	}
	if options.QueueSize < 0 {
		return &ConfigurationError{Field: "QueueSize", Value: options.QueueSize, Reason: "must be positive"}
	}
	if options.MaxAttempts < 0 {
		return &ConfigurationError{Field: "MaxAttempts", Value: options.MaxAttempts, Reason: "must be positive"}
	}
	if options.RetryBackoff < 0 || options.MaxRetryBackoff < 0 || options.ShutdownTimeout < 0 {
		return &ConfigurationError{Field: "RetryBackoff", Reason: "durations must not be negative"}
	}
	for _, pattern := range options.IgnoreErrors {
		if _, err := regexp.Compile(pattern); err != nil {
			return &ConfigurationError{Field: "IgnoreErrors", Value: pattern, Reason: err.Error()}
		}
	}
	return nil
}

// resolve fills empty options from the environment and applies defaults.
func (options *ClientOptions) resolve() error {
	if options.Dsn == "" {
		options.Dsn = os.Getenv(EnvDsn)
	}
	if options.AuthToken == "" {
		options.AuthToken = os.Getenv(EnvAuthToken)
	}
	if options.Environment == "" {
		options.Environment = os.Getenv(EnvEnvironment)
	}
	if options.Environment == "" {
		options.Environment = defaultEnvironment
	}
	if options.Release == "" {
		options.Release = os.Getenv(EnvRelease)
	}
	if options.ServerName == "" {
		options.ServerName = os.Getenv(EnvServerName)
	}
	if options.ServerName == "" {
		options.ServerName, _ = os.Hostname()
	}

	if options.SampleRate == 0 && !options.sampleRateSet {
		options.SampleRate = 1.0
		if raw, ok := os.LookupEnv(EnvSampleRate); ok && strings.TrimSpace(raw) != "" {
			rate, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return &ConfigurationError{Field: EnvSampleRate, Value: raw, Reason: "not a number"}
			}
			options.SampleRate = rate
		}
	}
	if !options.SendDefaultPII {
		if raw, ok := os.LookupEnv(EnvSendDefaultPII); ok {
			options.SendDefaultPII = parseBool(raw)
		}
	}
	if !options.Debug {
		if raw, ok := os.LookupEnv(EnvDebug); ok {
			options.Debug = parseBool(raw)
		}
	}

	if options.MaxBreadcrumbs == 0 && !options.DisableBreadcrumbs {
		options.MaxBreadcrumbs = defaultMaxBreadcrumbs
	}
	if options.DisableBreadcrumbs {
		options.MaxBreadcrumbs = 0
	}
	if options.MaxErrorDepth == 0 {
		options.MaxErrorDepth = defaultMaxErrorDepth
	}
	if options.Timeout == 0 {
		options.Timeout = defaultTimeout
	}
	if options.MaxPayloadSize == 0 {
		options.MaxPayloadSize = defaultMaxPayloadSize
	}
	if options.QueueSize == 0 {
		options.QueueSize = defaultQueueSize
	}
	if options.MaxAttempts == 0 {
		options.MaxAttempts = defaultMaxAttempts
	}
	if options.RetryBackoff == 0 {
		options.RetryBackoff = defaultRetryBackoff
	}
	if options.MaxRetryBackoff == 0 {
		options.MaxRetryBackoff = defaultMaxRetryBackoff
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = defaultShutdownTimeout
	}
	if options.FrameMatcher == nil {
		options.FrameMatcher = IsSDKFrame
	}
	return nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
