package xrayradar

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// The SDK identity sent with every event and in the User-Agent header.
const (
	SDKName    = "xrayradar.go"
	SDKVersion = "0.4.0"

	sdkUserAgent = SDKName + "/" + SDKVersion
	platform     = "go"
)

// Level marks the severity of the event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// ParseLevel maps common spellings of a severity onto a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug, true
	case "info", "information":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarning, true
	case "error", "err":
		return LevelError, true
	case "fatal", "critical", "panic":
		return LevelFatal, true
	}
	return "", false
}

// Breadcrumb types.
const (
	BreadcrumbTypeDefault    = "default"
	BreadcrumbTypeHTTP       = "http"
	BreadcrumbTypeNavigation = "navigation"
	BreadcrumbTypeUI         = "ui"
	BreadcrumbTypeConsole    = "console"
	BreadcrumbTypeError      = "error"
	BreadcrumbTypeQuery      = "query"
	BreadcrumbTypeUser       = "user"
)

// Breadcrumb is a record of something that happened before an event.
type Breadcrumb struct {
	Type      string                 `json:"type,omitempty"`
	Category  string                 `json:"category,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Level     Level                  `json:"level,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// User describes the user associated with an event.
type User struct {
	ID        string            `json:"id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Username  string            `json:"username,omitempty"`
	Name      string            `json:"name,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// IsEmpty reports whether no field of u is set.
func (u User) IsEmpty() bool {
	return u.ID == "" && u.Email == "" && u.IPAddress == "" && u.Username == "" && u.Name == "" && len(u.Data) == 0
}

// Request describes the HTTP request being handled when the event happened.
type Request struct {
	URL         string            `json:"url,omitempty"`
	Method      string            `json:"method,omitempty"`
	Data        string            `json:"data,omitempty"`
	QueryString string            `json:"query_string,omitempty"`
	Cookies     string            `json:"cookies,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// NewRequest returns a new Request describing r. Sensitive headers and query
// strings are removed when the event is built, not here.
func NewRequest(r *http.Request) *Request {
	protocol := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		protocol = "https"
	}
	url := fmt.Sprintf("%s://%s%s", protocol, r.Host, r.URL.Path)
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ",")
	}
	if r.Host != "" {
		headers["Host"] = r.Host
	}

	var env map[string]string
	if addr, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		env = map[string]string{"REMOTE_ADDR": addr, "REMOTE_PORT": port}
	}

	return &Request{
		URL:         url,
		Method:      r.Method,
		QueryString: r.URL.RawQuery,
		Cookies:     r.Header.Get("Cookie"),
		Headers:     headers,
		Env:         env,
	}
}

// Exception is one error in the chain of a captured error.
type Exception struct {
	Type       string      `json:"type,omitempty"`
	Value      string      `json:"value,omitempty"`
	Module     string      `json:"module,omitempty"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty"`
}

// SdkInfo identifies the SDK that produced an event.
type SdkInfo struct {
	Name         string   `json:"name,omitempty"`
	Version      string   `json:"version,omitempty"`
	Integrations []string `json:"integrations,omitempty"`
}

// EventID is a 32 character hexadecimal event identifier.
type EventID string

// NewEventID returns a random v4 UUID without dashes.
func NewEventID() EventID {
	return EventID(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// Event is the unit of data sent to the collector. Once handed to a
// Transport it must not be modified.
type Event struct {
	EventID     EventID                           `json:"event_id"`
	Timestamp   time.Time                         `json:"timestamp"`
	Level       Level                             `json:"level"`
	Message     string                            `json:"message,omitempty"`
	Logger      string                            `json:"logger,omitempty"`
	Platform    string                            `json:"platform,omitempty"`
	Sdk         SdkInfo                           `json:"sdk"`
	ServerName  string                            `json:"server_name,omitempty"`
	Release     string                            `json:"release,omitempty"`
	Environment string                            `json:"environment,omitempty"`
	Tags        map[string]string                 `json:"tags,omitempty"`
	Extra       map[string]interface{}            `json:"extra,omitempty"`
	User        *User                             `json:"user,omitempty"`
	Request     *Request                          `json:"request,omitempty"`
	Contexts    map[string]map[string]interface{} `json:"contexts,omitempty"`
	Breadcrumbs []*Breadcrumb                     `json:"breadcrumbs,omitempty"`
	Fingerprint []string                          `json:"fingerprint,omitempty"`
	Modules     map[string]string                 `json:"modules,omitempty"`

	// Exception holds the captured error first, followed by its causes.
	Exception []Exception `json:"-"`
}

type exceptionValues struct {
	Values []Exception `json:"values"`
}

// MarshalJSON nests the exception chain under "exception.values".
func (e *Event) MarshalJSON() ([]byte, error) {
	type event Event
	var exception *exceptionValues
	if len(e.Exception) > 0 {
		exception = &exceptionValues{Values: e.Exception}
	}
	return json.Marshal(struct {
		*event
		Exception *exceptionValues `json:"exception,omitempty"`
	}{
		event:     (*event)(e),
		Exception: exception,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	type event Event
	aux := struct {
		*event
		Exception *exceptionValues `json:"exception,omitempty"`
	}{event: (*event)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Exception != nil {
		e.Exception = aux.Exception.Values
	}
	return nil
}
