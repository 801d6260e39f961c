package xrayradar

import (
	"net/http"
	"net/url"
	"strings"
)

// Headers removed from every captured request, regardless of SendDefaultPII.
var sensitiveHeaders = map[string]struct{}{
	"authorization":             {},
	"cookie":                    {},
	"set-cookie":                {},
	"x-api-key":                 {},
	"x-forwarded-authorization": {},
}

// Env keys and headers that identify the client machine.
var (
	clientIPEnv     = []string{"REMOTE_ADDR", "REMOTE_PORT"}
	clientIPHeaders = map[string]struct{}{
		"x-forwarded-for": {},
		"x-real-ip":       {},
		"forwarded":       {},
	}
)

// IsSensitiveHeader reports whether the header name is always redacted.
// The comparison is case-insensitive.
func IsSensitiveHeader(name string) bool {
	_, ok := sensitiveHeaders[strings.ToLower(name)]
	return ok
}

// RedactHeaders returns a copy of headers without sensitive entries. When
// sendPII is false, headers carrying the client IP are removed as well.
func RedactHeaders(headers map[string]string, sendPII bool) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if IsSensitiveHeader(k) {
			continue
		}
		if !sendPII {
			if _, ok := clientIPHeaders[strings.ToLower(k)]; ok {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// StripQuery removes the query string and fragment from rawURL.
func StripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// redactRequest returns a sanitized copy of r. Sensitive headers and
// cookies are always dropped; query strings and client addresses only
// survive when sendPII is true.
func redactRequest(r *Request, sendPII bool) *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = RedactHeaders(r.Headers, sendPII)
	c.Cookies = ""
	if !sendPII {
		c.URL = StripQuery(r.URL)
		c.QueryString = ""
		c.Data = ""
	}
	if len(r.Env) > 0 {
		c.Env = make(map[string]string, len(r.Env))
		for k, v := range r.Env {
			c.Env[k] = v
		}
		if !sendPII {
			for _, k := range clientIPEnv {
				delete(c.Env, k)
			}
		}
		if len(c.Env) == 0 {
			c.Env = nil
		}
	}
	return &c
}

// redactUser returns the user to attach to an event, or nil when the user
// is empty or PII is disabled.
func redactUser(u User, sendPII bool) *User {
	if !sendPII || u.IsEmpty() {
		return nil
	}
	return &u
}

// RequestBreadcrumb describes an inbound HTTP request as a breadcrumb,
// applying the same redaction as captured requests. Framework integrations
// record it at the start of every request.
func RequestBreadcrumb(r *http.Request, sendPII bool) *Breadcrumb {
	req := redactRequest(NewRequest(r), sendPII)
	data := map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
	}
	if len(req.Headers) > 0 {
		headers := make(map[string]interface{}, len(req.Headers))
		for k, v := range req.Headers {
			headers[k] = v
		}
		data["headers"] = headers
	}
	if sendPII && req.QueryString != "" {
		data["query_string"] = req.QueryString
	}
	return &Breadcrumb{
		Type:     BreadcrumbTypeHTTP,
		Category: "request",
		Message:  req.Method + " " + req.URL,
		Level:    LevelInfo,
		Data:     data,
	}
}
