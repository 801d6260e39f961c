package protocol

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const invalidDsnPlaceholder = "<invalid dsn>"

// expectedDsnFormat is appended to every parse error to guide the user.
const expectedDsnFormat = "expected format: https://[public_key@]host[:port][/path]/project_id"

// Scheme is the URL scheme a DSN may use.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

func (scheme Scheme) defaultPort() int {
	switch scheme {
	case SchemeHTTPS:
		return 443
	case SchemeHTTP:
		return 80
	default:
		return 80
	}
}

// InvalidDsnError reports a DSN that could not be parsed. The DSN text it
// carries has already been redacted.
type InvalidDsnError struct {
	Dsn    string
	Reason string
}

func (e *InvalidDsnError) Error() string {
	return fmt.Sprintf("invalid DSN %q: %s (%s)", e.Dsn, e.Reason, expectedDsnFormat)
}

// Dsn is the parsed connection descriptor of a collector project.
type Dsn struct {
	scheme    Scheme
	publicKey string
	secretKey string
	host      string
	port      int
	path      string
	projectID string
}

// NewDsn parses rawURL. Credentials in rawURL never appear in the returned
// error.
func NewDsn(rawURL string) (*Dsn, error) {
	invalid := func(reason string) error {
		return &InvalidDsnError{Dsn: RedactDsn(rawURL), Reason: reason}
	}

	if strings.TrimSpace(rawURL) == "" {
		return nil, invalid("empty DSN")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalid("failed to parse DSN")
	}

	var scheme Scheme
	switch parsedURL.Scheme {
	case "http":
		scheme = SchemeHTTP
	case "https":
		scheme = SchemeHTTPS
	default:
		return nil, invalid("invalid scheme")
	}

	var publicKey, secretKey string
	if parsedURL.User != nil {
		publicKey = parsedURL.User.Username()
		if password, ok := parsedURL.User.Password(); ok {
			secretKey = password
		}
	}

	host := parsedURL.Hostname()
	if host == "" {
		return nil, invalid("empty host")
	}

	var port int
	if p := parsedURL.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, invalid("invalid port")
		}
	}

	trimmedPath := strings.Trim(parsedURL.Path, "/")
	if trimmedPath == "" {
		return nil, invalid("empty project id")
	}
	segments := strings.Split(trimmedPath, "/")
	projectID := segments[len(segments)-1]
	if projectID == "" {
		return nil, invalid("empty project id")
	}

	var path string
	if len(segments) > 1 {
		path = "/" + strings.Join(segments[:len(segments)-1], "/")
	}

	return &Dsn{
		scheme:    scheme,
		publicKey: publicKey,
		secretKey: secretKey,
		host:      host,
		port:      port,
		path:      path,
		projectID: projectID,
	}, nil
}

// GetScheme returns the DSN scheme.
func (dsn Dsn) GetScheme() Scheme {
	return dsn.scheme
}

// GetHost returns the collector host.
func (dsn Dsn) GetHost() string {
	return dsn.host
}

// GetPort returns the explicit port or the scheme default.
func (dsn Dsn) GetPort() int {
	if dsn.port == 0 {
		return dsn.scheme.defaultPort()
	}
	return dsn.port
}

// GetPath returns the path prefix in front of the project id.
func (dsn Dsn) GetPath() string {
	return dsn.path
}

// GetProjectID returns the project identifier.
func (dsn Dsn) GetProjectID() string {
	return dsn.projectID
}

// GetPublicKey returns the key embedded as URL user, if any.
func (dsn Dsn) GetPublicKey() string {
	return dsn.publicKey
}

// GetSecretKey returns the secret embedded as URL password, if any.
func (dsn Dsn) GetSecretKey() string {
	return dsn.secretKey
}

func (dsn Dsn) hostPort() string {
	if dsn.GetPort() != dsn.scheme.defaultPort() {
		return fmt.Sprintf("%s:%d", dsn.host, dsn.GetPort())
	}
	return dsn.host
}

// String returns the full DSN including credentials.
func (dsn Dsn) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s://", dsn.scheme)
	if dsn.publicKey != "" {
		b.WriteString(dsn.publicKey)
		if dsn.secretKey != "" {
			b.WriteString(":" + dsn.secretKey)
		}
		b.WriteString("@")
	}
	b.WriteString(dsn.hostPort())
	b.WriteString(dsn.path)
	b.WriteString("/" + dsn.projectID)
	return b.String()
}

// Redacted returns the DSN with credentials masked, safe for logs.
func (dsn Dsn) Redacted() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s://", dsn.scheme)
	if dsn.publicKey != "" || dsn.secretKey != "" {
		b.WriteString("***@")
	}
	b.WriteString(dsn.hostPort())
	b.WriteString(dsn.path)
	b.WriteString("/" + dsn.projectID)
	return b.String()
}

// GetAPIURL returns the store endpoint events are POSTed to.
func (dsn Dsn) GetAPIURL() *url.URL {
	return &url.URL{
		Scheme: string(dsn.scheme),
		Host:   dsn.hostPort(),
		Path:   fmt.Sprintf("%s/api/%s/store/", dsn.path, dsn.projectID),
	}
}

// RedactDsn masks credentials in a raw, possibly malformed, DSN string.
func RedactDsn(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return invalidDsnPlaceholder
	}
	var b strings.Builder
	b.WriteString(parsedURL.Scheme + "://")
	if parsedURL.User != nil {
		b.WriteString("***@")
	}
	b.WriteString(parsedURL.Host)
	b.WriteString(parsedURL.EscapedPath())
	return b.String()
}
