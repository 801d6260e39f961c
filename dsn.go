package xrayradar

import "github.com/xrayradar/xrayradar-go/internal/protocol"

// Dsn is a parsed connection descriptor:
// https://[public_key@]host[:port][/path]/project_id
type Dsn = protocol.Dsn

// NewDsn parses rawURL into a Dsn. On failure the returned error is an
// *InvalidDsnError.
func NewDsn(rawURL string) (*Dsn, error) {
	return protocol.NewDsn(rawURL)
}

// RedactDsn returns rawURL with credentials masked, or "<invalid dsn>" when
// it cannot be parsed.
func RedactDsn(rawURL string) string {
	return protocol.RedactDsn(rawURL)
}
