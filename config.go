package xrayradar

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FileConfig is the flat configuration file format. JSON and YAML files use
// the same keys.
type FileConfig struct {
	Dsn            string   `json:"dsn" yaml:"dsn"`
	AuthToken      string   `json:"auth_token" yaml:"auth_token"`
	Environment    string   `json:"environment" yaml:"environment"`
	Release        string   `json:"release" yaml:"release"`
	ServerName     string   `json:"server_name" yaml:"server_name"`
	SampleRate     *float64 `json:"sample_rate" yaml:"sample_rate"`
	SendDefaultPII bool     `json:"send_default_pii" yaml:"send_default_pii"`
	MaxBreadcrumbs *int     `json:"max_breadcrumbs" yaml:"max_breadcrumbs"`
	// Timeout is in seconds.
	Timeout        *float64 `json:"timeout" yaml:"timeout"`
	VerifySSL      *bool    `json:"verify_ssl" yaml:"verify_ssl"`
	MaxPayloadSize *int     `json:"max_payload_size" yaml:"max_payload_size"`
	Debug          bool     `json:"debug" yaml:"debug"`
}

// LoadOptionsFile reads a JSON (.json) or YAML (.yaml, .yml) configuration
// file into ClientOptions. Values are validated by NewTracker, except
// that explicitly out-of-range numbers are rejected here since their zero
// value would otherwise mean "default".
func LoadOptionsFile(path string) (ClientOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientOptions{}, fmt.Errorf("xrayradar: read config: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return ClientOptions{}, fmt.Errorf("xrayradar: unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return ClientOptions{}, fmt.Errorf("xrayradar: parse config %s: %w", filepath.Base(path), err)
	}
	return cfg.Options()
}

// Options converts the file configuration into ClientOptions.
func (cfg FileConfig) Options() (ClientOptions, error) {
	options := ClientOptions{
		Dsn:            cfg.Dsn,
		AuthToken:      cfg.AuthToken,
		Environment:    cfg.Environment,
		Release:        cfg.Release,
		ServerName:     cfg.ServerName,
		SendDefaultPII: cfg.SendDefaultPII,
		Debug:          cfg.Debug,
	}

	if cfg.SampleRate != nil {
		rate := *cfg.SampleRate
		if !validSampleRate(rate) {
			return ClientOptions{}, &ConfigurationError{Field: "sample_rate", Value: rate, Reason: "must be between 0.0 and 1.0"}
		}
		options.SampleRate = rate
		options.sampleRateSet = true
	}
	if cfg.MaxBreadcrumbs != nil {
		switch n := *cfg.MaxBreadcrumbs; {
		case n < 0:
			return ClientOptions{}, &ConfigurationError{Field: "max_breadcrumbs", Value: n, Reason: "must be non-negative"}
		case n == 0:
			options.DisableBreadcrumbs = true
		default:
			options.MaxBreadcrumbs = n
		}
	}
	if cfg.Timeout != nil {
		if *cfg.Timeout <= 0 {
			return ClientOptions{}, &ConfigurationError{Field: "timeout", Value: *cfg.Timeout, Reason: "must be positive"}
		}
		options.Timeout = time.Duration(*cfg.Timeout * float64(time.Second))
	}
	if cfg.MaxPayloadSize != nil {
		if *cfg.MaxPayloadSize <= 0 {
			return ClientOptions{}, &ConfigurationError{Field: "max_payload_size", Value: *cfg.MaxPayloadSize, Reason: "must be positive"}
		}
		options.MaxPayloadSize = *cfg.MaxPayloadSize
	}
	if cfg.VerifySSL != nil {
		options.InsecureSkipVerify = !*cfg.VerifySSL
	}
	return options, nil
}
