package xrayradar

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOptionsFileJSON(t *testing.T) {
	path := writeConfig(t, "xrayradar.json", `{
		"dsn": "https://collector.example.com/42",
		"auth_token": "tok",
		"environment": "production",
		"release": "shop@1.0.0",
		"sample_rate": 0.5,
		"max_breadcrumbs": 20,
		"timeout": 2.5,
		"verify_ssl": false,
		"max_payload_size": 50000,
		"send_default_pii": true
	}`)

	options, err := LoadOptionsFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://collector.example.com/42", options.Dsn)
	assert.Equal(t, "tok", options.AuthToken)
	assert.Equal(t, "production", options.Environment)
	assert.Equal(t, "shop@1.0.0", options.Release)
	assert.Equal(t, 0.5, options.SampleRate)
	assert.Equal(t, 20, options.MaxBreadcrumbs)
	assert.Equal(t, 2500*time.Millisecond, options.Timeout)
	assert.True(t, options.InsecureSkipVerify)
	assert.Equal(t, 50000, options.MaxPayloadSize)
	assert.True(t, options.SendDefaultPII)
}

func TestLoadOptionsFileYAML(t *testing.T) {
	path := writeConfig(t, "xrayradar.yaml", `
dsn: https://collector.example.com/7
auth_token: tok
environment: staging
sample_rate: 0
max_breadcrumbs: 0
debug: true
`)

	options, err := LoadOptionsFile(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", options.Environment)
	assert.Equal(t, 0.0, options.SampleRate)
	assert.True(t, options.sampleRateSet)
	assert.True(t, options.DisableBreadcrumbs)
	assert.True(t, options.Debug)
	assert.False(t, options.InsecureSkipVerify)
}

func TestLoadOptionsFileRejectsUnknownKeys(t *testing.T) {
	for name, content := range map[string]string{
		"c.json": `{"dsn": "x", "sample_rat": 1}`,
		"c.yml":  "dsn: x\nsample_rat: 1\n",
	} {
		_, err := LoadOptionsFile(writeConfig(t, name, content))
		assert.Error(t, err, name)
	}
}

func TestLoadOptionsFileUnsupportedFormat(t *testing.T) {
	_, err := LoadOptionsFile(writeConfig(t, "xrayradar.toml", `dsn = "x"`))
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoadOptionsFileMissing(t *testing.T) {
	_, err := LoadOptionsFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileConfigValidation(t *testing.T) {
	rate := 1.5
	nan := math.NaN()
	negative := -1
	zeroTimeout := 0.0
	tests := []struct {
		field string
		cfg   FileConfig
	}{
		{"sample_rate", FileConfig{SampleRate: &rate}},
		{"sample_rate", FileConfig{SampleRate: &nan}},
		{"max_breadcrumbs", FileConfig{MaxBreadcrumbs: &negative}},
		{"timeout", FileConfig{Timeout: &zeroTimeout}},
		{"max_payload_size", FileConfig{MaxPayloadSize: &negative}},
	}
	for _, tt := range tests {
		_, err := tt.cfg.Options()
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr, tt.field)
		assert.Equal(t, tt.field, cfgErr.Field)
	}
}

func TestLoadOptionsFileYAMLNaNSampleRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xrayradar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rate: .nan\n"), 0o600))

	_, err := LoadOptionsFile(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sample_rate", cfgErr.Field)
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Field: "SampleRate", Value: 1.5, Reason: "must be between 0.0 and 1.0"}
	assert.Equal(t, "xrayradar: invalid SampleRate 1.5: must be between 0.0 and 1.0", err.Error())

	err = &ConfigurationError{Field: "AuthToken", Reason: "required"}
	assert.Equal(t, "xrayradar: invalid AuthToken: required", err.Error())
}
