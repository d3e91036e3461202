package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicJSON = `{
  "rps": 10,
  "duration": "2m",
  "vus": 5,
  "endpoints": ["https://api.example.com/a", "http://localhost:8080/b"],
  "x-apikey": "secret"
}`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_JSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.json", basicJSON))
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.RPS)
	assert.Equal(t, 2*time.Minute, cfg.Duration)
	assert.Equal(t, 5, cfg.VUs)
	assert.Equal(t, 10, cfg.MaxVUs, "maxVus defaults to twice vus")
	assert.Equal(t, []string{"https://api.example.com/a", "http://localhost:8080/b"}, cfg.Endpoints)
	assert.Equal(t, "secret", cfg.Headers["x-apikey"])
	assert.Equal(t, DefaultSleep, cfg.Sleep)
	assert.Nil(t, cfg.Timeouts)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout())
	assert.Equal(t, DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, int64(1200), cfg.PlannedIterations())
}

func TestLoadConfig_TimeoutExpectations(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config2.json", `{
	  "rps": 2, "duration": "10s", "vus": 3, "maxVus": 3,
	  "endpoints": ["https://example.com/"],
	  "timeoutExpectations": {"connection": "1s", "response": "10s"}
	}`))
	require.NoError(t, err)

	require.NotNil(t, cfg.Timeouts)
	assert.Equal(t, time.Second, cfg.Timeouts.Connection)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Response)
	assert.Equal(t, 11*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 3, cfg.MaxVUs)
}

func TestLoadConfig_YAMLMatchesJSON(t *testing.T) {
	fromJSON, err := LoadConfig(writeConfig(t, "config.json", basicJSON))
	require.NoError(t, err)

	fromYAML, err := LoadConfig(writeConfig(t, "config.yaml", `
rps: 10
duration: 2m
vus: 5
endpoints:
  - https://api.example.com/a
  - http://localhost:8080/b
x-apikey: secret
`))
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
}

func TestLoadConfig_HeadersOverrideLiftedKeys(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.json", `{
	  "rps": 1, "duration": "1s", "vus": 1,
	  "endpoints": ["https://example.com/"],
	  "x-apikey": "lifted",
	  "x-count": 3,
	  "headers": {"x-apikey": "explicit", "Accept": "application/json"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "explicit", cfg.Headers["x-apikey"])
	assert.Equal(t, "application/json", cfg.Headers["Accept"])
	_, ok := cfg.Headers["x-count"]
	assert.False(t, ok, "non-string x-* keys are not headers")
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name:    "malformed json",
			content: `{"rps": 10,`,
		},
		{
			name:    "missing rps",
			content: `{"duration": "1s", "vus": 1, "endpoints": ["https://example.com"]}`,
		},
		{
			name:    "zero rps",
			content: `{"rps": 0, "duration": "1s", "vus": 1, "endpoints": ["https://example.com"]}`,
		},
		{
			name:    "negative vus",
			content: `{"rps": 1, "duration": "1s", "vus": -1, "endpoints": ["https://example.com"]}`,
		},
		{
			name:    "zero duration",
			content: `{"rps": 1, "duration": "0s", "vus": 1, "endpoints": ["https://example.com"]}`,
			field:   "duration",
		},
		{
			name:    "bad duration unit",
			content: `{"rps": 1, "duration": "10x", "vus": 1, "endpoints": ["https://example.com"]}`,
		},
		{
			name:    "maxVus below vus",
			content: `{"rps": 1, "duration": "1s", "vus": 4, "maxVus": 2, "endpoints": ["https://example.com"]}`,
			field:   "maxVus",
		},
		{
			name:    "relative endpoint",
			content: `{"rps": 1, "duration": "1s", "vus": 1, "endpoints": ["/health"]}`,
			field:   "endpoints[0]",
		},
		{
			name:    "no endpoints",
			content: `{"rps": 1, "duration": "1s", "vus": 1, "endpoints": []}`,
		},
		{
			name:    "bad threshold",
			content: `{"rps": 1, "duration": "1s", "vus": 1, "endpoints": ["https://example.com"], "thresholds": {"http_req_duration": ["p95 under 500"]}}`,
			field:   "thresholds.http_req_duration[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "config.json", tt.content))
			require.Error(t, err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "expected *ConfigError, got %T", err)

			if tt.field != "" {
				var verrs *ValidationErrors
				require.True(t, errors.As(err, &verrs))
				fields := make([]string, 0, len(verrs.Errors))
				for _, e := range verrs.Errors {
					fields = append(fields, e.Field)
				}
				assert.Contains(t, fields, tt.field)
			}
		})
	}
}

func TestLoadConfig_MalformedDurationIsParseError(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "config.json",
		`{"rps": 1, "duration": "1.2.3s", "vus": 1, "endpoints": ["https://example.com"]}`))
	require.Error(t, err)

	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestPlannedTicks(t *testing.T) {
	assert.Equal(t, int64(20), PlannedTicks(10, 2*time.Second))
	assert.Equal(t, int64(2), PlannedTicks(1.5, time.Second))
	assert.Equal(t, int64(1), PlannedTicks(0.1, time.Second))
	assert.Equal(t, int64(3), PlannedTicks(3, time.Second))
}

func TestParseThresholdExpression(t *testing.T) {
	te, err := ParseThresholdExpression("p(95)<500")
	require.NoError(t, err)
	assert.Equal(t, "p", te.Aggregation)
	assert.Equal(t, 95.0, te.Percentile)
	assert.Equal(t, "<", te.Operator)
	assert.Equal(t, 500.0, te.Value)
	assert.True(t, te.Compare(499))
	assert.False(t, te.Compare(500))

	te, err = ParseThresholdExpression("rate <= 0.01")
	require.NoError(t, err)
	assert.Equal(t, "rate", te.Aggregation)
	assert.True(t, te.Compare(0.01))

	for _, bad := range []string{"", "p95<500", "p(101)<5", "avg ~ 3", "rate<abc"} {
		_, err := ParseThresholdExpression(bad)
		assert.Error(t, err, bad)
	}
}
