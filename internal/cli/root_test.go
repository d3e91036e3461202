package cli

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/steadyrate/internal/config"
)

// executeCommand runs a fresh command tree with args and returns its
// stdout, stderr and error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	content := fmt.Sprintf(`{
  "name": "cli",
  "rps": 5,
  "duration": "1s",
  "vus": 1,
  "endpoints": [%q],
  "x-apikey": "secret"
}`, endpoint)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
}

func summaryFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "summary-*.html"))
	require.NoError(t, err)
	return files
}

func TestExecute(t *testing.T) {
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"version"})
	defer RootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Equal(t, "steadyrate version "+version+"\n", out.String())
}

func TestRunCommand_WritesSummaries(t *testing.T) {
	server := newServer(http.StatusOK)
	defer server.Close()

	outDir := t.TempDir()
	stdout, _, err := executeCommand(t, "run", writeConfig(t, server.URL), "--out-dir", outDir, "--quiet", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, stdout, "run: cli")
	assert.Contains(t, stdout, "result: PASSED")
	assert.Len(t, summaryFiles(t, outDir), 1)
}

func TestRunCommand_NoHTML(t *testing.T) {
	server := newServer(http.StatusOK)
	defer server.Close()

	outDir := t.TempDir()
	_, _, err := executeCommand(t, "run", writeConfig(t, server.URL), "--out-dir", outDir, "--quiet", "--no-html")
	require.NoError(t, err)
	assert.Empty(t, summaryFiles(t, outDir))
}

func TestRunCommand_EnvOverride(t *testing.T) {
	server := newServer(http.StatusOK)
	defer server.Close()

	t.Setenv("STEADYRATE_NO_HTML", "true")
	t.Setenv("STEADYRATE_QUIET", "true")

	outDir := t.TempDir()
	_, stderr, err := executeCommand(t, "run", writeConfig(t, server.URL), "--out-dir", outDir)
	require.NoError(t, err)
	assert.Empty(t, summaryFiles(t, outDir))
	assert.Empty(t, stderr)
}

func TestRunCommand_Thresholds(t *testing.T) {
	server := newServer(http.StatusInternalServerError)
	defer server.Close()

	path := writeConfig(t, server.URL)

	t.Run("reported but not enforced by default", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "run", path, "--out-dir", t.TempDir(), "--quiet", "--no-color")
		require.NoError(t, err)
		assert.Contains(t, stdout, "result: FAILED")
	})

	t.Run("enforced", func(t *testing.T) {
		_, _, err := executeCommand(t, "run", path, "--no-html", "--quiet", "--enforce-thresholds")
		assert.True(t, errors.Is(err, ErrThresholdsFailed))
	})
}

func TestRunCommand_MissingConfig(t *testing.T) {
	_, _, err := executeCommand(t, "run", filepath.Join(t.TempDir(), "missing.json"), "--quiet")
	require.Error(t, err)

	var cerr *config.ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestRunCommand_InvalidLogLevel(t *testing.T) {
	_, _, err := executeCommand(t, "run", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, "https://api.example.com/health")

	stdout, _, err := executeCommand(t, "validate", path)
	require.NoError(t, err)

	expectedContents := []string{
		"name:",
		"cli",
		"planned iterations:",
		"(max 2)",
		"status is 200",
		"x-apikey",
		"https://api.example.com/health",
		"http_req_duration: p(95)<500",
		"http_req_failed: rate<0.01",
	}
	for _, expected := range expectedContents {
		assert.Contains(t, stdout, expected)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rps": 0, "duration": "1s", "vus": 1, "endpoints": ["x"]}`), 0644))

	_, _, err := executeCommand(t, "validate", path)
	require.Error(t, err)
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, defaultConfigPath, configPath(nil))
	assert.Equal(t, "stress.yaml", configPath([]string{"stress.yaml"}))
}

func TestRunCommand_MetricsAddr(t *testing.T) {
	server := newServer(http.StatusOK)
	defer server.Close()

	_, _, err := executeCommand(t, "run", writeConfig(t, server.URL), "--no-html", "--quiet", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestRunCommand_MetricsAddrInUse(t *testing.T) {
	busy := newServer(http.StatusOK)
	defer busy.Close()

	addr := strings.TrimPrefix(busy.URL, "http://")
	_, _, err := executeCommand(t, "run", writeConfig(t, busy.URL), "--no-html", "--quiet", "--metrics-addr", addr)
	require.Error(t, err)
}
