package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/steadyrate/internal/performance/engine"
	"github.com/wesleyorama2/steadyrate/internal/performance/report"
)

func TestFormatProgress(t *testing.T) {
	line := FormatProgress(engine.Progress{
		Elapsed:   12*time.Second + 400*time.Millisecond,
		Fraction:  0.42,
		Issued:    120,
		Planned:   300,
		InFlight:  3,
		ActiveVUs: 5,
		Requests:  240,
		Failed:    2,
	})

	assert.Equal(t, "[ 42%] 12s elapsed, ticks 120/300, in-flight 3, VUs 5, requests 240 (2 failed)", line)
}

func TestConsole_ProgressOnNonTerminal(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(ConsoleConfig{Out: &out, Err: &errOut})

	c.PrintProgress(engine.Progress{Planned: 10, Issued: 1})
	c.PrintProgress(engine.Progress{Planned: 10, Issued: 2})

	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	assert.Len(t, lines, 2)
	assert.NotContains(t, errOut.String(), "\033[")
	assert.Empty(t, out.String())
}

func TestConsole_Quiet(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(ConsoleConfig{Out: &out, Err: &errOut, Quiet: true})

	c.PrintHeader("run", 10, time.Minute, 2)
	c.PrintProgress(engine.Progress{Planned: 10})
	c.PrintFileWritten("summary.html")
	c.PrintSummary("summary text\n")

	assert.Empty(t, errOut.String())
	assert.Equal(t, "summary text\n", out.String(), "the summary is printed even when quiet")
}

func TestConsole_SummaryColors(t *testing.T) {
	text := "  " + report.MarkOK + " checks\n  " + report.MarkKO + " http_req_failed\n  result: FAILED\n"

	var plain bytes.Buffer
	NewConsole(ConsoleConfig{Out: &plain, Err: &bytes.Buffer{}, NoColor: true}).PrintSummary(text)
	assert.Equal(t, text, plain.String())

	var colored bytes.Buffer
	NewConsole(ConsoleConfig{Out: &colored, Err: &bytes.Buffer{}, ForceColors: true}).PrintSummary(text)
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Contains(t, colored.String(), "FAILED")
	assert.NotEqual(t, text, colored.String())
}

func TestConsole_NoColorWins(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(ConsoleConfig{Out: &out, Err: &bytes.Buffer{}, ForceColors: true, NoColor: true})
	c.PrintSummary(report.MarkOK + "\n")

	assert.Equal(t, report.MarkOK+"\n", out.String())
}

func TestWriteHTML(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	end := time.Date(2024, 5, 1, 10, 20, 30, 123000000, time.UTC)
	r := &engine.RunReport{StartTime: end.Add(-time.Minute), EndTime: end}

	// stamped when the summary is produced, at the end of the run
	path, err := WriteHTML(dir, r, "<html></html>")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "summary-2024-05-01T10-20-30-123Z.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}
