// Package output writes run progress and summaries to the console and
// report files to disk.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/steadyrate/internal/performance/engine"
	"github.com/wesleyorama2/steadyrate/internal/performance/report"
)

// ANSI control for rewriting the progress line.
const clearLine = "\r\033[2K"

// Console writes the text summary to Out and progress to Err.
type Console struct {
	out    io.Writer
	err    io.Writer
	colors *ColorScheme
	quiet  bool

	// progress rewrites one line in place on a terminal
	rewrite bool

	mu           sync.Mutex
	progressOpen bool
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Out     io.Writer
	Err     io.Writer
	NoColor bool
	Quiet   bool

	// ForceColors enables colors even when Out is not a terminal
	ForceColors bool
}

// NewConsole creates a console writer. Colors are used when Out is a
// terminal that supports them, unless NoColor is set.
func NewConsole(config ConsoleConfig) *Console {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Err == nil {
		config.Err = os.Stderr
	}

	useColors := config.ForceColors || (isTerminal(config.Out) && supportsColors())
	if config.NoColor {
		useColors = false
	}

	colors := NoColorScheme()
	if useColors {
		colors = DefaultColorScheme()
	}

	return &Console{
		out:     config.Out,
		err:     config.Err,
		colors:  colors,
		quiet:   config.Quiet,
		rewrite: isTerminal(config.Err),
	}
}

// PrintHeader announces the run.
func (c *Console) PrintHeader(name string, rps float64, duration time.Duration, endpoints int) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.err, "%s %s\n",
		c.colors.Title.Sprint(name),
		c.colors.Dim.Sprintf("%.2f iterations/s for %s against %d endpoint(s)", rps, duration, endpoints))
}

// PrintProgress writes one progress line. On a terminal the line is
// rewritten in place.
func (c *Console) PrintProgress(p engine.Progress) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := FormatProgress(p)
	if c.rewrite {
		fmt.Fprint(c.err, clearLine+line)
		c.progressOpen = true
		return
	}
	fmt.Fprintln(c.err, line)
}

// FormatProgress renders p as a single line.
func FormatProgress(p engine.Progress) string {
	return fmt.Sprintf("[%3.0f%%] %s elapsed, ticks %d/%d, in-flight %d, VUs %d, requests %d (%d failed)",
		p.Fraction*100, p.Elapsed.Truncate(time.Second), p.Issued, p.Planned,
		p.InFlight, p.ActiveVUs, p.Requests, p.Failed)
}

// PrintSummary writes the text summary, colorizing pass and fail marks.
func (c *Console) PrintSummary(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endProgressLocked()
	fmt.Fprint(c.out, c.colorize(text))
}

// PrintFileWritten reports where the HTML report went.
func (c *Console) PrintFileWritten(path string) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.endProgressLocked()
	fmt.Fprintf(c.err, "%s %s\n", c.colors.Dim.Sprint("report written to"), c.colors.Highlight.Sprint(path))
}

func (c *Console) endProgressLocked() {
	if c.progressOpen {
		fmt.Fprintln(c.err)
		c.progressOpen = false
	}
}

func (c *Console) colorize(text string) string {
	return strings.NewReplacer(
		report.MarkOK, c.colors.Pass.Sprint(report.MarkOK),
		report.MarkKO, c.colors.Fail.Sprint(report.MarkKO),
		"result: PASSED", "result: "+c.colors.Pass.Sprint("PASSED"),
		"result: FAILED", "result: "+c.colors.Fail.Sprint("FAILED"),
	).Replace(text)
}

// WriteHTML writes html into dir under the summary file name for the
// run's end time, when the summary was produced, and returns the file path.
func WriteHTML(dir string, r *engine.RunReport, html string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, report.SummaryFileName(r.EndTime))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write HTML file: %w", err)
	}

	return path, nil
}
