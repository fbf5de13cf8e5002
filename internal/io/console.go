// Package io reads case lists and writes run results to files and the console.
package io

import (
	"fmt"
	goio "io"
	"time"

	"github.com/fatih/color"

	"github.com/williampepple1/bindup-e2e/pkg/models"
)

// Console prints human-friendly run output
type Console struct {
	writer goio.Writer

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	blue   *color.Color
	gray   *color.Color
	bold   *color.Color
}

// NewConsole creates a console printer writing to w
func NewConsole(w goio.Writer) *Console {
	return &Console{
		writer: w,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		blue:   color.New(color.FgBlue),
		gray:   color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
	}
}

// PrintPhase prints a phase separator
func (c *Console) PrintPhase(phase string) {
	c.blue.Fprintf(c.writer, "\n▸ %s\n", phase)
}

// PrintCase prints one line per case plus its failure details
func (c *Console) PrintCase(r models.CaseResult) {
	if r.Passed {
		c.green.Fprintf(c.writer, "PASS")
	} else {
		c.red.Fprintf(c.writer, "FAIL")
	}
	fmt.Fprintf(c.writer, " %s ", r.Name)
	c.gray.Fprintf(c.writer, "(%s, %s)\n", formatDuration(r.Duration), r.Driver)

	if r.Err != "" {
		c.red.Fprintf(c.writer, "  error: %s\n", r.Err)
	}
	if r.Screenshot != "" {
		fmt.Fprintf(c.writer, "  screenshot: %s\n", r.Screenshot)
	}
}

// PrintMetrics prints the operation metrics of a case
func (c *Console) PrintMetrics(r models.CaseResult) {
	m := r.Metrics
	if m.TotalOperations == 0 {
		return
	}
	fmt.Fprintf(c.writer, "  operations: %d total, %d succeeded, %d failed, %d running, %.1f%% success, avg %s\n",
		m.TotalOperations, m.Succeeded, m.Failed, m.Running, m.SuccessRate*100, formatDuration(m.AverageDuration))
	for _, op := range m.SlowOperations {
		d, _ := op.Duration()
		c.yellow.Fprintf(c.writer, "  slow: %s took %s (threshold %s)\n", op.Operation, formatDuration(d), formatDuration(m.SlowThreshold))
	}
}

// PrintSummary prints every case followed by the pass rate verdict
func (c *Console) PrintSummary(s models.RunSummary) {
	c.PrintPhase("Results")
	for _, r := range s.Results {
		c.PrintCase(r)
		c.PrintMetrics(r)
	}

	c.PrintPhase("Summary")
	fmt.Fprintf(c.writer, "Total: %d, ", s.Total)
	c.green.Fprintf(c.writer, "Passed: %d", s.Passed)
	fmt.Fprintf(c.writer, ", ")
	c.red.Fprintf(c.writer, "Failed: %d", s.Failed)
	fmt.Fprintf(c.writer, " in %s\n", formatDuration(s.Duration))

	verdict := c.green
	if s.ExitCode() != 0 {
		verdict = c.red
	}
	c.bold.Fprintf(c.writer, "Pass rate: ")
	verdict.Fprintf(c.writer, "%.1f%% (threshold %.1f%%)\n", s.PassRate*100, s.Threshold*100)
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
