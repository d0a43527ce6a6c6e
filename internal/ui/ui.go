package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sokinpui/shopdiff.go/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

var out io.Writer = os.Stderr

// SetOutput redirects all log output. Pass io.Discard to silence it.
func SetOutput(w io.Writer) {
	out = w
}

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(out, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(out, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(out, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(out, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(out, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(out, "  "+format+"\n", a...)
}

// --- Summaries ---

// PrintSummary writes a plain-text run summary to stdout.
func PrintSummary(summary model.Summary) {
	Header("\n--- Run Summary ---")
	if summary.RunID != "" {
		Info("Run: %s", summary.RunID)
	}
	if summary.Message != "" {
		Info("%s", summary.Message)
	}

	if len(summary.Changed) > 0 {
		Success("Changed IDs in %d section(s):", len(summary.Changed))
		for _, s := range summary.Changed {
			fmt.Printf("  - %s: %d\n", s.Section, len(s.IDs))
		}
	}
	if summary.Manifest != "" {
		Success("Manifest: %s", summary.Manifest)
	}
	if len(summary.Written) > 0 {
		Success("Wrote %d file(s):", len(summary.Written))
		for _, f := range summary.Written {
			fmt.Printf("  - %s\n", f)
		}
	}
	if len(summary.Skipped) > 0 {
		Warning("Skipped %d section(s) with no matching records:", len(summary.Skipped))
		for _, s := range summary.Skipped {
			fmt.Printf("  - %s\n", s)
		}
	}
	if summary.Published {
		Success("Changes pushed.")
	}
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, prefix: prefix}
}

// Set moves the bar to current out of total.
func (p *ProgressBar) Set(current, total int) {
	p.current = current
	p.total = total
	p.draw()
}

func (p *ProgressBar) Finish() {
	if p.total > 0 {
		fmt.Fprintln(out)
	}
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(out, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
