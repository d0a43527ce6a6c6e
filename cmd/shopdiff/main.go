package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/sokinpui/shopdiff.go/cli"
	"github.com/sokinpui/shopdiff.go/internal/tui"
	"github.com/sokinpui/shopdiff.go/internal/ui"
	"github.com/sokinpui/shopdiff.go/shopdiff"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app, err := shopdiff.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// CI runners and pipes get plain log output instead of the TUI.
	if cfg.NoAnimation || !isTerminal(os.Stdout) {
		os.Exit(runPlain(app))
	}

	// Log lines would tear the TUI frame.
	ui.SetOutput(io.Discard)
	model := tui.New(app)
	p := tea.NewProgram(model)
	model.SetProgram(p)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	if model.Err() != nil {
		os.Exit(1)
	}
}

func runPlain(app *shopdiff.App) int {
	bar := ui.NewProgressBar(0, "Materializing")
	app.SetProgressCallback(bar.Set)

	summary, err := app.Execute()
	bar.Finish()
	if err != nil {
		var detailed *shopdiff.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		ui.Error("Error: %v", err)
		return 1
	}
	ui.PrintSummary(summary)
	return 0
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
