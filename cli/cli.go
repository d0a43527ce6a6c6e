package cli

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	ConfigFile  string
	Workspace   string
	Mode        string
	Source      string
	Baseline    string
	Capture     bool
	IDsOnly     bool
	ChangesOnly bool
	Export      bool
	Import      string
	ImportDir   string
	Publish     bool
	History     bool
	NoAnimation bool
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	return Parse(os.Args[1:])
}

// Parse parses args into a Config.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	flags := pflag.NewFlagSet("shopdiff", pflag.ContinueOnError)

	flags.StringVarP(&cfg.ConfigFile, "config", "c", "", "Properties file with directory settings (default: config.properties in the workspace, optional).")
	flags.StringVarP(&cfg.Workspace, "workspace", "w", "", "Workspace root for relative paths (default: $GITHUB_WORKSPACE or the current directory).")
	flags.StringVarP(&cfg.Mode, "mode", "m", "", "ID extraction mode: 'buffered' (whole hunk) or 'streaming' (line by line). Overrides EXTRACT_MODE.")
	flags.StringVarP(&cfg.Source, "source", "s", "file", "Where to read the diff from: 'file', 'stdin' or 'clipboard'.")
	flags.BoolVar(&cfg.Capture, "capture", false, "Reset the output directories and run 'git diff' on the section files before extracting.")
	flags.StringVarP(&cfg.Baseline, "baseline", "B", "", "Build the diff by comparing this directory of previous section files with the repo directory.")
	flags.BoolVarP(&cfg.IDsOnly, "ids-only", "i", false, "Only extract changed IDs and write the manifest.")
	flags.BoolVarP(&cfg.ChangesOnly, "changes-only", "o", false, "Only materialize changed records from an existing manifest.")
	flags.BoolVarP(&cfg.Export, "export", "x", false, "Convert the repo and change-only JSON directories to Matrixify Excel workbooks.")
	flags.StringVar(&cfg.Import, "import", "", "Convert a Matrixify workbook (or the single .xlsx in a directory) to JSON files.")
	flags.StringVar(&cfg.ImportDir, "import-dir", "output_json", "Output directory for --import.")
	flags.BoolVarP(&cfg.Publish, "publish", "p", false, "Commit and push the produced files.")
	flags.BoolVar(&cfg.History, "history", false, "List the files recorded by previous runs and exit.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the spinner and print a plain summary.")

	flags.Usage = func() {
		fmt.Println("Usage: shopdiff [flags]")
		fmt.Println("\nExtract the Shopify records changed in a git diff and write them as per-section JSON files.")
		fmt.Println("\nExample: shopdiff --capture --publish")
		fmt.Println("\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Validate mutually exclusive flags
	if cfg.IDsOnly && cfg.ChangesOnly {
		return nil, fmt.Errorf("error: --ids-only and --changes-only are mutually exclusive")
	}
	if (cfg.Export || cfg.Import != "") && (cfg.IDsOnly || cfg.ChangesOnly) {
		return nil, fmt.Errorf("error: --export/--import cannot be combined with --ids-only or --changes-only")
	}
	if cfg.Export && cfg.Import != "" {
		return nil, fmt.Errorf("error: --export and --import are mutually exclusive")
	}
	if cfg.Capture && cfg.Baseline != "" {
		return nil, fmt.Errorf("error: --capture and --baseline are mutually exclusive")
	}
	if cfg.ChangesOnly && (cfg.Capture || cfg.Baseline != "") {
		return nil, fmt.Errorf("error: --changes-only reads an existing manifest and cannot capture a diff")
	}

	if cfg.History && (cfg.IDsOnly || cfg.ChangesOnly || cfg.Export || cfg.Import != "" || cfg.Capture || cfg.Baseline != "" || cfg.Publish) {
		return nil, fmt.Errorf("error: --history cannot be combined with other modes")
	}

	return cfg, nil
}
