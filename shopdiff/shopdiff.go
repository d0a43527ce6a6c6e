package shopdiff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokinpui/shopdiff.go/cli"
	"github.com/sokinpui/shopdiff.go/internal/changeset"
	"github.com/sokinpui/shopdiff.go/internal/config"
	"github.com/sokinpui/shopdiff.go/internal/diffgen"
	"github.com/sokinpui/shopdiff.go/internal/diffids"
	"github.com/sokinpui/shopdiff.go/internal/fs"
	"github.com/sokinpui/shopdiff.go/internal/gitops"
	"github.com/sokinpui/shopdiff.go/internal/manifest"
	"github.com/sokinpui/shopdiff.go/internal/matrixify"
	"github.com/sokinpui/shopdiff.go/internal/source"
	"github.com/sokinpui/shopdiff.go/internal/state"
	"github.com/sokinpui/shopdiff.go/internal/ui"
	"github.com/sokinpui/shopdiff.go/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	settings         config.Settings
	pathResolver     *fs.PathResolver
	sourceProvider   *source.SourceProvider
	git              *gitops.Git
	publisher        gitops.Publisher
	runs             *state.Manager
	progressCallback ProgressUpdate
	now              func() time.Time
	runID            string
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	pathResolver, err := fs.NewPathResolver(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	configFile, required := cfg.ConfigFile, true
	if configFile == "" {
		configFile, required = config.DefaultFile, false
	}
	settings, err := config.Load(pathResolver.Resolve(configFile), required)
	if err != nil {
		return nil, err
	}
	if cfg.Mode != "" {
		mode, err := diffids.ParseMode(cfg.Mode)
		if err != nil {
			return nil, err
		}
		settings.ExtractMode = mode
	}
	resolved := settings.Resolve(pathResolver)

	kind, err := source.ParseKind(cfg.Source)
	if err != nil {
		return nil, err
	}

	runs, err := state.New(pathResolver.Workspace())
	if err != nil {
		return nil, fmt.Errorf("failed to load run log: %w", err)
	}

	git := gitops.New(pathResolver.Workspace(), resolved.Git)
	return &App{
		cfg:            cfg,
		settings:       resolved,
		pathResolver:   pathResolver,
		sourceProvider: source.New(kind, resolved.DiffFile),
		git:            git,
		publisher:      git,
		runs:           runs,
		now:            time.Now,
		runID:          uuid.NewString(),
	}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// SetPublisher replaces the git publisher.
func (a *App) SetPublisher(p gitops.Publisher) {
	a.publisher = p
}

// Settings returns the resolved settings of the run.
func (a *App) Settings() config.Settings {
	return a.settings
}

// RunID returns the identifier stamped on this run's summary and commits.
func (a *App) RunID() string {
	return a.runID
}

// Execute runs the mode selected by the flags.
func (a *App) Execute() (model.Summary, error) {
	return a.ExecuteContext(context.Background())
}

// ExecuteContext is Execute with a context bounding git invocations.
func (a *App) ExecuteContext(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.History:
		return a.history(), nil
	case a.cfg.Import != "":
		summary, err = a.importWorkbook()
	case a.cfg.Export:
		summary, err = a.exportWorkbooks(ctx)
	case a.cfg.ChangesOnly:
		summary, err = a.materializeFromManifest(ctx)
	case a.cfg.IDsOnly:
		summary, err = a.extractOnly(ctx)
	default:
		summary, err = a.runPipeline(ctx)
	}
	summary.RunID = a.runID
	if err == nil {
		if recErr := a.recordRun(summary); recErr != nil {
			ui.Warning("Could not update the run log: %v", recErr)
		}
	}
	a.relativizeSummaryPaths(&summary)
	return summary, err
}

// runPipeline extracts changed IDs, writes the manifest and materializes
// the changed records.
func (a *App) runPipeline(ctx context.Context) (model.Summary, error) {
	changed, err := a.extract(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	summary := model.Summary{Changed: changed, Manifest: a.settings.ChangedIDsFile}

	result, err := a.materialize(changed)
	if err != nil {
		return summary, err
	}
	summary.Written = result.Paths()
	summary.Skipped = result.Skipped
	if changed.IsEmpty() {
		summary.Message = "No changed IDs found in the diff."
	}

	paths := append([]string{a.settings.ChangedIDsFile}, summary.Written...)
	summary.Published, err = a.publish(ctx, paths, "Update extracted changes")
	return summary, err
}

func (a *App) extractOnly(ctx context.Context) (model.Summary, error) {
	changed, err := a.extract(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	summary := model.Summary{Changed: changed, Manifest: a.settings.ChangedIDsFile}
	if changed.IsEmpty() {
		summary.Message = "No changed IDs found in the diff."
	}
	summary.Published, err = a.publish(ctx, []string{a.settings.ChangedIDsFile}, "Add extracted changed IDs")
	return summary, err
}

func (a *App) materializeFromManifest(ctx context.Context) (model.Summary, error) {
	changed, err := manifest.ReadFile(a.settings.ChangedIDsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ui.Warning("No changed IDs file found at %s. Skipping extraction.", a.settings.ChangedIDsFile)
			return model.Summary{Message: "No changed IDs file found. Nothing to do."}, nil
		}
		return model.Summary{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	ui.Info("Loaded changed IDs for %d section(s).", len(changed))

	result, err := a.materialize(changed)
	if err != nil {
		return model.Summary{}, err
	}
	summary := model.Summary{Changed: changed, Written: result.Paths(), Skipped: result.Skipped}
	if len(summary.Written) == 0 {
		summary.Message = "No relevant JSON changes extracted."
	}
	summary.Published, err = a.publish(ctx, summary.Written, "Update extracted JSON changes")
	return summary, err
}

// extract produces the diff if asked to, scans it and writes the manifest.
func (a *App) extract(ctx context.Context) (model.ChangedIDs, error) {
	s := a.settings
	if a.cfg.Capture || a.cfg.Baseline != "" {
		for _, dir := range []string{s.FinalOutputDir, s.GitDiffDir, s.IDOutputDir} {
			if err := fs.ResetDir(dir); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case a.cfg.Capture:
		paths := s.RepoFiles
		if len(paths) == 0 {
			paths = []string{s.RepoDir}
		}
		if err := a.git.Capture(ctx, s.DiffFile, paths); err != nil {
			return nil, err
		}
	case a.cfg.Baseline != "":
		if err := a.generateBaselineDiff(); err != nil {
			return nil, err
		}
	}

	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return nil, err
	}

	ui.Info("Extracting changed IDs (%s mode)...", s.ExtractMode)
	changed := diffids.ExtractString(content, diffids.Options{RepoDir: s.RepoPrefix, Mode: s.ExtractMode})
	for _, section := range changed {
		ui.Path("%s: %d ID(s)", section.Section, len(section.IDs))
	}

	if err := fs.WriteFile(s.ChangedIDsFile, []byte(manifest.Format(changed))); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	ui.Success("Extracted IDs written to %s", s.ChangedIDsFile)
	return changed, nil
}

func (a *App) generateBaselineDiff() error {
	base := a.pathResolver.Resolve(a.cfg.Baseline)
	if !fs.Exists(base) {
		return fmt.Errorf("%w: baseline directory %s", source.ErrInputNotFound, base)
	}
	var diff bytes.Buffer
	n, err := diffgen.Generate(&diff, base, a.settings.RepoDir, a.settings.RepoPrefix)
	if err != nil {
		return fmt.Errorf("failed to generate diff: %w", err)
	}
	if err := fs.WriteFile(a.settings.DiffFile, diff.Bytes()); err != nil {
		return err
	}
	ui.Success("Diff of %d changed section(s) saved to %s", n, a.settings.DiffFile)
	return nil
}

func (a *App) materialize(changed model.ChangedIDs) (changeset.Result, error) {
	s := a.settings
	if err := fs.EnsureDir(s.FinalOutputDir); err != nil {
		return changeset.Result{}, err
	}
	m := changeset.New(
		changeset.NewDirSource(s.RepoDir, s.RepoFiles),
		changeset.NewDirSink(s.FinalOutputDir),
		s.IDField,
	)
	if a.progressCallback != nil {
		a.progressCallback(0, len(changed))
		m.OnProgress = func(current, total int) {
			a.progressCallback(current, total)
		}
	}

	result, err := m.Materialize(changed)
	if err != nil {
		return result, err
	}
	for _, section := range result.Sections {
		ui.Success("Extracted %d block(s) for %s and saved to %s", len(section.Records), section.Name, section.Path)
		a.reportUnchanged(section.Path)
	}
	return result, nil
}

// reportUnchanged notes when path has the same content as in the last run
// that produced it.
func (a *App) reportUnchanged(path string) {
	ops := state.CreateOperations(a.pathResolver.Workspace(), "write", []string{path})
	entry, prev, ok := a.runs.Last(ops[0].Path)
	if ok && prev.ContentHash == ops[0].ContentHash {
		ui.Info("%s is unchanged since run %s", ops[0].Path, entry.RunID)
	}
}

func (a *App) recordRun(summary model.Summary) error {
	root := a.pathResolver.Workspace()
	var ops []state.Operation
	if summary.Manifest != "" {
		ops = append(ops, state.CreateOperations(root, "manifest", []string{summary.Manifest})...)
	}
	ops = append(ops, state.CreateOperations(root, "write", summary.Written)...)
	if len(ops) == 0 {
		return nil
	}
	return a.runs.Write(a.runID, ops)
}

// history lists the recorded runs, newest first.
func (a *App) history() model.Summary {
	entries := a.runs.History()
	if len(entries) == 0 {
		return model.Summary{Message: "No runs recorded."}
	}
	var b strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(&b, "%s  %s\n", time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339), e.RunID)
		for _, op := range e.Operations {
			fmt.Fprintf(&b, "  %-8s %s\n", op.Action, op.Path)
		}
	}
	return model.Summary{Message: strings.TrimRight(b.String(), "\n")}
}

func (a *App) exportWorkbooks(ctx context.Context) (model.Summary, error) {
	s := a.settings
	pairs := [][2]string{
		{s.RepoDir, s.MatrixifyExportDir},
		{s.FinalOutputDir, s.ExcelOutputDir},
	}
	var summary model.Summary
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		ui.Header("--- Exporting %s -> %s ---", p[0], p[1])
		out, err := matrixify.Export(p[0], p[1], a.now())
		if err != nil {
			return summary, err
		}
		if out != "" {
			summary.Written = append(summary.Written, out)
		}
	}
	if len(summary.Written) == 0 {
		summary.Message = "No JSON files to export."
	}
	var err error
	summary.Published, err = a.publish(ctx, summary.Written, "Add Matrixify export")
	return summary, err
}

func (a *App) importWorkbook() (model.Summary, error) {
	workbook, err := matrixify.FindWorkbook(a.pathResolver.Resolve(a.cfg.Import))
	if err != nil {
		return model.Summary{}, fmt.Errorf("%w: %v", source.ErrInputNotFound, err)
	}
	outDir := a.pathResolver.Resolve(a.cfg.ImportDir)
	ui.Header("--- Importing %s ---", workbook)
	written, err := matrixify.Import(workbook, outDir, matrixify.DefaultExclude)
	if err != nil {
		return model.Summary{Written: written}, err
	}
	return model.Summary{
		Written: written,
		Message: fmt.Sprintf("Converted %s.", filepath.Base(workbook)),
	}, nil
}

func (a *App) publish(ctx context.Context, paths []string, message string) (bool, error) {
	if !a.cfg.Publish {
		return false, nil
	}
	ui.Header("--- Publishing ---")
	committed, err := a.publisher.Publish(ctx, paths, fmt.Sprintf("%s\n\nRun-Id: %s", message, a.runID))
	if err != nil {
		return false, fmt.Errorf("failed to publish: %w", err)
	}
	return committed, nil
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the workspace for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	if summary.Manifest != "" {
		summary.Manifest = a.pathResolver.Relative(summary.Manifest)
	}
	for i, p := range summary.Written {
		summary.Written[i] = a.pathResolver.Relative(p)
	}
}
