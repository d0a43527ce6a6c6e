package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/sokinpui/shopdiff.go/internal/diffids"
	"github.com/sokinpui/shopdiff.go/internal/fs"
)

// DefaultFile is the properties file looked up in the workspace root.
const DefaultFile = "config.properties"

// ErrConfigurationMissing is returned when a required setting is absent or
// an explicitly requested config file does not exist.
var ErrConfigurationMissing = errors.New("configuration missing")

// Settings holds every path and option of a run. Paths may be relative to
// the workspace until Resolve is called.
type Settings struct {
	RepoDir            string   `key:"REPO_DIR" validate:"required"`
	RepoFiles          []string `key:"REPO_FILES"`
	DiffFile           string   `key:"DIFF_FILE" validate:"required"`
	GitDiffDir         string   `key:"GIT_DIFF_DIR" validate:"required"`
	IDOutputDir        string   `key:"ID_OUTPUT_DIR" validate:"required"`
	ChangedIDsFile     string   `key:"CHANGED_IDS_FILE" validate:"required"`
	FinalOutputDir     string   `key:"FINAL_OUTPUT_DIR" validate:"required"`
	ExcelOutputDir     string   `key:"EXCEL_OUTPUT_DIR"`
	MatrixifyExportDir string   `key:"MATRIXIFY_EXPORT_DIR"`
	IDField            string   `key:"ID_FIELD" validate:"required"`
	ExtractMode        diffids.Mode
	// RepoPrefix is RepoDir as it appears in diff headers, relative to the
	// workspace with forward slashes. Set by Resolve.
	RepoPrefix string

	Git Git `validate:"-"`
}

// Git holds the settings of the publish step. It is only validated when
// publishing.
type Git struct {
	Remote    string `key:"GIT_REMOTE" validate:"required"`
	Branch    string `key:"GIT_BRANCH" validate:"required"`
	UserName  string `key:"GIT_USER_NAME" validate:"required"`
	UserEmail string `key:"GIT_USER_EMAIL" validate:"required,email"`
	ForcePush bool
}

// Defaults returns the layout used by the CI workflow.
func Defaults() Settings {
	return Settings{
		RepoDir:            diffids.DefaultRepoDir,
		DiffFile:           "changes/git-diff/changes.diff",
		GitDiffDir:         "changes/git-diff",
		IDOutputDir:        "changes/id-output",
		ChangedIDsFile:     "changes/id-output/changed_ids.txt",
		FinalOutputDir:     "changes/change-only-jsons",
		ExcelOutputDir:     "changes/change-only-excel",
		MatrixifyExportDir: "final-matrixify-export",
		IDField:            "ID",
		ExtractMode:        diffids.Buffered,
		Git: Git{
			Remote:    "origin",
			Branch:    "int",
			UserName:  "github-actions",
			UserEmail: "github-actions@github.com",
		},
	}
}

// Load reads the properties file at path over the defaults. When required
// is false a missing file simply means "defaults only". Environment
// variables named like a key override the file.
func Load(path string, required bool) (*Settings, error) {
	props := map[string]string{}
	if path != "" {
		if fs.Exists(path) {
			read, err := godotenv.Read(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			props = read
		} else if required {
			return nil, fmt.Errorf("%w: config file %s not found", ErrConfigurationMissing, path)
		}
	}
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok {
			props[key] = v
		}
	}

	s := Defaults()
	if err := s.apply(props); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

var keys = []string{
	"REPO_DIR", "REPO_FILES", "DIFF_FILE", "GIT_DIFF_DIR", "ID_OUTPUT_DIR",
	"CHANGED_IDS_FILE", "FINAL_OUTPUT_DIR", "EXCEL_OUTPUT_DIR",
	"MATRIXIFY_EXPORT_DIR", "ID_FIELD", "EXTRACT_MODE", "GIT_REMOTE",
	"GIT_BRANCH", "GIT_USER_NAME", "GIT_USER_EMAIL", "GIT_FORCE_PUSH",
}

func (s *Settings) apply(props map[string]string) error {
	strs := map[string]*string{
		"REPO_DIR":             &s.RepoDir,
		"DIFF_FILE":            &s.DiffFile,
		"GIT_DIFF_DIR":         &s.GitDiffDir,
		"ID_OUTPUT_DIR":        &s.IDOutputDir,
		"CHANGED_IDS_FILE":     &s.ChangedIDsFile,
		"FINAL_OUTPUT_DIR":     &s.FinalOutputDir,
		"EXCEL_OUTPUT_DIR":     &s.ExcelOutputDir,
		"MATRIXIFY_EXPORT_DIR": &s.MatrixifyExportDir,
		"ID_FIELD":             &s.IDField,
		"GIT_REMOTE":           &s.Git.Remote,
		"GIT_BRANCH":           &s.Git.Branch,
		"GIT_USER_NAME":        &s.Git.UserName,
		"GIT_USER_EMAIL":       &s.Git.UserEmail,
	}
	for key, dst := range strs {
		if v, ok := props[key]; ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := props["REPO_FILES"]; ok {
		s.RepoFiles = splitList(v)
	}
	if v, ok := props["EXTRACT_MODE"]; ok {
		mode, err := diffids.ParseMode(v)
		if err != nil {
			return fmt.Errorf("invalid EXTRACT_MODE: %w", err)
		}
		s.ExtractMode = mode
	}
	if v, ok := props["GIT_FORCE_PUSH"]; ok && strings.TrimSpace(v) != "" {
		force, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid GIT_FORCE_PUSH %q: %w", v, err)
		}
		s.Git.ForcePush = force
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate reports every required setting that is empty.
func (s *Settings) Validate() error {
	return validate(s)
}

// Validate reports every required git setting that is empty or malformed.
func (g *Git) Validate() error {
	return validate(g)
}

func validate(v interface{}) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if key := fld.Tag.Get("key"); key != "" {
			return key
		}
		return fld.Name
	})
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	problems := make([]string, 0, len(errs))
	for _, e := range errs {
		problems = append(problems, fmt.Sprintf("%s (failed on '%s')", e.Field(), e.Tag()))
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(problems, ", "))
}

// Resolve returns a copy with every path made absolute against r.
func (s Settings) Resolve(r *fs.PathResolver) Settings {
	s.RepoDir = r.Resolve(s.RepoDir)
	s.RepoPrefix = filepath.ToSlash(r.Relative(s.RepoDir))
	s.DiffFile = r.Resolve(s.DiffFile)
	s.GitDiffDir = r.Resolve(s.GitDiffDir)
	s.IDOutputDir = r.Resolve(s.IDOutputDir)
	s.ChangedIDsFile = r.Resolve(s.ChangedIDsFile)
	s.FinalOutputDir = r.Resolve(s.FinalOutputDir)
	s.ExcelOutputDir = r.Resolve(s.ExcelOutputDir)
	s.MatrixifyExportDir = r.Resolve(s.MatrixifyExportDir)
	files := make([]string, len(s.RepoFiles))
	for i, f := range s.RepoFiles {
		files[i] = r.Resolve(f)
	}
	s.RepoFiles = files
	return s
}
