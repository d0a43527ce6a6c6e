package fs

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sokinpui/shopdiff.go/internal/ui"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// PathResolver turns configured paths into absolute workspace paths.
type PathResolver struct {
	workspace string
}

// NewPathResolver creates a PathResolver rooted at workspace. An empty
// workspace falls back to $GITHUB_WORKSPACE and then the working directory.
func NewPathResolver(workspace string) (*PathResolver, error) {
	if workspace == "" {
		workspace = os.Getenv("GITHUB_WORKSPACE")
	}
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		workspace = wd
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace %q: %w", workspace, err)
	}
	return &PathResolver{workspace: abs}, nil
}

// Workspace returns the absolute workspace root.
func (r *PathResolver) Workspace() string {
	return r.workspace
}

// Resolve returns path unchanged when absolute, otherwise joined onto the
// workspace.
func (r *PathResolver) Resolve(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.workspace, path)
}

// Relative returns path relative to the workspace for display, or path
// itself when that is not possible.
func (r *PathResolver) Relative(path string) string {
	rel, err := filepath.Rel(r.workspace, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResetDir removes dir with its contents and recreates it empty.
func ResetDir(dir string) error {
	if Exists(dir) {
		ui.Info("Clearing directory: %s", dir)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// EnsureDir creates dir and its parents if missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// ListJSON returns the JSON files directly inside dir, sorted by name.
// A missing dir yields no files.
func ListJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// SectionName returns the section a JSON file belongs to: its base name
// without the extension.
func SectionName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// WriteFileAtomic replaces dest with the bytes of r via a temp file in the
// same directory and a rename, so readers never see a partial file.
func WriteFileAtomic(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, filePerm)

	bw := bufio.NewWriter(tmp)
	if _, err := io.Copy(bw, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// WriteFile is WriteFileAtomic for an in-memory payload.
func WriteFile(dest string, data []byte) error {
	return WriteFileAtomic(dest, bytes.NewReader(data))
}

// FileSHA256 returns the hex SHA-256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
