package diffgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/sokinpui/shopdiff.go/internal/fs"
)

const contextLines = 3

// Generate writes a git-style unified diff of every section document that
// differs between baseDir (previous versions) and repoDir (current
// versions). Headers name files as `<prefix>/<Section>.json` so the output
// reads like `git diff` run in the workspace. It returns the number of
// changed sections.
func Generate(w io.Writer, baseDir, repoDir, prefix string) (int, error) {
	sections, err := sectionsIn(baseDir, repoDir)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, section := range sections {
		before, err := readOptional(filepath.Join(baseDir, section+".json"))
		if err != nil {
			return changed, err
		}
		after, err := readOptional(filepath.Join(repoDir, section+".json"))
		if err != nil {
			return changed, err
		}
		if bytes.Equal(before, after) {
			continue
		}

		name := path.Join(prefix, section+".json")
		if _, err := fmt.Fprintf(w, "diff --git a/%s b/%s\n", name, name); err != nil {
			return changed, err
		}
		ud := difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(before)),
			B:        difflib.SplitLines(string(after)),
			FromFile: "a/" + name,
			ToFile:   "b/" + name,
			Context:  contextLines,
		}
		if err := difflib.WriteUnifiedDiff(w, ud); err != nil {
			return changed, fmt.Errorf("failed to diff %s: %w", section, err)
		}
		changed++
	}
	return changed, nil
}

func sectionsIn(dirs ...string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		files, err := fs.ListJSON(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			seen[fs.SectionName(f)] = struct{}{}
		}
	}
	sections := make([]string, 0, len(seen))
	for s := range seen {
		sections = append(sections, s)
	}
	sort.Strings(sections)
	return sections, nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}
