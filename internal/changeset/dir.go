package changeset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sokinpui/shopdiff.go/internal/fs"
)

// DirSource loads `<Section>.json` documents from a directory. When an
// explicit file list is given, only the listed sections are loadable.
type DirSource struct {
	dir   string
	files map[string]string
}

// NewDirSource creates a DirSource over dir. files optionally pins sections
// to specific documents, keyed by the file's base name.
func NewDirSource(dir string, files []string) *DirSource {
	s := &DirSource{dir: dir}
	if len(files) > 0 {
		s.files = make(map[string]string, len(files))
		for _, f := range files {
			s.files[fs.SectionName(f)] = f
		}
	}
	return s
}

// Path returns the document path for section, or "" when the section is not
// part of an explicit file list.
func (s *DirSource) Path(section string) string {
	if s.files != nil {
		return s.files[section]
	}
	return filepath.Join(s.dir, section+".json")
}

func (s *DirSource) Load(section string) ([]json.RawMessage, error) {
	path := s.Path(section)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s is not a JSON array: %w", path, err)
	}
	return records, nil
}

// DirSink writes each section to `<dir>/<Section>.json`, replacing any
// previous file.
type DirSink struct {
	dir string
}

// NewDirSink creates a DirSink writing into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Write(section string, records []json.RawMessage) (string, error) {
	data, err := Encode(records)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, section+".json")
	if err := fs.WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}
