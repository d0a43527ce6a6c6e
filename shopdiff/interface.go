package shopdiff

import (
	"encoding/json"
	"strings"

	"github.com/sokinpui/shopdiff.go/internal/changeset"
	"github.com/sokinpui/shopdiff.go/internal/diffids"
	"github.com/sokinpui/shopdiff.go/internal/manifest"
	"github.com/sokinpui/shopdiff.go/model"
)

// Mode selects how hunk lines are matched when extracting IDs.
type Mode = diffids.Mode

const (
	// Buffered matches each hunk as one space-joined string.
	Buffered = diffids.Buffered
	// Streaming matches each hunk line on its own.
	Streaming = diffids.Streaming
)

// Config for using shopdiff as a library.
type Config struct {
	// Directory of the section files as named in the diff headers.
	// Defaults to "repo-shopify-data".
	RepoDir string
	Mode    Mode
	// Record field compared against the changed IDs. Defaults to "ID".
	IDField string
}

// Extract returns the changed record IDs per section found in diff.
func Extract(diff string, config Config) model.ChangedIDs {
	return diffids.ExtractString(diff, diffids.Options{RepoDir: config.RepoDir, Mode: config.Mode})
}

// FormatManifest renders changed as `<Section> -> id1, id2` lines.
func FormatManifest(changed model.ChangedIDs) string {
	return manifest.Format(changed)
}

// ParseManifest reads back the output of FormatManifest.
func ParseManifest(text string) (model.ChangedIDs, error) {
	return manifest.Read(strings.NewReader(text))
}

// Materialize filters the records returned by load down to the changed
// IDs, without writing anything. Sections with no matches are absent.
func Materialize(changed model.ChangedIDs, load func(section string) ([]json.RawMessage, error), config Config) (map[string][]json.RawMessage, error) {
	m := changeset.New(changeset.LoaderFunc(load), nil, config.IDField)
	result, err := m.Materialize(changed)
	if err != nil {
		return nil, err
	}
	return result.Map(), nil
}
