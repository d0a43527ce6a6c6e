package changeset

import (
	"encoding/json"
	"fmt"

	"github.com/sokinpui/shopdiff.go/model"
)

// DefaultIDField is the record field holding the record's identity.
const DefaultIDField = "ID"

// SourceLoader returns the full record sequence of a section. A section
// with no source yields no records and no error.
type SourceLoader interface {
	Load(section string) ([]json.RawMessage, error)
}

// LoaderFunc adapts a function to SourceLoader.
type LoaderFunc func(section string) ([]json.RawMessage, error)

func (f LoaderFunc) Load(section string) ([]json.RawMessage, error) {
	return f(section)
}

// Sink persists the filtered records of a section and returns where they
// were written.
type Sink interface {
	Write(section string, records []json.RawMessage) (string, error)
}

// Section is the materialized change set of one section.
type Section struct {
	Name    string
	Records []json.RawMessage
	// Path is where the sink wrote the records; empty without a sink.
	Path string
}

// Result is the outcome of a Materialize call.
type Result struct {
	Sections []Section
	// Skipped lists sections that had IDs but no matching records.
	Skipped []string
}

// Map returns the records keyed by section name.
func (r Result) Map() map[string][]json.RawMessage {
	m := make(map[string][]json.RawMessage, len(r.Sections))
	for _, s := range r.Sections {
		m[s.Name] = s.Records
	}
	return m
}

// Paths returns the written file paths in section order.
func (r Result) Paths() []string {
	var paths []string
	for _, s := range r.Sections {
		if s.Path != "" {
			paths = append(paths, s.Path)
		}
	}
	return paths
}

// Materializer re-reads the source documents and keeps only changed records.
type Materializer struct {
	source  SourceLoader
	sink    Sink
	idField string

	// OnProgress, when set, is called after each section is handled.
	OnProgress func(current, total int)
}

// New creates a Materializer. sink may be nil, in which case nothing is
// persisted.
func New(source SourceLoader, sink Sink, idField string) *Materializer {
	if idField == "" {
		idField = DefaultIDField
	}
	return &Materializer{source: source, sink: sink, idField: idField}
}

// Materialize filters each section's source records down to the changed IDs.
// Sections without a single match are left out of the result and the sink.
func (m *Materializer) Materialize(changed model.ChangedIDs) (Result, error) {
	var result Result
	total := len(changed)
	for i, entry := range changed {
		records, err := m.source.Load(entry.Section)
		if err != nil {
			return result, fmt.Errorf("failed to load section %s: %w", entry.Section, err)
		}

		matched := Filter(records, entry.IDs, m.idField)
		if len(matched) == 0 {
			result.Skipped = append(result.Skipped, entry.Section)
			m.progress(i+1, total)
			continue
		}

		section := Section{Name: entry.Section, Records: matched}
		if m.sink != nil {
			path, err := m.sink.Write(entry.Section, matched)
			if err != nil {
				return result, fmt.Errorf("failed to write section %s: %w", entry.Section, err)
			}
			section.Path = path
		}
		result.Sections = append(result.Sections, section)
		m.progress(i+1, total)
	}
	return result, nil
}

func (m *Materializer) progress(current, total int) {
	if m.OnProgress != nil {
		m.OnProgress(current, total)
	}
}

// Filter returns the records whose ID field equals one of ids, in source
// order. Comparison is on the exact string form of the ID.
func Filter(records []json.RawMessage, ids []string, idField string) []json.RawMessage {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var matched []json.RawMessage
	for _, record := range records {
		id, ok := RecordID(record, idField)
		if !ok {
			continue
		}
		if _, ok := wanted[id]; ok {
			matched = append(matched, record)
		}
	}
	return matched
}
