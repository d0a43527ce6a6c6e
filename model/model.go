package model

// SectionIDs holds the changed record IDs of one section, sorted ascending.
type SectionIDs struct {
	Section string
	IDs     []string
}

// ChangedIDs is the extractor output. Sections keep the order in which they
// first appeared in the diff; sections without IDs are never present.
type ChangedIDs []SectionIDs

// Lookup returns the IDs recorded for section.
func (c ChangedIDs) Lookup(section string) ([]string, bool) {
	for _, s := range c {
		if s.Section == section {
			return s.IDs, true
		}
	}
	return nil, false
}

// Sections returns the section names in order.
func (c ChangedIDs) Sections() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Section
	}
	return names
}

// Map returns the IDs keyed by section name.
func (c ChangedIDs) Map() map[string][]string {
	m := make(map[string][]string, len(c))
	for _, s := range c {
		m[s.Section] = s.IDs
	}
	return m
}

// Count returns the total number of IDs across all sections.
func (c ChangedIDs) Count() int {
	n := 0
	for _, s := range c {
		n += len(s.IDs)
	}
	return n
}

// IsEmpty reports whether no section has changes.
func (c ChangedIDs) IsEmpty() bool {
	return len(c) == 0
}

// Summary holds the results of a run for display.
type Summary struct {
	RunID     string
	Changed   ChangedIDs
	Manifest  string
	Written   []string
	Skipped   []string
	Published bool
	Message   string
}
