package diffids

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/sokinpui/shopdiff.go/model"
)

// DefaultRepoDir is the directory holding one JSON file per section.
const DefaultRepoDir = "repo-shopify-data"

const (
	fileHeaderPrefix = "diff --git "
	hunkHeaderPrefix = "@@"
)

// idPattern captures both Shopify GIDs and bare numeric IDs.
var idPattern = regexp.MustCompile(`"ID":\s*"((?:gid://shopify/[\w/]+/)?\d+)"`)

// Mode selects how hunk lines are matched against the ID pattern.
type Mode int

const (
	// Buffered collects a whole hunk, joins its trimmed lines with a space
	// and matches once. A pattern split across two lines still matches.
	Buffered Mode = iota
	// Streaming matches every hunk line on its own as it is read.
	Streaming
)

func (m Mode) String() string {
	switch m {
	case Streaming:
		return "streaming"
	default:
		return "buffered"
	}
}

// ParseMode converts a config or flag value into a Mode. Empty means Buffered.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buffered", "buffer", "hunk":
		return Buffered, nil
	case "streaming", "stream", "line":
		return Streaming, nil
	default:
		return Buffered, fmt.Errorf("unknown extract mode %q (want buffered or streaming)", s)
	}
}

// State is the position of the scanner within the diff.
type State int

const (
	// Outside: no section file header seen yet, or the last file header
	// named a file outside the repo directory.
	Outside State = iota
	// InSection: after a section file header, before its first hunk.
	InSection
	// InHunk: inside a hunk of the current section.
	InHunk
)

func (s State) String() string {
	switch s {
	case InSection:
		return "in-section"
	case InHunk:
		return "in-hunk"
	default:
		return "outside"
	}
}

// Options configures an extraction.
type Options struct {
	// RepoDir is the directory prefix of section files in the diff headers.
	RepoDir string
	Mode    Mode
}

// Scanner is the line-driven state machine behind Extract.
type Scanner struct {
	sectionPattern *regexp.Regexp
	mode           Mode

	state   State
	section string
	hunk    []string
	acc     *accumulator
}

// NewScanner creates a Scanner for the given options.
func NewScanner(opts Options) *Scanner {
	repoDir := strings.Trim(opts.RepoDir, "/")
	if repoDir == "" {
		repoDir = DefaultRepoDir
	}
	return &Scanner{
		sectionPattern: regexp.MustCompile(`^diff --git a/` + regexp.QuoteMeta(repoDir) + `/([\w-]+)\.json`),
		mode:           opts.Mode,
		state:          Outside,
		acc:            newAccumulator(),
	}
}

// State returns the current scanner state.
func (s *Scanner) State() State {
	return s.state
}

// Section returns the section currently being scanned, or "" when Outside.
func (s *Scanner) Section() string {
	return s.section
}

// Feed advances the state machine by one diff line.
func (s *Scanner) Feed(line string) {
	if strings.HasPrefix(line, fileHeaderPrefix) {
		s.flushHunk()
		if match := s.sectionPattern.FindStringSubmatch(line); match != nil {
			s.section = match[1]
			s.acc.declare(s.section)
			s.state = InSection
		} else {
			s.section = ""
			s.state = Outside
		}
		return
	}

	if strings.HasPrefix(line, hunkHeaderPrefix) {
		if s.state == Outside {
			return
		}
		s.flushHunk()
		s.state = InHunk
	}

	if s.state != InHunk {
		return
	}

	if s.mode == Streaming {
		s.acc.add(s.section, findIDs(line))
		return
	}
	s.hunk = append(s.hunk, strings.TrimSpace(line))
}

// Result flushes any pending hunk and returns the changed IDs so far.
func (s *Scanner) Result() model.ChangedIDs {
	s.flushHunk()
	return s.acc.result()
}

func (s *Scanner) flushHunk() {
	if len(s.hunk) == 0 {
		return
	}
	s.acc.add(s.section, findIDs(strings.Join(s.hunk, " ")))
	s.hunk = s.hunk[:0]
}

func findIDs(text string) []string {
	matches := idPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m[1]
	}
	return ids
}

// Extract reads a unified diff and returns the IDs found inside the hunks of
// each section file.
func Extract(r io.Reader, opts Options) (model.ChangedIDs, error) {
	scanner := NewScanner(opts)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			scanner.Feed(strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read diff: %w", err)
		}
	}
	return scanner.Result(), nil
}

// ExtractString is Extract over an in-memory diff.
func ExtractString(diff string, opts Options) model.ChangedIDs {
	scanner := NewScanner(opts)
	for _, line := range strings.Split(diff, "\n") {
		scanner.Feed(strings.TrimRight(line, "\r"))
	}
	return scanner.Result()
}

// accumulator unions IDs per section, remembering first-seen section order.
type accumulator struct {
	order []string
	sets  map[string]map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{sets: make(map[string]map[string]struct{})}
}

func (a *accumulator) declare(section string) {
	if _, ok := a.sets[section]; ok {
		return
	}
	a.order = append(a.order, section)
	a.sets[section] = make(map[string]struct{})
}

func (a *accumulator) add(section string, ids []string) {
	if section == "" || len(ids) == 0 {
		return
	}
	a.declare(section)
	set := a.sets[section]
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

func (a *accumulator) result() model.ChangedIDs {
	changed := model.ChangedIDs{}
	for _, section := range a.order {
		set := a.sets[section]
		if len(set) == 0 {
			continue
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		changed = append(changed, model.SectionIDs{Section: section, IDs: ids})
	}
	return changed
}
